package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/opsdata/etl-scripts/config"
	"github.com/opsdata/etl-scripts/frame"
	"github.com/opsdata/etl-scripts/utils"
	"github.com/sourcegraph/conc/iter"
)

const (
	colFunctionalArea = "Functional Area"
	colAppID          = "App ID"
	colRoleName       = "Role Name"
	colID             = "ID"
	colIDDescription  = "ID Description"
)

// Roles merges functional-area workbooks with the role mapping workbook.
type Roles struct {
	Config       *config.Config
	Logger       *slog.Logger
	timeProvider utils.TimeProvider
}

func NewRoles(cfg *config.Config, logger *slog.Logger, timeProvider utils.TimeProvider) *Roles {
	return &Roles{Config: cfg, Logger: logger, timeProvider: timeProvider}
}

// Run writes output_YYYY_MM_DD.xlsx and returns its path.
func (r *Roles) Run(ctx context.Context) (string, error) {
	cfg := r.Config
	if err := cfg.Require("roles.input_glob", "roles.mapping_file", "roles.mapping_sheet"); err != nil {
		return "", err
	}

	functions, err := r.readInputs(ctx)
	if err != nil {
		return "", err
	}

	mapping, err := r.readMapping()
	if err != nil {
		return "", err
	}

	roles, err := frame.LeftJoin(functions, mapping, colAppID, colID)
	if err != nil {
		return "", fmt.Errorf("failed to merge roles with mapping: %w", err)
	}

	existing := roles.Filter(func(rec frame.Record) bool { return !frame.IsNull(rec[colID]) })
	research := roles.Filter(func(rec frame.Record) bool { return frame.IsNull(rec[colID]) })
	r.Logger.Info(fmt.Sprintf("%d roles with an ID, %d roles need research", existing.Len(), research.Len()))

	unique, err := uniqueRolesPerArea(roles)
	if err != nil {
		return "", err
	}

	outputDir := cfg.Roles.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output folder: %w", err)
	}
	output := filepath.Join(outputDir, fmt.Sprintf("output_%s.xlsx", r.timeProvider.Now().Format("2006_01_02")))

	err = frame.WriteXLSX(output,
		frame.Sheet{Name: "Existing_Roles", Frame: existing},
		frame.Sheet{Name: "Need_Research_Roles", Frame: research},
		frame.Sheet{Name: "Unique_Roles_Per_Value_Stream", Frame: unique},
	)
	if err != nil {
		return "", err
	}

	r.Logger.Info(fmt.Sprintf("Roles written to %s", output))
	return output, nil
}

// readInputs concatenates the first sheet of every input workbook and keeps
// the rows with a functional area.
func (r *Roles) readInputs(ctx context.Context) (*frame.Frame, error) {
	paths, err := filepath.Glob(r.Config.Roles.InputGlob)
	if err != nil {
		return nil, fmt.Errorf("invalid input pattern '%s': %w", r.Config.Roles.InputGlob, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input workbooks match '%s'", r.Config.Roles.InputGlob)
	}

	mapper := iter.Mapper[string, *frame.Frame]{
		MaxGoroutines: 4,
	}
	workbooks, err := mapper.MapErr(paths, func(path *string) (*frame.Frame, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return frame.ReadXLSX(*path, "", 0)
	})
	if err != nil {
		return nil, err
	}

	all, err := frame.Concat(workbooks...)
	if err != nil {
		return nil, err
	}
	if !all.HasColumn(colFunctionalArea) {
		return nil, fmt.Errorf("input workbooks have no '%s' column", colFunctionalArea)
	}
	r.Logger.Info(fmt.Sprintf("Read %d rows from %d workbooks", all.Len(), len(paths)))

	return all.Filter(func(rec frame.Record) bool { return !frame.IsNull(rec[colFunctionalArea]) }), nil
}

// readMapping returns one row per (ID, ID Description) with the joined role
// names, ignoring technical roles.
func (r *Roles) readMapping() (*frame.Frame, error) {
	cfg := r.Config
	mapping, err := frame.ReadXLSX(cfg.Roles.MappingFile, cfg.Roles.MappingSheet, 0)
	if err != nil {
		return nil, err
	}
	mapping, err = mapping.Select(colRoleName, colID, colIDDescription)
	if err != nil {
		return nil, fmt.Errorf("invalid mapping workbook: %w", err)
	}

	exclude := utils.CleanList(cfg.Roles.Exclude)
	mapping = mapping.Filter(func(rec frame.Record) bool {
		name, _ := rec[colRoleName].(string)
		return !utils.ContainsAnyFold(name, exclude)
	})

	return frame.GroupJoin(mapping, []string{colID, colIDDescription}, colRoleName, ", ")
}

// uniqueRolesPerArea builds one column per functional area holding its
// sorted, distinct role names.
func uniqueRolesPerArea(roles *frame.Frame) (*frame.Frame, error) {
	areas := roles.Unique(colFunctionalArea)

	columns := make([][]string, len(areas))
	longest := 0
	for k, area := range areas {
		seen := make(map[string]bool)
		for i := 0; i < roles.Len(); i++ {
			if roles.String(i, colFunctionalArea) != area {
				continue
			}
			for _, role := range strings.Split(roles.String(i, colRoleName), ",") {
				if role = strings.TrimSpace(role); role != "" {
					seen[role] = true
				}
			}
		}
		for role := range seen {
			columns[k] = append(columns[k], role)
		}
		slices.Sort(columns[k])
		longest = max(longest, len(columns[k]))
	}

	rows := make([][]any, longest)
	for i := range rows {
		row := make([]any, len(areas))
		for k := range areas {
			if i < len(columns[k]) {
				row[k] = columns[k][i]
			}
		}
		rows[i] = row
	}
	return frame.New(areas, rows)
}
