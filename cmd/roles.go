package cmd

import (
	"fmt"

	"github.com/opsdata/etl-scripts/pipeline"
	"github.com/opsdata/etl-scripts/utils"
	"github.com/spf13/cobra"
)

func newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Merges functional-area workbooks with the role mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			output, err := pipeline.NewRoles(cfg, log, utils.RealTimeProvider{}).Run(cmd.Context())
			if err != nil {
				log.Error(fmt.Sprintf("Error running pipeline: %v", err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
}
