package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/opsdata/etl-scripts/config"
	"github.com/opsdata/etl-scripts/extract"
	"github.com/opsdata/etl-scripts/frame"
	"github.com/opsdata/etl-scripts/load"
	"github.com/opsdata/etl-scripts/notify"
	"github.com/opsdata/etl-scripts/utils"
	"github.com/opsdata/etl-scripts/warehouse"
)

const colStatus = "Status"

type attachmentFetcher interface {
	SaveLatestAttachment(ctx context.Context, subjectPrefix, ext, dest string) (string, error)
}

// Attachment imports the open tickets of a report workbook into a table
// that is replaced on every run. With a Mailbox the workbook is first
// downloaded from the latest matching email.
type Attachment struct {
	Config   *config.Config
	Logger   *slog.Logger
	Notifier notify.Notifier
	Open     OpenFunc
	Mailbox  attachmentFetcher
}

// NewAttachment reads the report from the mailbox when settings.imap_host
// is set, and from download_location otherwise.
func NewAttachment(cfg *config.Config, logger *slog.Logger, notifier notify.Notifier) *Attachment {
	a := &Attachment{Config: cfg, Logger: logger, Notifier: notifier, Open: OpenWarehouse}
	if cfg.Settings.IMAPHost != "" {
		a.Mailbox = &extract.Mailbox{Store: extract.NewIMAPStore(cfg), Logger: logger}
	}
	return a
}

// Run returns the number of rows imported.
func (a *Attachment) Run(ctx context.Context) (int64, error) {
	imported, err := a.run(ctx)
	if err != nil {
		a.Logger.Error("Error occurred; Ended program", "error", err)
		notify.BestEffort(ctx, a.Notifier, a.Logger, notify.Message{
			Subject:    a.Config.Emails.ToErrorSubject,
			Body:       "Check log",
			Attachment: a.Config.Files.LogFile,
		})
		return 0, err
	}
	return imported, nil
}

func (a *Attachment) run(ctx context.Context) (int64, error) {
	cfg := a.Config
	keys := append([]string{
		"files.log_file",
		"files.download_location",
		"files.download_file_name",
		"attachment.table",
		"database.driver",
		"emails.email_to_subject",
		"emails.email_to_error_subject",
	}, credentialKeys(cfg)...)
	if a.Mailbox != nil {
		keys = append(keys, "emails.email_from_subject", "credentials.email_address", "credentials.email_password")
	}
	if err := cfg.Require(keys...); err != nil {
		return 0, err
	}

	params, err := connectionParams(cfg)
	if err != nil {
		return 0, err
	}
	table, err := warehouse.ParseTableRef(cfg.Attachment.Table)
	if err != nil {
		return 0, err
	}

	source := filepath.Join(cfg.Files.DownloadLocation, cfg.Files.DownloadFileName)
	origin := "'" + cfg.Files.DownloadFileName + "'"
	if a.Mailbox != nil {
		if err := os.MkdirAll(cfg.Files.DownloadLocation, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create download folder: %w", err)
		}
		subject, err := a.Mailbox.SaveLatestAttachment(ctx, cfg.Emails.FromSubject, ".xlsx", source)
		if err != nil {
			return 0, err
		}
		origin = "email '" + subject + "'"
	}

	report, err := frame.ReadXLSX(source, "", cfg.Attachment.SkipRows)
	if err != nil {
		return 0, err
	}
	if !report.HasColumn(colStatus) {
		return 0, fmt.Errorf("report %s has no '%s' column", source, colStatus)
	}

	statuses := utils.CleanList(cfg.Attachment.Statuses)
	open := report.Filter(func(rec frame.Record) bool {
		status, _ := rec[colStatus].(string)
		return slices.Contains(statuses, status)
	})
	a.Logger.Info(fmt.Sprintf("%d of %d rows have an open status", open.Len(), report.Len()))

	a.Logger.Info("Trying to create engine")
	session, err := a.Open(ctx, params, a.Logger)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			a.Logger.Error("Failed to close database session", "error", err)
		}
	}()

	imported, err := load.ReplaceTable(ctx, session, table, open, cfg.Database.BatchSize, a.Logger)
	if err != nil {
		return 0, err
	}

	body := fmt.Sprintf("%d lines of data are imported to table '%s' from %s", imported, cfg.Attachment.Table, origin)
	a.Logger.Info(body)
	notify.BestEffort(ctx, a.Notifier, a.Logger, notify.Message{
		Subject:    cfg.Emails.ToSubject,
		Body:       body,
		Attachment: cfg.Files.LogFile,
	})
	return imported, nil
}
