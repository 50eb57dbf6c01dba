package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/opsdata/etl-scripts/config"
	"github.com/opsdata/etl-scripts/frame"
	"github.com/opsdata/etl-scripts/notify"
	"github.com/sourcegraph/conc/iter"
)

type csvFetcher interface {
	FetchCSV(ctx context.Context, url, description string) (*frame.Frame, error)
}

// Covid downloads the historical and current state CSVs into a folder.
type Covid struct {
	Config   *config.Config
	Logger   *slog.Logger
	Notifier notify.Notifier
	Client   csvFetcher
}

type download struct {
	url      string
	fileName string
}

// Run fetches both CSVs concurrently and writes them as daily.csv and
// current.csv. Both outcomes are notified.
func (c *Covid) Run(ctx context.Context) error {
	if err := c.run(ctx); err != nil {
		c.Logger.Error("Exception occurred", "error", err)
		notify.BestEffort(ctx, c.Notifier, c.Logger, notify.Message{
			Subject:    c.Config.Emails.ToErrorSubject,
			Body:       "Unable to download CSVs",
			Attachment: c.Config.Files.LogFile,
		})
		return err
	}

	c.Logger.Info("Process completed")
	notify.BestEffort(ctx, c.Notifier, c.Logger, notify.Message{
		Subject:    c.Config.Emails.ToSubject,
		Body:       "COVID CSVs are downloaded",
		Attachment: c.Config.Files.LogFile,
	})
	return nil
}

func (c *Covid) run(ctx context.Context) error {
	cfg := c.Config
	if err := cfg.Require("files.save_to_filepath", "covid.historical_url", "covid.current_url"); err != nil {
		return err
	}

	c.Logger.Info("Trying to download the CSVs")
	downloads := []download{
		{url: cfg.Covid.HistoricalURL, fileName: "daily.csv"},
		{url: cfg.Covid.CurrentURL, fileName: "current.csv"},
	}

	mapper := iter.Mapper[download, *frame.Frame]{
		MaxGoroutines: len(downloads),
	}
	frames, err := mapper.MapErr(downloads, func(d *download) (*frame.Frame, error) {
		return c.Client.FetchCSV(ctx, d.url, d.fileName)
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Files.SaveToFilepath, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	for i, d := range downloads {
		if err := writeCSVFile(filepath.Join(cfg.Files.SaveToFilepath, d.fileName), frames[i]); err != nil {
			return err
		}
	}

	c.Logger.Info("Covid CSVs are downloaded")
	return nil
}

func writeCSVFile(path string, f *frame.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := f.WriteCSV(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
