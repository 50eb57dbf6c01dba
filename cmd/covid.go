package cmd

import (
	"github.com/opsdata/etl-scripts/extract"
	"github.com/opsdata/etl-scripts/pipeline"
	"github.com/spf13/cobra"
)

func newCovidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "covid",
		Short: "Downloads the historical and current COVID state CSVs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			c := &pipeline.Covid{
				Config:   cfg,
				Logger:   log,
				Notifier: newNotifier(cfg, log),
				Client:   extract.NewCSVClient(cfg, log),
			}
			return c.Run(cmd.Context())
		},
	}
}
