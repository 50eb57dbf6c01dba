package cmd

import (
	"github.com/opsdata/etl-scripts/pipeline"
	"github.com/spf13/cobra"
)

func newAttachmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attachment",
		Short: "Imports the open tickets of a downloaded report into a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			_, err = pipeline.NewAttachment(cfg, log, newNotifier(cfg, log)).Run(cmd.Context())
			return err
		},
	}
}
