package cmd

import (
	"fmt"

	"github.com/opsdata/etl-scripts/pipeline"
	"github.com/opsdata/etl-scripts/utils"
	"github.com/spf13/cobra"
)

func newWarehouseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warehouse",
		Short: "Copies new rows from a read query into the production table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			w := pipeline.NewWarehouse(cfg, log, newNotifier(cfg, log), utils.RealTimeProvider{})
			inserted, err := w.Run(cmd.Context())
			if err != nil {
				return err
			}
			log.Info(fmt.Sprintf("Batch job completed without errors. Inserted %d rows", inserted))
			return nil
		},
	}
}
