package cmd

import (
	"fmt"

	"github.com/opsdata/etl-scripts/config"
	"github.com/spf13/cobra"
)

func newConfigTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-template [path]",
		Short: "Writes a config file with every key and its default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config_template.ini"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteTemplate(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config template written to %s\n", path)
			return nil
		},
	}
}
