package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var listFlags struct {
	yamlOutput bool
}

var listCmd = &cobra.Command{
	Use:   "list [scenario...]",
	Short: "List available scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.catalog.Select(args...)
		if err != nil {
			return err
		}
		if listFlags.yamlOutput {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			for _, s := range list {
				if err := enc.Encode(s); err != nil {
					return fmt.Errorf("failed to encode scenario %q: %w", s.Name, err)
				}
			}
			return enc.Close()
		}
		fmt.Fprintln(cmd.OutOrStdout(), scenarioTable(list, a.cfg.Simulation.Rounds))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listFlags.yamlOutput, "yaml", false, "Dump scenarios as loadable YAML documents")
}
