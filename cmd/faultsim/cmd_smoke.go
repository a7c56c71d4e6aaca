package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"pico-faultsim/internal/device"
	"pico-faultsim/internal/logging"
)

var smokeFlags struct {
	scenario string
}

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Toggle the LED twice, read the ADC, check USB and power once",
	Args:  cobra.NoArgs,
	RunE:  runSmoke,
}

func init() {
	smokeCmd.Flags().StringVar(&smokeFlags.scenario, "scenario", "", "Attach the faults of this scenario first")
}

func runSmoke(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	d := device.New(a.cfg.Simulation.Seed,
		device.WithRecorder(a.recorder()),
		device.WithLogger(logging.Component(a.logger, "device")),
		device.WithLenientKinds(!a.cfg.Simulation.StrictKinds),
	)
	if smokeFlags.scenario != "" {
		s, err := a.catalog.Get(smokeFlags.scenario)
		if err != nil {
			return err
		}
		if err := s.Apply(d); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(d.RunScenario())
}
