package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pico-faultsim/internal/models"
	"pico-faultsim/internal/scenario"
)

var runFlags struct {
	rounds     int
	files      []string
	jsonOutput bool
	failOnMiss bool
}

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run diagnostic scenarios (all when none named)",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.rounds, "rounds", 0, "Sampling rounds per scenario (default: scenario or config value)")
	f.StringArrayVarP(&runFlags.files, "file", "f", nil, "Extra scenario YAML file (repeatable)")
	f.BoolVar(&runFlags.jsonOutput, "json", false, "Print reports as JSON")
	f.BoolVar(&runFlags.failOnMiss, "fail-on-miss", false, "Exit non-zero when an injected fault goes undetected")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runFlags.rounds < 0 {
		return fmt.Errorf("--rounds must be positive, got %d", runFlags.rounds)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range runFlags.files {
		if err := a.catalog.AddFile(path); err != nil {
			return err
		}
	}
	if err := a.connectStore(); err != nil {
		return err
	}

	selected, err := a.catalog.Select(args...)
	if err != nil {
		return err
	}
	if runFlags.rounds > 0 {
		selected = withRounds(selected, runFlags.rounds)
	}

	reports, err := a.runner().RunAll(cmd.Context(), selected)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runFlags.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, reportTable(reports))
	}

	if runFlags.failOnMiss {
		for _, r := range reports {
			if r.Status == models.StatusFaultMissed {
				return fmt.Errorf("scenario %q: injected faults were not detected", r.Scenario)
			}
		}
	}
	return nil
}

// withRounds копии сценариев с переопределенным числом раундов
func withRounds(list []*scenario.Scenario, rounds int) []*scenario.Scenario {
	out := make([]*scenario.Scenario, len(list))
	for i, s := range list {
		c := *s
		c.Rounds = rounds
		out[i] = &c
	}
	return out
}
