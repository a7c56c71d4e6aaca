package main

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"pico-faultsim/internal/models"
	"pico-faultsim/internal/scenario"
)

func newTable() table.Writer {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	return w
}

// reportTable сводка прогонов
func reportTable(reports []models.Report) string {
	w := newTable()
	w.AppendHeader(table.Row{"Scenario", "Rounds", "Injected", "Detected", "Status", "Drift", "USB"})

	counts := map[models.Status]int{}
	for _, r := range reports {
		detected := strings.Join(r.DetectedLabels, ", ")
		if detected == "" {
			detected = "-"
		}
		w.AppendRow(table.Row{
			r.Scenario, r.Rounds, r.InjectedFaults, detected, r.Status.String(),
			r.Final.DriftAccumulator, usbState(r.Final.USBConnected),
		})
		counts[r.Status]++
	}
	w.AppendFooter(table.Row{
		"Total", len(reports), "", "",
		summary(counts),
	})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, WidthMax: 40},
		{Number: 6, Align: text.AlignRight},
	})
	return w.Render()
}

// scenarioTable каталог сценариев
func scenarioTable(list []*scenario.Scenario, defaultRounds int) string {
	w := newTable()
	w.AppendHeader(table.Row{"Name", "Rounds", "Faults", "Description"})
	for _, s := range list {
		rounds := s.Rounds
		if rounds == 0 {
			rounds = defaultRounds
		}
		faults := make([]string, len(s.Faults))
		for i, inj := range s.Faults {
			faults[i] = inj.Target.String() + ":" + inj.Spec.Kind.String()
		}
		w.AppendRow(table.Row{s.Name, rounds, strings.Join(faults, " "), s.Description})
	}
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 4, WidthMax: 60},
	})
	return w.Render()
}

// bridgeTable ответы прошивки
func bridgeTable(results []models.BridgeResult) string {
	w := newTable()
	w.AppendHeader(table.Row{"Command", "Response", "Error"})
	for _, r := range results {
		w.AppendRow(table.Row{r.Command, r.Response, r.Error})
	}
	return w.Render()
}

func usbState(connected bool) string {
	if connected {
		return "up"
	}
	return "down"
}

func summary(counts map[models.Status]int) string {
	order := []models.Status{models.StatusAllNormal, models.StatusFaultDetected, models.StatusFaultMissed}
	parts := make([]string, 0, len(order))
	for _, s := range order {
		if counts[s] > 0 {
			parts = append(parts, s.String()+"="+strconv.Itoa(counts[s]))
		}
	}
	return strings.Join(parts, " ")
}
