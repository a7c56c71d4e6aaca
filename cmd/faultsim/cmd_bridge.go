package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pico-faultsim/internal/bridge"
	"pico-faultsim/internal/device"
	"pico-faultsim/internal/logging"
	"pico-faultsim/internal/models"
)

var bridgeFlags struct {
	mode       string
	port       string
	baudRate   int
	scenario   string
	jsonOutput bool
	listPorts  bool
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge [command...]",
	Short: "Exchange LED/ADC/SLEEP/ECHO commands with the board firmware",
	Long: "Sends line commands to the Pico firmware and prints one response line per command.\n" +
		"In sim mode the firmware runs against a virtual device, so scenario faults show up\n" +
		"in the responses. In hardware mode the commands go over the serial port.",
	RunE: runBridge,
}

func init() {
	f := bridgeCmd.Flags()
	f.StringVar(&bridgeFlags.mode, "mode", "", "sim or hardware (default: bridge.mode from config)")
	f.StringVar(&bridgeFlags.port, "port", "", "Serial port (default: bridge.port from config)")
	f.IntVar(&bridgeFlags.baudRate, "baud", 0, "Baud rate (default: bridge.baud_rate from config)")
	f.StringVar(&bridgeFlags.scenario, "scenario", "", "Attach this scenario's faults to the simulated board")
	f.BoolVar(&bridgeFlags.jsonOutput, "json", false, "Print results as JSON")
	f.BoolVar(&bridgeFlags.listPorts, "list-ports", false, "List serial ports and exit")
}

func runBridge(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if bridgeFlags.listPorts {
		ports, err := bridge.Ports()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Fprintln(out, p)
		}
		return nil
	}

	cfg := a.cfg.Bridge
	if bridgeFlags.mode != "" {
		cfg.Mode = bridgeFlags.mode
	}
	if bridgeFlags.port != "" {
		cfg.Port = bridgeFlags.port
	}
	if bridgeFlags.baudRate > 0 {
		cfg.BaudRate = bridgeFlags.baudRate
	}

	log := logging.Component(a.logger, "bridge")
	clientOpts := []bridge.ClientOption{
		bridge.WithSettle(cfg.Settle),
		bridge.WithTimeout(cfg.Timeout),
		bridge.WithClientLogger(log),
	}

	var results []models.BridgeResult
	switch cfg.Mode {
	case "sim":
		d := device.New(a.cfg.Simulation.Seed,
			device.WithRecorder(a.recorder()),
			device.WithLogger(logging.Component(a.logger, "device")),
			device.WithLenientKinds(!a.cfg.Simulation.StrictKinds),
		)
		if bridgeFlags.scenario != "" {
			s, err := a.catalog.Get(bridgeFlags.scenario)
			if err != nil {
				return err
			}
			if err := s.Apply(d); err != nil {
				return err
			}
		}
		sim := bridge.NewSimulated(cmd.Context(), bridge.NewResponder(d, bridge.WithResponderLogger(log)), clientOpts...)
		results = sim.Client.RunAll(cmd.Context(), args...)
		if err := sim.Close(); err != nil {
			return err
		}
	case "hardware":
		if bridgeFlags.scenario != "" {
			return fmt.Errorf("--scenario applies to sim mode only")
		}
		port, err := bridge.OpenSerial(cfg.Port, cfg.BaudRate, cfg.Timeout)
		if err != nil {
			return err
		}
		defer port.Close()
		log.Info("connected to board", "port", cfg.Port, "baud", cfg.BaudRate)
		results = bridge.NewClient(port, clientOpts...).RunAll(cmd.Context(), args...)
	default:
		return fmt.Errorf("unknown bridge mode %q (use sim or hardware)", cfg.Mode)
	}

	if bridgeFlags.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	fmt.Fprintln(out, bridgeTable(results))
	return nil
}
