// faultsim прогоняет сценарии неисправностей на виртуальной плате Raspberry Pi Pico
// и проверяет, что детектор их находит.
//
// Usage:
//
//	faultsim run [scenario...] [--rounds N] [--file path] [--json]
//	faultsim list
//	faultsim smoke [--scenario name]
//	faultsim serve
//	faultsim bridge [--mode sim|hardware] [command...]
//	faultsim version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
