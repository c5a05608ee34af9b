// Command consolectl is the headless host controller for the console
// core, issuing run/pause/step/reset/fullReset/mount/snapshot against
// internal/console.Machine. It is not a GUI or editor host — just
// enough of a CLI to load a cartridge and drive the CPU actor from a
// terminal.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/foundrycade/pixelforge/internal/vmlog"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "consolectl",
	Short: "Host controller for the fantasy-console core",
	Long:  "consolectl drives internal/console.Machine: mount a cartridge, run or single-step it, and inspect CPU/frame snapshots.",
}

func newLogger() *vmlog.Logger {
	if !verbose {
		return vmlog.New(vmlog.LevelError)
	}
	log := vmlog.New(vmlog.LevelTrace)
	log.SetComponentEnabled(vmlog.ComponentCPU, true)
	log.SetComponentEnabled(vmlog.ComponentBus, true)
	log.SetComponentEnabled(vmlog.ComponentSprite, true)
	log.SetComponentEnabled(vmlog.ComponentTilemap, true)
	log.SetComponentEnabled(vmlog.ComponentPipeline, true)
	log.SetComponentEnabled(vmlog.ComponentConsole, true)
	log.SetComponentEnabled(vmlog.ComponentStore, true)
	return log
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "log", false, "enable trace logging across all components")
	rootCmd.AddCommand(runCmd, stepCmd, resetCmd, mountCmd, snapshotCmd, buildROMCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
