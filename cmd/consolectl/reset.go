package main

import (
	"github.com/spf13/cobra"

	"github.com/foundrycade/pixelforge/internal/console"
)

var (
	resetRomPath string
	resetFull    bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Mount a cartridge, then perform a warm or full reset and print the resulting snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := console.New(newLogger())
		defer m.Shutdown()
		if err := mountFromFlag(m, resetRomPath); err != nil {
			return err
		}
		if resetFull {
			m.FullReset()
		} else {
			m.Reset()
		}
		printSnapshot(m.Snapshot())
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetRomPath, "rom", "", "path to a cartridge ROM image")
	resetCmd.Flags().BoolVar(&resetFull, "full", false, "perform fullReset (also unmounts the cartridge)")
	resetCmd.MarkFlagRequired("rom")
}
