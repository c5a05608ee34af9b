package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/foundrycade/pixelforge/internal/console"
)

var (
	runRomPath  string
	runDuration time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Mount a cartridge and free-run the CPU actor for a fixed wall-clock duration, then print a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := console.New(newLogger())
		defer m.Shutdown()
		if err := mountFromFlag(m, runRomPath); err != nil {
			return err
		}
		m.Run()
		time.Sleep(runDuration)
		m.Pause()
		printSnapshot(m.Snapshot())
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runRomPath, "rom", "", "path to a cartridge ROM image")
	runCmd.Flags().DurationVar(&runDuration, "for", time.Second, "how long to let the CPU actor run before pausing")
	runCmd.MarkFlagRequired("rom")
}
