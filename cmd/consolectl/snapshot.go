package main

import (
	"github.com/spf13/cobra"

	"github.com/foundrycade/pixelforge/internal/console"
)

var snapshotRomPath string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Mount a cartridge and print its post-mount snapshot without stepping",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := console.New(newLogger())
		defer m.Shutdown()
		if err := mountFromFlag(m, snapshotRomPath); err != nil {
			return err
		}
		printSnapshot(m.Snapshot())
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotRomPath, "rom", "", "path to a cartridge ROM image")
	snapshotCmd.MarkFlagRequired("rom")
}
