package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foundrycade/pixelforge/internal/console"
)

var mountRomPath string

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Validate and report on a cartridge ROM image",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := console.New(newLogger())
		defer m.Shutdown()
		if err := mountFromFlag(m, mountRomPath); err != nil {
			return err
		}
		snap := m.Snapshot()
		fmt.Printf("mounted %q: %d bank(s), entry PC=0x%04X\n", mountRomPath, snap.CartridgeBanks, snap.CPU.PC)
		return nil
	},
}

func init() {
	mountCmd.Flags().StringVar(&mountRomPath, "rom", "", "path to a cartridge ROM image")
	mountCmd.MarkFlagRequired("rom")
}

func mountFromFlag(m *console.Machine, path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading ROM: %w", err)
	}
	return m.Mount(rom)
}
