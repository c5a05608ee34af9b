package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foundrycade/pixelforge/internal/console"
)

var (
	stepRomPath string
	stepCount   int
)

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Single-step the CPU actor a fixed number of instructions and print the resulting snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := console.New(newLogger())
		defer m.Shutdown()
		if err := mountFromFlag(m, stepRomPath); err != nil {
			return err
		}
		for i := 0; i < stepCount; i++ {
			if err := m.Step(); err != nil {
				printSnapshot(m.Snapshot())
				return fmt.Errorf("halted after %d step(s): %w", i, err)
			}
		}
		printSnapshot(m.Snapshot())
		return nil
	},
}

func init() {
	stepCmd.Flags().StringVar(&stepRomPath, "rom", "", "path to a cartridge ROM image")
	stepCmd.Flags().IntVar(&stepCount, "count", 1, "number of instructions to execute")
	stepCmd.MarkFlagRequired("rom")
}

func printSnapshot(snap console.Snapshot) {
	fmt.Printf("PC=0x%04X SP=0x%04X Status=0x%02X R=%v cycles=%d halted=%v\n",
		snap.CPU.PC, snap.CPU.SP, snap.CPU.Status, snap.CPU.R, snap.CPU.Cycles, snap.Halted)
	if snap.HaltError != nil {
		fmt.Printf("halt error: %v\n", snap.HaltError)
	}
}
