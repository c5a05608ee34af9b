package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foundrycade/pixelforge/internal/romfile"
)

var (
	buildROMInput  string
	buildROMOutput string
	buildROMBanks  int
)

var buildROMCmd = &cobra.Command{
	Use:   "build-rom",
	Short: "Pad a raw program binary out to a whole number of cartridge banks",
	RunE: func(cmd *cobra.Command, args []string) error {
		program, err := os.ReadFile(buildROMInput)
		if err != nil {
			return fmt.Errorf("reading program: %w", err)
		}
		image, err := romfile.Build(program, buildROMBanks)
		if err != nil {
			return err
		}
		if err := os.WriteFile(buildROMOutput, image, 0o644); err != nil {
			return fmt.Errorf("writing ROM image: %w", err)
		}
		fmt.Printf("wrote %q: %d bank(s), %d bytes\n", buildROMOutput, buildROMBanks, len(image))
		return nil
	},
}

func init() {
	buildROMCmd.Flags().StringVar(&buildROMInput, "in", "", "raw program binary")
	buildROMCmd.Flags().StringVar(&buildROMOutput, "out", "", "output cartridge ROM image path")
	buildROMCmd.Flags().IntVar(&buildROMBanks, "banks", 1, "number of 32 KiB banks to pad the image to")
	buildROMCmd.MarkFlagRequired("in")
	buildROMCmd.MarkFlagRequired("out")
}
