// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/egg17/powerboxctl/internal/bridge"
)

var replaySpeed float64

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Replay a recorded capture file",
	Long: `Print a recorded session frame by frame, preserving timing.

Inter-frame gaps from the original session are reproduced, scaled by
--speed (2 plays twice as fast, 0 prints everything immediately).`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 for no delays)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replaySpeed < 0 {
		return fmt.Errorf("invalid speed %g", replaySpeed)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %v", err)
	}
	defer f.Close()

	reader, err := bridge.NewCaptureReader(f)
	if err != nil {
		return err
	}

	fmt.Printf("Powerboxctl - Session Replay\n")
	fmt.Printf("Capture: %s (recorded %s)\n", args[0],
		reader.Created().Local().Format("2006-01-02 15:04:05"))
	if note := reader.Note(); note != "" {
		fmt.Printf("Note: %s\n", note)
	}
	fmt.Println()

	var prev time.Time
	count := 0
	for {
		frame, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		if replaySpeed > 0 && !prev.IsZero() {
			gap := frame.Timestamp.Sub(prev)
			if gap > 0 {
				time.Sleep(time.Duration(float64(gap) / replaySpeed))
			}
		}
		prev = frame.Timestamp

		printFrame(frame)
		count++
	}

	fmt.Printf("\nReplayed %d frames\n", count)
	return nil
}
