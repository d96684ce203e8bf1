// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/egg17/powerboxctl/internal/bridge"
	"github.com/egg17/powerboxctl/pkg/powerbox"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display inbound frames in human-readable format",
	Long: `Continuously decode and display powerbox frames as they arrive.

Each inbound notification or read response is shown with a timestamp, its
channel, and the decoded payload: subsystem state fields, history frame
headers with their sample windows, and debug log chunks.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Powerboxctl - Frame Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := bridge.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				printFrame(frame)
			}
		}
	}
}

// printFrame prints one bridge frame with its decoded payload.
func printFrame(f *bridge.Frame) {
	timestamp := f.Timestamp.Format("15:04:05.000")
	fmt.Printf("[%s] %s %s (0x%02X) len=%d\n",
		timestamp, f.Kind, f.Channel, uint8(f.Channel), len(f.Payload))
	fmt.Print(powerbox.FormatFrame(f.Channel, f.Payload))
}
