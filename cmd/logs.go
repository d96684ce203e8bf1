// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/egg17/powerboxctl/internal/bridge"
	"github.com/egg17/powerboxctl/internal/station"
	"github.com/egg17/powerboxctl/pkg/powerbox"
)

var logsStop bool

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Stream assembled debug logs from the station",
	Long: `Start the debug log stream and print assembled messages.

Log messages arrive as chunked frames which are reassembled before
printing. The stream stays open until interrupted; Ctrl+C sends the
stop command before disconnecting.

Use --stop to only send the stop command and exit, for a stream left
running by a previous session.`,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVar(&logsStop, "stop", false, "Only stop a running log stream and exit")
}

func runLogs(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if logsStop {
		if err := sendCommand(conn, powerbox.NewLogStreamStopCommand()); err != nil {
			return fmt.Errorf("failed to send stop command: %v", err)
		}
		fmt.Printf("Log stream stopped\n")
		return nil
	}

	fmt.Printf("Powerboxctl - Debug Log Stream\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	if err := sendCommand(conn, powerbox.NewLogStreamStartCommand()); err != nil {
		return fmt.Errorf("failed to start log stream: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan station.LogMessage, 16)
	doneChan := make(chan struct{})

	// Reader goroutine: decode frames, feed log chunks to the assembler
	go func() {
		defer close(doneChan)
		decoder := bridge.NewDecoder()
		asm := &station.Assembler{}
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if err != ErrConnectionClosed {
					log.Printf("Read error: %v", err)
				}
				if msg, ok := asm.Flush(); ok {
					msgChan <- msg
				}
				return
			}

			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil || frame == nil {
					continue
				}
				if frame.Channel != powerbox.ChannelLog {
					continue
				}
				msg, complete, err := asm.Feed(frame.Payload)
				if err != nil {
					log.Printf("Bad log chunk: %v", err)
					continue
				}
				if complete {
					msgChan <- msg
				}
			}
		}
	}()

	for {
		select {
		case msg := <-msgChan:
			fmt.Printf("[%s] %-7s %s\n",
				msg.At.Format("15:04:05.000"),
				powerbox.FormatLogSeverity(msg.Severity),
				msg.Text)

		case <-doneChan:
			// Drain anything the assembler flushed on shutdown
			for {
				select {
				case msg := <-msgChan:
					fmt.Printf("[%s] %-7s %s\n",
						msg.At.Format("15:04:05.000"),
						powerbox.FormatLogSeverity(msg.Severity),
						msg.Text)
				default:
					log.Printf("Connection closed")
					return nil
				}
			}

		case <-sigChan:
			fmt.Printf("\nStopping log stream...\n")
			if err := sendCommand(conn, powerbox.NewLogStreamStopCommand()); err != nil {
				log.Printf("Failed to send stop command: %v", err)
			}
			return nil
		}
	}
}
