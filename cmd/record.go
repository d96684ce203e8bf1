// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/egg17/powerboxctl/internal/bridge"
)

var (
	recordOut  string
	recordNote string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record inbound frames to a capture file",
	Long: `Save every inbound frame to a timestamped capture file.

Frames are written as they arrive, with arrival timestamps preserved,
so the session can be replayed later with the replay command. Recording
runs until interrupted with Ctrl+C.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVar(&recordOut, "out", "", "Capture file to write (required)")
	recordCmd.Flags().StringVar(&recordNote, "note", "", "Free-form note stored in the capture header")
	recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	f, err := os.Create(recordOut)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %v", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	writer, err := bridge.NewCaptureWriter(bw, recordNote)
	if err != nil {
		return err
	}

	fmt.Printf("Powerboxctl - Session Recorder\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Capture: %s\n", recordOut)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	frameChan := make(chan *bridge.Frame, 64)
	doneChan := make(chan struct{})

	go func() {
		defer close(doneChan)
		decoder := bridge.NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if err != ErrConnectionClosed {
					log.Printf("Read error: %v", err)
				}
				return
			}
			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil || frame == nil {
					continue
				}
				frameChan <- frame
			}
		}
	}()

	finish := func() error {
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("failed to flush capture file: %v", err)
		}
		fmt.Printf("\nRecorded %d frames to %s\n", writer.Frames(), recordOut)
		return nil
	}

	for {
		select {
		case frame := <-frameChan:
			if err := writer.WriteFrame(frame); err != nil {
				return err
			}

		case <-doneChan:
			log.Printf("Connection closed")
			return finish()

		case <-sigChan:
			return finish()
		}
	}
}
