// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/egg17/powerboxctl/internal/bridge"
	"github.com/egg17/powerboxctl/pkg/powerbox"
)

var infoTimeout int

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Read device identification from the station",
	Long: `Query the device information channels and print the answers.

Sends explicit reads for the manufacturer name, model number and firmware
revision, then waits for the matching read responses.

Exit codes:
  0 - All responses received before timeout
  1 - Timeout reached with responses still missing
  2 - Connection error`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().IntVar(&infoTimeout, "timeout", 10, "Timeout in seconds to wait for responses")
}

var infoChannels = []struct {
	ch    powerbox.Channel
	label string
}{
	{powerbox.ChannelManufacturerName, "Manufacturer"},
	{powerbox.ChannelModelNumber, "Model"},
	{powerbox.ChannelFirmwareRevision, "Firmware"},
}

func runInfo(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Powerboxctl - Device Information\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	type infoResponse struct {
		ch    powerbox.Channel
		value string
	}
	responseChan := make(chan infoResponse, len(infoChannels))
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		decoder := bridge.NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					// Ignore stream noise while waiting for responses
					continue
				}
				if frame != nil && frame.Kind == bridge.KindReadResponse {
					responseChan <- infoResponse{ch: frame.Channel, value: string(frame.Payload)}
				}
			}
		}
	}()

	// Issue all three reads up front; responses may arrive in any order
	for _, c := range infoChannels {
		if err := writeFrame(conn, bridge.KindReadRequest, c.ch, nil); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to send read request: %v\n", err)
			os.Exit(2)
		}
	}

	got := make(map[powerbox.Channel]string)
	deadline := time.After(time.Duration(infoTimeout) * time.Second)

	for len(got) < len(infoChannels) {
		select {
		case resp := <-responseChan:
			got[resp.ch] = resp.value

		case err := <-errChan:
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)

		case <-deadline:
			for _, c := range infoChannels {
				if v, ok := got[c.ch]; ok {
					fmt.Printf("  %s: %s\n", c.label, v)
				} else {
					fmt.Printf("  %s: <no response>\n", c.label)
				}
			}
			fmt.Fprintf(os.Stderr, "\nTIMEOUT: Responses still missing after %d seconds\n", infoTimeout)
			os.Exit(1)
		}
	}

	for _, c := range infoChannels {
		fmt.Printf("  %s: %s\n", c.label, got[c.ch])
	}
	return nil
}
