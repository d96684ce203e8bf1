// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/egg17/powerboxctl/internal/bridge"
	"github.com/egg17/powerboxctl/pkg/powerbox"
)

var (
	showAll       bool
	statsInterval int
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Detect and report malformed frames and anomalous values",
	Long: `Validate each inbound frame and report anomalies with statistics.

This command checks every frame against the protocol layout and detects:
  - Short or oversized state frames
  - History headers with out-of-range windows or over-cap run lengths
  - Unknown channels and chart metrics
  - Malformed log chunk markers and command payloads

By default only anomalous frames are displayed. Use --show-all to display
clean frames too. Statistics summaries print at configurable intervals.`,
	RunE: runDiag,
}

func init() {
	rootCmd.AddCommand(diagCmd)
	diagCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just anomalies)")
	diagCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

var anomalyNames = map[powerbox.AnomalyType]string{
	powerbox.AnomalyShortFrame:     "SHORT_FRAME",
	powerbox.AnomalyUnknownChannel: "UNKNOWN_CHANNEL",
	powerbox.AnomalyUnknownMetric:  "UNKNOWN_METRIC",
	powerbox.AnomalyOverlongRun:    "OVERLONG_RUN",
	powerbox.AnomalyRangeOverflow:  "RANGE_OVERFLOW",
	powerbox.AnomalyBadBool:        "BAD_BOOL",
	powerbox.AnomalyBadMarker:      "BAD_MARKER",
	powerbox.AnomalyBadCommand:     "BAD_COMMAND",
	powerbox.AnomalyTrailingBytes:  "TRAILING_BYTES",
}

// diagStats tracks frame counts and anomaly rates for the periodic summary.
type diagStats struct {
	startTime   time.Time
	totalFrames int
	cleanFrames int
	decodeErrs  int
	byAnomaly   map[powerbox.AnomalyType]int
	byChannel   map[powerbox.Channel]int
}

func newDiagStats() *diagStats {
	return &diagStats{
		startTime: time.Now(),
		byAnomaly: make(map[powerbox.AnomalyType]int),
		byChannel: make(map[powerbox.Channel]int),
	}
}

func (s *diagStats) update(f *bridge.Frame, decodeErr error, findings []powerbox.ValidationError) {
	if decodeErr != nil {
		s.decodeErrs++
		return
	}
	s.totalFrames++
	s.byChannel[f.Channel]++
	if len(findings) == 0 {
		s.cleanFrames++
		return
	}
	for _, v := range findings {
		s.byAnomaly[v.Type]++
	}
}

func (s *diagStats) String() string {
	elapsed := time.Since(s.startTime).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(s.totalFrames) / elapsed
	}
	successRate := 0.0
	if s.totalFrames > 0 {
		successRate = float64(s.cleanFrames) / float64(s.totalFrames) * 100
	}

	out := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed)
	out += fmt.Sprintf("Frames: %d (%.1f/s), clean: %d (%.1f%%), decode errors: %d\n",
		s.totalFrames, rate, s.cleanFrames, successRate, s.decodeErrs)
	for _, ch := range []powerbox.Channel{
		powerbox.ChannelBMS, powerbox.ChannelPSU, powerbox.ChannelInverter,
		powerbox.ChannelMCU, powerbox.ChannelATS, powerbox.ChannelHistory,
		powerbox.ChannelLog,
	} {
		if n := s.byChannel[ch]; n > 0 {
			out += fmt.Sprintf("  %s: %d\n", ch, n)
		}
	}
	if len(s.byAnomaly) > 0 {
		out += "Anomalies:\n"
		for _, typ := range []powerbox.AnomalyType{
			powerbox.AnomalyShortFrame, powerbox.AnomalyTrailingBytes,
			powerbox.AnomalyUnknownChannel, powerbox.AnomalyUnknownMetric,
			powerbox.AnomalyOverlongRun, powerbox.AnomalyRangeOverflow,
			powerbox.AnomalyBadBool, powerbox.AnomalyBadMarker,
			powerbox.AnomalyBadCommand,
		} {
			if n := s.byAnomaly[typ]; n > 0 {
				out += fmt.Sprintf("  %s: %d\n", anomalyNames[typ], n)
			}
		}
	}
	return out
}

// printDiagDecodeError prints a framing-level decode error in highlighted format
func printDiagDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n\n", timestamp, err)
}

// printFindings prints validation findings for one frame
func printFindings(f *bridge.Frame, findings []powerbox.ValidationError) {
	timestamp := f.Timestamp.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s (0x%02X) len=%d\n",
		timestamp, f.Channel, uint8(f.Channel), len(f.Payload))

	for i, v := range findings {
		name := anomalyNames[v.Type]
		fmt.Printf("  Issue %d: \033[1;31m%s\033[0m %s\n", i+1, name, v.Message)

		switch v.Type {
		case powerbox.AnomalyShortFrame, powerbox.AnomalyTrailingBytes:
			if got, ok := v.Details["length"].(int); ok {
				if want, ok := v.Details["expected"].(int); ok {
					fmt.Printf("    Length: received=%d, expected=%d\n", got, want)
				}
			}
		case powerbox.AnomalyOverlongRun:
			if n, ok := v.Details["length"].(uint8); ok {
				fmt.Printf("    Run length=%d (max %d)\n", n, powerbox.MaxFrameSamples)
			}
		case powerbox.AnomalyRangeOverflow:
			if off, ok := v.Details["offset"].(uint8); ok {
				if n, ok := v.Details["length"].(uint8); ok {
					fmt.Printf("    Window: offset=%d length=%d (buffer %d)\n",
						off, n, powerbox.HistoryLength)
				}
			}
		case powerbox.AnomalyBadBool:
			if off, ok := v.Details["offset"].(int); ok {
				if raw, ok := v.Details["value"].(byte); ok {
					fmt.Printf("    Byte %d = 0x%02X (valid: 0, 1, 2)\n", off, raw)
				}
			}
		}
	}
	fmt.Printf("  >>> FRAME FLAGGED <<<\n\n")
}

func runDiag(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Powerboxctl - Frame Diagnostics\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Anomalies only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := bridge.NewDecoder()
	stats := newDiagStats()

	// Sync tracking - ignore decode errors until the first clean frame
	synchronized := false
	invalidBytesBeforeSync := 0

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Channel for non-blocking reads
	frameBuf := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if err == ErrConnectionClosed {
					readErr <- err
					return
				}
				log.Printf("Read error: %v", err)
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			frameBuf <- data
		}
	}()

	for {
		select {
		case data := <-frameBuf:
			for _, b := range data {
				frame, decodeErr := decoder.DecodeByte(b)

				if decodeErr != nil {
					if synchronized {
						stats.update(nil, decodeErr, nil)
						printDiagDecodeError(decodeErr)
					} else {
						invalidBytesBeforeSync++
					}
					continue
				}
				if frame == nil {
					continue
				}

				if !synchronized {
					synchronized = true
					if invalidBytesBeforeSync > 0 {
						fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", invalidBytesBeforeSync)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}

				findings := powerbox.ValidateFrame(frame.Channel, frame.Payload)
				stats.update(frame, nil, findings)

				if len(findings) > 0 {
					printFindings(frame, findings)
				} else if showAll {
					printFrame(frame)
				}
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case <-readErr:
			log.Printf("Connection closed")
			fmt.Println()
			fmt.Print(stats.String())
			return nil
		}
	}
}
