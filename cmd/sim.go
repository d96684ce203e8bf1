// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/egg17/powerboxctl/internal/log"
	"github.com/egg17/powerboxctl/internal/sim"
)

var (
	simListenAddr string
	simScenario   string
	simSeed       int64
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a simulated station over websocket",
	Long: `Serve the bridge protocol from an in-process station simulator.

The simulator emits state frames, history pushes and debug logs on the
configured intervals, answers device information reads and accepts
commands. Point any other powerboxctl command at it with
--url ws://localhost:8900.

Behavior is driven by a YAML scenario file; without one a sane default
station is simulated. The random seed controls telemetry jitter, so two
runs with the same seed and scenario produce the same traffic.`,
	RunE: runSim,
}

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.Flags().StringVar(&simListenAddr, "listen", "localhost:8900", "Address to listen on")
	simCmd.Flags().StringVar(&simScenario, "scenario", "", "Scenario YAML file (default scenario if omitted)")
	simCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed for telemetry jitter (0 for time-based)")
}

func runSim(cmd *cobra.Command, args []string) error {
	sc := sim.DefaultScenario()
	if simScenario != "" {
		loaded, err := sim.LoadScenario(simScenario)
		if err != nil {
			return fmt.Errorf("failed to load scenario: %v", err)
		}
		sc = loaded
	}

	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := sim.NewEngine(sc, seed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Printf("\nShutting down simulator...\n")
		cancel()
	}()

	fmt.Printf("Powerboxctl - Station Simulator\n")
	fmt.Printf("Model: %s %s (firmware %s)\n", sc.Device.Manufacturer, sc.Device.Model, sc.Device.Firmware)
	fmt.Printf("Listening on ws://%s\n", simListenAddr)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	server := sim.NewServer(engine, sc, log.GetSugaredLogger())
	return server.Serve(ctx, simListenAddr)
}
