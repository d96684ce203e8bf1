// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17
//
// Powerboxctl - Trypillia Power Station Protocol Tool
//
// A CLI tool for monitoring, controlling and simulating Trypillia
// powerbox stations over serial or websocket bridge connections.

package main

import (
	"os"

	"github.com/egg17/powerboxctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
