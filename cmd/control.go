// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

var psuCmd = &cobra.Command{
	Use:   "psu",
	Short: "Control the charger (PSU) subsystem",
}

var psuOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable the charger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(powerbox.NewPSUEnableCommand(), "PSU enabled")
	},
}

var psuOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable the charger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(powerbox.NewPSUDisableCommand(), "PSU disabled")
	},
}

var psuLimitCmd = &cobra.Command{
	Use:   "limit LEVEL",
	Short: "Set the charge current limit level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return fmt.Errorf("invalid level %q: %v", args[0], err)
		}
		return sendOneShot(powerbox.NewPSUCurrentLimitCommand(uint8(level)),
			fmt.Sprintf("PSU current limit set to level %d", level))
	},
}

var inverterCmd = &cobra.Command{
	Use:   "inverter",
	Short: "Control the AC inverter subsystem",
}

var inverterOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable the inverter",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(powerbox.NewInverterEnableCommand(), "Inverter enabled")
	},
}

var inverterOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable the inverter",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(powerbox.NewInverterDisableCommand(), "Inverter disabled")
	},
}

var atsCmd = &cobra.Command{
	Use:   "ats",
	Short: "Control the automatic transfer switch",
}

var atsOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable the transfer switch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(powerbox.NewATSEnableCommand(), "ATS enabled")
	},
}

var atsOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable the transfer switch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(powerbox.NewATSDisableCommand(), "ATS disabled")
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Telemetry history operations",
}

var historyPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Request a full history backfill",
	Long: `Ask the station to resend its telemetry history.

The station answers with patch-mode history frames covering every chart
metric it tracks. Use the monitor or watch commands to observe them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(powerbox.NewPullHistoryCommand(), "History pull requested")
	},
}

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot the station controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(powerbox.NewRebootCommand(), "Reboot requested")
	},
}

var fwUpdateCmd = &cobra.Command{
	Use:   "fw-update",
	Short: "Switch the controller into firmware update mode",
	Long: `Put the controller into its firmware acceptance state.

The station stops normal telemetry while in update mode. Power cycling
returns it to normal operation if no image is flashed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(powerbox.NewFirmwareUpdateCommand(), "Firmware update mode requested")
	},
}

func init() {
	psuCmd.AddCommand(psuOnCmd, psuOffCmd, psuLimitCmd)
	inverterCmd.AddCommand(inverterOnCmd, inverterOffCmd)
	atsCmd.AddCommand(atsOnCmd, atsOffCmd)
	historyCmd.AddCommand(historyPullCmd)
	rootCmd.AddCommand(psuCmd, inverterCmd, atsCmd, historyCmd, rebootCmd, fwUpdateCmd)
}

// sendOneShot opens the configured connection, writes one command frame
// and prints a confirmation. The station does not acknowledge command
// writes, so success here means the frame left the transport.
func sendOneShot(payload []byte, confirmation string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := sendCommand(conn, payload); err != nil {
		return fmt.Errorf("failed to send command: %v", err)
	}

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("%s\n", confirmation)
	return nil
}
