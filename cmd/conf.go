// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

var confCmd = &cobra.Command{
	Use:   "conf",
	Short: "Write typed configuration parameters",
	Long: `Write configuration parameters to the station.

Parameters are staged on the controller as they arrive. Run "conf apply"
to commit the staged profile; a reboot discards unapplied changes.`,
}

var confATSCmd = &cobra.Command{
	Use:   "ats on|off",
	Short: "Set the ATS-enabled parameter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch args[0] {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			return fmt.Errorf("invalid value %q (expected on or off)", args[0])
		}
		return sendOneShot(
			powerbox.NewBoolParamCommand(powerbox.ParamATSEnabled, enabled),
			fmt.Sprintf("ATS enabled parameter staged: %v", enabled))
	},
}

var confCurrentCmd = &cobra.Command{
	Use:   "current LEVEL",
	Short: "Set the default PSU current limit level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.ParseInt(args[0], 10, 8)
		if err != nil {
			return fmt.Errorf("invalid level %q: %v", args[0], err)
		}
		return sendOneShot(
			powerbox.NewInt8ParamCommand(powerbox.ParamPSUCurrentLimit, int8(level)),
			fmt.Sprintf("PSU current limit parameter staged: %d", level))
	},
}

var confWiFiSSIDCmd = &cobra.Command{
	Use:   "wifi-ssid SSID",
	Short: "Set the WiFi network name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(
			powerbox.NewStringParamCommand(powerbox.ParamWiFiSSID, args[0]),
			fmt.Sprintf("WiFi SSID parameter staged: %q", args[0]))
	},
}

var confWiFiPasswordCmd = &cobra.Command{
	Use:   "wifi-password",
	Short: "Set the WiFi password (prompted, never echoed)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readSecret("WiFi password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %v", err)
		}
		return sendOneShot(
			powerbox.NewStringParamCommand(powerbox.ParamWiFiPassword, password),
			"WiFi password parameter staged")
	},
}

var confMinCellCmd = &cobra.Command{
	Use:   "min-cell VOLTS",
	Short: "Set the cell undervoltage cutoff",
	Args:  cobra.ExactArgs(1),
	RunE:  makeCellVoltageRun(powerbox.ParamMinCellVoltage, "Minimum cell voltage"),
}

var confMaxCellCmd = &cobra.Command{
	Use:   "max-cell VOLTS",
	Short: "Set the cell overvoltage cutoff",
	Args:  cobra.ExactArgs(1),
	RunE:  makeCellVoltageRun(powerbox.ParamMaxCellVoltage, "Maximum cell voltage"),
}

var confApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Commit the staged configuration profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOneShot(powerbox.NewApplyConfigProfileCommand(),
			"Configuration profile applied")
	},
}

func init() {
	confCmd.AddCommand(confATSCmd, confCurrentCmd, confWiFiSSIDCmd,
		confWiFiPasswordCmd, confMinCellCmd, confMaxCellCmd, confApplyCmd)
	rootCmd.AddCommand(confCmd)
}

// readSecret prompts for a secret value without echoing it. Unlike the
// connection password this never falls back to an environment variable.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// makeCellVoltageRun builds the run function for the two cell voltage
// cutoff parameters. Values outside the LiFePO4 working range are
// rejected here rather than trusted to firmware-side validation.
func makeCellVoltageRun(param powerbox.ConfigParam, label string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		volts, err := strconv.ParseFloat(args[0], 32)
		if err != nil {
			return fmt.Errorf("invalid voltage %q: %v", args[0], err)
		}
		if volts < 2.5 || volts > 5.0 {
			return fmt.Errorf("voltage %.2f out of range (2.50-5.00 V)", volts)
		}
		return sendOneShot(
			powerbox.NewFloatParamCommand(param, float32(volts)),
			fmt.Sprintf("%s parameter staged: %.2f V", label, volts))
	}
}
