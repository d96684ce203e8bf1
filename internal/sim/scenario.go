// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario configures the simulated power station.
type Scenario struct {
	Device    DeviceConfig   `yaml:"device"`
	Intervals IntervalConfig `yaml:"intervals"`
	Battery   BatteryConfig  `yaml:"battery"`
	PSU       PSUConfig      `yaml:"psu"`
	Inverter  InverterConfig `yaml:"inverter"`
	ATS       ATSConfig      `yaml:"ats"`
	Logs      []LogLine      `yaml:"logs"`
}

// DeviceConfig fills the Device Information characteristics.
type DeviceConfig struct {
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	Firmware     string `yaml:"firmware"`
}

// IntervalConfig sets the emission cadence, all in milliseconds.
type IntervalConfig struct {
	StateMs  int `yaml:"state_ms"`
	SampleMs int `yaml:"sample_ms"`
	LogMs    int `yaml:"log_ms"`
}

// BatteryConfig seeds the BMS model.
type BatteryConfig struct {
	Voltage     float64 `yaml:"voltage"`      // pack volts
	Level       int     `yaml:"level"`        // percent
	Current     int     `yaml:"current"`      // amps, positive = discharge
	CellVoltage float64 `yaml:"cell_voltage"` // per-cell volts
	Temp        int     `yaml:"temp"`         // °C
}

// PSUConfig seeds the charger model.
type PSUConfig struct {
	Active       bool `yaml:"active"`
	FanRPM       int  `yaml:"fan_rpm"`
	Power        int  `yaml:"power"` // watts per channel
	ACVoltage    int  `yaml:"ac_voltage"`
	Temp         int  `yaml:"temp"`
	CurrentLevel int  `yaml:"current_level"`
}

// InverterConfig seeds the inverter model.
type InverterConfig struct {
	Active    bool `yaml:"active"`
	Power     int  `yaml:"power"`
	FanRPM    int  `yaml:"fan_rpm"`
	ACVoltage int  `yaml:"ac_voltage"`
	Temp      int  `yaml:"temp"`
}

// ATSConfig seeds the transfer switch model.
type ATSConfig struct {
	Active bool `yaml:"active"`
}

// LogLine is one canned debug log message the simulator cycles through
// while log streaming is enabled.
type LogLine struct {
	Level string `yaml:"level"` // trace|debug|info|warning|error|critical
	Text  string `yaml:"text"`
}

// DefaultScenario returns a runnable scenario for when no file is given.
func DefaultScenario() *Scenario {
	return &Scenario{
		Device: DeviceConfig{
			Manufacturer: "Trypillia",
			Model:        "PBX-1500",
			Firmware:     "1.4.2",
		},
		Intervals: IntervalConfig{StateMs: 1000, SampleMs: 2000, LogMs: 5000},
		Battery: BatteryConfig{
			Voltage:     13.2,
			Level:       78,
			Current:     -4,
			CellVoltage: 3.31,
			Temp:        24,
		},
		PSU: PSUConfig{
			Active:       true,
			FanRPM:       1800,
			Power:        240,
			ACVoltage:    230,
			Temp:         38,
			CurrentLevel: 2,
		},
		Inverter: InverterConfig{
			Active:    false,
			ACVoltage: 230,
			Temp:      27,
		},
		ATS: ATSConfig{Active: true},
		Logs: []LogLine{
			{Level: "info", Text: "charger duty cycle adjusted"},
			{Level: "debug", Text: "cell balance pass complete, spread 11mV"},
			{Level: "warning", Text: "mains voltage sag detected, 207V"},
		},
	}
}

// LoadScenario reads and validates a scenario file. Unknown YAML keys are
// rejected so a typo fails loudly instead of silently using defaults.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	sc := DefaultScenario()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return sc, nil
}

// Validate checks scenario values against the wire format's ranges.
func (sc *Scenario) Validate() error {
	if sc.Intervals.StateMs <= 0 || sc.Intervals.SampleMs <= 0 || sc.Intervals.LogMs <= 0 {
		return fmt.Errorf("intervals must be positive (state_ms=%d sample_ms=%d log_ms=%d)",
			sc.Intervals.StateMs, sc.Intervals.SampleMs, sc.Intervals.LogMs)
	}
	if sc.Battery.Level < 0 || sc.Battery.Level > 100 {
		return fmt.Errorf("battery level %d out of range 0-100", sc.Battery.Level)
	}
	if sc.Battery.CellVoltage < 2.5 || sc.Battery.CellVoltage > 5.0 {
		return fmt.Errorf("cell voltage %.2f out of encodable range 2.5-5.0", sc.Battery.CellVoltage)
	}
	if sc.Battery.Voltage < 0 {
		return fmt.Errorf("pack voltage %.2f must not be negative", sc.Battery.Voltage)
	}
	for i, l := range sc.Logs {
		if _, err := parseSeverity(l.Level); err != nil {
			return fmt.Errorf("logs[%d]: %w", i, err)
		}
		if l.Text == "" {
			return fmt.Errorf("logs[%d]: empty text", i)
		}
	}
	return nil
}
