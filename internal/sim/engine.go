// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

// Package sim implements an in-process power-station controller for
// developing and testing against without hardware. It models the five
// subsystems, samples the trackable metrics into history buffers, and
// speaks the device side of the bridge protocol over websocket.
package sim

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// Engine models the station: current subsystem states plus the raw
// (still sentinel-packed) history samples per metric. It is the device
// side of the codec, so everything it emits goes through the powerbox
// pack functions.
type Engine struct {
	mu sync.Mutex

	sc  *Scenario
	rng *rand.Rand

	bms      powerbox.BMSState
	psu      powerbox.PSUState
	inverter powerbox.InverterState
	mcu      powerbox.MCUState
	ats      powerbox.ATSState

	uptime  uint32
	history map[powerbox.ChartType][]uint16

	logStreaming bool
	logIndex     int
}

// NewEngine seeds the station model from a scenario.
func NewEngine(sc *Scenario, seed int64) *Engine {
	e := &Engine{
		sc:      sc,
		rng:     rand.New(rand.NewSource(seed)),
		history: make(map[powerbox.ChartType][]uint16),
	}

	e.bms = powerbox.BMSState{
		Voltage:        powerbox.Float(sc.Battery.Voltage),
		Current:        powerbox.Int(sc.Battery.Current),
		Level:          powerbox.Int(sc.Battery.Level),
		AllowCharge:    powerbox.Bool(true),
		AllowDischarge: powerbox.Bool(true),
		MOSTemp:        powerbox.Int(sc.Battery.Temp),
		Sensor1Temp:    powerbox.Int(sc.Battery.Temp),
		Sensor2Temp:    powerbox.Int(sc.Battery.Temp),
	}
	for i := range e.bms.CellVoltage {
		e.bms.CellVoltage[i] = powerbox.Float(sc.Battery.CellVoltage)
	}

	e.psu = powerbox.PSUState{
		FanRPM:         powerbox.Int(sc.PSU.FanRPM),
		Power1:         powerbox.Int(sc.PSU.Power),
		Power2:         powerbox.Int(sc.PSU.Power),
		ACVoltage:      powerbox.Int(sc.PSU.ACVoltage),
		Temp1:          powerbox.Int(sc.PSU.Temp),
		Temp2:          powerbox.Int(sc.PSU.Temp),
		CurrentChannel: powerbox.Int(sc.PSU.CurrentLevel),
		Active:         powerbox.Bool(sc.PSU.Active),
	}

	e.inverter = powerbox.InverterState{
		Power:     powerbox.Int(sc.Inverter.Power),
		FanRPM:    powerbox.Int(sc.Inverter.FanRPM),
		Active:    powerbox.Bool(sc.Inverter.Active),
		ACVoltage: powerbox.Int(sc.Inverter.ACVoltage),
		Temp:      powerbox.Int(sc.Inverter.Temp),
	}

	e.mcu = powerbox.MCUState{
		Version: parseFirmwareVersion(sc.Device.Firmware),
		Temp:    powerbox.Int(31),
	}

	e.ats = powerbox.ATSState{Active: powerbox.Bool(sc.ATS.Active)}

	for _, c := range powerbox.ChartTypes() {
		e.history[c] = make([]uint16, 0, powerbox.HistoryLength)
	}
	return e
}

// StateFrame encodes the current state of one subsystem channel,
// ok=false for channels without a state frame.
func (e *Engine) StateFrame(ch powerbox.Channel) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ch {
	case powerbox.ChannelBMS:
		return powerbox.EncodeBMS(e.bms), true
	case powerbox.ChannelPSU:
		return powerbox.EncodePSU(e.psu), true
	case powerbox.ChannelInverter:
		return powerbox.EncodeInverter(e.inverter), true
	case powerbox.ChannelMCU:
		return powerbox.EncodeMCU(e.mcu), true
	case powerbox.ChannelATS:
		return powerbox.EncodeATS(e.ats), true
	default:
		return nil, false
	}
}

// ReadPayload answers an explicit read of any readable channel.
func (e *Engine) ReadPayload(ch powerbox.Channel) ([]byte, bool) {
	switch ch {
	case powerbox.ChannelManufacturerName:
		return []byte(e.sc.Device.Manufacturer), true
	case powerbox.ChannelModelNumber:
		return []byte(e.sc.Device.Model), true
	case powerbox.ChannelFirmwareRevision:
		return []byte(e.sc.Device.Firmware), true
	default:
		return e.StateFrame(ch)
	}
}

// Tick advances the model by one state interval: drifts telemetry and
// bumps uptime. Separate from Sample so the state cadence and the
// history cadence stay independent.
func (e *Engine) Tick(elapsedSec uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.uptime += elapsedSec
	e.mcu.Uptime = powerbox.Uint(e.uptime)
	e.mcu.MemoryUsed = powerbox.Int(40 + e.rng.Intn(8))

	e.drift(&e.bms.Voltage, 0.02)
	for i := range e.bms.CellVoltage {
		e.drift(&e.bms.CellVoltage[i], 0.01)
	}
	e.driftInt(&e.bms.Level, 1, 0, 100)
	e.driftInt(&e.bms.MOSTemp, 1, 10, 80)

	if e.psu.Active.Valid && e.psu.Active.Value {
		e.driftInt(&e.psu.FanRPM, 60, 600, 4000)
		e.driftInt(&e.psu.Power1, 12, 0, 1200)
		e.driftInt(&e.psu.Power2, 12, 0, 1200)
		e.driftInt(&e.psu.Temp1, 1, 15, 90)
		e.driftInt(&e.psu.Temp2, 1, 15, 90)
	}
	if e.inverter.Active.Valid && e.inverter.Active.Value {
		e.driftInt(&e.inverter.Power, 20, 0, 1500)
		e.driftInt(&e.inverter.FanRPM, 60, 600, 4000)
		e.driftInt(&e.inverter.Temp, 1, 15, 90)
	}
}

// Sample records the current value of every trackable metric into its
// history buffer and returns the push frames to notify, one per metric.
func (e *Engine) Sample() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	frames := make([][]byte, 0, len(e.history))
	for _, c := range powerbox.ChartTypes() {
		raw, ok := e.currentRawSample(c)
		if !ok {
			continue
		}

		buf := e.history[c]
		if len(buf) >= powerbox.HistoryLength {
			copy(buf, buf[1:])
			buf = buf[:powerbox.HistoryLength-1]
		}
		e.history[c] = append(buf, raw)

		dt, _ := c.DataType()
		frames = append(frames, powerbox.EncodeHistoryFrame(powerbox.HistoryFrame{
			Header: powerbox.HistoryHeader{
				Chart:       c,
				Data:        dt,
				Incremental: true,
				Length:      1,
			},
			Samples: []uint16{raw},
		}))
	}
	return frames
}

// Backfill returns the patch frames that replay every metric's buffer,
// chunked under the per-frame sample cap. This is the response to a
// PULL_HISTORY command. Buffers fill from the tail, so the first chunk's
// offset is the unfilled distance from the buffer head.
func (e *Engine) Backfill() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	var frames [][]byte
	for _, c := range powerbox.ChartTypes() {
		buf := e.history[c]
		if len(buf) == 0 {
			continue
		}
		dt, _ := c.DataType()
		base := powerbox.HistoryLength - len(buf)
		for i := 0; i < len(buf); i += powerbox.MaxFrameSamples {
			end := i + powerbox.MaxFrameSamples
			if end > len(buf) {
				end = len(buf)
			}
			frames = append(frames, powerbox.EncodeHistoryFrame(powerbox.HistoryFrame{
				Header: powerbox.HistoryHeader{
					Chart:       c,
					Data:        dt,
					Incremental: false,
					Offset:      uint8(base + i),
					Length:      uint8(end - i),
				},
				Samples: buf[i:end],
			}))
		}
	}
	return frames
}

// CommandResult reports the side effects of one command write.
type CommandResult struct {
	Command     powerbox.Command
	PullHistory bool
}

// HandleCommand applies one command-channel write to the model.
func (e *Engine) HandleCommand(payload []byte) (CommandResult, error) {
	cmd, err := powerbox.DecodeCommand(payload)
	if err != nil {
		return CommandResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := CommandResult{Command: cmd}
	switch cmd.Op {
	case powerbox.OpPullHistory:
		res.PullHistory = true
	case powerbox.OpPSUEnable:
		e.psu.Active = powerbox.Bool(true)
	case powerbox.OpPSUDisable:
		e.psu.Active = powerbox.Bool(false)
	case powerbox.OpPSUSetCurrentLimit:
		e.psu.CurrentChannel = powerbox.Int(int(cmd.Level))
	case powerbox.OpInverterEnable:
		e.inverter.Active = powerbox.Bool(true)
	case powerbox.OpInverterDisable:
		e.inverter.Active = powerbox.Bool(false)
	case powerbox.OpATSEnable:
		e.ats.Active = powerbox.Bool(true)
	case powerbox.OpATSDisable:
		e.ats.Active = powerbox.Bool(false)
	case powerbox.OpLogStreamStart:
		e.logStreaming = true
	case powerbox.OpLogStreamStop:
		e.logStreaming = false
	case powerbox.OpSetConfigParam:
		if cmd.Param == powerbox.ParamATSEnabled {
			e.ats.Active = powerbox.Bool(cmd.Bool())
		}
		if cmd.Param == powerbox.ParamPSUCurrentLimit {
			e.psu.CurrentChannel = powerbox.Int(int(cmd.Int8()))
		}
	}
	return res, nil
}

// NextLog returns the chunked notifications for the next canned log
// message, nil while streaming is off or no lines are configured.
func (e *Engine) NextLog() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.logStreaming || len(e.sc.Logs) == 0 {
		return nil
	}
	line := e.sc.Logs[e.logIndex%len(e.sc.Logs)]
	e.logIndex++

	sev, err := parseSeverity(line.Level)
	if err != nil {
		sev = powerbox.LogInfo
	}
	return powerbox.EncodeLogMessage(sev, line.Text)
}

// currentRawSample packs the metric's current model value for the wire.
func (e *Engine) currentRawSample(c powerbox.ChartType) (uint16, bool) {
	switch c {
	case powerbox.ChartBMSLevel:
		return powerbox.Pack(e.bms.Level), true
	case powerbox.ChartBMSCurrent:
		return powerbox.PackCurrent(e.bms.Current), true
	case powerbox.ChartBMSCell1, powerbox.ChartBMSCell2, powerbox.ChartBMSCell3, powerbox.ChartBMSCell4:
		i := int(c - powerbox.ChartBMSCell1)
		return uint16(powerbox.PackCellVoltage(e.bms.CellVoltage[i])), true
	case powerbox.ChartPSURPM:
		return powerbox.Pack(e.psu.FanRPM), true
	case powerbox.ChartPSUPower1:
		return powerbox.Pack(e.psu.Power1), true
	case powerbox.ChartPSUPower2:
		return powerbox.Pack(e.psu.Power2), true
	case powerbox.ChartPSUTemp1:
		return powerbox.Pack(e.psu.Temp1), true
	case powerbox.ChartPSUTemp2:
		return powerbox.Pack(e.psu.Temp2), true
	case powerbox.ChartInverterPower:
		return powerbox.Pack(e.inverter.Power), true
	case powerbox.ChartInverterRPM:
		return powerbox.Pack(e.inverter.FanRPM), true
	case powerbox.ChartInverterTemp:
		return powerbox.Pack(e.inverter.Temp), true
	default:
		return 0, false
	}
}

// drift nudges an optional float by up to step, clamped to stay positive.
func (e *Engine) drift(v *powerbox.OptFloat, step float64) {
	if !v.Valid {
		return
	}
	v.Value += (e.rng.Float64()*2 - 1) * step
	if v.Value < 0 {
		v.Value = 0
	}
}

// driftInt nudges an optional int by up to step within [min, max].
func (e *Engine) driftInt(v *powerbox.OptInt, step, min, max int) {
	if !v.Valid {
		return
	}
	v.Value += e.rng.Intn(2*step+1) - step
	if v.Value < min {
		v.Value = min
	}
	if v.Value > max {
		v.Value = max
	}
}

// parseSeverity maps a scenario severity name to its wire value.
func parseSeverity(name string) (powerbox.LogSeverity, error) {
	switch name {
	case "trace":
		return powerbox.LogTrace, nil
	case "debug":
		return powerbox.LogDebug, nil
	case "info":
		return powerbox.LogInfo, nil
	case "warning":
		return powerbox.LogWarning, nil
	case "error":
		return powerbox.LogError, nil
	case "critical":
		return powerbox.LogCritical, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// parseFirmwareVersion packs a "major.minor.patch" string, absent when it
// does not parse.
func parseFirmwareVersion(s string) powerbox.OptVersion {
	var major, minor, patch uint8
	if _, err := fmt.Sscanf(s, "%d.%d.%d", &major, &minor, &patch); err != nil {
		return powerbox.OptVersion{}
	}
	return powerbox.OptVersion{
		Value: powerbox.Version{Major: major, Minor: minor, Patch: patch},
		Valid: true,
	}
}
