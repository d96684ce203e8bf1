// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import (
	"fmt"
	"strings"
)

// FormatFrame renders one inbound notification in human-readable form.
// Undecodable payloads render as their error rather than failing.
func FormatFrame(ch Channel, payload []byte) string {
	switch ch {
	case ChannelBMS:
		s, err := DecodeBMS(payload)
		if err != nil {
			return fmt.Sprintf("  <%v>\n", err)
		}
		return FormatBMS(s)
	case ChannelPSU:
		s, err := DecodePSU(payload)
		if err != nil {
			return fmt.Sprintf("  <%v>\n", err)
		}
		return FormatPSU(s)
	case ChannelInverter:
		s, err := DecodeInverter(payload)
		if err != nil {
			return fmt.Sprintf("  <%v>\n", err)
		}
		return FormatInverter(s)
	case ChannelMCU:
		s, err := DecodeMCU(payload)
		if err != nil {
			return fmt.Sprintf("  <%v>\n", err)
		}
		return FormatMCU(s)
	case ChannelATS:
		s, err := DecodeATS(payload)
		if err != nil {
			return fmt.Sprintf("  <%v>\n", err)
		}
		return FormatATS(s)
	case ChannelHistory:
		f, err := DecodeHistoryFrame(payload)
		if err != nil {
			return fmt.Sprintf("  <%v>\n", err)
		}
		return FormatHistoryFrame(f)
	case ChannelLog:
		return formatLogChunk(payload)
	case ChannelCommand:
		return FormatCommand(payload)
	case ChannelManufacturerName, ChannelModelNumber, ChannelFirmwareRevision:
		return fmt.Sprintf("  %q\n", string(payload))
	default:
		return fmt.Sprintf("  %d bytes (unknown channel)\n", len(payload))
	}
}

// FormatBMS renders a decoded BMS state.
func FormatBMS(s BMSState) string {
	cells := make([]string, len(s.CellVoltage))
	for i, cv := range s.CellVoltage {
		cells[i] = formatFloat(cv, "%.2f")
	}
	result := fmt.Sprintf("  Voltage: %s V, Current: %s A, Level: %s%%\n",
		formatFloat(s.Voltage, "%.2f"), formatInt(s.Current), formatInt(s.Level))
	result += fmt.Sprintf("  Charge: %s, Discharge: %s, Cells: [%s] V\n",
		formatAllowed(s.AllowCharge), formatAllowed(s.AllowDischarge), strings.Join(cells, " "))
	result += fmt.Sprintf("  Temps: MOS=%s S1=%s S2=%s °C, Errors: %s/%s\n",
		formatInt(s.MOSTemp), formatInt(s.Sensor1Temp), formatInt(s.Sensor2Temp),
		FormatBMSErrors(s.ExternalErrors), formatErrByte(s.InternalErrors))
	return result
}

// FormatPSU renders a decoded PSU state.
func FormatPSU(s PSUState) string {
	result := fmt.Sprintf("  Active: %s, Fan: %s RPM, Power: %s/%s W, AC: %s V\n",
		formatOnOff(s.Active), formatInt(s.FanRPM),
		formatInt(s.Power1), formatInt(s.Power2), formatInt(s.ACVoltage))
	result += fmt.Sprintf("  Temps: %s/%s °C, Current Level: %s, Errors: %s/%s\n",
		formatInt(s.Temp1), formatInt(s.Temp2), formatInt(s.CurrentChannel),
		formatErrByte(s.ExternalErrors), formatErrByte(s.InternalErrors))
	return result
}

// FormatInverter renders a decoded inverter state.
func FormatInverter(s InverterState) string {
	return fmt.Sprintf("  Active: %s, Power: %s W, Fan: %s RPM, AC: %s V, Temp: %s °C, Errors: %s/%s\n",
		formatOnOff(s.Active), formatInt(s.Power), formatInt(s.FanRPM),
		formatInt(s.ACVoltage), formatInt(s.Temp),
		formatErrByte(s.ExternalErrors), formatErrByte(s.InternalErrors))
}

// FormatMCU renders a decoded MCU state.
func FormatMCU(s MCUState) string {
	uptime := "?"
	if s.Uptime.Valid {
		uptime = formatUptime(uint64(s.Uptime.Value))
	}
	version := "?"
	if s.Version.Valid {
		version = s.Version.Value.String()
	}
	return fmt.Sprintf("  Firmware: %s, Uptime: %s, Temp: %s °C, Memory: %s%%, Errors: %s\n",
		version, uptime, formatInt(s.Temp), formatInt(s.MemoryUsed),
		formatErrByte(s.InternalErrors))
}

// FormatATS renders a decoded ATS state.
func FormatATS(s ATSState) string {
	return fmt.Sprintf("  Active: %s, Errors: %s\n",
		formatOnOff(s.Active), formatErrByte(s.InternalErrors))
}

// FormatHistoryFrame renders a decoded history frame header and samples.
func FormatHistoryFrame(f HistoryFrame) string {
	mode := fmt.Sprintf("patch @%d", f.Header.Offset)
	if f.Header.Incremental {
		mode = "push"
	}
	width := "byte"
	if f.Header.Data == DataTypeWord {
		width = "word"
	}
	result := fmt.Sprintf("  %s: %s, %d %s samples\n",
		f.Header.Chart, mode, f.Header.Length, width)
	if len(f.Samples) == 0 {
		return result
	}
	vals := make([]string, len(f.Samples))
	for i, raw := range f.Samples {
		v, ok := DecodeSample(f.Header.Chart, raw)
		switch {
		case !ok:
			vals[i] = fmt.Sprintf("raw=%d", raw)
		case !v.Valid:
			vals[i] = "?"
		default:
			vals[i] = trimFloat(v.Value)
		}
	}
	return result + "  [" + strings.Join(vals, " ") + "]\n"
}

// FormatCommand renders a command-channel write.
func FormatCommand(buf []byte) string {
	cmd, err := DecodeCommand(buf)
	if err != nil {
		return fmt.Sprintf("  <%v>\n", err)
	}
	switch cmd.Op {
	case OpPSUSetCurrentLimit:
		return fmt.Sprintf("  %s level=%d\n", FormatOpcode(cmd.Op), cmd.Level)
	case OpSetConfigParam:
		return "  " + FormatOpcode(cmd.Op) + " " + formatParam(cmd) + "\n"
	default:
		return "  " + FormatOpcode(cmd.Op) + "\n"
	}
}

// FormatOpcode returns the human-readable name for an opcode.
func FormatOpcode(op Opcode) string {
	switch op {
	case OpPullHistory:
		return "PULL_HISTORY"
	case OpPSUEnable:
		return "PSU_ENABLE"
	case OpPSUDisable:
		return "PSU_DISABLE"
	case OpPSUSetCurrentLimit:
		return "PSU_SET_CURRENT_LIMIT"
	case OpInverterEnable:
		return "INVERTER_ENABLE"
	case OpInverterDisable:
		return "INVERTER_DISABLE"
	case OpATSEnable:
		return "ATS_ENABLE"
	case OpATSDisable:
		return "ATS_DISABLE"
	case OpSetConfigParam:
		return "SET_CONFIG_PARAM"
	case OpApplyConfigProfile:
		return "APPLY_CONFIG_PROFILE"
	case OpFirmwareUpdate:
		return "FIRMWARE_UPDATE"
	case OpLogStreamStart:
		return "LOG_STREAM_START"
	case OpLogStreamStop:
		return "LOG_STREAM_STOP"
	case OpReboot:
		return "REBOOT"
	default:
		return "UNKNOWN"
	}
}

// FormatParamName returns the human-readable name for a config parameter.
func FormatParamName(p ConfigParam) string {
	switch p {
	case ParamATSEnabled:
		return "ATS_ENABLED"
	case ParamPSUCurrentLimit:
		return "PSU_CURRENT_LIMIT"
	case ParamWiFiSSID:
		return "WIFI_SSID"
	case ParamWiFiPassword:
		return "WIFI_PASSWORD"
	case ParamMinCellVoltage:
		return "MIN_CELL_VOLTAGE"
	case ParamMaxCellVoltage:
		return "MAX_CELL_VOLTAGE"
	default:
		return "UNKNOWN"
	}
}

// FormatLogSeverity returns the human-readable name for a log severity.
func FormatLogSeverity(s LogSeverity) string {
	switch s {
	case LogCritical:
		return "CRITICAL"
	case LogError:
		return "ERROR"
	case LogWarning:
		return "WARNING"
	case LogInfo:
		return "INFO"
	case LogDebug:
		return "DEBUG"
	case LogTrace:
		return "TRACE"
	default:
		return fmt.Sprintf("LEVEL(%d)", uint8(s))
	}
}

// FormatBMSErrors lists the names of every set bit in a BMS fault mask.
func FormatBMSErrors(mask uint16) string {
	if mask == 0 {
		return "none"
	}
	names := []struct {
		bit  uint16
		name string
	}{
		{BMSErrLowCapacity, "LOW_CAPACITY"},
		{BMSErrCellOvervoltage, "CELL_OVERVOLTAGE"},
		{BMSErrCellUndervoltage, "CELL_UNDERVOLTAGE"},
		{BMSErrPackOvervoltage, "PACK_OVERVOLTAGE"},
		{BMSErrPackUndervoltage, "PACK_UNDERVOLTAGE"},
		{BMSErrChargeOverTemp, "CHARGE_OVER_TEMP"},
		{BMSErrChargeUnderTemp, "CHARGE_UNDER_TEMP"},
		{BMSErrDischargeOverTemp, "DISCHARGE_OVER_TEMP"},
		{BMSErrDischargeUnderTemp, "DISCHARGE_UNDER_TEMP"},
		{BMSErrChargeOvercurrent, "CHARGE_OVERCURRENT"},
		{BMSErrDischargeOvercurrent, "DISCHARGE_OVERCURRENT"},
		{BMSErrShortCircuit, "SHORT_CIRCUIT"},
		{BMSErrICFault, "IC_FAULT"},
		{BMSErrMOSLockout, "MOS_LOCKOUT"},
	}
	parts := []string{}
	for _, n := range names {
		if mask&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if residue := mask &^ (BMSErrMOSLockout<<1 - 1); residue != 0 {
		parts = append(parts, fmt.Sprintf("0x%04X", residue))
	}
	return strings.Join(parts, "|")
}

// formatLogChunk renders a raw log notification without assembling it.
func formatLogChunk(payload []byte) string {
	if len(payload) == 0 {
		return "  <empty log chunk>\n"
	}
	sev, marker := SplitLogHeader(payload[0])
	markerStr := "start"
	switch marker {
	case LogMarkerMore:
		markerStr = "more"
	case LogMarkerEnd:
		markerStr = "end"
	}
	return fmt.Sprintf("  [%s] %s: %q\n", FormatLogSeverity(sev), markerStr, string(payload[1:]))
}

// formatParam renders a decoded SET_CONFIG_PARAM payload by its wire type.
func formatParam(cmd Command) string {
	name := FormatParamName(cmd.Param)
	t, ok := ParamTypeOf(cmd.Param)
	if !ok {
		return fmt.Sprintf("%s(0x%02X) %d bytes", name, uint8(cmd.Param), len(cmd.Payload))
	}
	switch t {
	case ParamTypeBool:
		return fmt.Sprintf("%s=%t", name, cmd.Bool())
	case ParamTypeInt8:
		return fmt.Sprintf("%s=%d", name, cmd.Int8())
	case ParamTypeFloat32:
		return fmt.Sprintf("%s=%.2f", name, cmd.Float32())
	default:
		if cmd.Param == ParamWiFiPassword {
			return name + "=********"
		}
		return fmt.Sprintf("%s=%q", name, cmd.Text())
	}
}

// formatFloat renders an optional float, "?" when absent.
func formatFloat(v OptFloat, verb string) string {
	if !v.Valid {
		return "?"
	}
	return fmt.Sprintf(verb, v.Value)
}

// formatInt renders an optional integer, "?" when absent.
func formatInt(v OptInt) string {
	if !v.Valid {
		return "?"
	}
	return fmt.Sprintf("%d", v.Value)
}

// formatOnOff renders an optional boolean as On/Off.
func formatOnOff(v OptBool) string {
	switch {
	case !v.Valid:
		return "?"
	case v.Value:
		return "On"
	default:
		return "Off"
	}
}

// formatAllowed renders an optional boolean as Allowed/Blocked.
func formatAllowed(v OptBool) string {
	switch {
	case !v.Valid:
		return "?"
	case v.Value:
		return "Allowed"
	default:
		return "Blocked"
	}
}

// formatErrByte renders a raw error byte, "none" for zero.
func formatErrByte(v uint8) string {
	if v == 0 {
		return "none"
	}
	return fmt.Sprintf("0x%02X", v)
}

// trimFloat renders a float without trailing zero noise.
func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// formatUptime converts seconds to a human-readable duration.
func formatUptime(seconds uint64) string {
	if seconds == 0 {
		return "0 seconds"
	}

	const (
		secondsPerMinute = 60
		secondsPerHour   = 60 * secondsPerMinute
		secondsPerDay    = 24 * secondsPerHour
	)

	days := seconds / secondsPerDay
	seconds %= secondsPerDay

	hours := seconds / secondsPerHour
	seconds %= secondsPerHour

	minutes := seconds / secondsPerMinute
	seconds %= secondsPerMinute

	parts := []string{}

	if days > 0 {
		if days == 1 {
			parts = append(parts, "1 day")
		} else {
			parts = append(parts, fmt.Sprintf("%d days", days))
		}
	}

	if hours > 0 {
		if hours == 1 {
			parts = append(parts, "1 hour")
		} else {
			parts = append(parts, fmt.Sprintf("%d hours", hours))
		}
	}

	if minutes > 0 {
		if minutes == 1 {
			parts = append(parts, "1 minute")
		} else {
			parts = append(parts, fmt.Sprintf("%d minutes", minutes))
		}
	}

	if seconds > 0 {
		if seconds == 1 {
			parts = append(parts, "1 second")
		} else {
			parts = append(parts, fmt.Sprintf("%d seconds", seconds))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	} else if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := parts[:len(parts)-1]
	return strings.Join(rest, ", ") + ", and " + last
}
