// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

// Package powerbox provides a reference Go implementation of the powerbox
// BLE protocol spoken by Trypillia battery power stations.
//
// The station exposes one characteristic per subsystem (BMS, PSU, inverter,
// MCU, ATS) carrying fixed-layout little-endian state frames, a history
// characteristic carrying bit-packed windows of sampled metrics, a log
// characteristic carrying chunked UTF-8 diagnostics, and a write-only
// command characteristic. This package provides frame decoding, command
// encoding, history header packing, and payload formatting. All functions
// are pure: no I/O, no logging, no shared state.
package powerbox

// State frame lengths in bytes
const (
	BMSFrameLength      = 17
	PSUFrameLength      = 13
	InverterFrameLength = 9
	MCUFrameLength      = 9
	ATSFrameLength      = 2
)

// History protocol constants
const (
	HistoryLength     = 180 // samples retained per metric
	HistoryHeaderSize = 4   // bytes preceding the sample run
	MaxFrameSamples   = 31  // per-frame sample cap (5-bit wire budget)
)

// Opcode identifies a command written to the command characteristic.
type Opcode uint8

// Command opcodes (client → station)
const (
	OpPullHistory        Opcode = 0x01
	OpPSUEnable          Opcode = 0x10
	OpPSUDisable         Opcode = 0x11
	OpPSUSetCurrentLimit Opcode = 0x12 // followed by one level byte
	OpInverterEnable     Opcode = 0x20
	OpInverterDisable    Opcode = 0x21
	OpATSEnable          Opcode = 0x30
	OpATSDisable         Opcode = 0x31
	OpSetConfigParam     Opcode = 0x40 // followed by param id + typed payload
	OpApplyConfigProfile Opcode = 0x41
	OpFirmwareUpdate     Opcode = 0x50
	OpLogStreamStart     Opcode = 0x60
	OpLogStreamStop      Opcode = 0x61
	OpReboot             Opcode = 0xF0
)

// ConfigParam identifies a typed configuration key carried by a
// SET_CONFIG_PARAM write.
type ConfigParam uint8

// Configuration parameter ids
const (
	ParamATSEnabled      ConfigParam = 0x01 // bool
	ParamPSUCurrentLimit ConfigParam = 0x02 // int8
	ParamWiFiSSID        ConfigParam = 0x03 // string
	ParamWiFiPassword    ConfigParam = 0x04 // string
	ParamMinCellVoltage  ConfigParam = 0x05 // float32
	ParamMaxCellVoltage  ConfigParam = 0x06 // float32
)

// ParamType is the wire type of a configuration parameter payload.
type ParamType int

// Configuration parameter wire types
const (
	ParamTypeBool ParamType = iota
	ParamTypeInt8
	ParamTypeFloat32
	ParamTypeString
)

// ChartType identifies the metric a history frame carries.
type ChartType uint8

// Trackable metrics (6-bit id space)
const (
	ChartBMSLevel      ChartType = 0x01
	ChartBMSCurrent    ChartType = 0x02
	ChartBMSCell1      ChartType = 0x03
	ChartBMSCell2      ChartType = 0x04
	ChartBMSCell3      ChartType = 0x05
	ChartBMSCell4      ChartType = 0x06
	ChartPSURPM        ChartType = 0x10
	ChartPSUPower1     ChartType = 0x11
	ChartPSUPower2     ChartType = 0x12
	ChartPSUTemp1      ChartType = 0x13
	ChartPSUTemp2      ChartType = 0x14
	ChartInverterPower ChartType = 0x20
	ChartInverterRPM   ChartType = 0x21
	ChartInverterTemp  ChartType = 0x22
)

// DataType is the per-sample width of a history frame.
type DataType uint8

// History sample widths
const (
	DataTypeByte DataType = 0 // one byte per sample
	DataTypeWord DataType = 1 // two bytes per sample, little-endian
)

// LogSeverity is the 3-bit severity carried by a debug log chunk.
type LogSeverity uint8

// Debug log severities, matching the station firmware's level numbering
// (0 is the most severe).
const (
	LogCritical LogSeverity = 0
	LogError    LogSeverity = 1
	LogWarning  LogSeverity = 2
	LogInfo     LogSeverity = 3
	LogDebug    LogSeverity = 4
	LogTrace    LogSeverity = 5
)

// LogMarker is the 3-bit continuation marker of a debug log chunk.
type LogMarker uint8

// Debug log chunk markers
const (
	LogMarkerStart LogMarker = 0 // first chunk of a message
	LogMarkerMore  LogMarker = 1 // continuation chunk
	LogMarkerEnd   LogMarker = 2 // final chunk, flush the message
)

// BMS external error bits (16-bit fault mask, raw on the wire)
const (
	BMSErrLowCapacity          uint16 = 0x0001
	BMSErrCellOvervoltage      uint16 = 0x0002
	BMSErrCellUndervoltage     uint16 = 0x0004
	BMSErrPackOvervoltage      uint16 = 0x0008
	BMSErrPackUndervoltage     uint16 = 0x0010
	BMSErrChargeOverTemp       uint16 = 0x0020
	BMSErrChargeUnderTemp      uint16 = 0x0040
	BMSErrDischargeOverTemp    uint16 = 0x0080
	BMSErrDischargeUnderTemp   uint16 = 0x0100
	BMSErrChargeOvercurrent    uint16 = 0x0200
	BMSErrDischargeOvercurrent uint16 = 0x0400
	BMSErrShortCircuit         uint16 = 0x0800
	BMSErrICFault              uint16 = 0x1000
	BMSErrMOSLockout           uint16 = 0x2000
)
