// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Command builder functions produce byte buffers ready to write to the
// command characteristic. Builders never fail on well-typed input. String
// payloads pass through raw and unvalidated with no length prefix; the
// write framing bounds them, and splitting over-long strings is the
// caller's job.

// NewCommand builds a bare single-opcode command.
func NewCommand(op Opcode) []byte {
	return []byte{byte(op)}
}

// NewCommandWithValue builds an opcode followed by one raw value byte,
// used for discrete selectors such as the PSU charge-current level.
func NewCommandWithValue(op Opcode, value uint8) []byte {
	return []byte{byte(op), value}
}

// NewPullHistoryCommand asks the station to resend every history buffer as
// a run of patch frames.
func NewPullHistoryCommand() []byte {
	return NewCommand(OpPullHistory)
}

// NewPSUEnableCommand turns the charger on.
func NewPSUEnableCommand() []byte {
	return NewCommand(OpPSUEnable)
}

// NewPSUDisableCommand turns the charger off.
func NewPSUDisableCommand() []byte {
	return NewCommand(OpPSUDisable)
}

// NewPSUCurrentLimitCommand selects the charge-current level. The level is
// an index into the station's current table, not amps.
func NewPSUCurrentLimitCommand(level uint8) []byte {
	return NewCommandWithValue(OpPSUSetCurrentLimit, level)
}

// NewInverterEnableCommand turns the inverter on.
func NewInverterEnableCommand() []byte {
	return NewCommand(OpInverterEnable)
}

// NewInverterDisableCommand turns the inverter off.
func NewInverterDisableCommand() []byte {
	return NewCommand(OpInverterDisable)
}

// NewATSEnableCommand arms the automatic transfer switch.
func NewATSEnableCommand() []byte {
	return NewCommand(OpATSEnable)
}

// NewATSDisableCommand disarms the automatic transfer switch.
func NewATSDisableCommand() []byte {
	return NewCommand(OpATSDisable)
}

// NewApplyConfigProfileCommand commits previously written configuration
// parameters as the active profile.
func NewApplyConfigProfileCommand() []byte {
	return NewCommand(OpApplyConfigProfile)
}

// NewFirmwareUpdateCommand starts the station's firmware update flow. The
// transfer itself happens out of band.
func NewFirmwareUpdateCommand() []byte {
	return NewCommand(OpFirmwareUpdate)
}

// NewLogStreamStartCommand starts debug log forwarding on the log
// characteristic.
func NewLogStreamStartCommand() []byte {
	return NewCommand(OpLogStreamStart)
}

// NewLogStreamStopCommand stops debug log forwarding.
func NewLogStreamStopCommand() []byte {
	return NewCommand(OpLogStreamStop)
}

// NewRebootCommand restarts the station controller.
func NewRebootCommand() []byte {
	return NewCommand(OpReboot)
}

// NewBoolParamCommand builds a SET_CONFIG_PARAM write carrying a boolean.
// Unlike state-frame booleans the payload is a plain 0/1 byte; there is no
// absent case to encode in a write.
func NewBoolParamCommand(param ConfigParam, value bool) []byte {
	b := byte(0)
	if value {
		b = 1
	}
	return []byte{byte(OpSetConfigParam), byte(param), b}
}

// NewInt8ParamCommand builds a SET_CONFIG_PARAM write carrying a signed
// byte.
func NewInt8ParamCommand(param ConfigParam, value int8) []byte {
	return []byte{byte(OpSetConfigParam), byte(param), byte(value)}
}

// NewFloatParamCommand builds the 6-byte SET_CONFIG_PARAM write: opcode,
// param id, IEEE-754 float32 little-endian.
func NewFloatParamCommand(param ConfigParam, value float32) []byte {
	buf := make([]byte, 6)
	buf[0] = byte(OpSetConfigParam)
	buf[1] = byte(param)
	binary.LittleEndian.PutUint32(buf[2:6], math.Float32bits(value))
	return buf
}

// NewStringParamCommand builds a SET_CONFIG_PARAM write carrying raw UTF-8
// bytes with no length prefix.
func NewStringParamCommand(param ConfigParam, value string) []byte {
	buf := make([]byte, 0, 2+len(value))
	buf = append(buf, byte(OpSetConfigParam), byte(param))
	return append(buf, value...)
}

// ParamTypeOf returns the wire type of a configuration parameter,
// ok=false for unknown ids.
func ParamTypeOf(p ConfigParam) (ParamType, bool) {
	switch p {
	case ParamATSEnabled:
		return ParamTypeBool, true
	case ParamPSUCurrentLimit:
		return ParamTypeInt8, true
	case ParamWiFiSSID, ParamWiFiPassword:
		return ParamTypeString, true
	case ParamMinCellVoltage, ParamMaxCellVoltage:
		return ParamTypeFloat32, true
	default:
		return ParamTypeBool, false
	}
}

// ErrBadCommand reports a command-channel write that cannot be decoded.
var ErrBadCommand = errors.New("bad command")

// Command is one decoded command-channel write. Level is meaningful only
// for OpPSUSetCurrentLimit; Param and Payload only for OpSetConfigParam.
type Command struct {
	Op      Opcode
	Level   uint8
	Param   ConfigParam
	Payload []byte
}

// DecodeCommand parses a command-channel write. This is the station-side
// inverse of the builders, used by the simulator and by capture tooling.
func DecodeCommand(buf []byte) (Command, error) {
	if len(buf) == 0 {
		return Command{}, fmt.Errorf("%w: empty write", ErrBadCommand)
	}
	op := Opcode(buf[0])
	switch op {
	case OpPullHistory, OpPSUEnable, OpPSUDisable,
		OpInverterEnable, OpInverterDisable,
		OpATSEnable, OpATSDisable,
		OpApplyConfigProfile, OpFirmwareUpdate,
		OpLogStreamStart, OpLogStreamStop, OpReboot:
		return Command{Op: op}, nil
	case OpPSUSetCurrentLimit:
		if len(buf) < 2 {
			return Command{}, fmt.Errorf("%w: %s missing level byte", ErrBadCommand, FormatOpcode(op))
		}
		return Command{Op: op, Level: buf[1]}, nil
	case OpSetConfigParam:
		if len(buf) < 3 {
			return Command{}, fmt.Errorf("%w: %s needs param id and payload", ErrBadCommand, FormatOpcode(op))
		}
		param := ConfigParam(buf[1])
		payload := buf[2:]
		if t, ok := ParamTypeOf(param); ok {
			switch t {
			case ParamTypeBool, ParamTypeInt8:
				if len(payload) != 1 {
					return Command{}, fmt.Errorf("%w: param 0x%02X wants 1 payload byte, got %d", ErrBadCommand, uint8(param), len(payload))
				}
			case ParamTypeFloat32:
				if len(payload) != 4 {
					return Command{}, fmt.Errorf("%w: param 0x%02X wants 4 payload bytes, got %d", ErrBadCommand, uint8(param), len(payload))
				}
			}
		}
		return Command{Op: op, Param: param, Payload: payload}, nil
	default:
		return Command{}, fmt.Errorf("%w: unknown opcode 0x%02X", ErrBadCommand, buf[0])
	}
}

// Bool returns the boolean payload of a SET_CONFIG_PARAM command.
func (c Command) Bool() bool {
	return len(c.Payload) == 1 && c.Payload[0] == 1
}

// Int8 returns the signed-byte payload of a SET_CONFIG_PARAM command.
func (c Command) Int8() int8 {
	if len(c.Payload) != 1 {
		return 0
	}
	return int8(c.Payload[0])
}

// Float32 returns the float payload of a SET_CONFIG_PARAM command.
func (c Command) Float32() float32 {
	if len(c.Payload) != 4 {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(c.Payload))
}

// Text returns the UTF-8 payload of a SET_CONFIG_PARAM command.
func (c Command) Text() string {
	return string(c.Payload)
}
