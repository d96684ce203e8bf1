// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortFrame reports a buffer shorter than its fixed layout requires.
var ErrShortFrame = errors.New("frame too short")

// Decoders walk the buffer at fixed offsets in layout order and replace the
// whole state record; there are no partial updates. A short buffer fails
// the decode and the caller keeps its previous state. Extra trailing bytes
// are tolerated so firmware may grow frames without breaking old clients.

// BMSState is one decoded battery-management frame.
type BMSState struct {
	Voltage        OptFloat // pack voltage, V
	Current        OptInt   // A, positive while discharging
	Level          OptInt   // state of charge, percent
	AllowCharge    OptBool
	AllowDischarge OptBool
	MOSTemp        OptInt // °C
	Sensor1Temp    OptInt
	Sensor2Temp    OptInt
	CellVoltage    [4]OptFloat // per-cell, V
	ExternalErrors uint16      // BMSErr* fault mask
	InternalErrors uint8
}

// DecodeBMS decodes a BMS state frame.
func DecodeBMS(buf []byte) (BMSState, error) {
	if len(buf) < BMSFrameLength {
		return BMSState{}, fmt.Errorf("%w: bms state %d bytes, need %d", ErrShortFrame, len(buf), BMSFrameLength)
	}
	s := BMSState{
		Voltage:        UnpackVoltage(binary.LittleEndian.Uint16(buf[0:2])),
		Current:        UnpackCurrent(binary.LittleEndian.Uint16(buf[2:4])),
		Level:          Unpack(uint16(buf[4])),
		AllowCharge:    UnpackBool(buf[5]),
		AllowDischarge: UnpackBool(buf[6]),
		MOSTemp:        Unpack(uint16(buf[7])),
		Sensor1Temp:    Unpack(uint16(buf[8])),
		Sensor2Temp:    Unpack(uint16(buf[9])),
		ExternalErrors: binary.LittleEndian.Uint16(buf[14:16]),
		InternalErrors: buf[16],
	}
	for i := range s.CellVoltage {
		s.CellVoltage[i] = UnpackCellVoltage(buf[10+i])
	}
	return s, nil
}

// EncodeBMS packs a BMS state frame; the station-side inverse of DecodeBMS.
func EncodeBMS(s BMSState) []byte {
	buf := make([]byte, BMSFrameLength)
	binary.LittleEndian.PutUint16(buf[0:2], PackVoltage(s.Voltage))
	binary.LittleEndian.PutUint16(buf[2:4], PackCurrent(s.Current))
	buf[4] = Pack8(s.Level)
	buf[5] = PackBool(s.AllowCharge)
	buf[6] = PackBool(s.AllowDischarge)
	buf[7] = Pack8(s.MOSTemp)
	buf[8] = Pack8(s.Sensor1Temp)
	buf[9] = Pack8(s.Sensor2Temp)
	for i, cv := range s.CellVoltage {
		buf[10+i] = PackCellVoltage(cv)
	}
	binary.LittleEndian.PutUint16(buf[14:16], s.ExternalErrors)
	buf[16] = s.InternalErrors
	return buf
}

// PSUState is one decoded charger frame.
type PSUState struct {
	FanRPM         OptInt
	Power1         OptInt // channel 1 draw, W
	Power2         OptInt // channel 2 draw, W
	ACVoltage      OptInt // mains input, V
	Temp1          OptInt // °C
	Temp2          OptInt
	CurrentChannel OptInt // selected charge-current level
	Active         OptBool
	ExternalErrors uint8
	InternalErrors uint8
}

// DecodePSU decodes a PSU state frame.
func DecodePSU(buf []byte) (PSUState, error) {
	if len(buf) < PSUFrameLength {
		return PSUState{}, fmt.Errorf("%w: psu state %d bytes, need %d", ErrShortFrame, len(buf), PSUFrameLength)
	}
	return PSUState{
		FanRPM:         Unpack(binary.LittleEndian.Uint16(buf[0:2])),
		Power1:         Unpack(binary.LittleEndian.Uint16(buf[2:4])),
		Power2:         Unpack(binary.LittleEndian.Uint16(buf[4:6])),
		ACVoltage:      Unpack(uint16(buf[6])),
		Temp1:          Unpack(uint16(buf[7])),
		Temp2:          Unpack(uint16(buf[8])),
		CurrentChannel: Unpack(uint16(buf[9])),
		Active:         UnpackBool(buf[10]),
		ExternalErrors: buf[11],
		InternalErrors: buf[12],
	}, nil
}

// EncodePSU packs a PSU state frame.
func EncodePSU(s PSUState) []byte {
	buf := make([]byte, PSUFrameLength)
	binary.LittleEndian.PutUint16(buf[0:2], Pack(s.FanRPM))
	binary.LittleEndian.PutUint16(buf[2:4], Pack(s.Power1))
	binary.LittleEndian.PutUint16(buf[4:6], Pack(s.Power2))
	buf[6] = Pack8(s.ACVoltage)
	buf[7] = Pack8(s.Temp1)
	buf[8] = Pack8(s.Temp2)
	buf[9] = Pack8(s.CurrentChannel)
	buf[10] = PackBool(s.Active)
	buf[11] = s.ExternalErrors
	buf[12] = s.InternalErrors
	return buf
}

// InverterState is one decoded inverter frame.
type InverterState struct {
	Power          OptInt // output, W
	FanRPM         OptInt
	Active         OptBool
	ACVoltage      OptInt // output, V
	Temp           OptInt // °C
	ExternalErrors uint8
	InternalErrors uint8
}

// DecodeInverter decodes an inverter state frame.
func DecodeInverter(buf []byte) (InverterState, error) {
	if len(buf) < InverterFrameLength {
		return InverterState{}, fmt.Errorf("%w: inverter state %d bytes, need %d", ErrShortFrame, len(buf), InverterFrameLength)
	}
	return InverterState{
		Power:          Unpack(binary.LittleEndian.Uint16(buf[0:2])),
		FanRPM:         Unpack(binary.LittleEndian.Uint16(buf[2:4])),
		Active:         UnpackBool(buf[4]),
		ACVoltage:      Unpack(uint16(buf[5])),
		Temp:           Unpack(uint16(buf[6])),
		ExternalErrors: buf[7],
		InternalErrors: buf[8],
	}, nil
}

// EncodeInverter packs an inverter state frame.
func EncodeInverter(s InverterState) []byte {
	buf := make([]byte, InverterFrameLength)
	binary.LittleEndian.PutUint16(buf[0:2], Pack(s.Power))
	binary.LittleEndian.PutUint16(buf[2:4], Pack(s.FanRPM))
	buf[4] = PackBool(s.Active)
	buf[5] = Pack8(s.ACVoltage)
	buf[6] = Pack8(s.Temp)
	buf[7] = s.ExternalErrors
	buf[8] = s.InternalErrors
	return buf
}

// MCUState is one decoded main-controller frame.
type MCUState struct {
	Uptime         OptUint // seconds since boot
	Version        OptVersion
	Temp           OptInt // °C
	MemoryUsed     OptInt // percent
	InternalErrors uint8
}

// DecodeMCU decodes an MCU state frame.
func DecodeMCU(buf []byte) (MCUState, error) {
	if len(buf) < MCUFrameLength {
		return MCUState{}, fmt.Errorf("%w: mcu state %d bytes, need %d", ErrShortFrame, len(buf), MCUFrameLength)
	}
	return MCUState{
		Uptime:         Unpack32(binary.LittleEndian.Uint32(buf[0:4])),
		Version:        UnpackVersion(binary.LittleEndian.Uint16(buf[4:6])),
		Temp:           Unpack(uint16(buf[6])),
		MemoryUsed:     Unpack(uint16(buf[7])),
		InternalErrors: buf[8],
	}, nil
}

// EncodeMCU packs an MCU state frame.
func EncodeMCU(s MCUState) []byte {
	buf := make([]byte, MCUFrameLength)
	binary.LittleEndian.PutUint32(buf[0:4], Pack32(s.Uptime))
	binary.LittleEndian.PutUint16(buf[4:6], PackVersion(s.Version))
	buf[6] = Pack8(s.Temp)
	buf[7] = Pack8(s.MemoryUsed)
	buf[8] = s.InternalErrors
	return buf
}

// ATSState is one decoded transfer-switch frame.
type ATSState struct {
	Active         OptBool
	InternalErrors uint8
}

// DecodeATS decodes an ATS state frame.
func DecodeATS(buf []byte) (ATSState, error) {
	if len(buf) < ATSFrameLength {
		return ATSState{}, fmt.Errorf("%w: ats state %d bytes, need %d", ErrShortFrame, len(buf), ATSFrameLength)
	}
	return ATSState{
		Active:         UnpackBool(buf[0]),
		InternalErrors: buf[1],
	}, nil
}

// EncodeATS packs an ATS state frame.
func EncodeATS(s ATSState) []byte {
	return []byte{PackBool(s.Active), s.InternalErrors}
}
