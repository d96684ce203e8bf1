// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import (
	"fmt"
	"math"
)

// The wire reserves raw zero for "value unknown", so every encodable
// quantity is shifted by +1 before transmission. Decoded fields are
// explicit value/Valid pairs; a numeric zero is never overloaded to mean
// absence.

// OptInt is an optional integer field.
type OptInt struct {
	Value int
	Valid bool
}

// Int returns an OptInt holding v.
func Int(v int) OptInt { return OptInt{Value: v, Valid: true} }

// OptUint is an optional unsigned 32-bit field.
type OptUint struct {
	Value uint32
	Valid bool
}

// Uint returns an OptUint holding v.
func Uint(v uint32) OptUint { return OptUint{Value: v, Valid: true} }

// OptFloat is an optional float64 field.
type OptFloat struct {
	Value float64
	Valid bool
}

// Float returns an OptFloat holding v.
func Float(v float64) OptFloat { return OptFloat{Value: v, Valid: true} }

// OptBool is an optional boolean field.
type OptBool struct {
	Value bool
	Valid bool
}

// Bool returns an OptBool holding v.
func Bool(v bool) OptBool { return OptBool{Value: v, Valid: true} }

// Version is a firmware version triple. On the wire it occupies a 16-bit
// little-endian word: major in bits 13-15, minor in bits 8-12, patch in
// bits 0-7. Raw zero means absent, so version 0.0.0 is reserved and cannot
// be transmitted.
type Version struct {
	Major uint8 // 3 bits
	Minor uint8 // 5 bits
	Patch uint8
}

// String renders the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// OptVersion is an optional Version field.
type OptVersion struct {
	Value Version
	Valid bool
}

// Unpack decodes a generic sentinel-offset quantity: counts, temperatures,
// percentages, watts, RPM. Raw zero is absent, anything else carries the
// value plus one.
func Unpack(raw uint16) OptInt {
	if raw == 0 {
		return OptInt{}
	}
	return Int(int(raw) - 1)
}

// Pack is the inverse of Unpack. Values outside 0..65534 are clamped.
func Pack(v OptInt) uint16 {
	if !v.Valid {
		return 0
	}
	if v.Value < 0 {
		return 1
	}
	if v.Value > math.MaxUint16-1 {
		return math.MaxUint16
	}
	return uint16(v.Value) + 1
}

// Pack8 packs a sentinel-offset quantity into a single byte. Values
// outside 0..254 are clamped.
func Pack8(v OptInt) uint8 {
	if !v.Valid {
		return 0
	}
	if v.Value < 0 {
		return 1
	}
	if v.Value > math.MaxUint8-1 {
		return math.MaxUint8
	}
	return uint8(v.Value) + 1
}

// Unpack32 decodes a sentinel-offset 32-bit quantity (uptime seconds).
func Unpack32(raw uint32) OptUint {
	if raw == 0 {
		return OptUint{}
	}
	return Uint(raw - 1)
}

// Pack32 is the inverse of Unpack32. math.MaxUint32 is clamped.
func Pack32(v OptUint) uint32 {
	if !v.Valid {
		return 0
	}
	if v.Value == math.MaxUint32 {
		return math.MaxUint32
	}
	return v.Value + 1
}

// UnpackBool decodes a tri-state boolean byte: 0 absent, 1 false, 2 true.
// Any other raw value is treated as absent.
func UnpackBool(raw uint8) OptBool {
	switch raw {
	case 1:
		return Bool(false)
	case 2:
		return Bool(true)
	default:
		return OptBool{}
	}
}

// PackBool is the inverse of UnpackBool.
func PackBool(v OptBool) uint8 {
	switch {
	case !v.Valid:
		return 0
	case v.Value:
		return 2
	default:
		return 1
	}
}

// UnpackVoltage decodes a centivolt fixed-point voltage: raw 101 is 1.00 V.
func UnpackVoltage(raw uint16) OptFloat {
	if raw == 0 {
		return OptFloat{}
	}
	return Float(float64(raw-1) / 100)
}

// PackVoltage is the inverse of UnpackVoltage, rounded to the nearest
// centivolt.
func PackVoltage(v OptFloat) uint16 {
	if !v.Valid {
		return 0
	}
	cv := math.Round(v.Value * 100)
	if cv < 0 {
		cv = 0
	}
	if cv > math.MaxUint16-1 {
		cv = math.MaxUint16 - 1
	}
	return uint16(cv) + 1
}

// UnpackCellVoltage decodes a single-byte cell voltage. Cells are encoded
// as centivolts above a 2.50 V floor so one byte spans the 2.50-5.04 V
// range a LiFePO4 cell can actually reach.
func UnpackCellVoltage(raw uint8) OptFloat {
	if raw == 0 {
		return OptFloat{}
	}
	return Float(2.5 + float64(raw-1)/100)
}

// PackCellVoltage is the inverse of UnpackCellVoltage. Voltages below the
// 2.50 V floor clamp to the floor, voltages above 5.04 V clamp to the
// ceiling.
func PackCellVoltage(v OptFloat) uint8 {
	if !v.Valid {
		return 0
	}
	cv := math.Round((v.Value - 2.5) * 100)
	if cv < 0 {
		cv = 0
	}
	if cv > math.MaxUint8-1 {
		cv = math.MaxUint8 - 1
	}
	return uint8(cv) + 1
}

// UnpackCurrent decodes the BMS pack current. After removing the sentinel
// offset, bit 15 is the direction flag (set while discharging, clear while
// charging) and the low 15 bits are centiamps; the result is whole amps
// rounded to nearest, positive for discharge.
func UnpackCurrent(raw uint16) OptInt {
	if raw == 0 {
		return OptInt{}
	}
	field := raw - 1
	amps := int((field&0x7FFF + 50) / 100)
	if field&0x8000 == 0 {
		amps = -amps
	}
	return Int(amps)
}

// PackCurrent is the lossy inverse of UnpackCurrent: the centiamp
// resolution discarded by rounding cannot be recovered. Zero packs as
// discharge direction.
func PackCurrent(v OptInt) uint16 {
	if !v.Valid {
		return 0
	}
	amps := v.Value
	var field uint16
	if amps >= 0 {
		field = 0x8000
	} else {
		amps = -amps
	}
	ca := amps * 100
	if ca > 0x7FFF {
		ca = 0x7FFF
	}
	field |= uint16(ca)
	return field + 1
}

// UnpackVersion decodes the 16-bit packed firmware version. Raw zero is
// absent.
func UnpackVersion(raw uint16) OptVersion {
	if raw == 0 {
		return OptVersion{}
	}
	return OptVersion{
		Value: Version{
			Major: uint8(raw >> 13 & 0x07),
			Minor: uint8(raw >> 8 & 0x1F),
			Patch: uint8(raw),
		},
		Valid: true,
	}
}

// PackVersion is the inverse of UnpackVersion. Field overflow is masked to
// the declared widths; version 0.0.0 packs to the absent sentinel.
func PackVersion(v OptVersion) uint16 {
	if !v.Valid {
		return 0
	}
	return uint16(v.Value.Major&0x07)<<13 |
		uint16(v.Value.Minor&0x1F)<<8 |
		uint16(v.Value.Patch)
}
