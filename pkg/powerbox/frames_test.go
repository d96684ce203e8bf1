// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import (
	"errors"
	"math"
	"testing"
)

// ============================================================
// BMS Frame Tests
// ============================================================

func TestDecodeBMS_KnownVector(t *testing.T) {
	// 1.00 V pack, 5 A charging, 49%, charge/discharge allowed, 29 °C
	// everywhere, all four cells at 2.99 V, no faults.
	buf := []byte{
		0x65, 0x00, // voltage: 101 → 1.00 V
		0xF5, 0x01, // current: 501 → bit15 clear, 500 cA → -5 A
		0x32,       // level: 50 → 49%
		0x02, 0x02, // allow charge/discharge: true/true
		0x1E, 0x1E, 0x1E, // temps: 30 → 29 °C
		0x32, 0x32, 0x32, 0x32, // cells: 0x32 → 2.99 V
		0x00, 0x00, // external errors
		0x00, // internal errors
	}

	s, err := DecodeBMS(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !s.Voltage.Valid || s.Voltage.Value != 1.00 {
		t.Errorf("voltage = %+v, want 1.00 V", s.Voltage)
	}
	if !s.Current.Valid || s.Current.Value != -5 {
		t.Errorf("current = %+v, want -5 A", s.Current)
	}
	if !s.Level.Valid || s.Level.Value != 49 {
		t.Errorf("level = %+v, want 49%%", s.Level)
	}
	if !s.AllowCharge.Valid || !s.AllowCharge.Value {
		t.Errorf("allow charge = %+v, want true", s.AllowCharge)
	}
	if !s.AllowDischarge.Valid || !s.AllowDischarge.Value {
		t.Errorf("allow discharge = %+v, want true", s.AllowDischarge)
	}
	for _, temp := range []OptInt{s.MOSTemp, s.Sensor1Temp, s.Sensor2Temp} {
		if !temp.Valid || temp.Value != 29 {
			t.Errorf("temp = %+v, want 29 °C", temp)
		}
	}
	for i, cv := range s.CellVoltage {
		if !cv.Valid || math.Abs(cv.Value-2.99) > 1e-9 {
			t.Errorf("cell %d = %+v, want 2.99 V", i+1, cv)
		}
	}
	if s.ExternalErrors != 0 || s.InternalErrors != 0 {
		t.Errorf("errors = 0x%04X/0x%02X, want clear", s.ExternalErrors, s.InternalErrors)
	}
}

func TestDecodeBMS_AllAbsent(t *testing.T) {
	s, err := DecodeBMS(make([]byte, BMSFrameLength))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if s.Voltage.Valid || s.Current.Valid || s.Level.Valid ||
		s.AllowCharge.Valid || s.AllowDischarge.Valid {
		t.Errorf("zero frame should decode with every field absent: %+v", s)
	}
}

func TestDecodeBMS_ShortFrame(t *testing.T) {
	_, err := DecodeBMS(make([]byte, BMSFrameLength-1))
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("expected ErrShortFrame, got %v", err)
	}
}

func TestDecodeBMS_TrailingBytesTolerated(t *testing.T) {
	buf := make([]byte, BMSFrameLength+8)
	buf[4] = 0x32
	s, err := DecodeBMS(buf)
	if err != nil {
		t.Fatalf("oversized frame should decode: %v", err)
	}
	if !s.Level.Valid || s.Level.Value != 49 {
		t.Errorf("level = %+v, want 49", s.Level)
	}
}

func TestEncodeBMS_Roundtrip(t *testing.T) {
	want := BMSState{
		Voltage:        Float(13.25),
		Current:        Int(12),
		Level:          Int(87),
		AllowCharge:    Bool(true),
		AllowDischarge: Bool(false),
		MOSTemp:        Int(41),
		Sensor1Temp:    Int(38),
		CellVoltage:    [4]OptFloat{Float(3.31), Float(3.32), Float(3.30), Float(3.31)},
		ExternalErrors: BMSErrCellOvervoltage | BMSErrMOSLockout,
		InternalErrors: 0x04,
	}
	got, err := DecodeBMS(EncodeBMS(want))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Voltage != want.Voltage || got.Current != want.Current ||
		got.Level != want.Level || got.AllowCharge != want.AllowCharge ||
		got.AllowDischarge != want.AllowDischarge ||
		got.Sensor2Temp.Valid {
		t.Errorf("roundtrip mismatch: got %+v", got)
	}
	for i := range want.CellVoltage {
		if math.Abs(got.CellVoltage[i].Value-want.CellVoltage[i].Value) > 0.005 {
			t.Errorf("cell %d = %+v, want %+v", i+1, got.CellVoltage[i], want.CellVoltage[i])
		}
	}
	if got.ExternalErrors != want.ExternalErrors || got.InternalErrors != want.InternalErrors {
		t.Errorf("error masks lost in roundtrip: %+v", got)
	}
}

// ============================================================
// PSU Frame Tests
// ============================================================

func TestDecodePSU_Roundtrip(t *testing.T) {
	want := PSUState{
		FanRPM:         Int(2400),
		Power1:         Int(650),
		Power2:         Int(0),
		ACVoltage:      Int(230),
		Temp1:          Int(44),
		Temp2:          Int(41),
		CurrentChannel: Int(3),
		Active:         Bool(true),
		ExternalErrors: 0x01,
	}
	got, err := DecodePSU(EncodePSU(want))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != want {
		t.Errorf("roundtrip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestDecodePSU_ShortFrame(t *testing.T) {
	_, err := DecodePSU(make([]byte, PSUFrameLength-1))
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("expected ErrShortFrame, got %v", err)
	}
}

// ============================================================
// Inverter Frame Tests
// ============================================================

func TestDecodeInverter_Roundtrip(t *testing.T) {
	want := InverterState{
		Power:          Int(1200),
		FanRPM:         Int(3100),
		Active:         Bool(true),
		ACVoltage:      Int(229),
		Temp:           Int(52),
		InternalErrors: 0x02,
	}
	got, err := DecodeInverter(EncodeInverter(want))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != want {
		t.Errorf("roundtrip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

// ============================================================
// MCU Frame Tests
// ============================================================

func TestDecodeMCU_Roundtrip(t *testing.T) {
	want := MCUState{
		Uptime:     Uint(356521),
		Version:    OptVersion{Value: Version{Major: 1, Minor: 4, Patch: 2}, Valid: true},
		Temp:       Int(37),
		MemoryUsed: Int(61),
	}
	got, err := DecodeMCU(EncodeMCU(want))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != want {
		t.Errorf("roundtrip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestDecodeMCU_ShortFrame(t *testing.T) {
	_, err := DecodeMCU(make([]byte, MCUFrameLength-1))
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("expected ErrShortFrame, got %v", err)
	}
}

// ============================================================
// ATS Frame Tests
// ============================================================

func TestDecodeATS(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want ATSState
	}{
		{"armed", []byte{0x02, 0x00}, ATSState{Active: Bool(true)}},
		{"disarmed with fault", []byte{0x01, 0x03}, ATSState{Active: Bool(false), InternalErrors: 0x03}},
		{"unknown state", []byte{0x00, 0x00}, ATSState{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeATS(tt.buf)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := DecodeATS([]byte{0x02}); !errors.Is(err, ErrShortFrame) {
		t.Errorf("expected ErrShortFrame, got %v", err)
	}
}
