// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// ============================================================
// History Header Tests
// ============================================================

func TestPackHistoryHeader_BitLayout(t *testing.T) {
	h := HistoryHeader{
		Chart:       ChartBMSCurrent, // 0x02
		Data:        DataTypeWord,
		Incremental: true,
		Offset:      0x2C,
		Length:      0x05,
	}
	got := PackHistoryHeader(h)
	want := uint32(0x02)<<18 | 1<<17 | 1<<16 | uint32(0x2C)<<8 | 0x05
	if got != want {
		t.Errorf("packed 0x%08X, want 0x%08X", got, want)
	}
}

func TestHistoryHeader_Roundtrip(t *testing.T) {
	tests := []struct {
		name string
		h    HistoryHeader
	}{
		{"patch byte run", HistoryHeader{Chart: ChartBMSLevel, Data: DataTypeByte, Offset: 10, Length: 5}},
		{"push word run", HistoryHeader{Chart: ChartInverterPower, Data: DataTypeWord, Incremental: true, Length: 1}},
		{"full width fields", HistoryHeader{Chart: ChartType(0x3F), Data: DataTypeWord, Incremental: true, Offset: 0xFF, Length: 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnpackHistoryHeader(PackHistoryHeader(tt.h))
			if got != tt.h {
				t.Errorf("roundtrip gave %+v, want %+v", got, tt.h)
			}
		})
	}
}

// ============================================================
// History Frame Tests
// ============================================================

func TestDecodeHistoryFrame_ByteSamples(t *testing.T) {
	h := HistoryHeader{Chart: ChartBMSLevel, Data: DataTypeByte, Offset: 10, Length: 3}
	buf := make([]byte, HistoryHeaderSize+3)
	binary.LittleEndian.PutUint32(buf[0:4], PackHistoryHeader(h))
	buf[4], buf[5], buf[6] = 0x15, 0x16, 0x17

	f, err := DecodeHistoryFrame(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if f.Header != h {
		t.Errorf("header = %+v, want %+v", f.Header, h)
	}
	for i, want := range []uint16{0x15, 0x16, 0x17} {
		if f.Samples[i] != want {
			t.Errorf("sample %d = 0x%04X, want 0x%04X", i, f.Samples[i], want)
		}
	}
}

func TestDecodeHistoryFrame_WordSamples(t *testing.T) {
	h := HistoryHeader{Chart: ChartPSUPower1, Data: DataTypeWord, Incremental: true, Length: 2}
	buf := make([]byte, HistoryHeaderSize+4)
	binary.LittleEndian.PutUint32(buf[0:4], PackHistoryHeader(h))
	binary.LittleEndian.PutUint16(buf[4:6], 651)
	binary.LittleEndian.PutUint16(buf[6:8], 652)

	f, err := DecodeHistoryFrame(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if f.Samples[0] != 651 || f.Samples[1] != 652 {
		t.Errorf("samples = %v", f.Samples)
	}
}

func TestDecodeHistoryFrame_Rejects(t *testing.T) {
	overCap := make([]byte, HistoryHeaderSize+64)
	binary.LittleEndian.PutUint32(overCap[0:4], PackHistoryHeader(HistoryHeader{
		Chart: ChartBMSLevel, Length: MaxFrameSamples + 1,
	}))

	truncated := make([]byte, HistoryHeaderSize+2)
	binary.LittleEndian.PutUint32(truncated[0:4], PackHistoryHeader(HistoryHeader{
		Chart: ChartBMSLevel, Length: 5,
	}))

	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"shorter than header", []byte{0x01, 0x02}, ErrShortFrame},
		{"run over per-frame cap", overCap, ErrBadHistoryFrame},
		{"body shorter than declared", truncated, ErrShortFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeHistoryFrame(tt.buf); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeHistoryFrame_UnknownChartStillDecodes(t *testing.T) {
	// Routing, not decoding, drops unknown metrics.
	buf := make([]byte, HistoryHeaderSize+1)
	binary.LittleEndian.PutUint32(buf[0:4], PackHistoryHeader(HistoryHeader{
		Chart: ChartType(0x3F), Length: 1,
	}))
	f, err := DecodeHistoryFrame(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if f.Header.Chart != ChartType(0x3F) {
		t.Errorf("chart = 0x%02X", uint8(f.Header.Chart))
	}
}

func TestEncodeHistoryFrame_Roundtrip(t *testing.T) {
	want := HistoryFrame{
		Header:  HistoryHeader{Chart: ChartBMSCurrent, Data: DataTypeWord, Offset: 40, Length: 4},
		Samples: []uint16{0x8001, 0x81F5, 0x0001, 0x0000},
	}
	got, err := DecodeHistoryFrame(EncodeHistoryFrame(want))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Header != want.Header {
		t.Errorf("header = %+v, want %+v", got.Header, want.Header)
	}
	for i := range want.Samples {
		if got.Samples[i] != want.Samples[i] {
			t.Errorf("sample %d = 0x%04X, want 0x%04X", i, got.Samples[i], want.Samples[i])
		}
	}
}

// ============================================================
// Sample Scalar Routing Tests
// ============================================================

func TestDecodeSample_PerMetric(t *testing.T) {
	tests := []struct {
		name  string
		chart ChartType
		raw   uint16
		want  float64
	}{
		{"level percent", ChartBMSLevel, 50, 49},
		{"discharge current", ChartBMSCurrent, (0x8000 | 500) + 1, 5},
		{"charge current", ChartBMSCurrent, 500 + 1, -5},
		{"cell voltage", ChartBMSCell3, 0x32, 2.99},
		{"inverter watts", ChartInverterPower, 1201, 1200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := DecodeSample(tt.chart, tt.raw)
			if !ok {
				t.Fatalf("metric reported unknown")
			}
			if !v.Valid || math.Abs(v.Value-tt.want) > 1e-9 {
				t.Errorf("DecodeSample(%s, 0x%04X) = %+v, want %v", tt.chart, tt.raw, v, tt.want)
			}
		})
	}
}

func TestDecodeSample_AbsentAndUnknown(t *testing.T) {
	if v, ok := DecodeSample(ChartPSUTemp1, 0); !ok || v.Valid {
		t.Errorf("raw 0 should decode absent for a known metric, got %+v/%v", v, ok)
	}
	if _, ok := DecodeSample(ChartType(0x3F), 50); ok {
		t.Error("unknown metric should report ok=false")
	}
}

func TestEncodeSample_Roundtrip(t *testing.T) {
	for _, c := range ChartTypes() {
		raw, ok := EncodeSample(c, Float(3))
		if !ok {
			t.Fatalf("%s rejected a plain value", c)
		}
		v, _ := DecodeSample(c, raw)
		if !v.Valid || math.Abs(v.Value-3) > 0.005 {
			t.Errorf("%s roundtrip of 3 gave %+v", c, v)
		}
	}
}

func TestChartTypeDataType(t *testing.T) {
	words := []ChartType{ChartBMSCurrent, ChartPSURPM, ChartPSUPower1, ChartPSUPower2, ChartInverterPower, ChartInverterRPM}
	for _, c := range words {
		if d, ok := c.DataType(); !ok || d != DataTypeWord {
			t.Errorf("%s should be word-wide", c)
		}
	}
	bytes := []ChartType{ChartBMSLevel, ChartBMSCell1, ChartPSUTemp1, ChartInverterTemp}
	for _, c := range bytes {
		if d, ok := c.DataType(); !ok || d != DataTypeByte {
			t.Errorf("%s should be byte-wide", c)
		}
	}
	if _, ok := ChartType(0x3F).DataType(); ok {
		t.Error("unknown chart should report ok=false")
	}
}
