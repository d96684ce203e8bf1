// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HistoryHeader describes one history frame: which metric it carries, the
// per-sample width, and whether the samples push onto the tail of the
// metric's buffer or patch an absolute window inside it.
//
// Wire form is a single 32-bit little-endian word:
//
//	bits 18-23  chartType
//	bit  17     dataType (0 byte, 1 word)
//	bit  16     incremental (0 patch, 1 push)
//	bits 8-15   offset (patch mode only)
//	bits 0-7    length (sample count in this frame)
type HistoryHeader struct {
	Chart       ChartType
	Data        DataType
	Incremental bool
	Offset      uint8
	Length      uint8
}

// Header field shifts inside the 32-bit word
const (
	historyChartShift  = 18
	historyDataShift   = 17
	historyIncrShift   = 16
	historyOffsetShift = 8

	historyChartMask = 0x3F
)

// PackHistoryHeader packs h into its 32-bit wire word.
func PackHistoryHeader(h HistoryHeader) uint32 {
	w := (uint32(h.Chart) & historyChartMask) << historyChartShift
	w |= (uint32(h.Data) & 1) << historyDataShift
	if h.Incremental {
		w |= 1 << historyIncrShift
	}
	w |= uint32(h.Offset) << historyOffsetShift
	w |= uint32(h.Length)
	return w
}

// UnpackHistoryHeader is the exact bit-for-bit inverse of
// PackHistoryHeader. Masking keeps every field unsigned; no sign extension
// can occur.
func UnpackHistoryHeader(w uint32) HistoryHeader {
	return HistoryHeader{
		Chart:       ChartType(w >> historyChartShift & historyChartMask),
		Data:        DataType(w >> historyDataShift & 1),
		Incremental: w>>historyIncrShift&1 == 1,
		Offset:      uint8(w >> historyOffsetShift),
		Length:      uint8(w),
	}
}

// Width returns the sample width in bytes.
func (d DataType) Width() int {
	if d == DataTypeWord {
		return 2
	}
	return 1
}

// ErrBadHistoryFrame reports a history frame whose header contradicts its
// body or the wire contract.
var ErrBadHistoryFrame = errors.New("bad history frame")

// HistoryFrame is one decoded history notification: the header plus the
// raw, still sentinel-packed samples.
type HistoryFrame struct {
	Header  HistoryHeader
	Samples []uint16
}

// DecodeHistoryFrame splits buf into header and raw samples. It fails when
// the buffer cannot hold the declared sample run or the declared count
// exceeds MaxFrameSamples; it does not check the chart type, so unknown
// metrics can still be routed (and dropped) downstream.
func DecodeHistoryFrame(buf []byte) (HistoryFrame, error) {
	if len(buf) < HistoryHeaderSize {
		return HistoryFrame{}, fmt.Errorf("%w: history %d bytes, need at least %d", ErrShortFrame, len(buf), HistoryHeaderSize)
	}
	h := UnpackHistoryHeader(binary.LittleEndian.Uint32(buf[0:4]))
	if h.Length > MaxFrameSamples {
		return HistoryFrame{}, fmt.Errorf("%w: %d samples over the per-frame cap %d", ErrBadHistoryFrame, h.Length, MaxFrameSamples)
	}
	width := h.Data.Width()
	need := HistoryHeaderSize + int(h.Length)*width
	if len(buf) < need {
		return HistoryFrame{}, fmt.Errorf("%w: history %d bytes, need %d for %d samples", ErrShortFrame, len(buf), need, h.Length)
	}
	samples := make([]uint16, h.Length)
	for i := range samples {
		if h.Data == DataTypeWord {
			samples[i] = binary.LittleEndian.Uint16(buf[HistoryHeaderSize+i*2:])
		} else {
			samples[i] = uint16(buf[HistoryHeaderSize+i])
		}
	}
	return HistoryFrame{Header: h, Samples: samples}, nil
}

// EncodeHistoryFrame packs a history frame; the station-side inverse of
// DecodeHistoryFrame. Samples beyond the header's declared length are
// ignored, byte-width samples are truncated to their low byte.
func EncodeHistoryFrame(f HistoryFrame) []byte {
	width := f.Header.Data.Width()
	buf := make([]byte, HistoryHeaderSize+int(f.Header.Length)*width)
	binary.LittleEndian.PutUint32(buf[0:4], PackHistoryHeader(f.Header))
	for i := 0; i < int(f.Header.Length) && i < len(f.Samples); i++ {
		if f.Header.Data == DataTypeWord {
			binary.LittleEndian.PutUint16(buf[HistoryHeaderSize+i*2:], f.Samples[i])
		} else {
			buf[HistoryHeaderSize+i] = uint8(f.Samples[i])
		}
	}
	return buf
}

// ChartTypes lists every trackable metric in wire-id order.
func ChartTypes() []ChartType {
	return []ChartType{
		ChartBMSLevel, ChartBMSCurrent,
		ChartBMSCell1, ChartBMSCell2, ChartBMSCell3, ChartBMSCell4,
		ChartPSURPM, ChartPSUPower1, ChartPSUPower2, ChartPSUTemp1, ChartPSUTemp2,
		ChartInverterPower, ChartInverterRPM, ChartInverterTemp,
	}
}

// DataType returns the canonical per-sample width the station uses for
// metric c, ok=false for unknown metrics.
func (c ChartType) DataType() (DataType, bool) {
	switch c {
	case ChartBMSCurrent, ChartPSURPM, ChartPSUPower1, ChartPSUPower2,
		ChartInverterPower, ChartInverterRPM:
		return DataTypeWord, true
	case ChartBMSLevel, ChartBMSCell1, ChartBMSCell2, ChartBMSCell3,
		ChartBMSCell4, ChartPSUTemp1, ChartPSUTemp2, ChartInverterTemp:
		return DataTypeByte, true
	default:
		return DataTypeByte, false
	}
}

// DecodeSample applies metric c's scalar decoding to one raw history
// sample. Unknown metrics report ok=false so callers can drop the frame
// instead of guessing a decoding.
func DecodeSample(c ChartType, raw uint16) (OptFloat, bool) {
	switch c {
	case ChartBMSLevel, ChartPSURPM, ChartPSUPower1, ChartPSUPower2,
		ChartPSUTemp1, ChartPSUTemp2, ChartInverterPower, ChartInverterRPM,
		ChartInverterTemp:
		v := Unpack(raw)
		if !v.Valid {
			return OptFloat{}, true
		}
		return Float(float64(v.Value)), true
	case ChartBMSCurrent:
		v := UnpackCurrent(raw)
		if !v.Valid {
			return OptFloat{}, true
		}
		return Float(float64(v.Value)), true
	case ChartBMSCell1, ChartBMSCell2, ChartBMSCell3, ChartBMSCell4:
		return UnpackCellVoltage(uint8(raw)), true
	default:
		return OptFloat{}, false
	}
}

// EncodeSample applies metric c's scalar encoding to one domain value; the
// station-side inverse of DecodeSample.
func EncodeSample(c ChartType, v OptFloat) (uint16, bool) {
	switch c {
	case ChartBMSLevel, ChartPSURPM, ChartPSUPower1, ChartPSUPower2,
		ChartPSUTemp1, ChartPSUTemp2, ChartInverterPower, ChartInverterRPM,
		ChartInverterTemp:
		if !v.Valid {
			return 0, true
		}
		return Pack(Int(int(v.Value))), true
	case ChartBMSCurrent:
		if !v.Valid {
			return 0, true
		}
		return PackCurrent(Int(int(v.Value))), true
	case ChartBMSCell1, ChartBMSCell2, ChartBMSCell3, ChartBMSCell4:
		return uint16(PackCellVoltage(v)), true
	default:
		return 0, false
	}
}

// String returns the wire-log name of the metric.
func (c ChartType) String() string {
	switch c {
	case ChartBMSLevel:
		return "BMS_LEVEL"
	case ChartBMSCurrent:
		return "BMS_CURRENT"
	case ChartBMSCell1:
		return "BMS_CELL_1"
	case ChartBMSCell2:
		return "BMS_CELL_2"
	case ChartBMSCell3:
		return "BMS_CELL_3"
	case ChartBMSCell4:
		return "BMS_CELL_4"
	case ChartPSURPM:
		return "PSU_RPM"
	case ChartPSUPower1:
		return "PSU_POWER_1"
	case ChartPSUPower2:
		return "PSU_POWER_2"
	case ChartPSUTemp1:
		return "PSU_TEMP_1"
	case ChartPSUTemp2:
		return "PSU_TEMP_2"
	case ChartInverterPower:
		return "INVERTER_POWER"
	case ChartInverterRPM:
		return "INVERTER_RPM"
	case ChartInverterTemp:
		return "INVERTER_TEMP"
	default:
		return "UNKNOWN"
	}
}
