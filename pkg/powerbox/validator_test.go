// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import (
	"encoding/binary"
	"testing"
)

// hasAnomaly reports whether findings contains an anomaly of type typ.
func hasAnomaly(findings []ValidationError, typ AnomalyType) bool {
	for _, f := range findings {
		if f.Type == typ {
			return true
		}
	}
	return false
}

// ============================================================
// State Frame Validation Tests
// ============================================================

func TestValidateFrame_CleanStateFrames(t *testing.T) {
	tests := []struct {
		name    string
		ch      Channel
		payload []byte
	}{
		{"bms", ChannelBMS, EncodeBMS(BMSState{Voltage: Float(13.2), AllowCharge: Bool(true)})},
		{"psu", ChannelPSU, EncodePSU(PSUState{Active: Bool(false)})},
		{"inverter", ChannelInverter, EncodeInverter(InverterState{})},
		{"mcu", ChannelMCU, EncodeMCU(MCUState{Uptime: Uint(60)})},
		{"ats", ChannelATS, EncodeATS(ATSState{Active: Bool(true)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if findings := ValidateFrame(tt.ch, tt.payload); len(findings) != 0 {
				t.Errorf("clean frame flagged: %v", findings)
			}
		})
	}
}

func TestValidateFrame_StateAnomalies(t *testing.T) {
	short := make([]byte, BMSFrameLength-3)
	if !hasAnomaly(ValidateFrame(ChannelBMS, short), AnomalyShortFrame) {
		t.Error("short frame not flagged")
	}

	trailing := make([]byte, PSUFrameLength+2)
	if !hasAnomaly(ValidateFrame(ChannelPSU, trailing), AnomalyTrailingBytes) {
		t.Error("trailing bytes not flagged")
	}

	badBool := make([]byte, BMSFrameLength)
	badBool[5] = 7
	if !hasAnomaly(ValidateFrame(ChannelBMS, badBool), AnomalyBadBool) {
		t.Error("out-of-range bool byte not flagged")
	}

	if !hasAnomaly(ValidateFrame(Channel(0xEE), nil), AnomalyUnknownChannel) {
		t.Error("unknown channel not flagged")
	}
}

// ============================================================
// History Frame Validation Tests
// ============================================================

func TestValidateFrame_History(t *testing.T) {
	frame := func(h HistoryHeader, extra int) []byte {
		buf := make([]byte, HistoryHeaderSize+int(h.Length)*h.Data.Width()+extra)
		binary.LittleEndian.PutUint32(buf[0:4], PackHistoryHeader(h))
		return buf
	}

	tests := []struct {
		name    string
		payload []byte
		want    AnomalyType
		clean   bool
	}{
		{"clean patch", frame(HistoryHeader{Chart: ChartBMSLevel, Length: 5, Offset: 10}, 0), 0, true},
		{"clean push", frame(HistoryHeader{Chart: ChartPSURPM, Data: DataTypeWord, Incremental: true, Length: 1}, 0), 0, true},
		{"unknown metric", frame(HistoryHeader{Chart: ChartType(0x3F), Length: 1}, 0), AnomalyUnknownMetric, false},
		{"over the sample cap", frame(HistoryHeader{Chart: ChartBMSLevel, Length: MaxFrameSamples + 1}, 0), AnomalyOverlongRun, false},
		{"patch window overflow", frame(HistoryHeader{Chart: ChartBMSLevel, Length: 10, Offset: 175}, 0), AnomalyRangeOverflow, false},
		{"truncated body", frame(HistoryHeader{Chart: ChartBMSLevel, Length: 5}, -3), AnomalyShortFrame, false},
		{"trailing bytes", frame(HistoryHeader{Chart: ChartBMSLevel, Length: 5}, 3), AnomalyTrailingBytes, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := ValidateFrame(ChannelHistory, tt.payload)
			if tt.clean {
				if len(findings) != 0 {
					t.Errorf("clean frame flagged: %v", findings)
				}
				return
			}
			if !hasAnomaly(findings, tt.want) {
				t.Errorf("anomaly %d not reported, findings: %v", tt.want, findings)
			}
		})
	}
}

// ============================================================
// Log and Command Validation Tests
// ============================================================

func TestValidateFrame_Log(t *testing.T) {
	clean := append([]byte{MakeLogHeader(LogInfo, LogMarkerStart)}, "ok"...)
	if findings := ValidateFrame(ChannelLog, clean); len(findings) != 0 {
		t.Errorf("clean chunk flagged: %v", findings)
	}

	if !hasAnomaly(ValidateFrame(ChannelLog, nil), AnomalyShortFrame) {
		t.Error("empty chunk not flagged")
	}

	badMarker := []byte{MakeLogHeader(LogInfo, LogMarker(5))}
	if !hasAnomaly(ValidateFrame(ChannelLog, badMarker), AnomalyBadMarker) {
		t.Error("invalid marker not flagged")
	}
}

func TestValidateFrame_Command(t *testing.T) {
	if findings := ValidateFrame(ChannelCommand, NewRebootCommand()); len(findings) != 0 {
		t.Errorf("clean command flagged: %v", findings)
	}
	if !hasAnomaly(ValidateFrame(ChannelCommand, []byte{0x99}), AnomalyBadCommand) {
		t.Error("unknown opcode not flagged")
	}
}

func TestValidateFrame_DeviceInfoAlwaysClean(t *testing.T) {
	for _, ch := range []Channel{ChannelManufacturerName, ChannelModelNumber, ChannelFirmwareRevision} {
		if findings := ValidateFrame(ch, []byte("Trypillia")); len(findings) != 0 {
			t.Errorf("%s flagged: %v", ch, findings)
		}
	}
}
