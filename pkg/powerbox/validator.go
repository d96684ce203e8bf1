// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import (
	"encoding/binary"
	"fmt"
)

// AnomalyType classifies frame validation findings.
type AnomalyType int

const (
	AnomalyShortFrame AnomalyType = iota
	AnomalyUnknownChannel
	AnomalyUnknownMetric
	AnomalyOverlongRun
	AnomalyRangeOverflow
	AnomalyBadBool
	AnomalyBadMarker
	AnomalyBadCommand
	AnomalyTrailingBytes
)

// ValidationError represents one frame validation finding.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame inspects one channel payload without mutating anything.
// It returns every anomaly found (empty when the frame is clean). Checks
// are stricter than the decoders: decoders tolerate trailing bytes and
// unknown metrics for forward compatibility, the validator reports them.
func ValidateFrame(ch Channel, payload []byte) []ValidationError {
	switch ch {
	case ChannelBMS:
		return validateStateFrame(ch, payload, BMSFrameLength, []int{5, 6})
	case ChannelPSU:
		return validateStateFrame(ch, payload, PSUFrameLength, []int{10})
	case ChannelInverter:
		return validateStateFrame(ch, payload, InverterFrameLength, []int{4})
	case ChannelMCU:
		return validateStateFrame(ch, payload, MCUFrameLength, nil)
	case ChannelATS:
		return validateStateFrame(ch, payload, ATSFrameLength, []int{0})
	case ChannelHistory:
		return validateHistoryFrame(payload)
	case ChannelLog:
		return validateLogChunk(payload)
	case ChannelCommand:
		return validateCommand(payload)
	case ChannelManufacturerName, ChannelModelNumber, ChannelFirmwareRevision:
		return nil
	default:
		return []ValidationError{{
			Type:    AnomalyUnknownChannel,
			Message: fmt.Sprintf("Unknown channel 0x%02X (%d bytes)", uint8(ch), len(payload)),
			Details: map[string]interface{}{"channel": uint8(ch), "length": len(payload)},
		}}
	}
}

// validateStateFrame checks a fixed-layout state frame: exact length and
// tri-state boolean bytes at the given offsets.
func validateStateFrame(ch Channel, payload []byte, want int, boolOffsets []int) []ValidationError {
	if len(payload) < want {
		return []ValidationError{{
			Type:    AnomalyShortFrame,
			Message: fmt.Sprintf("%s frame too short (%d bytes, expected %d)", ch, len(payload), want),
			Details: map[string]interface{}{"length": len(payload), "expected": want},
		}}
	}

	errors := []ValidationError{}

	if len(payload) > want {
		errors = append(errors, ValidationError{
			Type:    AnomalyTrailingBytes,
			Message: fmt.Sprintf("%s frame has %d trailing bytes (%d, expected %d)", ch, len(payload)-want, len(payload), want),
			Details: map[string]interface{}{"length": len(payload), "expected": want},
		})
	}

	for _, off := range boolOffsets {
		if payload[off] > 2 {
			errors = append(errors, ValidationError{
				Type:    AnomalyBadBool,
				Message: fmt.Sprintf("%s bool byte at offset %d is %d (valid 0-2)", ch, off, payload[off]),
				Details: map[string]interface{}{"offset": off, "value": payload[off]},
			})
		}
	}

	return errors
}

// validateHistoryFrame checks the header against the wire contract and the
// buffer bounds the store will enforce.
func validateHistoryFrame(payload []byte) []ValidationError {
	if len(payload) < HistoryHeaderSize {
		return []ValidationError{{
			Type:    AnomalyShortFrame,
			Message: fmt.Sprintf("History frame too short (%d bytes, expected at least %d)", len(payload), HistoryHeaderSize),
			Details: map[string]interface{}{"length": len(payload), "minimum": HistoryHeaderSize},
		}}
	}

	errors := []ValidationError{}
	h := UnpackHistoryHeader(binary.LittleEndian.Uint32(payload[0:4]))

	if _, ok := h.Chart.DataType(); !ok {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownMetric,
			Message: fmt.Sprintf("Unknown chart type 0x%02X (frame will be dropped)", uint8(h.Chart)),
			Details: map[string]interface{}{"chart": uint8(h.Chart)},
		})
	}

	if h.Length > MaxFrameSamples {
		errors = append(errors, ValidationError{
			Type:    AnomalyOverlongRun,
			Message: fmt.Sprintf("History run of %d samples exceeds the per-frame cap %d", h.Length, MaxFrameSamples),
			Details: map[string]interface{}{"length": h.Length, "max": MaxFrameSamples},
		})
	}

	if !h.Incremental && int(h.Offset)+int(h.Length) > HistoryLength {
		errors = append(errors, ValidationError{
			Type:    AnomalyRangeOverflow,
			Message: fmt.Sprintf("Patch range %d+%d overflows the %d-slot buffer (will clamp)", h.Offset, h.Length, HistoryLength),
			Details: map[string]interface{}{"offset": h.Offset, "length": h.Length, "buffer": HistoryLength},
		})
	}

	need := HistoryHeaderSize + int(h.Length)*h.Data.Width()
	if len(payload) < need {
		errors = append(errors, ValidationError{
			Type:    AnomalyShortFrame,
			Message: fmt.Sprintf("History frame truncated (%d bytes, header declares %d)", len(payload), need),
			Details: map[string]interface{}{"length": len(payload), "expected": need},
		})
	} else if len(payload) > need {
		errors = append(errors, ValidationError{
			Type:    AnomalyTrailingBytes,
			Message: fmt.Sprintf("History frame has %d trailing bytes (%d, header declares %d)", len(payload)-need, len(payload), need),
			Details: map[string]interface{}{"length": len(payload), "expected": need},
		})
	}

	return errors
}

// validateLogChunk checks the log header byte.
func validateLogChunk(payload []byte) []ValidationError {
	if len(payload) == 0 {
		return []ValidationError{{
			Type:    AnomalyShortFrame,
			Message: "Log chunk is empty (expected at least the header byte)",
			Details: map[string]interface{}{"length": 0, "minimum": 1},
		}}
	}

	errors := []ValidationError{}
	_, marker := SplitLogHeader(payload[0])

	if marker > LogMarkerEnd {
		errors = append(errors, ValidationError{
			Type:    AnomalyBadMarker,
			Message: fmt.Sprintf("Log chunk marker %d is invalid (valid 0-2)", uint8(marker)),
			Details: map[string]interface{}{"marker": uint8(marker)},
		})
	}

	return errors
}

// validateCommand checks a command-channel write against the opcode table.
func validateCommand(payload []byte) []ValidationError {
	if _, err := DecodeCommand(payload); err != nil {
		return []ValidationError{{
			Type:    AnomalyBadCommand,
			Message: fmt.Sprintf("Command rejected: %v", err),
			Details: map[string]interface{}{"length": len(payload)},
		}}
	}
	return nil
}
