// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

// Package bridge implements the development-bridge stream protocol that
// carries powerbox GATT traffic over a byte pipe (serial or websocket).
// The bridge firmware forwards each characteristic event as one framed
// message, so the client sees the same channel/payload pairs a BLE
// central would, without owning a Bluetooth stack.
//
// Frame layout between the framing bytes:
//
//	kind(1) channel(1) length(1) payload(length) crc16(2, big-endian)
//
// CRC-16-CCITT covers kind through payload. START, END, and ESC bytes
// inside the frame body are escaped as ESC + (byte XOR 0x20).
package bridge

import (
	"fmt"
	"time"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// Framing constants
const (
	StartByte = 0xAA
	EndByte   = 0xAB
	EscByte   = 0xA9
	EscXor    = 0x20

	MaxPayloadSize = 128
	// kind + channel + length + payload + crc
	maxFrameBody = 3 + MaxPayloadSize + 2
)

// Kind identifies the direction and semantics of a bridge frame.
type Kind uint8

// Frame kinds
const (
	KindNotify       Kind = 0x01 // device → client, characteristic notification
	KindReadResponse Kind = 0x02 // device → client, reply to a read request
	KindWrite        Kind = 0x11 // client → device, characteristic write
	KindReadRequest  Kind = 0x12 // client → device, explicit read (empty payload)
)

// String returns the wire-log name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotify:
		return "NOTIFY"
	case KindReadResponse:
		return "READ_RESPONSE"
	case KindWrite:
		return "WRITE"
	case KindReadRequest:
		return "READ_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// Inbound reports whether frames of this kind flow device → client.
func (k Kind) Inbound() bool {
	return k == KindNotify || k == KindReadResponse
}

// Frame is one decoded bridge frame.
type Frame struct {
	Kind      Kind
	Channel   powerbox.Channel
	Payload   []byte
	Timestamp time.Time
}

// Encode builds the wire form of one bridge frame, framing and escaping
// included.
func Encode(kind Kind, ch powerbox.Channel, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}

	body := make([]byte, 0, 3+len(payload)+2)
	body = append(body, byte(kind), byte(ch), byte(len(payload)))
	body = append(body, payload...)

	crc := CalculateCRC(body)
	body = append(body, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(body)

	out := make([]byte, 0, len(stuffed)+2)
	out = append(out, StartByte)
	out = append(out, stuffed...)
	out = append(out, EndByte)
	return out, nil
}

// stuffBytes escapes framing bytes inside the frame body.
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}
	return result
}

// Decoder states
const (
	stateIdle = iota
	stateKind
	stateChannel
	stateLength
	statePayload
	stateCRC1
	stateCRC2
)

// Decoder is the byte-at-a-time bridge frame decoder state machine. Feed
// it raw transport bytes; it resynchronizes on the next START byte after
// any error.
type Decoder struct {
	state      int
	escapeNext bool
	body       []byte
	frame      *Frame
	want       int
	crc        uint16
}

// NewDecoder creates a new bridge decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		state: stateIdle,
		body:  make([]byte, 0, maxFrameBody),
	}
}

// Reset resets the decoder state to idle.
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.escapeNext = false
	d.body = d.body[:0]
	d.frame = nil
	d.want = 0
	d.crc = 0
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil while the frame is incomplete.
// Returns an error when decoding fails; the decoder is then reset and
// hunts for the next START byte.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	// Handle byte stuffing
	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}

	originalB := b
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	// Handle framing bytes
	if originalB == StartByte && b == originalB {
		d.Reset()
		d.state = stateKind
		return nil, nil
	}

	if originalB == EndByte && b == originalB {
		if d.state == stateCRC2 {
			frame := d.frame
			calculated := CalculateCRC(d.body)
			if d.crc != calculated {
				err := fmt.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", calculated, d.crc)
				d.Reset()
				return nil, err
			}
			frame.Timestamp = time.Now()
			d.Reset()
			return frame, nil
		}
		state := d.state
		d.Reset()
		if state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected END byte in state %d", state)
	}

	// State machine
	switch d.state {
	case stateIdle:
		// Waiting for START byte
		return nil, nil

	case stateKind:
		d.frame = &Frame{Kind: Kind(b)}
		d.body = append(d.body, b)
		d.state = stateChannel
		return nil, nil

	case stateChannel:
		d.frame.Channel = powerbox.Channel(b)
		d.body = append(d.body, b)
		d.state = stateLength
		return nil, nil

	case stateLength:
		if int(b) > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", b, MaxPayloadSize)
		}
		d.frame.Payload = make([]byte, 0, b)
		d.want = int(b)
		d.body = append(d.body, b)
		if b == 0 {
			d.state = stateCRC1
		} else {
			d.state = statePayload
		}
		return nil, nil

	case statePayload:
		d.frame.Payload = append(d.frame.Payload, b)
		d.body = append(d.body, b)
		if len(d.frame.Payload) >= d.want {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.crc |= uint16(b)
		// Wait for END byte
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}
