// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package bridge

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// Capture files are a CBOR stream: one header record followed by one
// record per frame, in arrival order with original timestamps, so a
// session can be replayed offline at real or scaled speed.

const (
	captureMagic   = "PBXCAP"
	captureVersion = 1
)

type captureHeader struct {
	Magic   string    `cbor:"1,keyasint"`
	Version int       `cbor:"2,keyasint"`
	Created time.Time `cbor:"3,keyasint"`
	Note    string    `cbor:"4,keyasint,omitempty"`
}

type captureRecord struct {
	At      time.Time `cbor:"1,keyasint"`
	Kind    uint8     `cbor:"2,keyasint"`
	Channel uint8     `cbor:"3,keyasint"`
	Payload []byte    `cbor:"4,keyasint"`
}

// CaptureWriter streams frames into a capture file.
type CaptureWriter struct {
	enc    *cbor.Encoder
	frames int
}

// NewCaptureWriter writes the capture header and returns a writer ready
// for frames.
func NewCaptureWriter(w io.Writer, note string) (*CaptureWriter, error) {
	enc := cbor.NewEncoder(w)
	header := captureHeader{
		Magic:   captureMagic,
		Version: captureVersion,
		Created: time.Now().UTC(),
		Note:    note,
	}
	if err := enc.Encode(header); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &CaptureWriter{enc: enc}, nil
}

// WriteFrame appends one frame to the capture.
func (cw *CaptureWriter) WriteFrame(f *Frame) error {
	rec := captureRecord{
		At:      f.Timestamp,
		Kind:    uint8(f.Kind),
		Channel: uint8(f.Channel),
		Payload: f.Payload,
	}
	if err := cw.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write capture record: %w", err)
	}
	cw.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (cw *CaptureWriter) Frames() int {
	return cw.frames
}

// CaptureReader streams frames back out of a capture file.
type CaptureReader struct {
	dec     *cbor.Decoder
	created time.Time
	note    string
}

// NewCaptureReader validates the capture header and returns a reader.
func NewCaptureReader(r io.Reader) (*CaptureReader, error) {
	dec := cbor.NewDecoder(r)
	var header captureHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}
	if header.Magic != captureMagic {
		return nil, fmt.Errorf("not a capture file (magic %q)", header.Magic)
	}
	if header.Version != captureVersion {
		return nil, fmt.Errorf("unsupported capture version %d (want %d)", header.Version, captureVersion)
	}
	return &CaptureReader{dec: dec, created: header.Created, note: header.Note}, nil
}

// Created returns the capture's creation time.
func (cr *CaptureReader) Created() time.Time {
	return cr.created
}

// Note returns the capture's note string.
func (cr *CaptureReader) Note() string {
	return cr.note
}

// Next returns the next recorded frame, io.EOF at the end of the capture.
func (cr *CaptureReader) Next() (*Frame, error) {
	var rec captureRecord
	if err := cr.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read capture record: %w", err)
	}
	return &Frame{
		Kind:      Kind(rec.Kind),
		Channel:   powerbox.Channel(rec.Channel),
		Payload:   rec.Payload,
		Timestamp: rec.At,
	}, nil
}
