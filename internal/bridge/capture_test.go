// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package bridge

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// ============================================================
// Capture Roundtrip Tests
// ============================================================

func TestCapture_Roundtrip(t *testing.T) {
	var buf bytes.Buffer

	w, err := NewCaptureWriter(&buf, "bench session")
	if err != nil {
		t.Fatalf("writer failed: %v", err)
	}

	base := time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC)
	want := []*Frame{
		{Kind: KindNotify, Channel: powerbox.ChannelBMS, Payload: powerbox.EncodeBMS(powerbox.BMSState{Level: powerbox.Int(87)}), Timestamp: base},
		{Kind: KindWrite, Channel: powerbox.ChannelCommand, Payload: powerbox.NewRebootCommand(), Timestamp: base.Add(time.Second)},
		{Kind: KindReadResponse, Channel: powerbox.ChannelModelNumber, Payload: []byte("PBX-1500"), Timestamp: base.Add(2 * time.Second)},
	}
	for _, f := range want {
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if w.Frames() != len(want) {
		t.Errorf("writer counted %d frames, want %d", w.Frames(), len(want))
	}

	r, err := NewCaptureReader(&buf)
	if err != nil {
		t.Fatalf("reader failed: %v", err)
	}
	if r.Note() != "bench session" {
		t.Errorf("note = %q", r.Note())
	}
	if r.Created().IsZero() {
		t.Error("header should carry a creation time")
	}

	for i, wf := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("record %d failed: %v", i, err)
		}
		if got.Kind != wf.Kind || got.Channel != wf.Channel {
			t.Errorf("record %d kind/channel = %v/%v", i, got.Kind, got.Channel)
		}
		if !bytes.Equal(got.Payload, wf.Payload) {
			t.Errorf("record %d payload % X, want % X", i, got.Payload, wf.Payload)
		}
		if !got.Timestamp.Equal(wf.Timestamp) {
			t.Errorf("record %d timestamp %v, want %v", i, got.Timestamp, wf.Timestamp)
		}
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end of capture, got %v", err)
	}
}

func TestCapture_RejectsForeignFile(t *testing.T) {
	if _, err := NewCaptureReader(bytes.NewReader([]byte("not-cbor-at-all"))); err == nil {
		t.Error("garbage input should be rejected")
	}
}

func TestCapture_RejectsWrongMagic(t *testing.T) {
	var buf bytes.Buffer
	// A valid capture written under a different magic must not open.
	w, err := NewCaptureWriter(&buf, "")
	if err != nil {
		t.Fatalf("writer failed: %v", err)
	}
	_ = w

	raw := buf.Bytes()
	idx := bytes.Index(raw, []byte(captureMagic))
	if idx < 0 {
		t.Fatal("magic not found in header")
	}
	copy(raw[idx:], "XXXCAP")

	if _, err := NewCaptureReader(bytes.NewReader(raw)); err == nil {
		t.Error("wrong magic should be rejected")
	}
}
