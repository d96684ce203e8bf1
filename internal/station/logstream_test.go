// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package station

import (
	"strings"
	"testing"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

func chunk(sev powerbox.LogSeverity, marker powerbox.LogMarker, text string) []byte {
	return append([]byte{powerbox.MakeLogHeader(sev, marker)}, text...)
}

// ============================================================
// Assembler Tests
// ============================================================

func TestAssembler_MultiChunkMessage(t *testing.T) {
	var a Assembler

	if _, ok, err := a.Feed(chunk(powerbox.LogError, powerbox.LogMarkerStart, "inverter fan ")); ok || err != nil {
		t.Fatalf("start chunk should buffer, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := a.Feed(chunk(powerbox.LogError, powerbox.LogMarkerMore, "stalled at ")); ok || err != nil {
		t.Fatalf("more chunk should buffer, got ok=%v err=%v", ok, err)
	}
	msg, ok, err := a.Feed(chunk(powerbox.LogError, powerbox.LogMarkerEnd, "3100 rpm"))
	if err != nil || !ok {
		t.Fatalf("end chunk should flush, got ok=%v err=%v", ok, err)
	}
	if msg.Severity != powerbox.LogError {
		t.Errorf("severity = %d, want error", msg.Severity)
	}
	if msg.Text != "inverter fan stalled at 3100 rpm" {
		t.Errorf("text = %q", msg.Text)
	}
	if msg.At.IsZero() {
		t.Error("timestamp should be set at the start chunk")
	}
}

func TestAssembler_StartFlushesPendingSingleChunk(t *testing.T) {
	// Deployed firmware sends single-chunk messages with a lone start
	// marker; the next start is the only completion signal.
	var a Assembler

	if _, ok, _ := a.Feed(chunk(powerbox.LogInfo, powerbox.LogMarkerStart, "boot ok")); ok {
		t.Fatal("first start chunk has nothing to flush")
	}
	msg, ok, err := a.Feed(chunk(powerbox.LogDebug, powerbox.LogMarkerStart, "wifi up"))
	if err != nil || !ok {
		t.Fatalf("second start should flush the first message, got ok=%v err=%v", ok, err)
	}
	if msg.Severity != powerbox.LogInfo || msg.Text != "boot ok" {
		t.Errorf("flushed %+v, want the first message", msg)
	}

	// The second message is still pending.
	msg, ok = a.Flush()
	if !ok || msg.Text != "wifi up" || msg.Severity != powerbox.LogDebug {
		t.Errorf("Flush gave %+v/%v, want the pending message", msg, ok)
	}
}

func TestAssembler_SalvagesMissingStart(t *testing.T) {
	var a Assembler
	msg, ok, err := a.Feed(chunk(powerbox.LogWarning, powerbox.LogMarkerEnd, "tail only"))
	if err != nil || !ok {
		t.Fatalf("lone end chunk should still flush, got ok=%v err=%v", ok, err)
	}
	if msg.Text != "tail only" || msg.Severity != powerbox.LogWarning {
		t.Errorf("salvaged %+v", msg)
	}
}

func TestAssembler_InvalidMarker(t *testing.T) {
	var a Assembler
	if _, _, err := a.Feed([]byte{powerbox.MakeLogHeader(powerbox.LogInfo, powerbox.LogMarker(5))}); err == nil {
		t.Error("invalid marker should error")
	}
	if _, _, err := a.Feed(nil); err == nil {
		t.Error("empty chunk should error")
	}
}

func TestAssembler_Reset(t *testing.T) {
	var a Assembler
	a.Feed(chunk(powerbox.LogInfo, powerbox.LogMarkerStart, "half a mess"))
	a.Reset()
	if _, ok := a.Flush(); ok {
		t.Error("reset should discard the pending message")
	}
}

func TestAssembler_RoundtripsEncoder(t *testing.T) {
	// A message chunked by the station-side encoder reassembles verbatim,
	// multi-byte runes split across chunks included.
	var a Assembler
	msg := "температура " + strings.Repeat("батареї ", 6) + "в нормі"

	var got LogMessage
	var done bool
	for _, c := range powerbox.EncodeLogMessage(powerbox.LogInfo, msg) {
		m, ok, err := a.Feed(c)
		if err != nil {
			t.Fatalf("feed failed: %v", err)
		}
		if ok {
			got, done = m, true
		}
	}
	if !done {
		// single-chunk path: only the next start (or a flush) completes it
		got, done = a.Flush()
	}
	if !done || got.Text != msg {
		t.Errorf("reassembled %q, want %q", got.Text, msg)
	}
}
