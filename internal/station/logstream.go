// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package station

import (
	"fmt"
	"time"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// LogMessage is one fully reassembled debug log message from the station.
type LogMessage struct {
	Severity powerbox.LogSeverity
	Text     string
	At       time.Time
}

// Assembler reassembles chunked debug log notifications into messages.
// The log characteristic carries a single active message at a time, no
// multiplexing, so one pending buffer is all the state there is.
//
// Deployed firmware never sends an end marker for messages that fit in one
// chunk; the next start marker is the only signal the previous message is
// complete. Feed therefore flushes any pending message when a start marker
// arrives.
type Assembler struct {
	active   bool
	severity powerbox.LogSeverity
	buf      []byte
	started  time.Time
}

// Feed consumes one log notification. When a message completes it is
// returned with ok=true; otherwise ok=false and the chunk stays buffered.
func (a *Assembler) Feed(payload []byte) (LogMessage, bool, error) {
	if len(payload) == 0 {
		return LogMessage{}, false, fmt.Errorf("empty log chunk")
	}

	sev, marker := powerbox.SplitLogHeader(payload[0])
	chunk := payload[1:]

	switch marker {
	case powerbox.LogMarkerStart:
		msg, flushed := a.flush()
		a.active = true
		a.severity = sev
		a.buf = append(a.buf[:0], chunk...)
		a.started = time.Now()
		return msg, flushed, nil

	case powerbox.LogMarkerMore:
		if !a.active {
			// Continuation with no start: salvage what we got.
			a.active = true
			a.severity = sev
			a.started = time.Now()
		}
		a.buf = append(a.buf, chunk...)
		return LogMessage{}, false, nil

	case powerbox.LogMarkerEnd:
		if !a.active {
			a.active = true
			a.severity = sev
			a.started = time.Now()
		}
		a.buf = append(a.buf, chunk...)
		msg, flushed := a.flush()
		return msg, flushed, nil

	default:
		return LogMessage{}, false, fmt.Errorf("invalid log chunk marker %d", uint8(marker))
	}
}

// Flush force-completes the pending message, if any. Used at disconnect so
// a trailing single-chunk message is not lost.
func (a *Assembler) Flush() (LogMessage, bool) {
	return a.flush()
}

func (a *Assembler) flush() (LogMessage, bool) {
	if !a.active {
		return LogMessage{}, false
	}
	msg := LogMessage{
		Severity: a.severity,
		Text:     string(a.buf),
		At:       a.started,
	}
	a.active = false
	a.buf = a.buf[:0]
	return msg, true
}

// Reset discards any pending message.
func (a *Assembler) Reset() {
	a.active = false
	a.buf = a.buf[:0]
}
