// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package station

import (
	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// Store owns one fixed-length sample buffer per trackable metric. Buffers
// start all-absent and keep their length for the whole session: a patch
// frame overwrites a window in place, a push frame appends at the tail and
// evicts the same count from the head.
//
// Store is not safe for concurrent use on its own; Session serializes
// access to it.
type Store struct {
	buffers map[powerbox.ChartType][]powerbox.OptFloat
}

// NewStore creates a store with an empty buffer for every trackable metric.
func NewStore() *Store {
	s := &Store{buffers: make(map[powerbox.ChartType][]powerbox.OptFloat)}
	for _, c := range powerbox.ChartTypes() {
		s.buffers[c] = make([]powerbox.OptFloat, powerbox.HistoryLength)
	}
	return s
}

// Reset returns every buffer to the all-absent state.
func (s *Store) Reset() {
	for _, buf := range s.buffers {
		for i := range buf {
			buf[i] = powerbox.OptFloat{}
		}
	}
}

// Apply routes one decoded history frame into its metric's buffer. Unknown
// chart types are dropped without touching any buffer and report false, so
// newer firmware can stream metrics this client does not know about.
// Out-of-range patch windows are clamped to the buffer bounds.
func (s *Store) Apply(f powerbox.HistoryFrame) bool {
	buf, ok := s.buffers[f.Header.Chart]
	if !ok {
		return false
	}

	length := int(f.Header.Length)
	if length > len(f.Samples) {
		length = len(f.Samples)
	}
	if length > powerbox.MaxFrameSamples {
		length = powerbox.MaxFrameSamples
	}

	decoded := make([]powerbox.OptFloat, length)
	for i := 0; i < length; i++ {
		decoded[i], _ = powerbox.DecodeSample(f.Header.Chart, f.Samples[i])
	}

	if f.Header.Incremental {
		s.push(buf, decoded)
	} else {
		s.patch(buf, int(f.Header.Offset), decoded)
	}
	return true
}

// patch overwrites a contiguous window at offset, clamped to the buffer.
func (s *Store) patch(buf []powerbox.OptFloat, offset int, samples []powerbox.OptFloat) {
	if offset >= len(buf) {
		return
	}
	if offset+len(samples) > len(buf) {
		samples = samples[:len(buf)-offset]
	}
	copy(buf[offset:], samples)
}

// push appends samples at the tail and evicts the same count from the
// head, keeping the buffer length invariant.
func (s *Store) push(buf []powerbox.OptFloat, samples []powerbox.OptFloat) {
	if len(samples) >= len(buf) {
		copy(buf, samples[len(samples)-len(buf):])
		return
	}
	copy(buf, buf[len(samples):])
	copy(buf[len(buf)-len(samples):], samples)
}

// Samples returns a copy of the metric's buffer, oldest first. Unknown
// metrics return nil.
func (s *Store) Samples(c powerbox.ChartType) []powerbox.OptFloat {
	buf, ok := s.buffers[c]
	if !ok {
		return nil
	}
	out := make([]powerbox.OptFloat, len(buf))
	copy(out, buf)
	return out
}

// Latest returns the newest present sample of the metric, Valid=false when
// the buffer holds no samples yet.
func (s *Store) Latest(c powerbox.ChartType) powerbox.OptFloat {
	buf, ok := s.buffers[c]
	if !ok {
		return powerbox.OptFloat{}
	}
	for i := len(buf) - 1; i >= 0; i-- {
		if buf[i].Valid {
			return buf[i]
		}
	}
	return powerbox.OptFloat{}
}
