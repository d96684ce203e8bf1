// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

// Package station owns the per-connection state of one powerbox session:
// the five subsystem state records, the history buffers, the device
// information strings, and the debug log stream. All of it is created at
// connect and discarded at disconnect; nothing here persists.
package station

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// maxLogMessages bounds the assembled-log ring kept for readers.
const maxLogMessages = 200

// Session holds every piece of mutable state for one connection. Apply is
// the single mutation entry point; readers take snapshots and must not
// assume ordering across different subsystems. Frames for the same channel
// are applied in arrival order, so whichever of an explicit read and an
// early notification lands last wins.
type Session struct {
	mu sync.RWMutex

	bms      powerbox.BMSState
	psu      powerbox.PSUState
	inverter powerbox.InverterState
	mcu      powerbox.MCUState
	ats      powerbox.ATSState

	seen map[powerbox.Channel]time.Time

	history   *Store
	assembler Assembler
	logs      []LogMessage

	manufacturer string
	model        string
	firmware     string

	log *zap.SugaredLogger
}

// Snapshot is a point-in-time copy of every subsystem state record.
// Fields within one record are consistent (a decode replaces the record
// wholesale); across records there is no ordering guarantee.
type Snapshot struct {
	BMS      powerbox.BMSState
	PSU      powerbox.PSUState
	Inverter powerbox.InverterState
	MCU      powerbox.MCUState
	ATS      powerbox.ATSState

	Seen map[powerbox.Channel]time.Time

	Manufacturer string
	Model        string
	Firmware     string
}

// NewSession creates an empty session.
func NewSession(logger *zap.SugaredLogger) *Session {
	return &Session{
		seen:    make(map[powerbox.Channel]time.Time),
		history: NewStore(),
		log:     logger,
	}
}

// Apply dispatches one inbound payload to its channel's decoder and
// mutates session state. A decode failure leaves the previous state of
// that channel intact and is returned to the caller; unknown history
// metrics are dropped silently by design.
func (s *Session) Apply(ch powerbox.Channel, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ch {
	case powerbox.ChannelBMS:
		state, err := powerbox.DecodeBMS(payload)
		if err != nil {
			return err
		}
		s.bms = state

	case powerbox.ChannelPSU:
		state, err := powerbox.DecodePSU(payload)
		if err != nil {
			return err
		}
		s.psu = state

	case powerbox.ChannelInverter:
		state, err := powerbox.DecodeInverter(payload)
		if err != nil {
			return err
		}
		s.inverter = state

	case powerbox.ChannelMCU:
		state, err := powerbox.DecodeMCU(payload)
		if err != nil {
			return err
		}
		s.mcu = state

	case powerbox.ChannelATS:
		state, err := powerbox.DecodeATS(payload)
		if err != nil {
			return err
		}
		s.ats = state

	case powerbox.ChannelHistory:
		frame, err := powerbox.DecodeHistoryFrame(payload)
		if err != nil {
			return err
		}
		if !s.history.Apply(frame) && s.log != nil {
			s.log.Debugw("dropped history frame for unknown metric",
				"chart", uint8(frame.Header.Chart))
		}

	case powerbox.ChannelLog:
		msg, ok, err := s.assembler.Feed(payload)
		if err != nil {
			return err
		}
		if ok {
			s.appendLog(msg)
		}

	case powerbox.ChannelManufacturerName:
		s.manufacturer = string(payload)
	case powerbox.ChannelModelNumber:
		s.model = string(payload)
	case powerbox.ChannelFirmwareRevision:
		s.firmware = string(payload)

	default:
		return fmt.Errorf("no inbound handling for channel %s (0x%02X)", ch, uint8(ch))
	}

	s.seen[ch] = time.Now()
	return nil
}

// Reset empties the session: all state records, every history buffer, the
// pending log chunk, and the assembled-log ring. Called at disconnect.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bms = powerbox.BMSState{}
	s.psu = powerbox.PSUState{}
	s.inverter = powerbox.InverterState{}
	s.mcu = powerbox.MCUState{}
	s.ats = powerbox.ATSState{}
	s.seen = make(map[powerbox.Channel]time.Time)
	s.history.Reset()
	s.assembler.Reset()
	s.logs = nil
	s.manufacturer = ""
	s.model = ""
	s.firmware = ""
}

// Snapshot copies every state record under one lock acquisition.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[powerbox.Channel]time.Time, len(s.seen))
	for ch, t := range s.seen {
		seen[ch] = t
	}
	return Snapshot{
		BMS:          s.bms,
		PSU:          s.psu,
		Inverter:     s.inverter,
		MCU:          s.mcu,
		ATS:          s.ats,
		Seen:         seen,
		Manufacturer: s.manufacturer,
		Model:        s.model,
		Firmware:     s.firmware,
	}
}

// History returns a copy of the metric's sample buffer, oldest first.
func (s *Session) History(c powerbox.ChartType) []powerbox.OptFloat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Samples(c)
}

// LatestSample returns the newest present sample of the metric.
func (s *Session) LatestSample(c powerbox.ChartType) powerbox.OptFloat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Latest(c)
}

// Logs returns the assembled debug log messages received so far, oldest
// first, capped at maxLogMessages.
func (s *Session) Logs() []LogMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LogMessage, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *Session) appendLog(msg LogMessage) {
	s.logs = append(s.logs, msg)
	if len(s.logs) > maxLogMessages {
		s.logs = s.logs[len(s.logs)-maxLogMessages:]
	}
}
