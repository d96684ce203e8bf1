// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package station

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// Queue depths per stream class. State frames are full snapshots, so a
// shallow latest-wins queue is enough; history and log frames are
// cumulative and get deeper queues with a warning when one overflows.
const (
	stateQueueDepth  = 4
	streamQueueDepth = 64
)

// Pump delivers inbound payloads to a Session through one bounded queue
// per channel. Each queue has its own goroutine, so frames on the same
// channel are applied strictly in arrival order while different channels
// proceed concurrently. When a queue is full the oldest entry is dropped
// to make room: for state channels the newest full snapshot always wins,
// for history and log channels the drop is logged because it loses data.
type Pump struct {
	sess   *Session
	log    *zap.SugaredLogger
	queues map[powerbox.Channel]chan []byte
	mu     sync.Mutex
}

// NewPump creates a pump for every inbound channel of the session.
func NewPump(sess *Session, logger *zap.SugaredLogger) *Pump {
	p := &Pump{
		sess:   sess,
		log:    logger,
		queues: make(map[powerbox.Channel]chan []byte),
	}
	for _, ch := range powerbox.StateChannels() {
		p.queues[ch] = make(chan []byte, stateQueueDepth)
	}
	p.queues[powerbox.ChannelHistory] = make(chan []byte, streamQueueDepth)
	p.queues[powerbox.ChannelLog] = make(chan []byte, streamQueueDepth)
	for _, ch := range []powerbox.Channel{
		powerbox.ChannelManufacturerName,
		powerbox.ChannelModelNumber,
		powerbox.ChannelFirmwareRevision,
	} {
		p.queues[ch] = make(chan []byte, stateQueueDepth)
	}
	return p
}

// Run processes queued payloads until ctx is cancelled, then resets the
// session (disconnect empties all buffers) and returns.
func (p *Pump) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for ch, q := range p.queues {
		wg.Add(1)
		go func(ch powerbox.Channel, q chan []byte) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case payload := <-q:
					if err := p.sess.Apply(ch, payload); err != nil && p.log != nil {
						p.log.Warnw("frame rejected, keeping previous state",
							"channel", ch.String(), "error", err)
					}
				}
			}
		}(ch, q)
	}
	wg.Wait()
	p.sess.Reset()
}

// Offer enqueues one inbound payload without blocking the transport
// reader. Payloads for channels without a queue are dropped.
func (p *Pump) Offer(ch powerbox.Channel, payload []byte) {
	q, ok := p.queues[ch]
	if !ok {
		if p.log != nil {
			p.log.Debugw("no queue for channel, dropping frame",
				"channel", uint8(ch), "bytes", len(payload))
		}
		return
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)

	// Serialize producers per pump so the evict-then-send below cannot
	// race another Offer into re-filling the queue.
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case q <- buf:
		return
	default:
	}

	// Queue full: evict the oldest, then retry once.
	select {
	case <-q:
	default:
	}
	if (ch == powerbox.ChannelHistory || ch == powerbox.ChannelLog) && p.log != nil {
		p.log.Warnw("stream queue full, dropped oldest frame", "channel", ch.String())
	}
	select {
	case q <- buf:
	default:
	}
}
