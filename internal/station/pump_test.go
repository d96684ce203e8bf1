// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package station

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func pushFrame(value int) []byte {
	raw, _ := powerbox.EncodeSample(powerbox.ChartBMSLevel, powerbox.Float(float64(value)))
	return powerbox.EncodeHistoryFrame(powerbox.HistoryFrame{
		Header: powerbox.HistoryHeader{
			Chart:       powerbox.ChartBMSLevel,
			Incremental: true,
			Length:      1,
		},
		Samples: []uint16{raw},
	})
}

// ============================================================
// Pump Tests
// ============================================================

func TestPump_DeliversInOrder(t *testing.T) {
	sess := newTestSession()
	pump := NewPump(sess, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pump.Run(ctx)
		close(done)
	}()

	for v := 1; v <= 20; v++ {
		pump.Offer(powerbox.ChannelHistory, pushFrame(v))
	}

	waitFor(t, func() bool {
		got := sess.LatestSample(powerbox.ChartBMSLevel)
		return got.Valid && got.Value == 20
	})

	buf := sess.History(powerbox.ChartBMSLevel)
	for i := 0; i < 20; i++ {
		want := float64(i + 1)
		got := buf[len(buf)-20+i]
		if !got.Valid || got.Value != want {
			t.Errorf("slot %d = %+v, want %v", i, got, want)
		}
	}

	cancel()
	<-done
}

func TestPump_DropsOldestWhenFull(t *testing.T) {
	sess := newTestSession()
	pump := NewPump(sess, zap.NewNop().Sugar())

	// Fill the history queue before the pump runs, six frames past its
	// depth; the six oldest must give way.
	total := streamQueueDepth + 6
	for v := 1; v <= total; v++ {
		pump.Offer(powerbox.ChannelHistory, pushFrame(v))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pump.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		got := sess.LatestSample(powerbox.ChartBMSLevel)
		return got.Valid && got.Value == float64(total)
	})

	buf := sess.History(powerbox.ChartBMSLevel)
	kept := buf[len(buf)-streamQueueDepth:]
	for i, got := range kept {
		want := float64(7 + i)
		if !got.Valid || got.Value != want {
			t.Fatalf("slot %d = %+v, want %v (oldest frames should be the dropped ones)", i, got, want)
		}
	}
	if buf[len(buf)-streamQueueDepth-1].Valid {
		t.Error("more samples landed than the queue could hold")
	}

	cancel()
	<-done
}

func TestPump_LatestStateWins(t *testing.T) {
	sess := newTestSession()
	pump := NewPump(sess, zap.NewNop().Sugar())

	// Overflow the shallow state queue before the pump runs; whatever
	// survives, the newest snapshot must be the one applied last.
	for level := 1; level <= stateQueueDepth+3; level++ {
		pump.Offer(powerbox.ChannelBMS, powerbox.EncodeBMS(powerbox.BMSState{
			Level: powerbox.Int(level),
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pump.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		got := sess.Snapshot().BMS.Level
		return got.Valid && got.Value == stateQueueDepth+3
	})

	cancel()
	<-done
}

func TestPump_UnknownChannelDropped(t *testing.T) {
	sess := newTestSession()
	pump := NewPump(sess, zap.NewNop().Sugar())

	// No queue exists for the write-only command channel; the offer must
	// not panic or block.
	pump.Offer(powerbox.ChannelCommand, powerbox.NewRebootCommand())
}

func TestPump_CancelResetsSession(t *testing.T) {
	sess := newTestSession()
	pump := NewPump(sess, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pump.Run(ctx)
		close(done)
	}()

	pump.Offer(powerbox.ChannelBMS, powerbox.EncodeBMS(powerbox.BMSState{
		Level: powerbox.Int(42),
	}))
	waitFor(t, func() bool {
		return sess.Snapshot().BMS.Level.Valid
	})

	cancel()
	<-done

	if sess.Snapshot().BMS.Level.Valid {
		t.Error("session state should be emptied at disconnect")
	}
}

func TestPump_RejectedFrameKeepsState(t *testing.T) {
	sess := newTestSession()
	pump := NewPump(sess, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pump.Run(ctx)
		close(done)
	}()

	pump.Offer(powerbox.ChannelBMS, powerbox.EncodeBMS(powerbox.BMSState{
		Level: powerbox.Int(55),
	}))
	waitFor(t, func() bool {
		return sess.Snapshot().BMS.Level.Valid
	})

	// A short frame is rejected inside the pump goroutine; feed a second
	// valid frame afterwards so there is something to synchronize on.
	pump.Offer(powerbox.ChannelBMS, []byte{0x01})
	pump.Offer(powerbox.ChannelPSU, powerbox.EncodePSU(powerbox.PSUState{
		Active: powerbox.Bool(true),
	}))
	waitFor(t, func() bool {
		return sess.Snapshot().PSU.Active.Valid
	})

	if got := sess.Snapshot().BMS.Level; !got.Valid || got.Value != 55 {
		t.Errorf("bms state lost after a rejected frame: %+v", got)
	}

	cancel()
	<-done
}
