// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Stanislav Starcha, egg17

package station

import (
	"testing"

	"github.com/egg17/powerboxctl/pkg/powerbox"
)

// rawLevel packs a percentage for the BMS level metric.
func rawLevel(pct int) uint16 {
	raw, _ := powerbox.EncodeSample(powerbox.ChartBMSLevel, powerbox.Float(float64(pct)))
	return raw
}

// ============================================================
// Patch Frame Tests
// ============================================================

func TestStoreApply_Patch(t *testing.T) {
	s := NewStore()
	ok := s.Apply(powerbox.HistoryFrame{
		Header: powerbox.HistoryHeader{
			Chart:  powerbox.ChartBMSLevel,
			Offset: 10,
			Length: 5,
		},
		Samples: []uint16{rawLevel(50), rawLevel(51), rawLevel(52), rawLevel(53), rawLevel(54)},
	})
	if !ok {
		t.Fatal("known metric rejected")
	}

	buf := s.Samples(powerbox.ChartBMSLevel)
	if len(buf) != powerbox.HistoryLength {
		t.Fatalf("buffer length %d, want %d", len(buf), powerbox.HistoryLength)
	}
	for i := 0; i < 10; i++ {
		if buf[i].Valid {
			t.Fatalf("slot %d before the window should stay absent", i)
		}
	}
	for i := 0; i < 5; i++ {
		want := float64(50 + i)
		if got := buf[10+i]; !got.Valid || got.Value != want {
			t.Errorf("slot %d = %+v, want %v", 10+i, got, want)
		}
	}
	if buf[15].Valid {
		t.Error("slot after the window should stay absent")
	}
}

func TestStoreApply_PatchClampsAtTail(t *testing.T) {
	s := NewStore()
	samples := make([]uint16, 10)
	for i := range samples {
		samples[i] = rawLevel(60 + i)
	}
	s.Apply(powerbox.HistoryFrame{
		Header: powerbox.HistoryHeader{
			Chart:  powerbox.ChartBMSLevel,
			Offset: powerbox.HistoryLength - 3,
			Length: 10,
		},
		Samples: samples,
	})

	buf := s.Samples(powerbox.ChartBMSLevel)
	for i := 0; i < 3; i++ {
		want := float64(60 + i)
		slot := powerbox.HistoryLength - 3 + i
		if got := buf[slot]; !got.Valid || got.Value != want {
			t.Errorf("slot %d = %+v, want %v", slot, got, want)
		}
	}
}

func TestStoreApply_PatchOffsetBeyondBuffer(t *testing.T) {
	s := NewStore()
	s.Apply(powerbox.HistoryFrame{
		Header: powerbox.HistoryHeader{
			Chart:  powerbox.ChartBMSLevel,
			Offset: 0xFF,
			Length: 2,
		},
		Samples: []uint16{rawLevel(1), rawLevel(2)},
	})
	for i, v := range s.Samples(powerbox.ChartBMSLevel) {
		if v.Valid {
			t.Fatalf("slot %d written by an out-of-range patch", i)
		}
	}
}

// ============================================================
// Push Frame Tests
// ============================================================

func TestStoreApply_PushEvictsOldest(t *testing.T) {
	s := NewStore()
	// Seed the whole buffer, oldest value 0 at the head.
	seed := make([]uint16, powerbox.MaxFrameSamples)
	for frame := 0; frame*len(seed) < powerbox.HistoryLength+len(seed); frame++ {
		for i := range seed {
			seed[i] = rawLevel((frame*len(seed) + i) % 100)
		}
		s.Apply(powerbox.HistoryFrame{
			Header: powerbox.HistoryHeader{
				Chart:       powerbox.ChartBMSLevel,
				Incremental: true,
				Length:      uint8(len(seed)),
			},
			Samples: seed,
		})
	}

	before := s.Samples(powerbox.ChartBMSLevel)

	s.Apply(powerbox.HistoryFrame{
		Header: powerbox.HistoryHeader{
			Chart:       powerbox.ChartBMSLevel,
			Incremental: true,
			Length:      2,
		},
		Samples: []uint16{rawLevel(97), rawLevel(98)},
	})

	after := s.Samples(powerbox.ChartBMSLevel)
	n := len(after)
	if after[n-2].Value != 97 || after[n-1].Value != 98 {
		t.Errorf("tail = %+v %+v, want 97 98", after[n-2], after[n-1])
	}
	// Everything else shifted left by two.
	for i := 0; i < n-2; i++ {
		if after[i] != before[i+2] {
			t.Fatalf("slot %d = %+v, want shifted %+v", i, after[i], before[i+2])
		}
	}
}

func TestStoreApply_PushSingleSample(t *testing.T) {
	s := NewStore()
	s.Apply(powerbox.HistoryFrame{
		Header: powerbox.HistoryHeader{
			Chart:       powerbox.ChartInverterPower,
			Data:        powerbox.DataTypeWord,
			Incremental: true,
			Length:      1,
		},
		Samples: []uint16{1201},
	})

	if got := s.Latest(powerbox.ChartInverterPower); !got.Valid || got.Value != 1200 {
		t.Errorf("latest = %+v, want 1200", got)
	}
	buf := s.Samples(powerbox.ChartInverterPower)
	if !buf[len(buf)-1].Valid {
		t.Error("pushed sample should land at the tail")
	}
	if buf[0].Valid {
		t.Error("head should still be absent")
	}
}

// ============================================================
// Routing Tests
// ============================================================

func TestStoreApply_UnknownMetricDropped(t *testing.T) {
	s := NewStore()
	ok := s.Apply(powerbox.HistoryFrame{
		Header:  powerbox.HistoryHeader{Chart: powerbox.ChartType(0x3F), Length: 1},
		Samples: []uint16{5},
	})
	if ok {
		t.Error("unknown metric should report false")
	}
	for _, c := range powerbox.ChartTypes() {
		if got := s.Latest(c); got.Valid {
			t.Fatalf("%s touched by a dropped frame", c)
		}
	}
}

func TestStoreApply_LengthCaps(t *testing.T) {
	s := NewStore()
	// Header claims more samples than the body carries; only the body counts.
	s.Apply(powerbox.HistoryFrame{
		Header:  powerbox.HistoryHeader{Chart: powerbox.ChartBMSLevel, Offset: 0, Length: 10},
		Samples: []uint16{rawLevel(7), rawLevel(8)},
	})
	buf := s.Samples(powerbox.ChartBMSLevel)
	if !buf[0].Valid || !buf[1].Valid || buf[2].Valid {
		t.Errorf("exactly two slots should be written, got %+v %+v %+v", buf[0], buf[1], buf[2])
	}
}

func TestStoreReset(t *testing.T) {
	s := NewStore()
	s.Apply(powerbox.HistoryFrame{
		Header:  powerbox.HistoryHeader{Chart: powerbox.ChartBMSLevel, Length: 1},
		Samples: []uint16{rawLevel(42)},
	})
	s.Reset()
	if got := s.Latest(powerbox.ChartBMSLevel); got.Valid {
		t.Errorf("latest after reset = %+v, want absent", got)
	}
}

func TestStoreLatest_SkipsAbsentTail(t *testing.T) {
	s := NewStore()
	s.Apply(powerbox.HistoryFrame{
		Header:  powerbox.HistoryHeader{Chart: powerbox.ChartBMSLevel, Offset: 50, Length: 1},
		Samples: []uint16{rawLevel(73)},
	})
	if got := s.Latest(powerbox.ChartBMSLevel); !got.Valid || got.Value != 73 {
		t.Errorf("latest = %+v, want 73", got)
	}
}
