// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Stanislav Starcha, egg17

package powerbox

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// TestFuzzScalarRoundtrips packs random in-range values through every
// scalar codec and checks the decode lands on the same value.
func TestFuzzScalarRoundtrips(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		n := rng.Intn(maxEncodable + 1)
		if got := Unpack(Pack(Int(n))); !got.Valid || got.Value != n {
			t.Fatalf("round %d: Pack/Unpack of %d gave %+v", i, n, got)
		}

		amps := rng.Intn(655) - 327
		if got := UnpackCurrent(PackCurrent(Int(amps))); !got.Valid || got.Value != amps {
			t.Fatalf("round %d: current roundtrip of %d gave %+v", i, amps, got)
		}

		ver := Version{
			Major: uint8(rng.Intn(8)),
			Minor: uint8(rng.Intn(32)),
			Patch: uint8(rng.Intn(256)),
		}
		if ver == (Version{}) {
			continue // 0.0.0 is the absent sentinel
		}
		got := UnpackVersion(PackVersion(OptVersion{Value: ver, Valid: true}))
		if !got.Valid || got.Value != ver {
			t.Fatalf("round %d: version roundtrip of %+v gave %+v", i, ver, got)
		}
	}
}

const maxEncodable = 65534 // raw 0 is the sentinel, shifting the top of the range down one

// TestFuzzStateFrameRoundtrips encodes random BMS states and checks the
// decoder reproduces them.
func TestFuzzStateFrameRoundtrips(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	optInt := func(bound int) OptInt {
		if rng.Intn(4) == 0 {
			return OptInt{}
		}
		return Int(rng.Intn(bound))
	}
	optBool := func() OptBool {
		switch rng.Intn(3) {
		case 0:
			return OptBool{}
		case 1:
			return Bool(false)
		default:
			return Bool(true)
		}
	}

	for i := 0; i < rounds; i++ {
		want := BMSState{
			Current:        optInt(300),
			Level:          optInt(101),
			AllowCharge:    optBool(),
			AllowDischarge: optBool(),
			MOSTemp:        optInt(120),
			Sensor1Temp:    optInt(120),
			Sensor2Temp:    optInt(120),
			ExternalErrors: uint16(rng.Intn(1 << 16)),
			InternalErrors: uint8(rng.Intn(256)),
		}
		got, err := DecodeBMS(EncodeBMS(want))
		if err != nil {
			t.Fatalf("round %d: decode failed: %v", i, err)
		}
		if got != want {
			t.Fatalf("round %d: roundtrip mismatch\n got %+v\nwant %+v", i, got, want)
		}
	}
}

// TestFuzzHistoryFrameDecoder feeds random buffers to the history decoder;
// it must reject or decode, never panic, and every accepted frame must
// re-encode to a decodable buffer.
func TestFuzzHistoryFrameDecoder(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		buf := make([]byte, rng.Intn(80))
		rng.Read(buf)

		f, err := DecodeHistoryFrame(buf)
		if err != nil {
			continue
		}
		if int(f.Header.Length) != len(f.Samples) {
			t.Fatalf("round %d: header declares %d samples, decoded %d", i, f.Header.Length, len(f.Samples))
		}
		if _, err := DecodeHistoryFrame(EncodeHistoryFrame(f)); err != nil {
			t.Fatalf("round %d: re-encoded frame failed to decode: %v", i, err)
		}
	}
}

// TestFuzzCommandDecoder feeds random writes to the command decoder; it
// must reject or decode, never panic.
func TestFuzzCommandDecoder(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		buf := make([]byte, rng.Intn(12))
		rng.Read(buf)
		cmd, err := DecodeCommand(buf)
		if err != nil {
			continue
		}
		// accessors must tolerate whatever payload came through
		_ = cmd.Bool()
		_ = cmd.Int8()
		_ = cmd.Float32()
		_ = cmd.Text()
	}
}
