// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/relabs-tech/inertial_tracker/internal/record"
	"github.com/relabs-tech/inertial_tracker/internal/spatial"
)

// heartbeatEvery is how many samples the mock device sends between info
// records.
const heartbeatEvery = 120

// MockDevice imitates the handheld sender: sensor records written back to
// back, sometimes newline separated and sometimes not, delivered in chunks
// that ignore record boundaries.
type MockDevice struct {
	*pipeDevice
}

// NewMockDevice starts a device producing one sample per interval.
func NewMockDevice(interval time.Duration, seed int64) *MockDevice {
	g := &mockGenerator{
		rng:   rand.New(rand.NewSource(seed)),
		start: time.Now(),
	}
	return &MockDevice{pipeDevice: startPipeDevice(interval, g.tick)}
}

type mockGenerator struct {
	rng     *rand.Rand
	start   time.Time
	count   int
	pending []byte
}

func (g *mockGenerator) tick(w io.Writer, now time.Time) error {
	g.pending = append(g.pending, g.frame(now.Sub(g.start).Seconds())...)

	// flush a random prefix, the rest waits for the next tick
	n := 1 + g.rng.Intn(len(g.pending))
	for _, c := range g.split(g.pending[:n]) {
		if _, err := w.Write(c); err != nil {
			return err
		}
	}
	g.pending = append(g.pending[:0], g.pending[n:]...)
	return nil
}

// frame returns the next record with an optional trailing newline.
func (g *mockGenerator) frame(elapsed float64) []byte {
	g.count++
	var b []byte
	if g.count%heartbeatEvery == 0 {
		b = record.NewInfo("mock device alive")
	} else {
		b, _ = record.EncodeSample(mockSample(elapsed))
	}
	if g.rng.Intn(2) == 0 {
		b = append(b, '\n')
	}
	return b
}

// split cuts b into one to four pieces at random offsets.
func (g *mockGenerator) split(b []byte) [][]byte {
	var out [][]byte
	for parts := 1 + g.rng.Intn(4); parts > 1 && len(b) > 1; parts-- {
		cut := 1 + g.rng.Intn(len(b)-1)
		out = append(out, b[:cut])
		b = b[cut:]
	}
	return append(out, b)
}

// mockSample is a device held roughly level and waved slowly.
func mockSample(t float64) record.Sample {
	return record.Sample{
		Accel: spatial.Vec3{
			X: 0.3 * math.Sin(t),
			Y: 9.81 + 0.2*math.Cos(1.3*t),
			Z: 0.1 * math.Sin(0.7*t),
		},
		Gyro: spatial.Vec3{
			X: 0.2 * math.Sin(t),
			Y: 0.5 * math.Cos(0.7*t),
			Z: 0.1 * math.Sin(0.5*t),
		},
	}
}
