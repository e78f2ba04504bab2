// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_tracker/internal/spatial"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

var gravityOnly = spatial.Vec3{Y: 9.81}

func TestNewIsIdentity(t *testing.T) {
	e := New(WithClock(fixedClock(t0)))
	s := e.State()

	assert.Equal(t, spatial.Vec3{}, s.Position)
	assert.Equal(t, spatial.Vec3{}, s.Velocity)
	assert.Equal(t, spatial.Identity, s.Rotation)
	assert.Equal(t, t0, s.Timestamp)
	assert.Equal(t, DefaultParams(), e.Params())
}

func TestUpdateUnitNormInvariant(t *testing.T) {
	e := New(WithClock(fixedClock(t0)))
	rng := rand.New(rand.NewSource(7))

	ts := t0
	for i := 0; i < 5000; i++ {
		ts = ts.Add(time.Duration(1+rng.Intn(50)) * time.Millisecond)
		gyro := spatial.Vec3{X: rng.NormFloat64() * 5, Y: rng.NormFloat64() * 5, Z: rng.NormFloat64() * 5}
		accel := spatial.Vec3{X: rng.NormFloat64(), Y: 9.81 + rng.NormFloat64(), Z: rng.NormFloat64()}

		ok, err := e.Update(gyro, accel, ts)
		require.NoError(t, err)
		require.True(t, ok)
		require.InDelta(t, 1.0, e.State().Rotation.Norm(), 1e-6, "step %d", i)
	}
}

func TestReset(t *testing.T) {
	now := t0
	e := New(WithClock(func() time.Time { return now }))

	for i := 1; i <= 10; i++ {
		_, err := e.Update(spatial.Vec3{X: 1, Z: 2}, spatial.Vec3{X: 3, Y: 12}, t0.Add(time.Duration(i)*20*time.Millisecond))
		require.NoError(t, err)
	}
	require.NotEqual(t, spatial.Vec3{}, e.State().Position)

	now = t0.Add(time.Minute)
	e.Reset()
	s := e.State()
	assert.Equal(t, spatial.Vec3{}, s.Position)
	assert.Equal(t, spatial.Vec3{}, s.Velocity)
	assert.Equal(t, spatial.Identity, s.Rotation)
	assert.Equal(t, now, s.Timestamp)

	// idempotent
	e.Reset()
	assert.Equal(t, s, e.State())
}

func TestUpdateTimeGuard(t *testing.T) {
	seed := func(t *testing.T) (*Estimator, State) {
		e := New(WithClock(fixedClock(t0)))
		ok, err := e.Update(spatial.Vec3{X: 0.5}, spatial.Vec3{X: 4, Y: 9.81}, t0.Add(100*time.Millisecond))
		require.NoError(t, err)
		require.True(t, ok)
		return e, e.State()
	}

	t.Run("same timestamp is dropped", func(t *testing.T) {
		e, before := seed(t)
		ok, err := e.Update(spatial.Vec3{X: 3}, spatial.Vec3{X: 50}, before.Timestamp)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, before, e.State())
	})

	t.Run("earlier timestamp is dropped and not adopted", func(t *testing.T) {
		e, before := seed(t)
		ok, err := e.Update(spatial.Vec3{X: 3}, spatial.Vec3{X: 50}, before.Timestamp.Add(-time.Second))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, before, e.State())
	})

	t.Run("stall is dropped but timestamp advances", func(t *testing.T) {
		e, before := seed(t)
		stalled := before.Timestamp.Add(1500 * time.Millisecond)
		ok, err := e.Update(spatial.Vec3{X: 3}, spatial.Vec3{X: 50}, stalled)
		require.NoError(t, err)
		assert.False(t, ok)

		after := e.State()
		assert.Equal(t, before.Position, after.Position)
		assert.Equal(t, before.Velocity, after.Velocity)
		assert.Equal(t, before.Rotation, after.Rotation)
		assert.Equal(t, stalled, after.Timestamp)

		ok, err = e.Update(spatial.Vec3{}, gravityOnly, stalled.Add(10*time.Millisecond))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("exactly max step is integrated", func(t *testing.T) {
		e, before := seed(t)
		ok, err := e.Update(spatial.Vec3{}, gravityOnly, before.Timestamp.Add(time.Second))
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestUpdateRejectsNonFinite(t *testing.T) {
	cases := map[string]struct {
		gyro, accel spatial.Vec3
	}{
		"nan gyro":  {gyro: spatial.Vec3{X: math.NaN()}, accel: gravityOnly},
		"inf accel": {accel: spatial.Vec3{Z: math.Inf(1)}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := New(WithClock(fixedClock(t0)))
			before := e.State()
			ok, err := e.Update(tc.gyro, tc.accel, t0.Add(10*time.Millisecond))
			assert.ErrorIs(t, err, ErrNonFiniteSample)
			assert.False(t, ok)
			assert.Equal(t, before, e.State())
		})
	}
}

func TestUpdateIntegratesPosition(t *testing.T) {
	e := New(WithClock(fixedClock(t0)))
	ok, err := e.Update(spatial.Vec3{}, spatial.Vec3{X: 2, Y: 9.81}, t0.Add(100*time.Millisecond))
	require.NoError(t, err)
	require.True(t, ok)

	s := e.State()
	// v = 2 * 0.1 * 0.95, p = v * 0.1 * 0.5
	assert.InDelta(t, 0.19, s.Velocity.X, 1e-12)
	assert.InDelta(t, 0.0095, s.Position.X, 1e-12)
	assert.Zero(t, s.Velocity.Y)
	assert.Zero(t, s.Velocity.Z)
}

func TestUpdateDeadZone(t *testing.T) {
	e := New(WithClock(fixedClock(t0)))
	_, err := e.Update(spatial.Vec3{}, spatial.Vec3{X: 5, Y: 9.81}, t0.Add(100*time.Millisecond))
	require.NoError(t, err)
	prev := e.State().Velocity
	require.NotZero(t, prev.X)

	// every world component is below the dead-zone but above the ZVU
	// threshold, so only friction applies
	accel := spatial.Vec3{X: 0.15, Y: 9.81 - 0.15, Z: 0.19}
	ok, err := e.Update(spatial.Vec3{}, accel, t0.Add(200*time.Millisecond))
	require.NoError(t, err)
	require.True(t, ok)

	got := e.State().Velocity
	assert.InDelta(t, prev.X*0.95, got.X, 1e-12)
	assert.InDelta(t, 0, got.Y, 1e-12)
	assert.InDelta(t, 0, got.Z, 1e-12)
}

func TestUpdateZeroVelocityUpdate(t *testing.T) {
	e := New(WithClock(fixedClock(t0)))
	_, err := e.Update(spatial.Vec3{}, spatial.Vec3{X: 5, Y: 9.81}, t0.Add(100*time.Millisecond))
	require.NoError(t, err)
	prev := e.State().Velocity

	ok, err := e.Update(spatial.Vec3{}, spatial.Vec3{X: 0.05, Y: 9.81}, t0.Add(200*time.Millisecond))
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, prev.X*0.95*0.5, e.State().Velocity.X, 1e-12)
}

func TestUpdateIntegratesGyro(t *testing.T) {
	e := New(WithClock(fixedClock(t0)))
	ts := t0
	for i := 0; i < 100; i++ {
		ts = ts.Add(10 * time.Millisecond)
		ok, err := e.Update(spatial.Vec3{Z: 1}, gravityOnly, ts)
		require.NoError(t, err)
		require.True(t, ok)
	}

	roll, pitch, yaw := e.State().Rotation.Euler()
	assert.InDelta(t, 0, roll, 1e-9)
	assert.InDelta(t, 0, pitch, 1e-9)
	// 1 rad/s for 1 s, small-angle steps
	assert.InDelta(t, 57.2958, yaw, 0.05)
}

func TestGravityOnlyStaysAtRest(t *testing.T) {
	e := New(WithClock(fixedClock(t0)))
	step := time.Second / 60

	ts := t0
	for i := 0; i < 60; i++ {
		ts = ts.Add(step)
		ok, err := e.Update(spatial.Vec3{}, gravityOnly, ts)
		require.NoError(t, err)
		require.True(t, ok)
	}

	s := e.State()
	assert.InDelta(t, 1.0, s.Rotation.W, 1e-12)
	assert.InDelta(t, 0, s.Rotation.X, 1e-12)
	assert.InDelta(t, 0, s.Rotation.Y, 1e-12)
	assert.InDelta(t, 0, s.Rotation.Z, 1e-12)
	assert.InDelta(t, 0, s.Velocity.Norm(), 1e-9)
	assert.InDelta(t, 0, s.Position.Norm(), 1e-9)
	assert.Equal(t, ts, s.Timestamp)
}

func TestStateSnapshotsAreConsistent(t *testing.T) {
	e := New(WithClock(fixedClock(t0)))

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			s := e.State()
			if math.Abs(s.Rotation.Norm()-1) > 1e-6 {
				t.Errorf("reader saw non-unit rotation %v", s.Rotation)
				return
			}
		}
	}()

	ts := t0
	for i := 0; i < 2000; i++ {
		ts = ts.Add(5 * time.Millisecond)
		_, err := e.Update(spatial.Vec3{X: 2, Y: -1, Z: 0.5}, gravityOnly, ts)
		require.NoError(t, err)
		if i%500 == 0 {
			e.Reset()
			ts = t0
		}
	}
	close(done)
	wg.Wait()
}

func TestSnapshotIsACopy(t *testing.T) {
	e := New(WithClock(fixedClock(t0)))
	s := e.State()
	s.Position.X = 42
	s.Rotation = spatial.Quat{X: 1}

	assert.Equal(t, spatial.Vec3{}, e.State().Position)
	assert.Equal(t, spatial.Identity, e.State().Rotation)
}
