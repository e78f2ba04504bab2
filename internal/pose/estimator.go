// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pose integrates gyroscope and accelerometer samples into a
// dead-reckoned 6-DoF pose.
//
// Orientation trusts the gyro fully on every step. Position comes from double
// integration of the accelerometer, which diverges quickly, so it is held in
// check by a dead-zone, per-step friction and a zero-velocity update. There
// is no absolute reference (no magnetometer, no vision), so yaw and position
// drift over time.
package pose

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/inertial_tracker/internal/spatial"
)

// ErrNonFiniteSample is returned by Update when a gyro or accel component is
// NaN or infinite. The pose is left untouched.
var ErrNonFiniteSample = errors.New("pose: non-finite sample")

// State is one immutable pose snapshot.
type State struct {
	Position  spatial.Vec3 `json:"position"`
	Rotation  spatial.Quat `json:"rotation"`
	Velocity  spatial.Vec3 `json:"velocity"`
	Timestamp time.Time    `json:"timestamp"`
}

func identity(ts time.Time) *State {
	return &State{Rotation: spatial.Identity, Timestamp: ts}
}

// Estimator owns the pose. Update and Reset are serialised internally;
// State may be called from any goroutine and never blocks on a writer.
type Estimator struct {
	params Params
	now    func() time.Time

	mu    sync.Mutex
	state atomic.Pointer[State]
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithParams overrides DefaultParams.
func WithParams(p Params) Option {
	return func(e *Estimator) { e.params = p }
}

// WithClock sets the clock used for the identity timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) { e.now = now }
}

// New returns an estimator in the identity state.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		params: DefaultParams(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state.Store(identity(e.now()))
	return e
}

// Params returns the tuning in use.
func (e *Estimator) Params() Params {
	return e.params
}

// State returns the latest snapshot.
func (e *Estimator) State() State {
	return *e.state.Load()
}

// Reset discards position and velocity history and returns to identity,
// stamped with the current time.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Store(identity(e.now()))
}

// Update integrates one sample taken at ts. gyro is angular velocity in
// rad/s in the body frame, accel is linear acceleration in m/s² in the body
// frame.
//
// A sample whose time delta is not positive or exceeds MaxStep is dropped
// and reported as false. After a stall the last timestamp moves forward to
// ts so integration resumes with the next sample; it never moves backwards.
func (e *Estimator) Update(gyro, accel spatial.Vec3, ts time.Time) (bool, error) {
	if !gyro.IsFinite() || !accel.IsFinite() {
		return false, ErrNonFiniteSample
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.state.Load()
	elapsed := ts.Sub(cur.Timestamp)
	if elapsed <= 0 {
		return false, nil
	}
	if elapsed > e.params.MaxStep {
		next := *cur
		next.Timestamp = ts
		e.state.Store(&next)
		return false, nil
	}

	e.state.Store(e.step(cur, gyro, accel, elapsed.Seconds(), ts))
	return true, nil
}

func (e *Estimator) step(cur *State, gyro, accel spatial.Vec3, dt float64, ts time.Time) *State {
	p := e.params

	// Small-angle increment with w=1, normalised. The half-angle sin/cos
	// form is deliberately not used.
	half := dt / 2
	dq := spatial.Quat{X: gyro.X * half, Y: gyro.Y * half, Z: gyro.Z * half, W: 1}.Normalize()
	rot := cur.Rotation.Mul(dq).Normalize()

	world := rot.Rotate(accel)
	world.Y -= p.Gravity

	acc := world.Map(func(a float64) float64 {
		if math.Abs(a) < p.DeadZone {
			return 0
		}
		return a
	})

	vel := cur.Velocity.Add(acc.Scale(dt)).Scale(p.Friction)
	if world.All(func(a float64) bool { return math.Abs(a) < p.ZVUThreshold }) {
		vel = vel.Scale(p.ZVUFactor)
	}

	return &State{
		Position:  cur.Position.Add(vel.Scale(dt * p.PositionScale)),
		Rotation:  rot,
		Velocity:  vel,
		Timestamp: ts,
	}
}
