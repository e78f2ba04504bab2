// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spatial

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestQuatMulIdentity(t *testing.T) {
	q := Quat{X: 0.1, Y: -0.2, Z: 0.3, W: 0.9}.Normalize()

	assert.True(t, cmp.Equal(q, Identity.Mul(q), approx))
	assert.True(t, cmp.Equal(q, q.Mul(Identity), approx))
}

func TestQuatMulHamilton(t *testing.T) {
	// i ⊗ j = k
	i := Quat{X: 1}
	j := Quat{Y: 1}
	assert.True(t, cmp.Equal(Quat{Z: 1}, i.Mul(j), approx))
	// j ⊗ i = -k
	assert.True(t, cmp.Equal(Quat{Z: -1}, j.Mul(i), approx))
}

func TestQuatNormalize(t *testing.T) {
	t.Run("scales to unit length", func(t *testing.T) {
		q := Quat{X: 1, Y: 2, Z: 3, W: 4}.Normalize()
		assert.InDelta(t, 1.0, q.Norm(), 1e-12)
	})

	t.Run("zero becomes identity", func(t *testing.T) {
		assert.Equal(t, Identity, Quat{}.Normalize())
	})
}

func TestQuatRotate(t *testing.T) {
	// 90° about Z maps +X onto +Y.
	h := math.Pi / 4
	q := Quat{Z: math.Sin(h), W: math.Cos(h)}

	got := q.Rotate(Vec3{X: 1})
	want := Vec3{Y: 1}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("rotate mismatch (-want +got):\n%s", diff)
	}

	// the conjugate undoes it
	back := q.Conj().Rotate(got)
	assert.True(t, cmp.Equal(Vec3{X: 1}, back, approx))
}

func TestQuatEuler(t *testing.T) {
	roll, pitch, yaw := Identity.Euler()
	assert.Zero(t, roll)
	assert.Zero(t, pitch)
	assert.Zero(t, yaw)

	h := math.Pi / 4
	_, _, yaw = Quat{Z: math.Sin(h), W: math.Cos(h)}.Euler()
	assert.InDelta(t, 90.0, yaw, 1e-9)
}

func TestVec3(t *testing.T) {
	v := Vec3{1, 2, 3}
	assert.Equal(t, Vec3{2, 4, 6}, v.Add(v))
	assert.Equal(t, Vec3{}, v.Sub(v))
	assert.Equal(t, Vec3{0.5, 1, 1.5}, v.Scale(0.5))
	assert.InDelta(t, math.Sqrt(14), v.Norm(), 1e-12)
	assert.Equal(t, Vec3{-1, -2, -3}, v.Map(func(f float64) float64 { return -f }))
	assert.True(t, v.All(func(f float64) bool { return f > 0 }))
	assert.False(t, v.All(func(f float64) bool { return f > 1 }))
}

func TestVec3IsFinite(t *testing.T) {
	assert.True(t, Vec3{1, 2, 3}.IsFinite())
	assert.False(t, Vec3{math.NaN(), 0, 0}.IsFinite())
	assert.False(t, Vec3{0, math.Inf(1), 0}.IsFinite())
	assert.False(t, Vec3{0, 0, math.Inf(-1)}.IsFinite())
}
