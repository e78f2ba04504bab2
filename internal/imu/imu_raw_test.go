// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/inertial_tracker/internal/record"
	"github.com/relabs-tech/inertial_tracker/internal/spatial"
)

func TestIMURawSample(t *testing.T) {
	scale := Scale{AccelLSBPerG: 16384, GyroLSBPerDPS: 131}
	raw := IMURaw{Ax: 0, Ay: 16384, Az: -8192, Gx: 131, Gy: 0, Gz: -262}

	got := raw.Sample(scale)
	want := record.Sample{
		Accel: spatial.Vec3{X: 0, Y: StandardGravity, Z: -StandardGravity / 2},
		Gyro:  spatial.Vec3{X: math.Pi / 180, Y: 0, Z: -2 * math.Pi / 180},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Sample() mismatch (-want +got):\n%s", diff)
	}
}

func TestIMURawZero(t *testing.T) {
	got := IMURaw{}.Sample(Scale{AccelLSBPerG: 2048, GyroLSBPerDPS: 16.4})
	assert.Equal(t, record.Sample{}, got)
}
