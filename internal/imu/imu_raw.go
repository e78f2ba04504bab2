// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"

	"github.com/relabs-tech/inertial_tracker/internal/record"
	"github.com/relabs-tech/inertial_tracker/internal/spatial"
)

// StandardGravity is used to turn g into m/s².
const StandardGravity = 9.80665

// IMURaw represents a single raw accel+gyro sample in sensor counts.
type IMURaw struct {
	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// Scale converts counts to physical units for the configured full-scale
// range, e.g. 16384 LSB/g and 131 LSB/(°/s) at ±2g / ±250°/s.
type Scale struct {
	AccelLSBPerG  float64
	GyroLSBPerDPS float64
}

// Sample returns accel in m/s² and gyro in rad/s.
func (r IMURaw) Sample(s Scale) record.Sample {
	accel := func(v int16) float64 { return float64(v) / s.AccelLSBPerG * StandardGravity }
	gyro := func(v int16) float64 { return float64(v) / s.GyroLSBPerDPS * math.Pi / 180 }
	return record.Sample{
		Accel: spatial.Vec3{X: accel(r.Ax), Y: accel(r.Ay), Z: accel(r.Az)},
		Gyro:  spatial.Vec3{X: gyro(r.Gx), Y: gyro(r.Gy), Z: gyro(r.Gz)},
	}
}

// IMURawSource is anything that can be polled for raw samples.
type IMURawSource interface {
	NextRaw() (IMURaw, error)
}
