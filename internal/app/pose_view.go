// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"github.com/relabs-tech/inertial_tracker/internal/pose"
)

// PoseView is the JSON shape served on /api/pose and published on MQTT.
type PoseView struct {
	pose.State

	// Euler angles in degrees, derived from Rotation.
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

func newPoseView(s pose.State) PoseView {
	roll, pitch, yaw := s.Rotation.Euler()
	return PoseView{State: s, Roll: roll, Pitch: pitch, Yaw: yaw}
}

func formatPose(p PoseView) string {
	return fmt.Sprintf(
		"[POSE]  X=%7.3f  Y=%7.3f  Z=%7.3f  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f  |v|=%.3f",
		p.Position.X, p.Position.Y, p.Position.Z,
		p.Roll, p.Pitch, p.Yaw,
		p.Velocity.Norm(),
	)
}
