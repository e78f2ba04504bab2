// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package record decodes and encodes the JSON records exchanged between the
// sensing device, the relay and the tracker.
//
// A sensor record maps channel names to value vectors:
//
//	{"Motion Accel":{"values":[ax,ay,az]},"Pseudo Gyro":{"values":[gx,gy,gz]}}
//
// An informational record carries a type tag and a message:
//
//	{"type":"info","msg":"connected"}
package record

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relabs-tech/inertial_tracker/internal/spatial"
)

// Channel names the tracker understands. Anything else is ignored.
const (
	ChannelAccel = "Motion Accel"
	ChannelGyro  = "Pseudo Gyro"
)

// TypeInfo tags records that are not sensor samples.
const TypeInfo = "info"

var (
	ErrNotSensor      = errors.New("record: not a sensor record")
	ErrMissingChannel = errors.New("record: missing channel")
	ErrShortVector    = errors.New("record: vector has fewer than 3 values")
)

// Record is one decoded JSON object, keyed by channel name.
type Record map[string]json.RawMessage

// Channel is the payload of one sensor channel.
type Channel struct {
	Values []float64 `json:"values"`
}

// Sample is the pair of vectors the estimator consumes.
type Sample struct {
	Gyro  spatial.Vec3 // rad/s, body frame
	Accel spatial.Vec3 // m/s², body frame
}

type info struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

// Parse decodes a single JSON object.
func Parse(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("record: decode: %w", err)
	}
	if r == nil {
		return nil, errors.New("record: null")
	}
	return r, nil
}

// Type returns the "type" tag, or "" when absent or not a string.
func (r Record) Type() string {
	raw, ok := r["type"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Info returns the message of an informational record.
func (r Record) Info() (string, bool) {
	if r.Type() != TypeInfo {
		return "", false
	}
	var msg string
	if raw, ok := r["msg"]; ok {
		_ = json.Unmarshal(raw, &msg)
	}
	return msg, true
}

// Sample extracts the gyro and accel vectors. Records with neither channel
// return ErrNotSensor; records with only one return ErrMissingChannel.
func (r Record) Sample() (Sample, error) {
	_, hasAccel := r[ChannelAccel]
	_, hasGyro := r[ChannelGyro]
	if !hasAccel && !hasGyro {
		return Sample{}, ErrNotSensor
	}

	accel, err := r.vector(ChannelAccel)
	if err != nil {
		return Sample{}, err
	}
	gyro, err := r.vector(ChannelGyro)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Gyro: gyro, Accel: accel}, nil
}

func (r Record) vector(name string) (spatial.Vec3, error) {
	raw, ok := r[name]
	if !ok {
		return spatial.Vec3{}, fmt.Errorf("%w: %q", ErrMissingChannel, name)
	}
	var ch Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return spatial.Vec3{}, fmt.Errorf("record: channel %q: %w", name, err)
	}
	if len(ch.Values) < 3 {
		return spatial.Vec3{}, fmt.Errorf("%w: %q has %d", ErrShortVector, name, len(ch.Values))
	}
	return spatial.Vec3{X: ch.Values[0], Y: ch.Values[1], Z: ch.Values[2]}, nil
}

// EncodeSample renders s in the device wire format.
func EncodeSample(s Sample) ([]byte, error) {
	return json.Marshal(map[string]Channel{
		ChannelAccel: {Values: []float64{s.Accel.X, s.Accel.Y, s.Accel.Z}},
		ChannelGyro:  {Values: []float64{s.Gyro.X, s.Gyro.Y, s.Gyro.Z}},
	})
}

// NewInfo renders an informational record.
func NewInfo(msg string) []byte {
	b, _ := json.Marshal(info{Type: TypeInfo, Msg: msg})
	return b
}
