// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_tracker/internal/spatial"
)

const fixture = `{"Motion Accel":{"values":[0.1,9.8,-0.2,17]},"Pseudo Gyro":{"values":[0.01,0.02,0.03]},"Light":{"values":[400]}}`

func TestParseSensorRecord(t *testing.T) {
	r, err := Parse([]byte(fixture))
	require.NoError(t, err)

	assert.Equal(t, "", r.Type())
	_, isInfo := r.Info()
	assert.False(t, isInfo)

	s, err := r.Sample()
	require.NoError(t, err)
	assert.Equal(t, spatial.Vec3{X: 0.1, Y: 9.8, Z: -0.2}, s.Accel)
	assert.Equal(t, spatial.Vec3{X: 0.01, Y: 0.02, Z: 0.03}, s.Gyro)
}

func TestParseInfoRecord(t *testing.T) {
	r, err := Parse(NewInfo("relay online"))
	require.NoError(t, err)

	msg, ok := r.Info()
	assert.True(t, ok)
	assert.Equal(t, "relay online", msg)

	_, err = r.Sample()
	assert.ErrorIs(t, err, ErrNotSensor)
}

func TestSampleErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"only accel", `{"Motion Accel":{"values":[1,2,3]}}`, ErrMissingChannel},
		{"only gyro", `{"Pseudo Gyro":{"values":[1,2,3]}}`, ErrMissingChannel},
		{"short vector", `{"Motion Accel":{"values":[1,2]},"Pseudo Gyro":{"values":[1,2,3]}}`, ErrShortVector},
		{"unrelated", `{"a":1}`, ErrNotSensor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Parse([]byte(tc.in))
			require.NoError(t, err)
			_, err = r.Sample()
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("bad channel payload", func(t *testing.T) {
		r, err := Parse([]byte(`{"Motion Accel":{"values":"x"},"Pseudo Gyro":{"values":[1,2,3]}}`))
		require.NoError(t, err)
		_, err = r.Sample()
		assert.ErrorContains(t, err, `channel "Motion Accel"`)
	})
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{`[1,2]`, `{"a":`, `null`, ``} {
		_, err := Parse([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestTypeNotString(t *testing.T) {
	r, err := Parse([]byte(`{"type":5}`))
	require.NoError(t, err)
	assert.Equal(t, "", r.Type())
}

func TestEncodeSample(t *testing.T) {
	in := Sample{
		Gyro:  spatial.Vec3{X: 0.5, Y: -0.5, Z: 1},
		Accel: spatial.Vec3{X: 0, Y: 9.81, Z: 0.25},
	}
	b, err := EncodeSample(in)
	require.NoError(t, err)

	r, err := Parse(b)
	require.NoError(t, err)
	got, err := r.Sample()
	require.NoError(t, err)
	assert.Equal(t, in, got)
}
