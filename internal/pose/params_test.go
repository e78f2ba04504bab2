// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pose

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultParamsValid(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
}

func TestLoadParams(t *testing.T) {
	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeTuning(t, "friction: 0.9\nmax_step: 500ms\n")
		p, err := LoadParams(path)
		require.NoError(t, err)

		want := DefaultParams()
		want.Friction = 0.9
		want.MaxStep = 500 * time.Millisecond
		assert.Equal(t, want, p)
	})

	t.Run("out of range is rejected", func(t *testing.T) {
		path := writeTuning(t, "zvu_factor: 2\n")
		_, err := LoadParams(path)
		assert.ErrorContains(t, err, "zvu_factor")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeTuning(t, "friction: [1,\n")
		_, err := LoadParams(path)
		assert.ErrorContains(t, err, "failed to parse tuning file")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadParams(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "failed to read tuning file")
	})
}

func TestParamsValidate(t *testing.T) {
	cases := map[string]func(*Params){
		"friction":       func(p *Params) { p.Friction = 1.5 },
		"dead_zone":      func(p *Params) { p.DeadZone = -1 },
		"zvu_threshold":  func(p *Params) { p.ZVUThreshold = -0.1 },
		"position_scale": func(p *Params) { p.PositionScale = -2 },
		"max_step":       func(p *Params) { p.MaxStep = 0 },
		"alpha":          func(p *Params) { p.Alpha = 1.1 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			assert.ErrorContains(t, p.Validate(), field)
		})
	}
}

func TestWithParams(t *testing.T) {
	p := DefaultParams()
	p.Friction = 0.5
	e := New(WithParams(p))
	assert.Equal(t, 0.5, e.Params().Friction)
}
