// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides the device byte streams the relay frames.
package sensors

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/relabs-tech/inertial_tracker/internal/config"
	"github.com/relabs-tech/inertial_tracker/internal/imu"
)

// Source yields device byte streams one after another. Next blocks until a
// stream is available and returns io.EOF once no further stream will come.
type Source interface {
	Next(ctx context.Context) (io.ReadCloser, error)
	Close() error
}

// Open builds the source selected by cfg.Source.
func Open(cfg *config.Config) (Source, error) {
	switch cfg.Source {
	case config.SourceMock:
		interval := time.Duration(cfg.MockSampleInterval) * time.Millisecond
		return Once(func() (io.ReadCloser, error) {
			return NewMockDevice(interval, time.Now().UnixNano()), nil
		}), nil
	case config.SourceSerial:
		return NewSerialSource(cfg.SerialPort, cfg.SerialBaudRate), nil
	case config.SourceTCP:
		return ListenTCP(cfg.SourceAddr)
	case config.SourceStdin:
		return Once(func() (io.ReadCloser, error) { return os.Stdin, nil }), nil
	case config.SourceIMU:
		scale := imu.Scale{AccelLSBPerG: cfg.IMUAccelLSBPerG, GyroLSBPerDPS: cfg.IMUGyroLSBPerDPS}
		interval := time.Duration(cfg.IMUSampleInterval) * time.Millisecond
		return Once(func() (io.ReadCloser, error) {
			src, err := NewIMUSource(cfg.IMUSPIDevice, cfg.IMUCSPin)
			if err != nil {
				return nil, err
			}
			return NewPolledDevice(src, scale, interval), nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

type onceSource struct {
	mu   sync.Mutex
	open func() (io.ReadCloser, error)
	used bool
}

// Once wraps a single stream. The first Next opens it, later calls return
// io.EOF. A failed open may be retried.
func Once(open func() (io.ReadCloser, error)) Source {
	return &onceSource{open: open}
}

func (s *onceSource) Next(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used {
		return nil, io.EOF
	}
	rc, err := s.open()
	if err != nil {
		return nil, err
	}
	s.used = true
	return rc, nil
}

func (s *onceSource) Close() error { return nil }

// pipeDevice runs tick on a ticker and exposes what it writes as a stream.
// A tick error ends the stream with that error.
type pipeDevice struct {
	pr   *io.PipeReader
	pw   *io.PipeWriter
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startPipeDevice(interval time.Duration, tick func(w io.Writer, now time.Time) error) *pipeDevice {
	pr, pw := io.Pipe()
	d := &pipeDevice{
		pr:   pr,
		pw:   pw,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(d.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stop:
				pw.Close()
				return
			case now := <-ticker.C:
				if err := tick(pw, now); err != nil {
					pw.CloseWithError(err)
					return
				}
			}
		}
	}()
	return d
}

func (d *pipeDevice) Read(p []byte) (int, error) {
	return d.pr.Read(p)
}

// Close stops the producer and unblocks any pending Read.
func (d *pipeDevice) Close() error {
	d.once.Do(func() {
		close(d.stop)
		d.pr.Close()
		<-d.done
	})
	return nil
}
