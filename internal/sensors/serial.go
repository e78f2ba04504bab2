// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"io"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

type serialSource struct {
	opts serial.OpenOptions
}

// NewSerialSource reads the device from a serial port. Every Next reopens
// the port, so a replugged device is picked up again.
func NewSerialSource(port string, baud int) Source {
	return &serialSource{opts: serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}}
}

func (s *serialSource) Next(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port, err := serial.Open(s.opts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", s.opts.PortName, err)
	}
	log.Printf("sensors: serial port opened on %s at %d baud", s.opts.PortName, s.opts.BaudRate)
	return port, nil
}

func (s *serialSource) Close() error { return nil }
