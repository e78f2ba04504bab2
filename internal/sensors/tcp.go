// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	log "github.com/sirupsen/logrus"
)

// TCPSource accepts device connections one at a time.
type TCPSource struct {
	ln net.Listener
}

func ListenTCP(addr string) (*TCPSource, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for device on %s: %w", addr, err)
	}
	log.Printf("sensors: waiting for device connections on %s", ln.Addr())
	return &TCPSource{ln: ln}, nil
}

// Addr is the bound listen address.
func (s *TCPSource) Addr() net.Addr {
	return s.ln.Addr()
}

// Next waits for the next device connection. Cancelling ctx closes the
// listener.
func (s *TCPSource) Next(ctx context.Context) (io.ReadCloser, error) {
	stop := context.AfterFunc(ctx, func() { s.ln.Close() })
	defer stop()

	conn, err := s.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("accept device connection: %w", err)
	}
	log.Printf("sensors: device connected from %s", conn.RemoteAddr())
	return conn, nil
}

func (s *TCPSource) Close() error {
	return s.ln.Close()
}
