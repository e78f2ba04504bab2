// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_tracker/internal/pose"
	"github.com/relabs-tech/inertial_tracker/internal/record"
)

// ErrEmptyAddress is returned by Connect when no relay URL is given.
var ErrEmptyAddress = errors.New("relay address is empty")

const statusLogSize = 50

// TrackerStatus is served on /api/status.
type TrackerStatus struct {
	URL       string   `json:"url"`
	Connected bool     `json:"connected"`
	Accepted  uint64   `json:"accepted"`
	Rejected  uint64   `json:"rejected"`
	Log       []string `json:"log"`
}

// Tracker connects to a relay, feeds sensor records into the estimator and
// keeps a short log of connection events.
type Tracker struct {
	est    *pose.Estimator
	dialer *websocket.Dialer
	retry  time.Duration
	now    func() time.Time

	// ctl serialises Connect and Disconnect
	ctl sync.Mutex

	mu        sync.Mutex
	url       string
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
	events    []string

	haveSample atomic.Bool
	accepted   atomic.Uint64
	rejected   atomic.Uint64
}

func NewTracker(est *pose.Estimator, retry time.Duration) *Tracker {
	return &Tracker{
		est:    est,
		dialer: websocket.DefaultDialer,
		retry:  retry,
		now:    time.Now,
	}
}

// Connect drops any current connection and starts following url. The
// connection is retried every retry interval until Disconnect.
func (t *Tracker) Connect(url string) error {
	if url == "" {
		t.logEvent("connect failed: %v", ErrEmptyAddress)
		return ErrEmptyAddress
	}
	t.ctl.Lock()
	defer t.ctl.Unlock()
	t.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	t.mu.Lock()
	t.url = url
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)
		t.follow(ctx, url)
	}()
	return nil
}

// Disconnect stops the connection loop and waits for it to exit.
func (t *Tracker) Disconnect() {
	t.ctl.Lock()
	defer t.ctl.Unlock()
	t.stop()
}

func (t *Tracker) stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Reset returns the estimator to the identity pose.
func (t *Tracker) Reset() {
	t.est.Reset()
	t.logEvent("pose reset")
}

// Pose returns the latest snapshot, and false until a sample was accepted.
func (t *Tracker) Pose() (pose.State, bool) {
	return t.est.State(), t.haveSample.Load()
}

func (t *Tracker) Status() TrackerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TrackerStatus{
		URL:       t.url,
		Connected: t.connected,
		Accepted:  t.accepted.Load(),
		Rejected:  t.rejected.Load(),
		Log:       append([]string(nil), t.events...),
	}
}

// HandleRecord applies one relayed record. Info records only reach the
// log; records without sensor channels are ignored.
func (t *Tracker) HandleRecord(b []byte) {
	rec, err := record.Parse(b)
	if err != nil {
		log.Debugf("tracker: %v", err)
		return
	}
	if msg, ok := rec.Info(); ok {
		t.logEvent("relay: %s", msg)
		return
	}
	s, err := rec.Sample()
	switch {
	case errors.Is(err, record.ErrNotSensor):
		return
	case err != nil:
		log.Debugf("tracker: skipping record: %v", err)
		t.rejected.Add(1)
		return
	}

	ok, err := t.est.Update(s.Gyro, s.Accel, t.now())
	if err != nil {
		log.Debugf("tracker: %v", err)
		t.rejected.Add(1)
		return
	}
	if ok {
		t.accepted.Add(1)
		t.haveSample.Store(true)
	}
}

func (t *Tracker) follow(ctx context.Context, url string) {
	for {
		conn, _, err := t.dialer.DialContext(ctx, url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logEvent("connect to %s failed: %v", url, err)
		} else {
			t.setConnected(true)
			t.logEvent("connected to %s", url)
			t.read(ctx, conn)
			t.setConnected(false)
			if ctx.Err() != nil {
				t.logEvent("disconnected")
				return
			}
			t.logEvent("connection to %s lost", url)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(t.retry):
		}
	}
}

func (t *Tracker) read(ctx context.Context, conn *websocket.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("tracker: websocket read error: %v", err)
			}
			return
		}
		t.HandleRecord(msg)
	}
}

func (t *Tracker) setConnected(v bool) {
	t.mu.Lock()
	t.connected = v
	t.mu.Unlock()
}

func (t *Tracker) logEvent(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	log.Printf("tracker: %s", line)

	stamped := t.now().Format("15:04:05") + " " + line
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, stamped)
	if len(t.events) > statusLogSize {
		t.events = t.events[len(t.events)-statusLogSize:]
	}
}
