// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/inertial_tracker/internal/config"
	"github.com/relabs-tech/inertial_tracker/internal/pose"
	"github.com/relabs-tech/inertial_tracker/internal/relay"
	"github.com/relabs-tech/inertial_tracker/internal/sensors"
)

// RunMockConsole runs the whole pipeline in process, mock device to
// estimator, and prints the pose. No broker or network is needed.
func RunMockConsole() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := NewTracker(pose.New(), 0)
	rl := relay.New(relay.WithGreeting("mock console"))
	defer rl.Close()

	sub := relay.NewChanSubscriber(cfg.SubscriberBuffer)
	if _, err := rl.Subscribe(sub); err != nil {
		return err
	}
	go func() {
		for rec := range sub.C() {
			tracker.HandleRecord(rec)
		}
	}()

	dev := sensors.NewMockDevice(time.Duration(cfg.MockSampleInterval)*time.Millisecond, time.Now().UnixNano())
	go pumpSource(ctx, sensors.Once(func() (io.ReadCloser, error) { return dev, nil }), rl, time.Second)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		state, ok := tracker.Pose()
		if !ok {
			continue
		}
		fmt.Println(formatPose(newPoseView(state)))
	}
}
