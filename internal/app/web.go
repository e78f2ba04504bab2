// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_tracker/internal/config"
	"github.com/relabs-tech/inertial_tracker/internal/pose"
)

// RunTracker follows the relay, integrates the pose and serves it over HTTP
// (and MQTT when a broker is configured) until SIGINT/SIGTERM.
func RunTracker() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := pose.DefaultParams()
	if cfg.TuningFile != "" {
		var err error
		if params, err = pose.LoadParams(cfg.TuningFile); err != nil {
			return err
		}
		log.Printf("tracker: loaded tuning from %s", cfg.TuningFile)
	}

	tracker := NewTracker(pose.New(pose.WithParams(params)), time.Duration(cfg.ReconnectInterval)*time.Millisecond)
	defer tracker.Disconnect()

	if err := tracker.Connect(cfg.RelayURL); err != nil {
		log.Warnf("tracker: not connecting at startup: %v", err)
	}

	if cfg.MQTTBroker != "" {
		client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDTracker)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		interval := time.Duration(cfg.PosePublishInterval) * time.Millisecond
		go publishPose(ctx, client, cfg.TopicPose, tracker, interval)
	}

	srv := &http.Server{Addr: cfg.TrackerAddr, Handler: trackerHandler(tracker)}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("tracker: web server listening on %s", cfg.TrackerAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var err error
	select {
	case <-ctx.Done():
		log.Println("tracker: shutting down")
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warnf("tracker: http shutdown: %v", serr)
	}
	return err
}

// publishPose publishes the latest pose as a retained message every
// interval once the first sample was accepted.
func publishPose(ctx context.Context, client mqtt.Client, topic string, tracker *Tracker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state, ok := tracker.Pose()
		if !ok {
			continue
		}
		payload, err := json.Marshal(newPoseView(state))
		if err != nil {
			log.Printf("tracker: pose marshal error: %v", err)
			continue
		}
		if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("tracker: MQTT publish error (%s): %v", topic, token.Error())
		}
	}
}

type connectRequest struct {
	URL string `json:"url"`
}

func trackerHandler(t *Tracker) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/pose", func(w http.ResponseWriter, r *http.Request) {
		state, ok := t.Pose()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, newPoseView(state))
	})

	mux.HandleFunc("POST /api/reset", func(w http.ResponseWriter, r *http.Request) {
		t.Reset()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/connect", func(w http.ResponseWriter, r *http.Request) {
		var req connectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := t.Connect(req.URL); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/disconnect", func(w http.ResponseWriter, r *http.Request) {
		t.Disconnect()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, t.Status())
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}
