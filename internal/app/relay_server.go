// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_tracker/internal/config"
	"github.com/relabs-tech/inertial_tracker/internal/framer"
	"github.com/relabs-tech/inertial_tracker/internal/relay"
	"github.com/relabs-tech/inertial_tracker/internal/sensors"
)

const (
	writeWait       = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers are served from other origins on the LAN
	},
}

// RunRelay reads the configured device source, frames it and fans records
// out to websocket subscribers until SIGINT/SIGTERM.
func RunRelay() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rl := relay.New(relay.WithFramerOptions(framer.WithMaxBuffer(cfg.FramerMaxBuffer)))
	defer rl.Close()

	if cfg.MQTTBroker != "" {
		client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDRelay)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		if _, err := rl.Subscribe(newMQTTMirror(client, cfg.TopicRecords, cfg.SubscriberBuffer)); err != nil {
			return err
		}
		log.Printf("relay: mirroring records to %s", cfg.TopicRecords)
	}

	src, err := sensors.Open(cfg)
	if err != nil {
		return err
	}
	defer src.Close()
	log.Printf("relay: using %s source", cfg.Source)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: relayHandler(rl, cfg.WSPath, cfg.SubscriberBuffer),
	}

	errCh := make(chan error, 2)
	go func() {
		log.Printf("relay: listening on %s (websocket path %s)", cfg.ListenAddr, cfg.WSPath)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		retry := time.Duration(cfg.ReconnectInterval) * time.Millisecond
		errCh <- pumpSource(ctx, src, rl, retry)
	}()

	select {
	case <-ctx.Done():
		log.Println("relay: shutting down")
	case err = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warnf("relay: http shutdown: %v", serr)
	}
	return err
}

// pumpSource feeds every stream src yields into rl. Unavailable sources are
// retried every retry until ctx ends.
func pumpSource(ctx context.Context, src sensors.Source, rl *relay.Relay, retry time.Duration) error {
	for {
		stream, err := src.Next(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, io.EOF):
			log.Println("relay: source exhausted")
			return nil
		case err != nil:
			log.Warnf("relay: source unavailable: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retry):
			}
			continue
		}

		stopClose := context.AfterFunc(ctx, func() { stream.Close() })
		err = rl.Pump(ctx, stream)
		stopClose()
		stream.Close()

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Warnf("relay: stream ended: %v", err)
		} else {
			log.Println("relay: stream closed by device")
		}
		st := rl.Stats()
		log.Debugf("relay: framer emitted=%d dropped=%d overflows=%d", st.Framer.Emitted, st.Framer.Dropped, st.Framer.Overflows)
	}
}

func relayHandler(rl *relay.Relay, wsPath string, buffer int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, func(w http.ResponseWriter, r *http.Request) {
		serveSubscriber(rl, buffer, w, r)
	})
	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rl.Stats()); err != nil {
			log.Printf("relay: json encode error: %v", err)
		}
	})
	return mux
}

// serveSubscriber upgrades the request and writes every relayed record as
// one text message until either side goes away.
func serveSubscriber(rl *relay.Relay, buffer int, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("relay: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := relay.NewChanSubscriber(buffer)
	id, err := rl.Subscribe(sub)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"),
			time.Now().Add(writeWait))
		return
	}
	defer rl.Unsubscribe(id)
	log.Printf("relay: subscriber %s connected from %s", id, r.RemoteAddr)

	// reader: subscribers never send anything, but reading surfaces closes
	go func() {
		defer rl.Unsubscribe(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("relay: subscriber %s read error: %v", id, err)
				}
				return
			}
		}
	}()

	for rec := range sub.C() {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, rec); err != nil {
			log.Printf("relay: subscriber %s write error: %v", id, err)
			break
		}
	}
	log.Printf("relay: subscriber %s disconnected", id)
}
