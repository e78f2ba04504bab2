// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect to %s: %w", broker, token.Error())
	}
	log.Printf("connected to MQTT broker at %s as %s", broker, clientID)
	return client, nil
}

// publisher is the part of mqtt.Client the mirror needs.
type publisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// mqttMirror is a relay subscriber that republishes every record on a
// topic. Offer runs under the relay lock, so records go through a bounded
// queue and a separate goroutine does the publishing. The mirror is not
// writable while the broker connection is down or the queue is full.
type mqttMirror struct {
	client publisher
	topic  string
	queue  chan []byte
	once   sync.Once
	done   chan struct{}
}

func newMQTTMirror(client publisher, topic string, size int) *mqttMirror {
	if size < 1 {
		size = 1
	}
	m := &mqttMirror{
		client: client,
		topic:  topic,
		queue:  make(chan []byte, size),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mqttMirror) Offer(rec []byte) bool {
	if !m.client.IsConnectionOpen() {
		return false
	}
	select {
	case m.queue <- rec:
		return true
	default:
		return false
	}
}

// Close stops the publisher once the queue is drained. The relay calls it
// when the mirror is removed.
func (m *mqttMirror) Close() {
	m.once.Do(func() { close(m.queue) })
}

func (m *mqttMirror) run() {
	defer close(m.done)
	for rec := range m.queue {
		token := m.client.Publish(m.topic, 0, false, rec)
		if token.WaitTimeout(writeWait) && token.Error() != nil {
			log.Debugf("mqtt mirror: publish to %s: %v", m.topic, token.Error())
		}
	}
}
