// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Source kinds accepted by SOURCE.
const (
	SourceMock   = "mock"
	SourceSerial = "serial"
	SourceTCP    = "tcp"
	SourceStdin  = "stdin"
	SourceIMU    = "imu"
)

// Config holds all application configuration values.
type Config struct {
	LogLevel string

	// Relay
	ListenAddr       string
	WSPath           string
	Source           string
	SourceAddr       string // tcp listen address for SOURCE=tcp
	SerialPort       string
	SerialBaudRate   int
	FramerMaxBuffer  int // bytes, 0 = unbounded
	SubscriberBuffer int // records queued per websocket subscriber

	// MQTT (empty broker disables MQTT)
	MQTTBroker          string
	MQTTClientIDRelay   string
	MQTTClientIDTracker string
	MQTTClientIDConsole string

	// Topics
	TopicRecords string
	TopicPose    string

	// Tracker
	RelayURL            string
	TrackerAddr         string
	PosePublishInterval int // milliseconds
	ReconnectInterval   int // milliseconds
	TuningFile          string

	// IMU Hardware (SOURCE=imu)
	IMUSPIDevice      string
	IMUCSPin          string
	IMUSampleInterval int // milliseconds
	IMUAccelLSBPerG   float64
	IMUGyroLSBPerDPS  float64

	// Mock device
	MockSampleInterval int // milliseconds

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration that runs the relay against the mock
// device and the tracker against a local relay.
func Default() *Config {
	return &Config{
		LogLevel: "info",

		ListenAddr:       ":8080",
		WSPath:           "/ws",
		Source:           SourceMock,
		SourceAddr:       ":9000",
		SerialPort:       "/dev/ttyUSB0",
		SerialBaudRate:   115200,
		FramerMaxBuffer:  64 * 1024,
		SubscriberBuffer: 64,

		MQTTClientIDRelay:   "inertial-relay",
		MQTTClientIDTracker: "inertial-tracker",
		MQTTClientIDConsole: "inertial-console",

		TopicRecords: "inertial/records",
		TopicPose:    "inertial/pose",

		RelayURL:            "ws://localhost:8080/ws",
		TrackerAddr:         ":8081",
		PosePublishInterval: 100,
		ReconnectInterval:   2000,

		IMUSPIDevice:      "/dev/spidev0.0",
		IMUCSPin:          "8",
		IMUSampleInterval: 16,
		IMUAccelLSBPerG:   16384,
		IMUGyroLSBPerDPS:  131,

		MockSampleInterval: 16,

		DisplayUpdateInterval: 200,
	}
}

// Load reads the configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines. Blank lines and lines starting with '#' are
// skipped. Keys that are not present keep their default.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) setValue(key, value string) error {
	switch key {
	case "LOG_LEVEL":
		if _, err := log.ParseLevel(value); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", value, err)
		}
		c.LogLevel = value

	// Relay
	case "LISTEN_ADDR":
		c.ListenAddr = value
	case "WS_PATH":
		if !strings.HasPrefix(value, "/") {
			return fmt.Errorf("WS_PATH must start with '/', got %q", value)
		}
		c.WSPath = value
	case "SOURCE":
		switch value {
		case SourceMock, SourceSerial, SourceTCP, SourceStdin, SourceIMU:
			c.Source = value
		default:
			return fmt.Errorf("SOURCE must be one of mock, serial, tcp, stdin, imu; got %q", value)
		}
	case "SOURCE_ADDR":
		c.SourceAddr = value
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		return parsePositive(key, value, &c.SerialBaudRate)
	case "FRAMER_MAX_BUFFER":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FRAMER_MAX_BUFFER %q: %w", value, err)
		}
		if n < 0 {
			return fmt.Errorf("FRAMER_MAX_BUFFER must be >= 0, got %d", n)
		}
		c.FramerMaxBuffer = n
	case "SUBSCRIBER_BUFFER":
		return parsePositive(key, value, &c.SubscriberBuffer)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_RELAY":
		c.MQTTClientIDRelay = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_RECORDS":
		c.TopicRecords = value
	case "TOPIC_POSE":
		c.TopicPose = value

	// Tracker
	case "RELAY_URL":
		c.RelayURL = value
	case "TRACKER_ADDR":
		c.TrackerAddr = value
	case "POSE_PUBLISH_INTERVAL":
		return parsePositive(key, value, &c.PosePublishInterval)
	case "RECONNECT_INTERVAL":
		return parsePositive(key, value, &c.ReconnectInterval)
	case "TUNING_FILE":
		c.TuningFile = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_SAMPLE_INTERVAL":
		return parsePositive(key, value, &c.IMUSampleInterval)
	case "IMU_ACCEL_LSB_PER_G":
		return parseScale(key, value, &c.IMUAccelLSBPerG)
	case "IMU_GYRO_LSB_PER_DPS":
		return parseScale(key, value, &c.IMUGyroLSBPerDPS)

	case "MOCK_SAMPLE_INTERVAL":
		return parsePositive(key, value, &c.MockSampleInterval)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		return parsePositive(key, value, &c.DisplayUpdateInterval)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parsePositive(key, value string, dst *int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n <= 0 {
		return fmt.Errorf("%s must be > 0, got %d", key, n)
	}
	*dst = n
	return nil
}

func parseScale(key, value string, dst *float64) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if f <= 0 {
		return fmt.Errorf("%s must be > 0, got %g", key, f)
	}
	*dst = f
	return nil
}

// validate checks fields that depend on each other.
func (c *Config) validate() error {
	switch c.Source {
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for SOURCE=serial")
		}
	case SourceTCP:
		if c.SourceAddr == "" {
			return fmt.Errorf("SOURCE_ADDR is required for SOURCE=tcp")
		}
	case SourceIMU:
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required for SOURCE=imu")
		}
	}
	if c.MQTTBroker != "" && c.TopicRecords == "" {
		return fmt.Errorf("TOPIC_RECORDS is required when MQTT_BROKER is set")
	}
	if c.MQTTBroker != "" && c.TopicPose == "" {
		return fmt.Errorf("TOPIC_POSE is required when MQTT_BROKER is set")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
