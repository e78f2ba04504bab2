// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/inertial_tracker/internal/app"
	"github.com/relabs-tech/inertial_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "./inertial_config.txt", "path to configuration file")
	logLevel := flag.String("log-level", "", "overrides LOG_LEVEL, one of: panic, fatal, error, warn, info, debug, trace")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	level := config.Get().LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	if err := app.ConfigureLogging(level); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	log.Println("starting inertial-tracker pose tracker (websocket → pose)")

	if err := app.RunTracker(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
