// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/lora_tracker/internal/app"
	"github.com/relabs-tech/lora_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "./lora_tracker_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting lora-tracker console (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	defer config.Shutdown()

	if err := app.RunConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
