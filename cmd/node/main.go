// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/lora_tracker/internal/app"
	"github.com/relabs-tech/lora_tracker/internal/config"
)

func main() {
	configPath := flag.String("config", "./lora_tracker_config.txt", "path to configuration file")
	mock := flag.Bool("mock", false, "use simulated GPS, compass and ranger")
	flag.Parse()

	log.Println("starting lora-tracker node (sensors → radio)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunNode(ctx, *mock)
	stop()
	config.Shutdown()
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
