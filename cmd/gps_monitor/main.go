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
	flag.Parse()

	log.Println("starting lora-tracker GPS monitor (NMEA → log)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunGPSMonitor(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
