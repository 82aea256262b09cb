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
	source := flag.String("source", "serial", "frame source: serial or mqtt")
	flag.Parse()

	log.Printf("starting lora-tracker ground station (%s → store, web)", *source)

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunGroundStation(ctx, *source)
	stop()
	config.Shutdown()
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
