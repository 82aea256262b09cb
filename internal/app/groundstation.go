package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/relabs-tech/lora_tracker/internal/config"
	"github.com/relabs-tech/lora_tracker/internal/framecipher"
	"github.com/relabs-tech/lora_tracker/internal/groundstation"
	"github.com/relabs-tech/lora_tracker/internal/transport"
)

// RunGroundStation receives frames from source ("serial" or "mqtt"),
// stores them and serves the live map until ctx is cancelled. The CSV
// export is written on the way out.
func RunGroundStation(ctx context.Context, source string) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("station: configuration not loaded")
	}

	var src groundstation.FrameSource
	switch source {
	case "serial":
		pr, port, err := transport.OpenPacketReader(cfg.LoRaSerialPort, cfg.LoRaBaudRate, cfg.PacketGap())
		if err != nil {
			return err
		}
		defer port.Close()
		log.Printf("station: listening on %s at %d baud", cfg.LoRaSerialPort, cfg.LoRaBaudRate)
		src = pr
	case "mqtt":
		if cfg.MQTTBroker == "" {
			return errors.New("station: MQTT_BROKER is required for the mqtt source")
		}
		client, err := transport.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGround)
		if err != nil {
			return err
		}
		sub, err := transport.Subscribe(client, cfg.TopicFrames, cfg.StationHistory)
		if err != nil {
			client.Disconnect(250)
			return err
		}
		defer sub.Close()
		src = sub
	default:
		return fmt.Errorf("station: unknown source %q", source)
	}

	var opener framecipher.Opener = framecipher.Plain{}
	if cfg.Encrypt {
		c, err := framecipher.New(cfg.CipherKey)
		if err != nil {
			return err
		}
		defer c.Close()
		opener = c
	}

	store, err := groundstation.OpenStore(cfg.StationDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := groundstation.NewHub(cfg.StationHistory)
	defer hub.Close()

	staticDir := ""
	if fi, err := os.Stat("web"); err == nil && fi.IsDir() {
		staticDir = "web"
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: groundstation.Handler(hub, store, staticDir),
	}
	go func() {
		log.Printf("station: web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("station: web server: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	st := groundstation.NewStation(src, groundstation.NewDecoder(opener), store, hub)
	runErr := st.Run(ctx)

	if err := store.ExportCSV(cfg.StationCSVDir); err != nil {
		log.Printf("station: csv export: %v", err)
	}
	return runErr
}
