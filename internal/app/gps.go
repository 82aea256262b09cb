package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/relabs-tech/lora_tracker/internal/config"
	"github.com/relabs-tech/lora_tracker/internal/gps"
	"github.com/relabs-tech/lora_tracker/internal/transport"
)

// RunGPSMonitor opens the GPS serial port and logs the combined fix once a
// second, to check reception before a deployment. When MQTT_BROKER is set
// each fix is also published as JSON to <TOPIC_FRAMES>/gps.
func RunGPSMonitor(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("gps: configuration not loaded")
	}

	port, err := gps.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
	if err != nil {
		return err
	}
	defer port.Close()

	var pub *transport.MQTT
	if cfg.MQTTBroker != "" {
		client, err := transport.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDNode+"-gps")
		if err != nil {
			return err
		}
		pub = transport.NewMQTT(client, cfg.TopicFrames+"/gps")
		defer pub.Close()
	}

	tracker := gps.NewTracker()
	readErr := make(chan error, 1)
	go func() { readErr <- tracker.Run(ctx, port) }()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var seen uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case <-ticker.C:
			n := tracker.Updates()
			if n == seen {
				log.Println("gps: no sentences in the last second")
				continue
			}
			seen = n
			f := tracker.Fix()
			log.Printf("gps: valid=%t time=%s lat=%.6f lon=%.6f sats=%d quality=%s",
				f.Valid(), f.Time, f.Latitude, f.Longitude, f.Satellites, f.Quality)

			if pub == nil {
				continue
			}
			payload, err := json.Marshal(f)
			if err != nil {
				log.Printf("gps: JSON marshal error: %v", err)
				continue
			}
			if err := pub.Send(payload); err != nil {
				log.Printf("gps: publish error: %v", err)
			}
		}
	}
}
