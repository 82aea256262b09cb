package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/lora_tracker/internal/config"
	"github.com/relabs-tech/lora_tracker/internal/framecipher"
	"github.com/relabs-tech/lora_tracker/internal/groundstation"
	"github.com/relabs-tech/lora_tracker/internal/record"
	"github.com/relabs-tech/lora_tracker/internal/transport"
)

// RunConsole prints every frame mirrored to the MQTT frames topic until
// interrupted.
func RunConsole() error {
	cfg := config.Get()
	if cfg == nil || cfg.MQTTBroker == "" {
		return fmt.Errorf("console: MQTT_BROKER is required")
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
	dec := groundstation.NewDecoder(opener)

	client, err := transport.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGround+"-console")
	if err != nil {
		return err
	}

	token := client.Subscribe(cfg.TopicFrames, 0, func(_ mqtt.Client, msg mqtt.Message) {
		rec, line, err := dec.Decode(msg.Payload())
		if err != nil {
			log.Printf("console: %d byte frame rejected: %v (line %q)", len(msg.Payload()), err, line)
			return
		}
		fmt.Println(consoleLine(rec))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicFrames)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func consoleLine(rec record.Record) string {
	switch rec.Kind {
	case record.KindPath:
		return fmt.Sprintf("[PATH] lat=%.6f lon=%.6f heading=%3d°", rec.Latitude, rec.Longitude, rec.Heading)
	case record.KindObstacle:
		if rec.Distance.IsNoEcho() {
			return "[OBS ] no echo"
		}
		return fmt.Sprintf("[OBS ] distance=%6.2f cm", float64(rec.Distance))
	default:
		return fmt.Sprintf("[%s] %s", rec.Kind, rec)
	}
}
