package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// PublishTimeout bounds how long Send waits for the broker.
const PublishTimeout = 2 * time.Second

var ErrPublishTimeout = errors.New("mqtt: publish timed out")

// MQTT mirrors frames to a broker topic, QoS 0 and not retained.
type MQTT struct {
	client mqtt.Client
	topic  string
}

// NewMQTT wraps a connected client.
func NewMQTT(client mqtt.Client, topic string) *MQTT {
	return &MQTT{client: client, topic: topic}
}

// ConnectMQTT connects to broker with clientID.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", broker, token.Error())
	}
	log.Printf("mqtt: connected to broker at %s as %s", broker, clientID)
	return client, nil
}

func (m *MQTT) Send(frame []byte) error {
	token := m.client.Publish(m.topic, 0, false, frame)
	if !token.WaitTimeout(PublishTimeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", m.topic, err)
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

// Subscription receives the frames another node mirrors to a topic. Frames
// arriving while the buffer is full are dropped.
type Subscription struct {
	client mqtt.Client
	topic  string
	frames chan []byte
}

// Subscribe subscribes client to topic. buffer is the number of frames
// held between Next calls.
func Subscribe(client mqtt.Client, topic string, buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = 64
	}
	s := &Subscription{client: client, topic: topic, frames: make(chan []byte, buffer)}
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s.deliver(msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	log.Printf("mqtt: subscribed to %s", topic)
	return s, nil
}

func (s *Subscription) deliver(payload []byte) {
	frame := append([]byte(nil), payload...)
	select {
	case s.frames <- frame:
	default:
		log.Printf("mqtt: %s: receiver behind, dropped %d byte frame", s.topic, len(frame))
	}
}

// Next blocks until a frame arrives or ctx is done.
func (s *Subscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unsubscribes and disconnects the client.
func (s *Subscription) Close() error {
	s.client.Unsubscribe(s.topic).WaitTimeout(PublishTimeout)
	s.client.Disconnect(250)
	return nil
}
