package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/outlandnish/FlowMeter/pkg/config"
)

// Publisher publishes measurements to an MQTT broker.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// NewPublisher connects to the broker with exponential backoff and returns a
// ready publisher. The connection is dropped when ctx is cancelled.
func NewPublisher(ctx context.Context, cfg *config.MQTTConfig) (*Publisher, error) {
	connAddr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	// Suffix the client id so several hosts can share one broker.
	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	maxRetries := 5

	var client mqtt.Client

	// Retry connecting to the broker with exponential backoff
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("Failed to connect to MQTT broker: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(bo, uint64(maxRetries-1)))

	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	log.Printf("Connected to MQTT broker at %s", connAddr)

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
	}()

	return &Publisher{
		client: client,
		topic:  cfg.Topic,
	}, nil
}

// Publish sends one measurement to the configured topic.
func (p *Publisher) Publish(m Measurement) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode measurement: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload) // QoS 0 (at most once)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish measurement: %w", token.Error())
	}

	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *Publisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close gracefully disconnects from the broker.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
