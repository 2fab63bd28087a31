package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/constants"
)

// publishClient is the part of mqtt.Client used for publishing.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes events to an MQTT broker.
type MQTTPublisher struct {
	client  publishClient
	timeout time.Duration
}

// NewMQTTPublisher connects to cfg.Broker. Reconnects are handled by the client.
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("MQTT broker is required (MQTT_BROKER)")
	}

	clientID := "face-registry-" + uuid.New().String()
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(c mqtt.Client) {
		log.WithField("broker", cfg.Broker).Info("connected to MQTT")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.WithField("broker", cfg.Broker).WithError(err).Warn("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, token.Error())
	}

	return &MQTTPublisher{client: client, timeout: constants.MQTTPublishTimeout}, nil
}

// Publish sends payload with QoS 1 and waits for the broker acknowledgement.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, constants.MQTTQoS, false, payload)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing to %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publishing to %s: timed out after %s", topic, p.timeout)
	}
}

// Close disconnects, allowing in-flight messages a moment to drain.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
