package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/notify"
	"github.com/kozaktomas/face-registry/internal/store"
	"github.com/kozaktomas/face-registry/internal/store/mariadb"
	"github.com/kozaktomas/face-registry/internal/store/postgres"
	"github.com/kozaktomas/face-registry/internal/store/postgrest"
)

func init() {
	store.Register("postgrest", postgrest.Open)
	store.Register("postgres", postgres.Open)
	store.Register("mariadb", mariadb.Open)
}

// storeHandle is an opened backend plus the submitter the workflow writes through.
type storeHandle struct {
	backend   store.Backend
	submitter store.Submitter
	publisher notify.Publisher
}

// Close disconnects the notifier and the backend.
func (h *storeHandle) Close() {
	if h.publisher != nil {
		h.publisher.Close()
	}
	if err := h.backend.Close(); err != nil {
		log.WithError(err).Warn("closing store")
	}
}

// openStore opens the configured backend. When MQTT_BROKER is set, submits are
// wrapped so that every registered face is announced on MQTT_TOPIC.
func openStore(ctx context.Context, cfg *config.Config) (*storeHandle, error) {
	backend, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.WithField("backend", backend.Name()).Info("store ready")

	h := &storeHandle{backend: backend, submitter: backend}
	if cfg.MQTT.Broker == "" {
		return h, nil
	}

	pub, err := notify.NewMQTTPublisher(cfg.MQTT)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to connect notifications: %w", err)
	}
	h.publisher = pub
	h.submitter = notify.Wrap(backend, pub, cfg.MQTT.Topic)
	log.WithFields(log.Fields{"broker": cfg.MQTT.Broker, "topic": cfg.MQTT.Topic}).Info("registration notifications enabled")
	return h, nil
}
