// Package notify announces registered faces to downstream consumers such as a
// trainer that refreshes its samples.
package notify

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/store"
)

// Event is published after every accepted registration. It never carries the image.
type Event struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Timestamp string `json:"timestamp"`
}

// Publisher delivers a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close()
}

// Submitter wraps a store.Submitter and publishes an Event after each successful write.
type Submitter struct {
	next      store.Submitter
	publisher Publisher
	topic     string
}

// Wrap returns next unchanged when publisher is nil.
func Wrap(next store.Submitter, publisher Publisher, topic string) store.Submitter {
	if publisher == nil {
		return next
	}
	return &Submitter{next: next, publisher: publisher, topic: topic}
}

// Submit delegates the write. A failed publish is logged and never changes the outcome.
func (s *Submitter) Submit(ctx context.Context, record store.FaceRecord) (store.Ack, error) {
	ack, err := s.next.Submit(ctx, record)
	if err != nil {
		return ack, err
	}

	payload, err := json.Marshal(Event{
		ID:        ack.ID,
		Label:     ack.Label,
		Timestamp: store.FormatTimestamp(ack.CapturedAt),
	})
	if err != nil {
		log.WithError(err).Warn("encoding registration event")
		return ack, nil
	}

	if err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		log.WithFields(log.Fields{"topic": s.topic, "id": ack.ID}).WithError(err).Warn("publishing registration event")
	}
	return ack, nil
}
