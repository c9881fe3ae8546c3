package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clubledger/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventEnvelope wraps every event forwarded to the message bus
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// SubjectPublisher delivers an encoded ledger event envelope to a subject.
// NATSClient satisfies it with a JetStream publish.
type SubjectPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSEventBridge forwards committed domain events from the in-process bus to NATS
type NATSEventBridge struct {
	publisher     SubjectPublisher
	subjectMapper *EventSubjectMapper
	now           func() time.Time
}

// NewNATSEventBridge creates a new bridge publishing through publisher
func NewNATSEventBridge(publisher SubjectPublisher, subjectMapper *EventSubjectMapper) *NATSEventBridge {
	return &NATSEventBridge{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Attach subscribes the bridge to every event type on bus
func (b *NATSEventBridge) Attach(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		if err := b.Forward(ctx, event); err != nil {
			// The ledger change is already committed; a lost notification is only logged
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Failed to forward event to NATS")
		}
	})
	log.WithField("subjects", b.subjectMapper.GetAllSubjects()).Info("NATS event bridge attached")
}

// Forward publishes a single event wrapped in an envelope
func (b *NATSEventBridge) Forward(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     string(event.Type()),
		Timestamp:     b.now(),
		SourceService: clientName,
		Payload:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := b.subjectMapper.MapEventToSubject(event)
	if err := b.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Forwarded event to NATS")
	return nil
}
