package infrastructure

import (
	"strings"

	"clubledger/events"
)

const subjectPrefix = "ledger."

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject returns ledger.<event type>
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	return subjectPrefix + string(event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	return events.EventType(strings.TrimPrefix(subject, subjectPrefix))
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	types := events.AllEventTypes()
	subjects := make([]string, len(types))
	for i, eventType := range types {
		subjects[i] = subjectPrefix + string(eventType)
	}
	return subjects
}
