package events

import (
	"context"
	"sync"

	"clubledger/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChanged       EventType = "balance_changed"
	EventTypeTransactionSubmitted EventType = "transaction_submitted"
	EventTypeTransactionResolved  EventType = "transaction_resolved"
	EventTypeChargeSettled        EventType = "charge_settled"
	EventTypeChargesCreated       EventType = "charges_created"
	EventTypeAccountProvisioned   EventType = "account_provisioned"
)

// AllEventTypes lists every event type the ledger emits
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeBalanceChanged,
		EventTypeTransactionSubmitted,
		EventTypeTransactionResolved,
		EventTypeChargeSettled,
		EventTypeChargesCreated,
		EventTypeAccountProvisioned,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangedEvent is emitted for every change to a stored balance
type BalanceChangedEvent struct {
	AccountID     string                 `json:"account_id"`
	TransactionID string                 `json:"transaction_id"`
	Kind          models.TransactionKind `json:"kind"`
	OldBalance    decimal.Decimal        `json:"old_balance"`
	NewBalance    decimal.Decimal        `json:"new_balance"`
	ChangeAmount  decimal.Decimal        `json:"change_amount"`
}

func (e BalanceChangedEvent) Type() EventType {
	return EventTypeBalanceChanged
}

// TransactionSubmittedEvent is emitted when a transaction enters review
type TransactionSubmittedEvent struct {
	TransactionID     string                 `json:"transaction_id"`
	AccountID         string                 `json:"account_id"`
	Kind              models.TransactionKind `json:"kind"`
	ChargeID          string                 `json:"charge_id,omitempty"`
	AmountFromBalance decimal.Decimal        `json:"amount_from_balance"`
	AmountFromReceipt decimal.Decimal        `json:"amount_from_receipt"`
}

func (e TransactionSubmittedEvent) Type() EventType {
	return EventTypeTransactionSubmitted
}

// TransactionResolvedEvent is emitted when an admin approves or rejects
type TransactionResolvedEvent struct {
	TransactionID   string                   `json:"transaction_id"`
	AccountID       string                   `json:"account_id"`
	Kind            models.TransactionKind   `json:"kind"`
	Status          models.TransactionStatus `json:"status"`
	ResolvedBy      string                   `json:"resolved_by"`
	RejectionReason string                   `json:"rejection_reason,omitempty"`
}

func (e TransactionResolvedEvent) Type() EventType {
	return EventTypeTransactionResolved
}

// ChargeSettledEvent is emitted when a charge becomes paid
type ChargeSettledEvent struct {
	ChargeID      string          `json:"charge_id"`
	AccountID     string          `json:"account_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	FastPath      bool            `json:"fast_path"`
}

func (e ChargeSettledEvent) Type() EventType {
	return EventTypeChargeSettled
}

// ChargesCreatedEvent is emitted once per charge batch
type ChargesCreatedEvent struct {
	ChargeIDs []string        `json:"charge_ids"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedBy string          `json:"created_by"`
}

func (e ChargesCreatedEvent) Type() EventType {
	return EventTypeChargesCreated
}

// AccountProvisionedEvent is emitted when an admin creates an account
type AccountProvisionedEvent struct {
	AccountID     string `json:"account_id"`
	Email         string `json:"email"`
	ProvisionedBy string `json:"provisioned_by"`
}

func (e AccountProvisionedEvent) Type() EventType {
	return EventTypeAccountProvisioned
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Handlers run asynchronously so a slow consumer never holds up a request
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns the events queued so far
func (b *TransactionalBus) Pending() []Event {
	return b.pending
}

// Flush emits pending events; called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing pending events")

	// Emission is detached from the request context, which may be cancelled once the response is written
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events; called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
