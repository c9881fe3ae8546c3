package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"clubledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionalBus_FlushDeliversAfterCommit(t *testing.T) {
	mainBus := NewBus()
	txBus := NewTransactionalBus(mainBus)

	received := make(chan BalanceChangedEvent, 1)
	mainBus.Subscribe(EventTypeBalanceChanged, func(ctx context.Context, event Event) {
		if e, ok := event.(BalanceChangedEvent); ok {
			received <- e
		}
	})

	event := BalanceChangedEvent{
		AccountID:     "acc-1",
		TransactionID: "tx-1",
		Kind:          models.TransactionKindTopUp,
		OldBalance:    decimal.RequireFromString("10.00"),
		NewBalance:    decimal.RequireFromString("60.00"),
		ChangeAmount:  decimal.RequireFromString("50.00"),
	}
	txBus.Publish(event)
	assert.Len(t, txBus.Pending(), 1)

	require.NoError(t, txBus.Flush(context.Background()))
	assert.Empty(t, txBus.Pending())

	select {
	case got := <-received:
		assert.Equal(t, "acc-1", got.AccountID)
		assert.True(t, got.ChangeAmount.Equal(decimal.RequireFromString("50")))
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestTransactionalBus_DiscardDropsEvents(t *testing.T) {
	mainBus := NewBus()
	txBus := NewTransactionalBus(mainBus)

	delivered := make(chan struct{}, 1)
	mainBus.Subscribe(EventTypeTransactionSubmitted, func(ctx context.Context, event Event) {
		delivered <- struct{}{}
	})

	txBus.Publish(TransactionSubmittedEvent{TransactionID: "tx-1"})
	txBus.Discard()
	require.NoError(t, txBus.Flush(context.Background()))

	select {
	case <-delivered:
		t.Fatal("discarded event was delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_SubscribeAllAndPanicRecovery(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	seen := map[EventType]int{}
	var wg sync.WaitGroup
	wg.Add(len(AllEventTypes()))

	bus.SubscribeAll(func(ctx context.Context, event Event) {
		panic("handler failure")
	})
	bus.SubscribeAll(func(ctx context.Context, event Event) {
		defer wg.Done()
		mu.Lock()
		seen[event.Type()]++
		mu.Unlock()
	})

	ctx := context.Background()
	bus.Emit(ctx, BalanceChangedEvent{})
	bus.Emit(ctx, TransactionSubmittedEvent{})
	bus.Emit(ctx, TransactionResolvedEvent{})
	bus.Emit(ctx, ChargeSettledEvent{})
	bus.Emit(ctx, ChargesCreatedEvent{})
	bus.Emit(ctx, AccountProvisionedEvent{})

	wg.Wait()
	for _, eventType := range AllEventTypes() {
		assert.Equal(t, 1, seen[eventType], eventType)
	}
}
