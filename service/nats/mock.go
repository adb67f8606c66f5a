package nats

import (
	"context"
	"strings"
	"sync"

	"github.com/brojonat/shardpay/service/txn"
)

// MockPublisher is an in-memory Publisher for tests.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*TransactionEvent
	publishError    error
	closed          bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*TransactionEvent, 0),
	}
}

// PublishTransaction records the event and returns any configured error.
func (m *MockPublisher) PublishTransaction(ctx context.Context, rec txn.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, FromRecord(rec))
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns a copy of all published events.
func (m *MockPublisher) GetPublishedEvents() []*TransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TransactionEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

func (m *MockPublisher) GetPublishedEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.publishedEvents)
}

// GetPublishedEventsForWallet returns events published for address.
func (m *MockPublisher) GetPublishedEventsForWallet(address string) []*TransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	address = strings.ToLower(address)
	events := make([]*TransactionEvent, 0)
	for _, event := range m.publishedEvents {
		if event.WalletAddress == address {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to fail PublishTransaction.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishedEvents = make([]*TransactionEvent, 0)
	m.publishError = nil
	m.closed = false
}

func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

var (
	_ Publisher     = (*JetStreamPublisher)(nil)
	_ Publisher     = (*MockPublisher)(nil)
	_ txn.Publisher = (*JetStreamPublisher)(nil)
)
