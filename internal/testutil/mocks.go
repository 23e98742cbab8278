package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/charge"
	domainErrors "github.com/pabraksas/pay-connector/internal/domain/errors"
	"github.com/pabraksas/pay-connector/internal/domain/event"
)

// --- Charge Repository Mock ---

// MockChargeRepository is a mock implementation of charge.Repository. Its
// default behavior is an in-memory store with real compare-and-set
// semantics, so concurrency tests exercise the same optimistic-lock failures
// the PostgreSQL implementation produces.
type MockChargeRepository struct {
	mu      sync.Mutex
	charges map[string]*charge.Charge
	events  []*charge.StatusEvent
	nextID  int64

	CreateFunc                  func(ctx context.Context, c *charge.Charge) error
	GetByExternalIDFunc         func(ctx context.Context, externalID string) (*charge.Charge, error)
	UpdateStatusFunc            func(ctx context.Context, externalID string, expectedFrom, to charge.Status) error
	SetStatusFunc               func(ctx context.Context, externalID string, to charge.Status) error
	SetGatewayTransactionIDFunc func(ctx context.Context, externalID, gatewayTransactionID string) error
	UpdateParityCheckFunc       func(ctx context.Context, externalID string, status charge.ParityCheckStatus, checkedAt time.Time) error
	InsertStatusEventFunc       func(ctx context.Context, e *charge.StatusEvent) (*charge.StatusEvent, error)
	GetStatusEventsFunc         func(ctx context.Context, externalID string) ([]*charge.StatusEvent, error)
	CountStatusEventsFunc       func(ctx context.Context, externalID string, status charge.Status) (int, error)
}

func NewMockChargeRepository() *MockChargeRepository {
	return &MockChargeRepository{
		charges: make(map[string]*charge.Charge),
		nextID:  1,
	}
}

// AddCharge pre-populates the mock with a charge.
func (m *MockChargeRepository) AddCharge(c *charge.Charge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *c
	m.charges[c.ExternalID] = &stored
}

// StoredStatus returns the authoritative status held by the mock.
func (m *MockChargeRepository) StoredStatus(externalID string) charge.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[externalID]
	if !ok {
		return ""
	}
	return c.Status
}

// StatusEvents returns all recorded ledger entries for a charge.
func (m *MockChargeRepository) StatusEvents(externalID string) []*charge.StatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*charge.StatusEvent
	for _, e := range m.events {
		if e.ChargeExternalID == externalID {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockChargeRepository) Create(ctx context.Context, c *charge.Charge) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID
	m.nextID++
	stored := *c
	m.charges[c.ExternalID] = &stored
	return nil
}

func (m *MockChargeRepository) GetByExternalID(ctx context.Context, externalID string) (*charge.Charge, error) {
	if m.GetByExternalIDFunc != nil {
		return m.GetByExternalIDFunc(ctx, externalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[externalID]
	if !ok {
		return nil, domainErrors.ErrChargeNotFound
	}
	// Each caller gets its own snapshot, like a database read.
	snapshot := *c
	return &snapshot, nil
}

func (m *MockChargeRepository) UpdateStatus(ctx context.Context, externalID string, expectedFrom, to charge.Status) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, externalID, expectedFrom, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[externalID]
	if !ok {
		return domainErrors.ErrChargeNotFound
	}
	if c.Status != expectedFrom {
		return domainErrors.ErrOptimisticLockFailed
	}
	c.Status = to
	return nil
}

func (m *MockChargeRepository) SetStatus(ctx context.Context, externalID string, to charge.Status) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, externalID, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[externalID]
	if !ok {
		return domainErrors.ErrChargeNotFound
	}
	c.Status = to
	return nil
}

func (m *MockChargeRepository) SetGatewayTransactionID(ctx context.Context, externalID, gatewayTransactionID string) error {
	if m.SetGatewayTransactionIDFunc != nil {
		return m.SetGatewayTransactionIDFunc(ctx, externalID, gatewayTransactionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[externalID]
	if !ok {
		return domainErrors.ErrChargeNotFound
	}
	c.GatewayTransactionID = &gatewayTransactionID
	return nil
}

func (m *MockChargeRepository) UpdateParityCheck(ctx context.Context, externalID string, status charge.ParityCheckStatus, checkedAt time.Time) error {
	if m.UpdateParityCheckFunc != nil {
		return m.UpdateParityCheckFunc(ctx, externalID, status, checkedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[externalID]
	if !ok {
		return domainErrors.ErrChargeNotFound
	}
	c.ParityCheckStatus = status
	c.ParityCheckDate = &checkedAt
	return nil
}

func (m *MockChargeRepository) InsertStatusEvent(ctx context.Context, e *charge.StatusEvent) (*charge.StatusEvent, error) {
	if m.InsertStatusEventFunc != nil {
		return m.InsertStatusEventFunc(ctx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	m.nextID++
	m.events = append(m.events, e)
	return e, nil
}

func (m *MockChargeRepository) GetStatusEvents(ctx context.Context, externalID string) ([]*charge.StatusEvent, error) {
	if m.GetStatusEventsFunc != nil {
		return m.GetStatusEventsFunc(ctx, externalID)
	}
	return m.StatusEvents(externalID), nil
}

func (m *MockChargeRepository) CountStatusEvents(ctx context.Context, externalID string, status charge.Status) (int, error) {
	if m.CountStatusEventsFunc != nil {
		return m.CountStatusEventsFunc(ctx, externalID, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.events {
		if e.ChargeExternalID == externalID && e.Status == status {
			count++
		}
	}
	return count, nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Event Repository Mock ---

// MockEventRepository is a mock implementation of event.Repository keyed on
// the idempotency triple.
type MockEventRepository struct {
	mu      sync.Mutex
	records map[string]*event.EmittedEvent
	nextID  int64

	RecordEmissionFunc func(ctx context.Context, e event.Event, emitted bool, doNotRetryEmitUntil *time.Time) error
	MarkEmittedFunc    func(ctx context.Context, resourceType event.ResourceType, resourceExternalID, eventType string) error
	FindUnemittedFunc  func(ctx context.Context, retryableAt time.Time, limit int) ([]*event.EmittedEvent, error)
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{
		records: make(map[string]*event.EmittedEvent),
		nextID:  1,
	}
}

func recordKey(resourceType event.ResourceType, resourceExternalID, eventType string) string {
	return string(resourceType) + "|" + resourceExternalID + "|" + eventType
}

// Record returns the stored record for the triple, or nil.
func (m *MockEventRepository) Record(resourceType event.ResourceType, resourceExternalID, eventType string) *event.EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[recordKey(resourceType, resourceExternalID, eventType)]
}

func (m *MockEventRepository) RecordEmission(ctx context.Context, e event.Event, emitted bool, doNotRetryEmitUntil *time.Time) error {
	if m.RecordEmissionFunc != nil {
		return m.RecordEmissionFunc(ctx, e, emitted, doNotRetryEmitUntil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(e.ResourceType, e.ResourceExternalID, e.EventType)
	if existing, ok := m.records[key]; ok {
		existing.EventDate = e.Timestamp
		if emitted {
			existing.Emitted = true
			existing.DoNotRetryEmitUntil = nil
		} else if !existing.Emitted {
			existing.DoNotRetryEmitUntil = doNotRetryEmitUntil
		}
		return nil
	}
	rec := &event.EmittedEvent{
		ID:                 m.nextID,
		ResourceType:       e.ResourceType,
		ResourceExternalID: e.ResourceExternalID,
		EventType:          e.EventType,
		EventDate:          e.Timestamp,
		Emitted:            emitted,
	}
	if !emitted {
		rec.DoNotRetryEmitUntil = doNotRetryEmitUntil
	}
	m.nextID++
	m.records[key] = rec
	return nil
}

func (m *MockEventRepository) MarkEmitted(ctx context.Context, resourceType event.ResourceType, resourceExternalID, eventType string) error {
	if m.MarkEmittedFunc != nil {
		return m.MarkEmittedFunc(ctx, resourceType, resourceExternalID, eventType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[recordKey(resourceType, resourceExternalID, eventType)]; ok {
		rec.Emitted = true
		rec.DoNotRetryEmitUntil = nil
	}
	return nil
}

func (m *MockEventRepository) FindUnemitted(ctx context.Context, retryableAt time.Time, limit int) ([]*event.EmittedEvent, error) {
	if m.FindUnemittedFunc != nil {
		return m.FindUnemittedFunc(ctx, retryableAt, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.EmittedEvent
	for _, rec := range m.records {
		if rec.Emitted {
			continue
		}
		if rec.DoNotRetryEmitUntil != nil && rec.DoNotRetryEmitUntil.After(retryableAt) {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- Event Bus Mock ---

// MockEventBus records published events and can be made to fail.
type MockEventBus struct {
	mu        sync.Mutex
	published []event.Event

	PublishFunc func(ctx context.Context, e event.Event) error
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{}
}

func (m *MockEventBus) Publish(ctx context.Context, e event.Event) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, e)
	return nil
}

// Published returns all events accepted by the bus.
func (m *MockEventBus) Published() []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Event, len(m.published))
	copy(out, m.published)
	return out
}

// --- State Transition Offerer Mock ---

// MockOfferer records offered state transitions.
type MockOfferer struct {
	mu     sync.Mutex
	offers []charge.StateTransition

	OfferFunc func(ctx context.Context, st charge.StateTransition)
}

func NewMockOfferer() *MockOfferer {
	return &MockOfferer{}
}

func (m *MockOfferer) Offer(ctx context.Context, st charge.StateTransition) {
	if m.OfferFunc != nil {
		m.OfferFunc(ctx, st)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers = append(m.offers, st)
}

// Offers returns all recorded transitions.
func (m *MockOfferer) Offers() []charge.StateTransition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]charge.StateTransition, len(m.offers))
	copy(out, m.offers)
	return out
}
