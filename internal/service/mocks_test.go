package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kerc-health/recordvault/internal/domain"
	"github.com/kerc-health/recordvault/internal/domain/access"
	"github.com/kerc-health/recordvault/internal/domain/record"
	"github.com/kerc-health/recordvault/internal/events"
)

var _ record.Repository = (*mockRecordRepo)(nil)

type mockRecordRepo struct {
	UpsertFunc      func(ctx context.Context, r *record.Record) error
	UpsertBatchFunc func(ctx context.Context, rs []*record.Record) error
	GetByMRNFunc    func(ctx context.Context, mrn string) (*record.Record, error)
	ExistsFunc      func(ctx context.Context, mrn string) (bool, error)
}

func (m *mockRecordRepo) Upsert(ctx context.Context, r *record.Record) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, r)
	}
	return nil
}

func (m *mockRecordRepo) UpsertBatch(ctx context.Context, rs []*record.Record) error {
	if m.UpsertBatchFunc != nil {
		return m.UpsertBatchFunc(ctx, rs)
	}
	return nil
}

func (m *mockRecordRepo) GetByMRN(ctx context.Context, mrn string) (*record.Record, error) {
	if m.GetByMRNFunc != nil {
		return m.GetByMRNFunc(ctx, mrn)
	}
	return nil, record.ErrRecordNotFound
}

func (m *mockRecordRepo) Exists(ctx context.Context, mrn string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, mrn)
	}
	return true, nil
}

var _ access.Repository = (*mockAccessRepo)(nil)

type mockAccessRepo struct {
	CreateGrantFunc   func(ctx context.Context, g *access.Grant) error
	HasGrantFunc      func(ctx context.Context, patientID uuid.UUID, mrn string) (bool, error)
	CreateRequestFunc func(ctx context.Context, r *access.AccessRequest) (*access.AccessRequest, error)
	GetRequestFunc    func(ctx context.Context, requestID uint64) (*access.AccessRequest, error)
	ListPendingFunc   func(ctx context.Context) ([]*access.AccessRequest, error)
	ResolveFunc       func(ctx context.Context, requestID uint64, grantedBy uuid.UUID) (*access.AccessRequest, error)
}

func (m *mockAccessRepo) CreateGrant(ctx context.Context, g *access.Grant) error {
	if m.CreateGrantFunc != nil {
		return m.CreateGrantFunc(ctx, g)
	}
	return nil
}

func (m *mockAccessRepo) HasGrant(ctx context.Context, patientID uuid.UUID, mrn string) (bool, error) {
	if m.HasGrantFunc != nil {
		return m.HasGrantFunc(ctx, patientID, mrn)
	}
	return false, nil
}

func (m *mockAccessRepo) CreateRequest(ctx context.Context, r *access.AccessRequest) (*access.AccessRequest, error) {
	if m.CreateRequestFunc != nil {
		return m.CreateRequestFunc(ctx, r)
	}
	return nil, errors.New("CreateRequestFunc not set")
}

func (m *mockAccessRepo) GetRequest(ctx context.Context, requestID uint64) (*access.AccessRequest, error) {
	if m.GetRequestFunc != nil {
		return m.GetRequestFunc(ctx, requestID)
	}
	return nil, access.ErrRequestNotFound
}

func (m *mockAccessRepo) ListPending(ctx context.Context) ([]*access.AccessRequest, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx)
	}
	return nil, nil
}

func (m *mockAccessRepo) Resolve(ctx context.Context, requestID uint64, grantedBy uuid.UUID) (*access.AccessRequest, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, requestID, grantedBy)
	}
	return nil, access.ErrRequestNotFound
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

var _ events.Publisher = (*capturingPublisher)(nil)

// capturingPublisher records published events in order.
type capturingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (p *capturingPublisher) Publish(ctx context.Context, e *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) published() []*events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*events.Event, len(p.events))
	copy(out, p.events)
	return out
}

func newTestAudit() *AuditService {
	return NewAuditService(&mockAuditRepo{}, nil, zap.NewNop())
}
