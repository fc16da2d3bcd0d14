package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kerc-health/recordvault/internal/domain/record"
	"github.com/kerc-health/recordvault/internal/events"
	"github.com/kerc-health/recordvault/pkg/metrics"
)

// RegistryService owns the authoritative mrn -> content pointer mapping.
type RegistryService struct {
	repo      record.Repository
	policy    *OwnerPolicy
	publisher events.Publisher
	auditSvc  *AuditService
	metrics   *metrics.Collector
	log       *zap.Logger
}

func NewRegistryService(repo record.Repository, policy *OwnerPolicy, publisher events.Publisher, auditSvc *AuditService, m *metrics.Collector, log *zap.Logger) *RegistryService {
	return &RegistryService{repo: repo, policy: policy, publisher: publisher, auditSvc: auditSvc, metrics: m, log: log}
}

// RegisterRecord creates or overwrites the mapping entry for one MRN.
// Idempotent on identical input; a differing content pointer for an existing
// MRN overwrites, which is permitted for the owner only.
func (s *RegistryService) RegisterRecord(ctx context.Context, caller uuid.UUID, cmd *record.RegisterCommand, ip string) (*record.Record, error) {
	if err := s.policy.Authorize(caller); err != nil {
		return nil, err
	}
	if err := validateRegisterPair(cmd.MRN, cmd.ContentCID); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByMRN(ctx, cmd.MRN)
	if err != nil && !errors.Is(err, record.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up record: %w", err)
	}

	r := &record.Record{
		MRN:          cmd.MRN,
		ContentCID:   cmd.ContentCID,
		RegisteredBy: caller,
	}

	if err := s.repo.Upsert(ctx, r); err != nil {
		s.log.Error("failed to register record", zap.String("mrn", cmd.MRN), zap.Error(err))
		return nil, fmt.Errorf("registering record: %w", err)
	}

	if existing != nil && existing.ContentCID != cmd.ContentCID {
		s.log.Warn("record content pointer overwritten",
			zap.String("mrn", cmd.MRN),
			zap.String("previous_cid", existing.ContentCID),
		)
		if s.metrics != nil {
			s.metrics.RecordsOverwritten.Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.RecordsRegistered.Inc()
	}

	s.publish(ctx, events.RecordRegistered(r.MRN, r.ContentCID))

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller,
		UserRole:     "owner",
		Action:       "register",
		ResourceType: "record",
		ResourceID:   r.MRN,
		IPAddress:    ip,
	})

	return r, nil
}

// RegisterBulk applies RegisterRecord semantics per pair, in order, inside one
// transaction. Mismatched list lengths fail before any state is touched.
// There is no registry-side cap on batch size; the upload pipeline's batching
// is a client policy.
func (s *RegistryService) RegisterBulk(ctx context.Context, caller uuid.UUID, mrns, cids []string, ip string) ([]*record.Record, error) {
	if err := s.policy.Authorize(caller); err != nil {
		return nil, err
	}
	if len(mrns) != len(cids) {
		return nil, record.ErrLengthMismatch
	}
	if len(mrns) == 0 {
		return nil, record.ErrEmptyBatch
	}

	// Every invalid entry is reported, not just the first: a rejected batch
	// should be fixable in one pass.
	var invalid []string
	records := make([]*record.Record, len(mrns))
	for i := range mrns {
		if err := validateRegisterPair(mrns[i], cids[i]); err != nil {
			invalid = append(invalid, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		records[i] = &record.Record{
			MRN:          mrns[i],
			ContentCID:   cids[i],
			RegisteredBy: caller,
		}
	}
	if len(invalid) > 0 {
		return nil, &ValidationError{Fields: invalid}
	}

	if err := s.repo.UpsertBatch(ctx, records); err != nil {
		s.log.Error("bulk registration failed", zap.Int("batch_size", len(records)), zap.Error(err))
		return nil, fmt.Errorf("registering batch: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordsRegistered.Add(float64(len(records)))
	}

	for _, r := range records {
		s.publish(ctx, events.RecordRegistered(r.MRN, r.ContentCID))
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller,
		UserRole:     "owner",
		Action:       "register",
		ResourceType: "record_batch",
		ResourceID:   fmt.Sprintf("batch:%d", len(records)),
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"count":%d}`, len(records)),
	})

	s.log.Info("bulk records registered", zap.Int("count", len(records)))
	return records, nil
}

// GetRecordCID returns the current content pointer for an MRN, or the empty
// string when the MRN is unregistered. Absence is a valid result, not an error.
func (s *RegistryService) GetRecordCID(ctx context.Context, mrn string) (string, error) {
	r, err := s.repo.GetByMRN(ctx, mrn)
	if errors.Is(err, record.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up record: %w", err)
	}
	return r.ContentCID, nil
}

func (s *RegistryService) publish(ctx context.Context, e *events.Event) {
	// Notifications are best-effort: a publish failure must not fail the
	// already-committed registration.
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Error("failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

func validateRegisterPair(mrn, cid string) error {
	if !record.ValidMRN(mrn) {
		return record.ErrInvalidMRN
	}
	if cid == "" {
		return record.ErrEmptyCID
	}
	return nil
}
