package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kerc-health/recordvault/internal/domain/access"
	"github.com/kerc-health/recordvault/internal/domain/record"
	"github.com/kerc-health/recordvault/internal/events"
	"github.com/kerc-health/recordvault/pkg/metrics"
)

// AccessService owns patient-record associations and the pending request queue.
type AccessService struct {
	repo       access.Repository
	recordRepo record.Repository
	policy     *OwnerPolicy
	publisher  events.Publisher
	auditSvc   *AuditService
	metrics    *metrics.Collector
	log        *zap.Logger
}

func NewAccessService(repo access.Repository, recordRepo record.Repository, policy *OwnerPolicy, publisher events.Publisher, auditSvc *AuditService, m *metrics.Collector, log *zap.Logger) *AccessService {
	return &AccessService{repo: repo, recordRepo: recordRepo, policy: policy, publisher: publisher, auditSvc: auditSvc, metrics: m, log: log}
}

// AssociatePatient grants a principal access to a registered record. The MRN
// must exist in the registry; associating against an unregistered MRN is
// rejected rather than silently creating a dangling grant.
func (s *AccessService) AssociatePatient(ctx context.Context, caller, patientID uuid.UUID, mrn string, ip string) error {
	if err := s.policy.Authorize(caller); err != nil {
		return err
	}
	if err := s.requireRegistered(ctx, mrn); err != nil {
		return err
	}

	g := &access.Grant{
		PatientID: patientID,
		MRN:       mrn,
		GrantedBy: caller,
	}
	if err := s.repo.CreateGrant(ctx, g); err != nil {
		s.log.Error("failed to create grant", zap.String("mrn", mrn), zap.Error(err))
		return fmt.Errorf("creating grant: %w", err)
	}

	s.publish(ctx, events.AccessGranted(patientID, mrn))

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller,
		UserRole:     "owner",
		Action:       "associate",
		ResourceType: "grant",
		ResourceID:   mrn,
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"patient":%q}`, patientID),
	})

	return nil
}

// HasAccess reports whether a grant exists for the (principal, mrn) pair.
func (s *AccessService) HasAccess(ctx context.Context, principal uuid.UUID, mrn string) (bool, error) {
	return s.repo.HasGrant(ctx, principal, mrn)
}

// RequestAccess enqueues a pending request for any principal. Requests for the
// same (requester, mrn) coalesce with the already-pending entry, so the queue
// cannot grow unboundedly with duplicates.
func (s *AccessService) RequestAccess(ctx context.Context, requester uuid.UUID, mrn string, ip string) (*access.AccessRequest, error) {
	if err := s.requireRegistered(ctx, mrn); err != nil {
		return nil, err
	}

	req, err := s.repo.CreateRequest(ctx, &access.AccessRequest{
		Requester: requester,
		MRN:       mrn,
	})
	if err != nil {
		s.log.Error("failed to enqueue access request", zap.String("mrn", mrn), zap.Error(err))
		return nil, fmt.Errorf("enqueuing request: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AccessRequests.Inc()
	}

	s.publish(ctx, events.AccessRequested(requester, mrn, req.RequestID))

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       requester,
		UserRole:     "patient",
		Action:       "request",
		ResourceType: "access_request",
		ResourceID:   mrn,
		IPAddress:    ip,
	})

	return req, nil
}

// PendingRequests returns the full pending queue in submission order.
func (s *AccessService) PendingRequests(ctx context.Context, caller uuid.UUID) ([]*access.AccessRequest, error) {
	if err := s.policy.Authorize(caller); err != nil {
		return nil, err
	}
	return s.repo.ListPending(ctx)
}

// ApproveAccess resolves a pending request by its stable ID: the grant is
// recorded and the queue entry removed in one transaction. A stale or unknown
// ID fails with access.ErrRequestNotFound and mutates nothing, so two sessions
// approving concurrently cannot both succeed on the same request.
func (s *AccessService) ApproveAccess(ctx context.Context, caller uuid.UUID, requestID uint64, ip string) (*access.AccessRequest, error) {
	if err := s.policy.Authorize(caller); err != nil {
		return nil, err
	}

	req, err := s.repo.Resolve(ctx, requestID, caller)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AccessApprovals.Inc()
	}

	s.publish(ctx, events.AccessGranted(req.Requester, req.MRN))

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       caller,
		UserRole:     "owner",
		Action:       "approve",
		ResourceType: "access_request",
		ResourceID:   req.MRN,
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"request_id":%d,"requester":%q}`, req.RequestID, req.Requester),
	})

	s.log.Info("access request approved",
		zap.Uint64("request_id", req.RequestID),
		zap.String("mrn", req.MRN),
	)

	return req, nil
}

func (s *AccessService) requireRegistered(ctx context.Context, mrn string) error {
	exists, err := s.recordRepo.Exists(ctx, mrn)
	if err != nil {
		return fmt.Errorf("checking record existence: %w", err)
	}
	if !exists {
		return record.ErrRecordNotFound
	}
	return nil
}

func (s *AccessService) publish(ctx context.Context, e *events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Error("failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
