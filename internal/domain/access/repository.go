package access

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateGrant is idempotent: granting an existing (patient, mrn) pair is a no-op.
	CreateGrant(ctx context.Context, g *Grant) error
	HasGrant(ctx context.Context, patientID uuid.UUID, mrn string) (bool, error)

	// CreateRequest appends to the pending queue, coalescing with an existing
	// pending request for the same (requester, mrn). Returns the pending request.
	CreateRequest(ctx context.Context, r *AccessRequest) (*AccessRequest, error)
	GetRequest(ctx context.Context, requestID uint64) (*AccessRequest, error)
	// ListPending returns the queue in submission (request ID) order.
	ListPending(ctx context.Context) ([]*AccessRequest, error)
	// Resolve removes the request and records the grant in one transaction.
	// Fails with ErrRequestNotFound if the ID is unknown or already resolved.
	Resolve(ctx context.Context, requestID uint64, grantedBy uuid.UUID) (*AccessRequest, error)
}
