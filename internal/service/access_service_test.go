package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kerc-health/recordvault/internal/domain/access"
	"github.com/kerc-health/recordvault/internal/domain/record"
	"github.com/kerc-health/recordvault/internal/events"
)

func newAccessService(repo *mockAccessRepo, recordRepo *mockRecordRepo, pub events.Publisher) *AccessService {
	if recordRepo == nil {
		recordRepo = &mockRecordRepo{}
	}
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return NewAccessService(repo, recordRepo, NewOwnerPolicy(testOwnerID), pub, newTestAudit(), nil, zap.NewNop())
}

func TestAssociatePatient(t *testing.T) {
	var created *access.Grant
	repo := &mockAccessRepo{
		CreateGrantFunc: func(ctx context.Context, g *access.Grant) error {
			created = g
			return nil
		},
	}
	pub := &capturingPublisher{}
	svc := newAccessService(repo, nil, pub)

	err := svc.AssociatePatient(context.Background(), testOwnerID, testPatientID, testMRN, "10.0.0.1")

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, testPatientID, created.PatientID)
	assert.Equal(t, testMRN, created.MRN)
	assert.Equal(t, testOwnerID, created.GrantedBy)

	evs := pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeAccessGranted, evs[0].Type)
}

func TestAssociatePatientNonOwner(t *testing.T) {
	svc := newAccessService(&mockAccessRepo{}, nil, nil)

	err := svc.AssociatePatient(context.Background(), testPatientID, testPatientID, testMRN, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAssociatePatientUnregisteredMRN(t *testing.T) {
	recordRepo := &mockRecordRepo{
		ExistsFunc: func(ctx context.Context, mrn string) (bool, error) {
			return false, nil
		},
	}
	repo := &mockAccessRepo{
		CreateGrantFunc: func(ctx context.Context, g *access.Grant) error {
			t.Fatal("no grant may be created for an unregistered record")
			return nil
		},
	}
	svc := newAccessService(repo, recordRepo, nil)

	err := svc.AssociatePatient(context.Background(), testOwnerID, testPatientID, testMRN, "")
	assert.ErrorIs(t, err, record.ErrRecordNotFound)
}

func TestHasAccess(t *testing.T) {
	repo := &mockAccessRepo{
		HasGrantFunc: func(ctx context.Context, patientID uuid.UUID, mrn string) (bool, error) {
			return patientID == testPatientID && mrn == testMRN, nil
		},
	}
	svc := newAccessService(repo, nil, nil)

	ok, err := svc.HasAccess(context.Background(), testPatientID, testMRN)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasAccess(context.Background(), uuid.New(), testMRN)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRequestAccess(t *testing.T) {
	repo := &mockAccessRepo{
		CreateRequestFunc: func(ctx context.Context, r *access.AccessRequest) (*access.AccessRequest, error) {
			r.RequestID = 42
			return r, nil
		},
	}
	pub := &capturingPublisher{}
	svc := newAccessService(repo, nil, pub)

	req, err := svc.RequestAccess(context.Background(), testPatientID, testMRN, "10.0.0.2")

	require.NoError(t, err)
	assert.Equal(t, uint64(42), req.RequestID)
	assert.Equal(t, testPatientID, req.Requester)

	evs := pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeAccessRequested, evs[0].Type)
	assert.Equal(t, uint64(42), evs[0].RequestID)
}

func TestRequestAccessUnregisteredMRN(t *testing.T) {
	recordRepo := &mockRecordRepo{
		ExistsFunc: func(ctx context.Context, mrn string) (bool, error) {
			return false, nil
		},
	}
	svc := newAccessService(&mockAccessRepo{}, recordRepo, nil)

	_, err := svc.RequestAccess(context.Background(), testPatientID, testMRN, "")
	assert.ErrorIs(t, err, record.ErrRecordNotFound)
}

func TestRequestAccessCoalesces(t *testing.T) {
	// The repository coalesces duplicates; the service surfaces the same
	// pending entry for repeated requests.
	pending := &access.AccessRequest{RequestID: 7, Requester: testPatientID, MRN: testMRN}
	repo := &mockAccessRepo{
		CreateRequestFunc: func(ctx context.Context, r *access.AccessRequest) (*access.AccessRequest, error) {
			return pending, nil
		},
	}
	svc := newAccessService(repo, nil, nil)

	first, err := svc.RequestAccess(context.Background(), testPatientID, testMRN, "")
	require.NoError(t, err)
	second, err := svc.RequestAccess(context.Background(), testPatientID, testMRN, "")
	require.NoError(t, err)

	assert.Equal(t, first.RequestID, second.RequestID)
}

func TestPendingRequestsOwnerOnly(t *testing.T) {
	queue := []*access.AccessRequest{
		{RequestID: 1, Requester: testPatientID, MRN: "251801187"},
		{RequestID: 2, Requester: testPatientID, MRN: "251801188"},
	}
	repo := &mockAccessRepo{
		ListPendingFunc: func(ctx context.Context) ([]*access.AccessRequest, error) {
			return queue, nil
		},
	}
	svc := newAccessService(repo, nil, nil)

	got, err := svc.PendingRequests(context.Background(), testOwnerID)
	require.NoError(t, err)
	assert.Equal(t, queue, got)

	_, err = svc.PendingRequests(context.Background(), testPatientID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestApproveAccess(t *testing.T) {
	resolved := &access.AccessRequest{RequestID: 42, Requester: testPatientID, MRN: testMRN}
	repo := &mockAccessRepo{
		ResolveFunc: func(ctx context.Context, requestID uint64, grantedBy uuid.UUID) (*access.AccessRequest, error) {
			if requestID != 42 {
				return nil, access.ErrRequestNotFound
			}
			assert.Equal(t, testOwnerID, grantedBy)
			return resolved, nil
		},
	}
	pub := &capturingPublisher{}
	svc := newAccessService(repo, nil, pub)

	req, err := svc.ApproveAccess(context.Background(), testOwnerID, 42, "10.0.0.1")

	require.NoError(t, err)
	assert.Equal(t, resolved, req)

	evs := pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeAccessGranted, evs[0].Type)
	assert.Equal(t, testPatientID, evs[0].Principal)
}

func TestApproveAccessNonOwner(t *testing.T) {
	svc := newAccessService(&mockAccessRepo{}, nil, nil)

	_, err := svc.ApproveAccess(context.Background(), testPatientID, 1, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestApproveAccessStaleID(t *testing.T) {
	// Second approval of the same ID must fail: the repository reports the
	// request as already resolved.
	resolvedOnce := false
	repo := &mockAccessRepo{
		ResolveFunc: func(ctx context.Context, requestID uint64, grantedBy uuid.UUID) (*access.AccessRequest, error) {
			if resolvedOnce {
				return nil, access.ErrRequestNotFound
			}
			resolvedOnce = true
			return &access.AccessRequest{RequestID: requestID, Requester: testPatientID, MRN: testMRN}, nil
		},
	}
	svc := newAccessService(repo, nil, nil)

	_, err := svc.ApproveAccess(context.Background(), testOwnerID, 5, "")
	require.NoError(t, err)

	_, err = svc.ApproveAccess(context.Background(), testOwnerID, 5, "")
	assert.ErrorIs(t, err, access.ErrRequestNotFound)
}
