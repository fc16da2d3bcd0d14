package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kerc-health/recordvault/internal/domain/record"
	"github.com/kerc-health/recordvault/internal/events"
)

var (
	testOwnerID   = uuid.MustParse("8a2e9f1c-4b6d-4f3a-9c1e-2d5b7a8e0f41")
	testPatientID = uuid.MustParse("1f4d8c2a-9e6b-4a1d-8f3c-7b2e5d9a0c63")
)

const (
	testMRN = "251801187"
	testCID = "QmTest123"
)

func newRegistryService(repo *mockRecordRepo, pub events.Publisher) *RegistryService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return NewRegistryService(repo, NewOwnerPolicy(testOwnerID), pub, newTestAudit(), nil, zap.NewNop())
}

func TestRegisterRecord(t *testing.T) {
	var stored *record.Record
	repo := &mockRecordRepo{
		UpsertFunc: func(ctx context.Context, r *record.Record) error {
			stored = r
			return nil
		},
	}
	pub := &capturingPublisher{}
	svc := newRegistryService(repo, pub)

	r, err := svc.RegisterRecord(context.Background(), testOwnerID, &record.RegisterCommand{
		MRN:        testMRN,
		ContentCID: testCID,
	}, "10.0.0.1")

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, testMRN, r.MRN)
	assert.Equal(t, testCID, r.ContentCID)
	assert.Equal(t, testOwnerID, stored.RegisteredBy)

	evs := pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeRecordRegistered, evs[0].Type)
	assert.Equal(t, testMRN, evs[0].MRN)
}

func TestRegisterRecordNonOwner(t *testing.T) {
	repo := &mockRecordRepo{
		UpsertFunc: func(ctx context.Context, r *record.Record) error {
			t.Fatal("repository must not be touched for an unauthorized caller")
			return nil
		},
	}
	svc := newRegistryService(repo, nil)

	_, err := svc.RegisterRecord(context.Background(), testPatientID, &record.RegisterCommand{
		MRN:        testMRN,
		ContentCID: testCID,
	}, "")

	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterRecordValidation(t *testing.T) {
	svc := newRegistryService(&mockRecordRepo{}, nil)

	_, err := svc.RegisterRecord(context.Background(), testOwnerID, &record.RegisterCommand{
		MRN:        "bad mrn with spaces",
		ContentCID: testCID,
	}, "")
	assert.ErrorIs(t, err, record.ErrInvalidMRN)

	_, err = svc.RegisterRecord(context.Background(), testOwnerID, &record.RegisterCommand{
		MRN:        testMRN,
		ContentCID: "",
	}, "")
	assert.ErrorIs(t, err, record.ErrEmptyCID)
}

func TestRegisterRecordOverwriteAllowed(t *testing.T) {
	repo := &mockRecordRepo{
		GetByMRNFunc: func(ctx context.Context, mrn string) (*record.Record, error) {
			return &record.Record{MRN: mrn, ContentCID: "QmOld"}, nil
		},
	}
	svc := newRegistryService(repo, nil)

	r, err := svc.RegisterRecord(context.Background(), testOwnerID, &record.RegisterCommand{
		MRN:        testMRN,
		ContentCID: testCID,
	}, "")

	require.NoError(t, err)
	assert.Equal(t, testCID, r.ContentCID)
}

func TestRegisterBulk(t *testing.T) {
	var stored []*record.Record
	repo := &mockRecordRepo{
		UpsertBatchFunc: func(ctx context.Context, rs []*record.Record) error {
			stored = rs
			return nil
		},
	}
	pub := &capturingPublisher{}
	svc := newRegistryService(repo, pub)

	mrns := []string{"251801187", "251801188", "251801189"}
	cids := []string{"QmTest123", "QmTest124", "QmTest125"}

	records, err := svc.RegisterBulk(context.Background(), testOwnerID, mrns, cids, "")

	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Len(t, stored, 3)
	for i := range mrns {
		assert.Equal(t, mrns[i], stored[i].MRN)
		assert.Equal(t, cids[i], stored[i].ContentCID)
	}
	assert.Len(t, pub.published(), 3)
}

func TestRegisterBulkLengthMismatch(t *testing.T) {
	repo := &mockRecordRepo{
		UpsertBatchFunc: func(ctx context.Context, rs []*record.Record) error {
			t.Fatal("mismatched batch must not reach the repository")
			return nil
		},
	}
	svc := newRegistryService(repo, nil)

	_, err := svc.RegisterBulk(context.Background(), testOwnerID,
		[]string{"251801187", "251801188"},
		[]string{"QmTest123"},
		"")

	assert.ErrorIs(t, err, record.ErrLengthMismatch)
}

func TestRegisterBulkEmpty(t *testing.T) {
	svc := newRegistryService(&mockRecordRepo{}, nil)

	_, err := svc.RegisterBulk(context.Background(), testOwnerID, nil, nil, "")
	assert.ErrorIs(t, err, record.ErrEmptyBatch)
}

func TestRegisterBulkInvalidEntriesAbortAll(t *testing.T) {
	repo := &mockRecordRepo{
		UpsertBatchFunc: func(ctx context.Context, rs []*record.Record) error {
			t.Fatal("invalid batch must not reach the repository")
			return nil
		},
	}
	svc := newRegistryService(repo, nil)

	_, err := svc.RegisterBulk(context.Background(), testOwnerID,
		[]string{"251801187", "", "251801189"},
		[]string{"QmTest123", "QmTest124", ""},
		"")

	// Every bad entry is reported at once, not just the first.
	var validErr *ValidationError
	require.ErrorAs(t, err, &validErr)
	require.Len(t, validErr.Fields, 2)
	assert.Contains(t, validErr.Fields[0], "entry 1")
	assert.Contains(t, validErr.Fields[0], record.ErrInvalidMRN.Error())
	assert.Contains(t, validErr.Fields[1], "entry 2")
	assert.Contains(t, validErr.Fields[1], record.ErrEmptyCID.Error())
}

func TestGetRecordCID(t *testing.T) {
	repo := &mockRecordRepo{
		GetByMRNFunc: func(ctx context.Context, mrn string) (*record.Record, error) {
			if mrn == testMRN {
				return &record.Record{MRN: mrn, ContentCID: testCID}, nil
			}
			return nil, record.ErrRecordNotFound
		},
	}
	svc := newRegistryService(repo, nil)

	cid, err := svc.GetRecordCID(context.Background(), testMRN)
	require.NoError(t, err)
	assert.Equal(t, testCID, cid)

	// Unregistered MRN reads as empty, not as an error.
	cid, err = svc.GetRecordCID(context.Background(), "999999999")
	require.NoError(t, err)
	assert.Empty(t, cid)
}

func TestRegisterRecordPublishFailureIsNonFatal(t *testing.T) {
	repo := &mockRecordRepo{}
	pub := &capturingPublisher{err: errors.New("broker unavailable")}
	svc := newRegistryService(repo, pub)

	_, err := svc.RegisterRecord(context.Background(), testOwnerID, &record.RegisterCommand{
		MRN:        testMRN,
		ContentCID: testCID,
	}, "")

	assert.NoError(t, err)
}
