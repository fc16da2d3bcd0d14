package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kerc-health/recordvault/internal/domain/access"
)

type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

func (r *AccessRepository) CreateGrant(ctx context.Context, g *access.Grant) error {
	// Granting an existing pair is a no-op, not a conflict.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "patient_id"}, {Name: "mrn"}},
			DoNothing: true,
		}).
		Create(g).Error
	if err != nil {
		return fmt.Errorf("creating grant: %w", err)
	}
	return nil
}

func (r *AccessRepository) HasGrant(ctx context.Context, patientID uuid.UUID, mrn string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&access.Grant{}).
		Where("patient_id = ? AND mrn = ?", patientID, mrn).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("counting grants: %w", err)
	}
	return count > 0, nil
}

func (r *AccessRepository) CreateRequest(ctx context.Context, req *access.AccessRequest) (*access.AccessRequest, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "requester"}, {Name: "mrn"}},
			DoNothing: true,
		}).
		Create(req).Error
	if err != nil {
		return nil, fmt.Errorf("creating access request: %w", err)
	}

	if req.RequestID != 0 {
		return req, nil
	}

	// Conflict path: a pending request for this (requester, mrn) already
	// exists; return it so repeat requests coalesce.
	var existing access.AccessRequest
	err = r.db.WithContext(ctx).
		Where("requester = ? AND mrn = ?", req.Requester, req.MRN).
		First(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("fetching coalesced request: %w", err)
	}
	return &existing, nil
}

func (r *AccessRepository) GetRequest(ctx context.Context, requestID uint64) (*access.AccessRequest, error) {
	var req access.AccessRequest
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, access.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching access request: %w", err)
	}
	return &req, nil
}

func (r *AccessRepository) ListPending(ctx context.Context) ([]*access.AccessRequest, error) {
	var requests []*access.AccessRequest
	err := r.db.WithContext(ctx).Order("request_id ASC").Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}
	return requests, nil
}

func (r *AccessRepository) Resolve(ctx context.Context, requestID uint64, grantedBy uuid.UUID) (*access.AccessRequest, error) {
	var resolved *access.AccessRequest

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req access.AccessRequest
		// Lock the row so two concurrent approvals cannot both resolve it.
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("request_id = ?", requestID).
			First(&req).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return access.ErrRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("locking access request: %w", err)
		}

		grant := &access.Grant{
			PatientID: req.Requester,
			MRN:       req.MRN,
			GrantedBy: grantedBy,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "patient_id"}, {Name: "mrn"}},
			DoNothing: true,
		}).Create(grant).Error
		if err != nil {
			return fmt.Errorf("recording grant: %w", err)
		}

		if err := tx.Delete(&access.AccessRequest{}, "request_id = ?", requestID).Error; err != nil {
			return fmt.Errorf("removing pending request: %w", err)
		}

		resolved = &req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}
