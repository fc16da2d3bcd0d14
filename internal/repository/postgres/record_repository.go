package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kerc-health/recordvault/internal/domain/record"
)

type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

var recordConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "mrn"}},
	DoUpdates: clause.AssignmentColumns([]string{"content_cid", "registered_by", "updated_at"}),
}

func (r *RecordRepository) Upsert(ctx context.Context, rec *record.Record) error {
	if err := r.db.WithContext(ctx).Clauses(recordConflict).Create(rec).Error; err != nil {
		return fmt.Errorf("upserting record: %w", err)
	}
	return nil
}

func (r *RecordRepository) UpsertBatch(ctx context.Context, records []*record.Record) error {
	// One transaction per batch: a failed batch registers nothing.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			if err := tx.Clauses(recordConflict).Create(rec).Error; err != nil {
				return fmt.Errorf("upserting record %s: %w", rec.MRN, err)
			}
		}
		return nil
	})
}

func (r *RecordRepository) GetByMRN(ctx context.Context, mrn string) (*record.Record, error) {
	var rec record.Record
	err := r.db.WithContext(ctx).Where("mrn = ?", mrn).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, record.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching record: %w", err)
	}
	return &rec, nil
}

func (r *RecordRepository) Exists(ctx context.Context, mrn string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&record.Record{}).Where("mrn = ?", mrn).Count(&count).Error; err != nil {
		return false, fmt.Errorf("counting records: %w", err)
	}
	return count > 0, nil
}
