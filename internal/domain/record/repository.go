package record

import "context"

type Repository interface {
	// Upsert creates the record or overwrites its content pointer.
	Upsert(ctx context.Context, r *Record) error
	// UpsertBatch applies Upsert semantics per record, in order, inside one
	// transaction: a failed batch leaves nothing registered.
	UpsertBatch(ctx context.Context, records []*Record) error
	GetByMRN(ctx context.Context, mrn string) (*Record, error)
	Exists(ctx context.Context, mrn string) (bool, error)
}
