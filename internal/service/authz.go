package service

import "github.com/google/uuid"

// OwnerPolicy is the single authorization boundary for privileged ledger
// operations. Exactly one owner principal exists per deployment; every
// owner-only operation is checked here rather than inline.
type OwnerPolicy struct {
	ownerID uuid.UUID
}

func NewOwnerPolicy(ownerID uuid.UUID) *OwnerPolicy {
	return &OwnerPolicy{ownerID: ownerID}
}

func (p *OwnerPolicy) Authorize(caller uuid.UUID) error {
	if caller != p.ownerID {
		return ErrUnauthorized
	}
	return nil
}

func (p *OwnerPolicy) Owner() uuid.UUID {
	return p.ownerID
}
