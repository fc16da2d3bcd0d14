package access

import (
	"time"

	"github.com/google/uuid"
)

// Grant associates a principal with a record it may view. Grants are
// many-to-many and never revoked in the current design.
type Grant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;uniqueIndex:idx_grants_patient_mrn"`
	MRN       string    `gorm:"column:mrn;type:varchar(64);not null;uniqueIndex:idx_grants_patient_mrn"`
	GrantedBy uuid.UUID `gorm:"column:granted_by;type:uuid;not null"`
}

func (Grant) TableName() string {
	return "ledger.grants"
}

// AccessRequest is a pending ask to view a record. RequestID is a stable,
// monotonically increasing identifier assigned at creation; approvals resolve
// by this ID, never by queue position, so a concurrent approval cannot
// redirect a stale reference to a different request.
type AccessRequest struct {
	RequestID   uint64    `gorm:"column:request_id;primaryKey;autoIncrement"`
	RequestedAt time.Time `gorm:"autoCreateTime;index"`

	Requester uuid.UUID `gorm:"column:requester;type:uuid;not null;uniqueIndex:idx_requests_requester_mrn"`
	MRN       string    `gorm:"column:mrn;type:varchar(64);not null;uniqueIndex:idx_requests_requester_mrn"`
}

func (AccessRequest) TableName() string {
	return "ledger.access_requests"
}
