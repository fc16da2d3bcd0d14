package record

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// MRN is validated explicitly rather than trusted from filenames: letters,
// digits and dashes, bounded length.
var mrnPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

func ValidMRN(mrn string) bool {
	return mrnPattern.MatchString(mrn)
}

// Record maps a medical record number to the content-addressed identifier of
// its off-platform payload. The CID is only ever rewritten by the registry
// owner; records are never deleted.
type Record struct {
	MRN       string    `gorm:"column:mrn;type:varchar(64);primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	ContentCID   string    `gorm:"column:content_cid;type:varchar(128);not null"`
	RegisteredBy uuid.UUID `gorm:"column:registered_by;type:uuid;not null"`
}

func (Record) TableName() string {
	return "registry.records"
}

type RegisterCommand struct {
	MRN        string
	ContentCID string
}
