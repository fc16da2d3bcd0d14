package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	TypeRecordRegistered EventType = "record.registered"
	TypeAccessRequested  EventType = "access.requested"
	TypeAccessGranted    EventType = "access.granted"
)

// Event is the envelope published for every ledger notification. Key fields
// mirror the registry's notification surface: who, which record, when.
type Event struct {
	Type       EventType `json:"type"`
	MRN        string    `json:"mrn"`
	ContentCID string    `json:"content_cid,omitempty"`
	Principal  uuid.UUID `json:"principal,omitempty"`
	RequestID  uint64    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, e *Event) error
	Close() error
}

// NoopPublisher discards events. Used when Kafka is disabled and in tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, e *Event) error { return nil }
func (NoopPublisher) Close() error                                { return nil }

func RecordRegistered(mrn, cid string) *Event {
	return &Event{Type: TypeRecordRegistered, MRN: mrn, ContentCID: cid, OccurredAt: time.Now().UTC()}
}

func AccessRequested(requester uuid.UUID, mrn string, requestID uint64) *Event {
	return &Event{Type: TypeAccessRequested, Principal: requester, MRN: mrn, RequestID: requestID, OccurredAt: time.Now().UTC()}
}

func AccessGranted(viewer uuid.UUID, mrn string) *Event {
	return &Event{Type: TypeAccessGranted, Principal: viewer, MRN: mrn, OccurredAt: time.Now().UTC()}
}
