package service

import (
	"errors"
	"strings"
)

// ErrUnauthorized is returned when a caller without owner privilege invokes an
// owner-only ledger operation. It is never retried and surfaced verbatim.
var ErrUnauthorized = errors.New("unauthorized: caller is not the registry owner")

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

type AuditEntry struct {
	UserID       interface{} // uuid.UUID
	UserRole     string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	StatusCode   int
	Changes      string
}
