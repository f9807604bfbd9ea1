package mutation

import (
	"fmt"
	"time"
)

// MaxRetries is the number of failed attempts after which a record leaves
// automatic processing and becomes Failed.
const MaxRetries = 3

// Operation is the kind of change a record carries.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// ParseOperation converts user input into an Operation.
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if !op.Valid() {
		return "", fmt.Errorf("unknown operation %q: must be one of create, update, delete", s)
	}
	return op, nil
}

// Status is the lifecycle state of a record.
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSyncing, StatusSynced, StatusFailed:
		return true
	}
	return false
}

// Outstanding reports whether a record in this status counts toward the
// pending badge (pending or failed).
func (s Status) Outstanding() bool {
	return s == StatusPending || s == StatusFailed
}

// Payload is the opaque body of a mutation. The engine never inspects it.
type Payload map[string]any

// Record is one queued mutation.
type Record struct {
	ID             int64      `json:"id"`
	IdempotencyKey string     `json:"idempotency_key"`
	Resource       string     `json:"resource"`
	Operation      Operation  `json:"operation"`
	RecordID       string     `json:"record_id"`
	Payload        Payload    `json:"payload"`
	CreatedAt      time.Time  `json:"created_at"`
	Status         Status     `json:"status"`
	Attempts       int        `json:"attempts"`
	LastAttemptAt  *time.Time `json:"last_attempt_at"`
	LastError      *string    `json:"last_error"`
	TenantID       string     `json:"tenant_id"`
}

// EntityKey identifies the remote entity a record targets.
type EntityKey struct {
	Resource string
	RecordID string
}

// Entity returns the (resource, record id) pair of r.
func (r Record) Entity() EntityKey {
	return EntityKey{Resource: r.Resource, RecordID: r.RecordID}
}

// Input is the caller-supplied part of a new record.
type Input struct {
	Resource  string
	Operation Operation
	RecordID  string
	Payload   Payload
	TenantID  string
}

// Update lists the fields a status transition writes. Nil fields are left
// untouched. ClearLastError writes NULL into last_error and takes precedence
// over LastError.
type Update struct {
	Status         *Status
	Attempts       *int
	LastAttemptAt  *time.Time
	LastError      *string
	ClearLastError bool
}

// Empty reports whether u writes nothing.
func (u Update) Empty() bool {
	return u.Status == nil && u.Attempts == nil && u.LastAttemptAt == nil &&
		u.LastError == nil && !u.ClearLastError
}

// StatusPtr returns a pointer to s, for building an Update.
func StatusPtr(s Status) *Status {
	return &s
}
