package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	ActionCreate AuditAction = "CREATE"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
)

func (a AuditAction) Valid() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

type EntityType string

const (
	EntitySubscription EntityType = "SUBSCRIPTION"
	EntityService      EntityType = "SERVICE"
	EntityDepartment   EntityType = "DEPARTMENT"
	EntityUser         EntityType = "USER"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntitySubscription, EntityService, EntityDepartment, EntityUser:
		return true
	}
	return false
}

// Snapshot is an opaque JSON document. The zero value means "absent" and is
// stored as SQL NULL; NullSnapshot is an explicit JSON null.
type Snapshot struct {
	raw json.RawMessage
}

func NewSnapshot(v any) (Snapshot, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return Snapshot{raw: b}, nil
}

func NullSnapshot() Snapshot {
	return Snapshot{raw: json.RawMessage("null")}
}

func (s Snapshot) IsZero() bool { return s.raw == nil }

func (s Snapshot) IsNull() bool { return string(s.raw) == "null" }

func (s Snapshot) Raw() json.RawMessage { return s.raw }

func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return []byte("null"), nil
	}
	return s.raw, nil
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	s.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Value passes JSON as text; lib/pq would send []byte as bytea.
func (s Snapshot) Value() (driver.Value, error) {
	if s.raw == nil {
		return nil, nil
	}
	return string(s.raw), nil
}

func (s *Snapshot) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		s.raw = nil
	case []byte:
		s.raw = append(json.RawMessage(nil), v...)
	case string:
		s.raw = json.RawMessage(v)
	default:
		return fmt.Errorf("snapshot: unsupported source %T", src)
	}
	return nil
}

type AuditEntry struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	UserName  string      `json:"user_name,omitempty"`
	Action    AuditAction `json:"action"`
	Entity    EntityType  `json:"entity"`
	EntityID  string      `json:"entity_id"`
	OldValues Snapshot    `json:"old_values,omitzero"`
	NewValues Snapshot    `json:"new_values,omitzero"`
	CreatedAt time.Time   `json:"created_at"`
}

type AuditFilter struct {
	Action    *AuditAction
	Entity    *EntityType
	UserID    *uuid.UUID
	Ascending bool
	Page      int
	Limit     int
}

func (f *AuditFilter) Normalize() {
	f.Page, f.Limit = normalizePaging(f.Page, f.Limit)
}

func (f AuditFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
