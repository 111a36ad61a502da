// internal/models/notification.go
package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind selects which message template of a NotificationTemplate applies.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventSuccess EventKind = "success"
	EventError   EventKind = "error"
)

// EventKinds lists every kind in the order they are persisted.
var EventKinds = []EventKind{EventStarted, EventSuccess, EventError}

// Status of a single Notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// MessageTemplate holds the optional subject ("message") and body templates for one event kind.
// A nil field means "use the default rendering".
type MessageTemplate struct {
	Message *string `json:"message,omitempty"`
	Body    *string `json:"body,omitempty"`
}

// IsEmpty reports whether neither sub-field carries a value.
func (m *MessageTemplate) IsEmpty() bool {
	return m == nil || (m.Message == nil && m.Body == nil)
}

// Clone returns a deep copy.
func (m *MessageTemplate) Clone() *MessageTemplate {
	if m == nil {
		return nil
	}
	out := &MessageTemplate{}
	if m.Message != nil {
		s := *m.Message
		out.Message = &s
	}
	if m.Body != nil {
		s := *m.Body
		out.Body = &s
	}
	return out
}

// Messages maps every event kind to its message template. All three keys are always
// present once normalized; a nil value is an explicit null.
type Messages map[EventKind]*MessageTemplate

// DefaultMessages returns the three keys set to null.
func DefaultMessages() Messages {
	return Messages{EventStarted: nil, EventSuccess: nil, EventError: nil}
}

// Normalize ensures every event kind is present.
func (m Messages) Normalize() Messages {
	if m == nil {
		return DefaultMessages()
	}
	for _, kind := range EventKinds {
		if _, ok := m[kind]; !ok {
			m[kind] = nil
		}
	}
	return m
}

// Get returns the template for kind, or nil.
func (m Messages) Get(kind EventKind) *MessageTemplate {
	if m == nil {
		return nil
	}
	return m[kind]
}

// MarshalJSON always emits the three keys so partial updates stay unambiguous.
func (m Messages) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kind := range EventKinds {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(string(kind))
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.Get(kind))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts null, a partial object or a full object and normalizes the result.
func (m *Messages) UnmarshalJSON(data []byte) error {
	raw := map[EventKind]*MessageTemplate{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Messages(raw).Normalize()
	return nil
}

// NotificationTemplate is an organization-scoped channel configuration plus per-event messages.
type NotificationTemplate struct {
	ID             uuid.UUID              `json:"id"`
	OrganizationID int64                  `json:"organization_id"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	ChannelType    string                 `json:"notification_type"`
	Configuration  map[string]interface{} `json:"notification_configuration"`
	Messages       Messages               `json:"messages"`
	CreatedAt      time.Time              `json:"created"`
	ModifiedAt     time.Time              `json:"modified"`
}

// Notification is the audit record of one send attempt.
type Notification struct {
	ID            uuid.UUID              `json:"id"`
	TemplateID    uuid.UUID              `json:"notification_template"`
	ChannelType   string                 `json:"notification_type"`
	Status        Status                 `json:"status"`
	Recipients    string                 `json:"recipients"`
	Subject       string                 `json:"subject"`
	Body          map[string]interface{} `json:"body"`
	Error         string                 `json:"error"`
	SentCount     int                    `json:"notifications_sent"`
	SourceEventID int64                  `json:"source_event_id"`
	CreatedAt     time.Time              `json:"created"`
	ModifiedAt    time.Time              `json:"modified"`
}

// StringPtr is a convenience for building message templates.
func StringPtr(s string) *string {
	return &s
}
