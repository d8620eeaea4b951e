package events

import (
	"time"

	"github.com/spec-kit/verification-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionCreated       EventType = "session_created"
	EventSessionClaimed       EventType = "session_claimed"
	EventSessionStatusChanged EventType = "session_status_changed"
	EventRoomEmptied          EventType = "room_emptied"
)

// Actor identifies who triggered an event. StaffID is nil for system-driven
// events and requester actions.
type Actor struct {
	StaffID *string          `json:"staff_id,omitempty"`
	Role    domain.StaffRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	SessionToken string      `json:"session_token"`
	Actor        Actor       `json:"actor"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// SessionCreatedPayload payload.
type SessionCreatedPayload struct {
	RequesterName  string    `json:"requester_name"`
	RequesterPhone string    `json:"requester_phone"`
	RequesterEmail string    `json:"requester_email,omitempty"`
	JoinLink       string    `json:"join_link"`
	LinkExpiresAt  time.Time `json:"link_expires_at"`
}

// SessionClaimedPayload payload.
type SessionClaimedPayload struct {
	AssigneeID string `json:"assignee_id"`
}

// SessionStatusChangedPayload payload.
type SessionStatusChangedPayload struct {
	OldStatus domain.SessionStatus `json:"old_status"`
	NewStatus domain.SessionStatus `json:"new_status"`
	Note      string               `json:"note,omitempty"`
}

// RoomEmptiedPayload payload.
type RoomEmptiedPayload struct {
	Expired bool `json:"expired"`
}
