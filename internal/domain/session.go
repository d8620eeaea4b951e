package domain

import "time"

// SessionStatus enumerates lifecycle states for verification sessions.
type SessionStatus string

const (
	SessionStatusNotStarted    SessionStatus = "not_started"
	SessionStatusPending       SessionStatus = "pending"
	SessionStatusInProgress    SessionStatus = "in_progress"
	SessionStatusPendingReview SessionStatus = "pending_review"
	SessionStatusCompleted     SessionStatus = "completed"
	SessionStatusRejected      SessionStatus = "rejected"
	SessionStatusCancelled     SessionStatus = "cancelled"
	SessionStatusExpired       SessionStatus = "expired"
)

// Terminal reports whether the status permits no further transitions.
// Terminal sessions are append-only: no status, assignee, or room-join
// mutation is allowed past this point.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusRejected, SessionStatusCancelled, SessionStatusExpired:
		return true
	}
	return false
}

// Valid reports whether the status is a known lifecycle state.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusNotStarted, SessionStatusPending, SessionStatusInProgress,
		SessionStatusPendingReview, SessionStatusCompleted, SessionStatusRejected,
		SessionStatusCancelled, SessionStatusExpired:
		return true
	}
	return false
}

// NonTerminalStatuses returns every state a transition may leave from.
func NonTerminalStatuses() []SessionStatus {
	return []SessionStatus{
		SessionStatusNotStarted,
		SessionStatusPending,
		SessionStatusInProgress,
		SessionStatusPendingReview,
	}
}

// TerminalStatuses returns every terminal state.
func TerminalStatuses() []SessionStatus {
	return []SessionStatus{
		SessionStatusCompleted,
		SessionStatusRejected,
		SessionStatusCancelled,
		SessionStatusExpired,
	}
}

// Session is the aggregate for one end-to-end verification attempt. The token
// is the client-facing identifier and doubles as the signaling room name.
type Session struct {
	ID             string
	Token          string
	Status         SessionStatus
	AssigneeID     *string
	RequesterName  string
	RequesterPhone string
	RequesterEmail string
	JoinLink       string
	LinkExpiresAt  time.Time
	Notes          string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

// LinkExpired reports whether the join link is past its absolute expiry.
// The link becomes unusable independently of session status.
func (s *Session) LinkExpired(now time.Time) bool {
	return now.After(s.LinkExpiresAt)
}
