package dto

import (
	"time"

	"github.com/spec-kit/verification-service/internal/domain"
)

// CreateSessionRequest payload.
type CreateSessionRequest struct {
	RequesterName  string `json:"requester_name"`
	RequesterPhone string `json:"requester_phone"`
	RequesterEmail string `json:"requester_email,omitempty"`
}

// ClaimSessionRequest payload. AssigneeID is admin-only; agents claim for
// themselves.
type ClaimSessionRequest struct {
	AssigneeID string `json:"assignee_id,omitempty"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.SessionStatus `json:"status"`
	Note   string               `json:"note,omitempty"`
}

// SessionSummary response.
type SessionSummary struct {
	ID             string               `json:"id"`
	Token          string               `json:"session_token"`
	Status         domain.SessionStatus `json:"status"`
	AssigneeID     *string              `json:"assignee_id"`
	RequesterName  string               `json:"requester_name"`
	RequesterPhone string               `json:"requester_phone"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// SessionDetailResponse provides full session info for staff.
type SessionDetailResponse struct {
	ID             string               `json:"id"`
	Token          string               `json:"session_token"`
	Status         domain.SessionStatus `json:"status"`
	AssigneeID     *string              `json:"assignee_id"`
	RequesterName  string               `json:"requester_name"`
	RequesterPhone string               `json:"requester_phone"`
	RequesterEmail string               `json:"requester_email,omitempty"`
	JoinLink       string               `json:"join_link"`
	LinkExpiresAt  time.Time            `json:"link_expires_at"`
	Notes          string               `json:"notes,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	StartedAt      *time.Time           `json:"started_at"`
	CompletedAt    *time.Time           `json:"completed_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// JoinInfoResponse is the public view served to the requester's join page.
// Staff-only fields stay out of it.
type JoinInfoResponse struct {
	Token         string               `json:"session_token"`
	Status        domain.SessionStatus `json:"status"`
	RequesterName string               `json:"requester_name"`
	LinkExpiresAt time.Time            `json:"link_expires_at"`
}
