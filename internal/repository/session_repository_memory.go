package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/verification-service/internal/domain"
)

// InMemorySessionRepository mirrors the postgres compare-and-set semantics
// behind a mutex. Used by tests and local development without a database.
type InMemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewInMemorySessionRepository builds an empty store.
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{sessions: make(map[string]*domain.Session)}
}

func (r *InMemorySessionRepository) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.Token]; exists {
		return pgx.ErrTooManyRows
	}
	now := time.Now()
	session.ID = uuid.NewString()
	session.CreatedAt = now
	session.UpdatedAt = now
	r.sessions[session.Token] = clone(session)
	return nil
}

func (r *InMemorySessionRepository) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return clone(session), nil
}

func (r *InMemorySessionRepository) GetByLink(_ context.Context, link string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.JoinLink == link || session.Token == link {
			return clone(session), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *InMemorySessionRepository) List(_ context.Context, filter SessionFilter) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Session
	for _, session := range r.sessions {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, session.Status) {
			continue
		}
		if filter.AssigneeID != nil {
			owned := session.AssigneeID != nil && *session.AssigneeID == *filter.AssigneeID
			unassigned := session.AssigneeID == nil
			if !owned && !(filter.IncludeUnassigned && unassigned) {
				continue
			}
		}
		result = append(result, *clone(session))
	}
	return result, nil
}

func (r *InMemorySessionRepository) Claim(_ context.Context, token, staffID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if session.Status.Terminal() {
		return nil, pgx.ErrNoRows
	}
	if session.AssigneeID != nil && *session.AssigneeID != staffID {
		return nil, pgx.ErrNoRows
	}
	session.AssigneeID = &staffID
	session.UpdatedAt = time.Now()
	return clone(session), nil
}

func (r *InMemorySessionRepository) UpdateStatus(_ context.Context, token string, from []domain.SessionStatus, change StatusChange) (*domain.Session, domain.SessionStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok {
		return nil, "", pgx.ErrNoRows
	}
	if !containsStatus(from, session.Status) {
		return nil, "", pgx.ErrNoRows
	}

	now := time.Now()
	prevStatus := session.Status
	session.Status = change.To
	session.UpdatedAt = now
	if change.SetStartedAt && session.StartedAt == nil {
		t := now
		session.StartedAt = &t
	}
	if change.SetCompletedAt {
		t := now
		session.CompletedAt = &t
	}
	if change.BindAssignee != nil && session.AssigneeID == nil {
		id := *change.BindAssignee
		session.AssigneeID = &id
	}
	if change.AppendNote != "" {
		if session.Notes == "" {
			session.Notes = change.AppendNote
		} else {
			session.Notes = session.Notes + " " + change.AppendNote
		}
	}
	return clone(session), prevStatus, nil
}

func containsStatus(list []domain.SessionStatus, status domain.SessionStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func clone(session *domain.Session) *domain.Session {
	copied := *session
	if session.AssigneeID != nil {
		id := *session.AssigneeID
		copied.AssigneeID = &id
	}
	if session.StartedAt != nil {
		t := *session.StartedAt
		copied.StartedAt = &t
	}
	if session.CompletedAt != nil {
		t := *session.CompletedAt
		copied.CompletedAt = &t
	}
	return &copied
}
