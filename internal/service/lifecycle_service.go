package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/events"
	"github.com/spec-kit/verification-service/internal/observability"
	"github.com/spec-kit/verification-service/internal/repository"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

// System notes appended by transition side effects.
const (
	noteExpiredDisconnect = "Session expired - all participants disconnected."
	noteEndedByRequester  = "Call ended by requester - session expired."
	notePendingReview     = "Documents captured, waiting for review."
)

// transitionRules maps a target status to the statuses a session may leave
// from. This table is the single point of truth for legality; every status
// mutation in the service goes through Transition.
var transitionRules = map[domain.SessionStatus][]domain.SessionStatus{
	domain.SessionStatusPending:       {domain.SessionStatusNotStarted},
	domain.SessionStatusInProgress:    {domain.SessionStatusPending, domain.SessionStatusInProgress},
	domain.SessionStatusPendingReview: domain.NonTerminalStatuses(),
	domain.SessionStatusCompleted:     {domain.SessionStatusInProgress, domain.SessionStatusPendingReview},
	domain.SessionStatusRejected:      {domain.SessionStatusInProgress, domain.SessionStatusPendingReview},
	domain.SessionStatusExpired:       domain.NonTerminalStatuses(),
	domain.SessionStatusCancelled:     domain.NonTerminalStatuses(),
}

// LifecycleService validates and applies status transitions. It is the only
// writer of session status; REST handlers, the requester end-call endpoint and
// the expiry reaper all share this table and its side effects.
type LifecycleService struct {
	sessions   repository.SessionRepository
	dispatcher events.Dispatcher
	cache      *SessionCache
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// LifecycleDependencies bundles requirements.
type LifecycleDependencies struct {
	SessionRepo repository.SessionRepository
	Dispatcher  events.Dispatcher
	Cache       *SessionCache
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewLifecycleService creates the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		sessions:   deps.SessionRepo,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// TransitionInput describes a requested status change.
type TransitionInput struct {
	To    domain.SessionStatus
	Note  string
	Actor *domain.StaffMember
}

// Transition applies a status change when the persisted status matches the
// table's allowed From set. A mismatch is reported as StaleState (or Closed
// when the session already reached a terminal state) and leaves the row
// untouched; the caller must re-read and decide.
func (s *LifecycleService) Transition(ctx context.Context, token string, input TransitionInput) (*domain.Session, error) {
	if !input.To.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": input.To})
	}
	allowedFrom, ok := transitionRules[input.To]
	if !ok {
		return nil, apperrors.NewValidationError("status cannot be entered by transition", map[string]any{"status": input.To})
	}

	note := strings.TrimSpace(input.Note)
	if input.To == domain.SessionStatusRejected && note == "" {
		return nil, apperrors.NewValidationError("rejection requires a reason", nil)
	}

	change := repository.StatusChange{To: input.To, AppendNote: note}
	switch input.To {
	case domain.SessionStatusInProgress:
		change.SetStartedAt = true
		if input.Actor != nil {
			id := input.Actor.ID
			change.BindAssignee = &id
		}
	case domain.SessionStatusPendingReview:
		if note == "" {
			change.AppendNote = notePendingReview
		}
	case domain.SessionStatusCompleted, domain.SessionStatusRejected,
		domain.SessionStatusExpired, domain.SessionStatusCancelled:
		change.SetCompletedAt = true
	}

	session, prevStatus, err := s.sessions.UpdateStatus(ctx, token, allowedFrom, change)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMiss(ctx, token, input.To, allowedFrom)
		}
		return nil, apperrors.MapError(err)
	}

	s.cache.Invalidate(ctx, token)
	s.metrics.RecordTransition(string(session.Status))
	s.publishStatusChanged(ctx, session, prevStatus, input, note)
	return session, nil
}

// MarkFirstJoin drives not_started to pending on the first room join. Already
// being past not_started is the normal case and is not an error.
func (s *LifecycleService) MarkFirstJoin(ctx context.Context, token string) {
	_, err := s.Transition(ctx, token, TransitionInput{To: domain.SessionStatusPending})
	if err != nil && !apperrors.IsCode(err, apperrors.CodeStaleState) && !apperrors.IsCode(err, apperrors.CodeSessionClosed) {
		s.logger.Warn("first-join transition failed", zap.String("token", token), zap.Error(err))
	}
}

// ExpireAbandoned retires a session whose room emptied. A session that already
// reached a terminal state is a no-op, not an error, so a disconnect handler
// firing twice expires the session exactly once.
func (s *LifecycleService) ExpireAbandoned(ctx context.Context, token string) (bool, error) {
	_, err := s.Transition(ctx, token, TransitionInput{
		To:   domain.SessionStatusExpired,
		Note: noteExpiredDisconnect,
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeStaleState) || apperrors.IsCode(err, apperrors.CodeSessionClosed) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EndByRequester lets the requester end the call without credentials. Ending
// an already-closed session reports success so retries stay harmless.
func (s *LifecycleService) EndByRequester(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.getByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return session, nil
	}
	return s.Transition(ctx, token, TransitionInput{
		To:   domain.SessionStatusExpired,
		Note: noteEndedByRequester,
	})
}

func (s *LifecycleService) getByToken(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("session", map[string]any{"token": token})
		}
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

// classifyMiss turns a failed compare-and-set into the spec's typed result.
func (s *LifecycleService) classifyMiss(ctx context.Context, token string, to domain.SessionStatus, allowedFrom []domain.SessionStatus) error {
	session, err := s.getByToken(ctx, token)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return apperrors.NewClosed("session has expired or been closed")
	}
	froms := make([]string, len(allowedFrom))
	for i, f := range allowedFrom {
		froms[i] = string(f)
	}
	return apperrors.NewStaleState("session status changed since last read", map[string]any{
		"current_status": session.Status,
		"requested":      to,
		"allowed_from":   froms,
	})
}

func (s *LifecycleService) publishStatusChanged(ctx context.Context, session *domain.Session, prevStatus domain.SessionStatus, input TransitionInput, note string) {
	if s.dispatcher == nil {
		return
	}
	actor := events.Actor{}
	if input.Actor != nil {
		id := input.Actor.ID
		actor.StaffID = &id
		actor.Role = input.Actor.Role
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:           uuid.NewString(),
		Type:         events.EventSessionStatusChanged,
		SessionToken: session.Token,
		Actor:        actor,
		Timestamp:    time.Now(),
		Payload: events.SessionStatusChangedPayload{
			OldStatus: prevStatus,
			NewStatus: session.Status,
			Note:      note,
		},
	})
}
