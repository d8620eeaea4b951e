package service

import (
	"context"
	"errors"
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

// ClaimService arbitrates the "assign this session to me" race. The claim is
// a single compare-and-set against the store: of N concurrent attempts on an
// unclaimed token exactly one commits; the rest get AlreadyClaimed and must
// re-fetch rather than retry blindly.
type ClaimService struct {
	sessions   repository.SessionRepository
	staff      repository.StaffRepository
	dispatcher events.Dispatcher
	cache      *SessionCache
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ClaimDependencies bundles requirements.
type ClaimDependencies struct {
	SessionRepo repository.SessionRepository
	StaffRepo   repository.StaffRepository
	Dispatcher  events.Dispatcher
	Cache       *SessionCache
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewClaimService creates the service.
func NewClaimService(deps ClaimDependencies) *ClaimService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimService{
		sessions:   deps.SessionRepo,
		staff:      deps.StaffRepo,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Claim binds the session to a staff member. Agents always claim for
// themselves; admins may assign another staff member by id. Claiming a session
// already held by the same assignee succeeds (idempotent re-claim).
func (s *ClaimService) Claim(ctx context.Context, actor *domain.StaffMember, token, assigneeID string) (*domain.Session, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}

	target := actor.ID
	if assigneeID != "" && assigneeID != actor.ID {
		if !actor.IsAdmin() {
			return nil, apperrors.NewForbidden("agents may only claim for themselves")
		}
		assignee, err := s.staff.GetByID(ctx, assigneeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": assigneeID})
			}
			return nil, apperrors.MapError(err)
		}
		if !assignee.Active {
			return nil, apperrors.NewConflict("assignee inactive", map[string]any{"staff_id": assigneeID})
		}
		target = assignee.ID
	}

	session, err := s.sessions.Claim(ctx, token, target)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyClaimMiss(ctx, token)
		}
		return nil, apperrors.MapError(err)
	}

	s.cache.Invalidate(ctx, token)
	s.metrics.RecordClaim(observability.ClaimOutcomeWon)
	s.publishClaimed(ctx, actor, session, target)
	return session, nil
}

// classifyClaimMiss distinguishes the race loser from a closed session.
func (s *ClaimService) classifyClaimMiss(ctx context.Context, token string) error {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("session", map[string]any{"token": token})
		}
		return apperrors.MapError(err)
	}
	if session.Status.Terminal() {
		s.metrics.RecordClaim(observability.ClaimOutcomeClosed)
		return apperrors.NewClosed("session has expired or been closed")
	}
	s.metrics.RecordClaim(observability.ClaimOutcomeLost)
	details := map[string]any{"token": token}
	if session.AssigneeID != nil {
		details["assignee_id"] = *session.AssigneeID
	}
	return apperrors.NewAlreadyClaimed(details)
}

func (s *ClaimService) publishClaimed(ctx context.Context, actor *domain.StaffMember, session *domain.Session, assigneeID string) {
	if s.dispatcher == nil {
		return
	}
	actorID := actor.ID
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:           uuid.NewString(),
		Type:         events.EventSessionClaimed,
		SessionToken: session.Token,
		Actor:        events.Actor{StaffID: &actorID, Role: actor.Role},
		Timestamp:    time.Now(),
		Payload:      events.SessionClaimedPayload{AssigneeID: assigneeID},
	})
}
