package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/verification-service/internal/config"
	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/events"
	"github.com/spec-kit/verification-service/internal/repository"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

// SessionService covers session creation, lookup and list policy. Status
// mutation lives in LifecycleService; assignment in ClaimService.
type SessionService struct {
	sessions   repository.SessionRepository
	dispatcher events.Dispatcher
	cache      *SessionCache
	cfg        config.SessionConfig
	logger     *zap.Logger
	now        func() time.Time
}

// SessionDependencies bundles requirements.
type SessionDependencies struct {
	SessionRepo repository.SessionRepository
	Dispatcher  events.Dispatcher
	Cache       *SessionCache
	Logger      *zap.Logger
}

// NewSessionService creates the service.
func NewSessionService(cfg config.SessionConfig, deps SessionDependencies) *SessionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:   deps.SessionRepo,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// SessionCreateInput carries requester contact details.
type SessionCreateInput struct {
	RequesterName  string
	RequesterPhone string
	RequesterEmail string
}

// Create opens a new verification session. Agents become the assignee of
// sessions they create; admin-created sessions stay unclaimed for the pool.
func (s *SessionService) Create(ctx context.Context, actor *domain.StaffMember, input SessionCreateInput) (*domain.Session, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	if strings.TrimSpace(input.RequesterName) == "" || strings.TrimSpace(input.RequesterPhone) == "" {
		return nil, apperrors.NewValidationError("requester_name and requester_phone required", nil)
	}

	token := uuid.NewString()
	var assignee *string
	if !actor.IsAdmin() {
		id := actor.ID
		assignee = &id
	}

	session := &domain.Session{
		Token:          token,
		Status:         domain.SessionStatusNotStarted,
		AssigneeID:     assignee,
		RequesterName:  strings.TrimSpace(input.RequesterName),
		RequesterPhone: strings.TrimSpace(input.RequesterPhone),
		RequesterEmail: strings.TrimSpace(input.RequesterEmail),
		JoinLink:       fmt.Sprintf("%s/join/%s", strings.TrimRight(s.cfg.FrontendURL, "/"), token),
		LinkExpiresAt:  s.now().Add(s.cfg.LinkTTL()),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishCreated(ctx, actor, session)
	return session, nil
}

// GetForStaff returns a session by token. Agents are shut out of closed
// sessions; admins see everything.
func (s *SessionService) GetForStaff(ctx context.Context, actor *domain.StaffMember, token string) (*domain.Session, error) {
	session, err := s.getByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && session.Status.Terminal() {
		return nil, apperrors.NewClosed("session has expired or been closed")
	}
	return session, nil
}

// GetByLink resolves a join link (or bare token) for the public join page.
// The link expiry is enforced independently of status. Lookups may be served
// from a short-lived cache; the real-time join re-checks the store fresh.
func (s *SessionService) GetByLink(ctx context.Context, link string) (*domain.Session, error) {
	link = strings.TrimSpace(link)
	if cached := s.cache.Get(ctx, tokenFromLink(link)); cached != nil {
		return cached, s.checkJoinable(cached)
	}

	session, err := s.sessions.GetByLink(ctx, link)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("session", map[string]any{"link": link})
		}
		return nil, apperrors.MapError(err)
	}
	if err := s.checkJoinable(session); err != nil {
		return session, err
	}
	s.cache.Set(ctx, session)
	return session, nil
}

// AuthorizeJoin is the mandatory fresh check at the real-time boundary: the
// session can reach a terminal state between page load and socket open, so the
// store is consulted again, never the cache.
func (s *SessionService) AuthorizeJoin(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.getByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.checkJoinable(session); err != nil {
		return nil, err
	}
	return session, nil
}

// SessionListInput captures list parameters from the staff dashboard.
type SessionListInput struct {
	Statuses []domain.SessionStatus
	Limit    int
	Offset   int
}

// ListForStaff applies the read-side authorization policy: agents see
// sessions that are unassigned or their own, restricted to non-terminal
// statuses; admins see everything, unfiltered.
func (s *SessionService) ListForStaff(ctx context.Context, actor *domain.StaffMember, input SessionListInput) ([]domain.Session, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}

	filter := repository.SessionFilter{
		Statuses: input.Statuses,
		Limit:    input.Limit,
		Offset:   input.Offset,
	}
	if !actor.IsAdmin() {
		id := actor.ID
		filter.AssigneeID = &id
		filter.IncludeUnassigned = true
		filter.Statuses = intersectStatuses(input.Statuses, domain.NonTerminalStatuses())
		if len(filter.Statuses) == 0 {
			return []domain.Session{}, nil
		}
	}

	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return sessions, nil
}

// ListPendingForStaff returns the agent's own not-yet-started queue.
func (s *SessionService) ListPendingForStaff(ctx context.Context, actor *domain.StaffMember) ([]domain.Session, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	id := actor.ID
	sessions, err := s.sessions.List(ctx, repository.SessionFilter{
		Statuses:   []domain.SessionStatus{domain.SessionStatusNotStarted, domain.SessionStatusPending},
		AssigneeID: &id,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return sessions, nil
}

func (s *SessionService) getByToken(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("session", map[string]any{"token": token})
		}
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

func (s *SessionService) checkJoinable(session *domain.Session) error {
	if session.Status.Terminal() {
		return apperrors.NewClosed("session has expired or been closed")
	}
	if session.LinkExpired(s.now()) {
		return apperrors.NewClosed("join link has expired")
	}
	return nil
}

func (s *SessionService) publishCreated(ctx context.Context, actor *domain.StaffMember, session *domain.Session) {
	if s.dispatcher == nil {
		return
	}
	actorID := actor.ID
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:           uuid.NewString(),
		Type:         events.EventSessionCreated,
		SessionToken: session.Token,
		Actor:        events.Actor{StaffID: &actorID, Role: actor.Role},
		Timestamp:    time.Now(),
		Payload: events.SessionCreatedPayload{
			RequesterName:  session.RequesterName,
			RequesterPhone: session.RequesterPhone,
			RequesterEmail: session.RequesterEmail,
			JoinLink:       session.JoinLink,
			LinkExpiresAt:  session.LinkExpiresAt,
		},
	})
}

func intersectStatuses(requested, allowed []domain.SessionStatus) []domain.SessionStatus {
	if len(requested) == 0 {
		return allowed
	}
	var out []domain.SessionStatus
	for _, status := range requested {
		for _, a := range allowed {
			if status == a {
				out = append(out, status)
				break
			}
		}
	}
	return out
}

// tokenFromLink extracts the trailing token segment from a join link.
func tokenFromLink(link string) string {
	if idx := strings.LastIndex(link, "/"); idx >= 0 {
		return link[idx+1:]
	}
	return link
}
