package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/verification-service/internal/api/dto"
	"github.com/spec-kit/verification-service/internal/auth"
	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/service"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

// SessionsHandler manages staff session endpoints plus the two public
// requester endpoints (join-page lookup and end-call).
type SessionsHandler struct {
	sessions  *service.SessionService
	claims    *service.ClaimService
	lifecycle *service.LifecycleService
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(sessions *service.SessionService, claims *service.ClaimService, lifecycle *service.LifecycleService) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, claims: claims, lifecycle: lifecycle}
}

// CreateSession POST /sessions.
func (h *SessionsHandler) CreateSession(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	session, err := h.sessions.Create(c.Context(), principal.Staff, service.SessionCreateInput{
		RequesterName:  req.RequesterName,
		RequesterPhone: req.RequesterPhone,
		RequesterEmail: req.RequesterEmail,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": sessionDetail(session)})
}

// ListSessions GET /sessions.
func (h *SessionsHandler) ListSessions(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	sessions, err := h.sessions.ListForStaff(c.Context(), principal.Staff, parseSessionListQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.SessionSummary, 0, len(sessions))
	for i := range sessions {
		items = append(items, sessionSummary(&sessions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListPendingSessions GET /sessions/pending.
func (h *SessionsHandler) ListPendingSessions(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	sessions, err := h.sessions.ListPendingForStaff(c.Context(), principal.Staff)
	if err != nil {
		return err
	}
	items := make([]dto.SessionSummary, 0, len(sessions))
	for i := range sessions {
		items = append(items, sessionSummary(&sessions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetSession GET /sessions/:token.
func (h *SessionsHandler) GetSession(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	session, err := h.sessions.GetForStaff(c.Context(), principal.Staff, c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionDetail(session)})
}

// ClaimSession POST /sessions/:token/claim.
func (h *SessionsHandler) ClaimSession(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.ClaimSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	session, err := h.claims.Claim(c.Context(), principal.Staff, c.Params("token"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionDetail(session)})
}

// UpdateStatus PATCH /sessions/:token/status.
func (h *SessionsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	if req.Status == domain.SessionStatusCancelled && !principal.Staff.IsAdmin() {
		return apperrors.NewForbidden("only admins may cancel sessions")
	}

	session, err := h.lifecycle.Transition(c.Context(), c.Params("token"), service.TransitionInput{
		To:    req.Status,
		Note:  req.Note,
		Actor: principal.Staff,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionDetail(session)})
}

// GetJoinInfo GET /public/sessions/:token. The join page calls this before
// opening the websocket; expired or closed sessions get the closed error.
func (h *SessionsHandler) GetJoinInfo(c *fiber.Ctx) error {
	session, err := h.sessions.GetByLink(c.Context(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.JoinInfoResponse{
		Token:         session.Token,
		Status:        session.Status,
		RequesterName: session.RequesterName,
		LinkExpiresAt: session.LinkExpiresAt,
	}})
}

// EndSession POST /public/sessions/:token/end. No credentials: possession of
// the token is the requester's authority to hang up.
func (h *SessionsHandler) EndSession(c *fiber.Ctx) error {
	session, err := h.lifecycle.EndByRequester(c.Context(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"session_token": session.Token,
		"status":        session.Status,
	}})
}

func parseSessionListQuery(c *fiber.Ctx) service.SessionListInput {
	input := service.SessionListInput{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			input.Statuses = append(input.Statuses, domain.SessionStatus(strings.TrimSpace(part)))
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	input.Offset = (page - 1) * pageSize
	input.Limit = pageSize
	return input
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func sessionSummary(session *domain.Session) dto.SessionSummary {
	return dto.SessionSummary{
		ID:             session.ID,
		Token:          session.Token,
		Status:         session.Status,
		AssigneeID:     session.AssigneeID,
		RequesterName:  session.RequesterName,
		RequesterPhone: session.RequesterPhone,
		CreatedAt:      session.CreatedAt,
		UpdatedAt:      session.UpdatedAt,
	}
}

func sessionDetail(session *domain.Session) dto.SessionDetailResponse {
	return dto.SessionDetailResponse{
		ID:             session.ID,
		Token:          session.Token,
		Status:         session.Status,
		AssigneeID:     session.AssigneeID,
		RequesterName:  session.RequesterName,
		RequesterPhone: session.RequesterPhone,
		RequesterEmail: session.RequesterEmail,
		JoinLink:       session.JoinLink,
		LinkExpiresAt:  session.LinkExpiresAt,
		Notes:          session.Notes,
		CreatedAt:      session.CreatedAt,
		StartedAt:      session.StartedAt,
		CompletedAt:    session.CompletedAt,
		UpdatedAt:      session.UpdatedAt,
	}
}
