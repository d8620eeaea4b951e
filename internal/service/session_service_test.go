package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/verification-service/internal/config"
	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/events"
	"github.com/spec-kit/verification-service/internal/repository"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

func newSessionFixture() (*SessionService, *repository.InMemorySessionRepository, *recordingDispatcher) {
	repo := repository.NewInMemorySessionRepository()
	dispatcher := &recordingDispatcher{}
	svc := NewSessionService(config.SessionConfig{
		FrontendURL:  "http://localhost:3005",
		LinkTTLHours: 24,
	}, SessionDependencies{
		SessionRepo: repo,
		Dispatcher:  dispatcher,
	})
	return svc, repo, dispatcher
}

func TestCreateSession(t *testing.T) {
	svc, _, dispatcher := newSessionFixture()

	session, err := svc.Create(context.Background(), agent("agent-1"), SessionCreateInput{
		RequesterName:  "Dana Smith",
		RequesterPhone: "+1 555 000 1111",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SessionStatusNotStarted, session.Status)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "http://localhost:3005/join/"+session.Token, session.JoinLink)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), session.LinkExpiresAt, time.Minute)
	require.NotNil(t, session.AssigneeID)
	assert.Equal(t, "agent-1", *session.AssigneeID)

	created := dispatcher.byType(events.EventSessionCreated)
	require.Len(t, created, 1)
	payload, ok := created[0].Payload.(events.SessionCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, session.JoinLink, payload.JoinLink)
}

func TestCreateSessionByAdminStaysUnassigned(t *testing.T) {
	svc, _, _ := newSessionFixture()

	session, err := svc.Create(context.Background(), admin("admin-1"), SessionCreateInput{
		RequesterName:  "Dana Smith",
		RequesterPhone: "+15550001111",
	})
	require.NoError(t, err)
	assert.Nil(t, session.AssigneeID)
}

func TestCreateSessionValidation(t *testing.T) {
	svc, _, _ := newSessionFixture()

	_, err := svc.Create(context.Background(), agent("agent-1"), SessionCreateInput{RequesterName: "Dana"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestGetByLink(t *testing.T) {
	svc, repo, _ := newSessionFixture()
	session := seedSession(repo, domain.SessionStatusNotStarted, nil)

	byLink, err := svc.GetByLink(context.Background(), session.JoinLink)
	require.NoError(t, err)
	assert.Equal(t, session.Token, byLink.Token)

	byToken, err := svc.GetByLink(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Token, byToken.Token)

	_, err = svc.GetByLink(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestAuthorizeJoinRejectsExpiredLink(t *testing.T) {
	svc, repo, _ := newSessionFixture()
	session := seedSession(repo, domain.SessionStatusNotStarted, nil)

	// The session is still open, but its link has lapsed.
	svc.now = func() time.Time { return session.LinkExpiresAt.Add(time.Minute) }

	_, err := svc.AuthorizeJoin(context.Background(), session.Token)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSessionClosed))
}

func TestAuthorizeJoinRejectsTerminalSession(t *testing.T) {
	svc, repo, _ := newSessionFixture()
	session := seedSession(repo, domain.SessionStatusCancelled, nil)

	_, err := svc.AuthorizeJoin(context.Background(), session.Token)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSessionClosed))
}

func TestGetForStaffClosedVisibility(t *testing.T) {
	svc, repo, _ := newSessionFixture()
	session := seedSession(repo, domain.SessionStatusCompleted, nil)

	_, err := svc.GetForStaff(context.Background(), agent("agent-1"), session.Token)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSessionClosed))

	got, err := svc.GetForStaff(context.Background(), admin("admin-1"), session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Token, got.Token)
}

func TestListForStaffPolicy(t *testing.T) {
	svc, repo, _ := newSessionFixture()
	me := "agent-1"
	other := "agent-2"

	mine := seedSession(repo, domain.SessionStatusPending, &me)
	unassigned := seedSession(repo, domain.SessionStatusNotStarted, nil)
	theirs := seedSession(repo, domain.SessionStatusPending, &other)
	closed := seedSession(repo, domain.SessionStatusCompleted, &me)

	visible, err := svc.ListForStaff(context.Background(), agent(me), SessionListInput{})
	require.NoError(t, err)

	tokens := make(map[string]bool)
	for _, s := range visible {
		tokens[s.Token] = true
	}
	assert.True(t, tokens[mine.Token])
	assert.True(t, tokens[unassigned.Token])
	assert.False(t, tokens[theirs.Token], "agents must not see sessions assigned to others")
	assert.False(t, tokens[closed.Token], "agents must not see terminal sessions")

	all, err := svc.ListForStaff(context.Background(), admin("admin-1"), SessionListInput{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestListForStaffTerminalFilterYieldsNothingForAgents(t *testing.T) {
	svc, repo, _ := newSessionFixture()
	me := "agent-1"
	seedSession(repo, domain.SessionStatusCompleted, &me)

	visible, err := svc.ListForStaff(context.Background(), agent(me), SessionListInput{
		Statuses: []domain.SessionStatus{domain.SessionStatusCompleted},
	})
	require.NoError(t, err)
	assert.Empty(t, visible)
}
