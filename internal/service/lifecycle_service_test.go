package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/events"
	"github.com/spec-kit/verification-service/internal/repository"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

func newLifecycleFixture() (*LifecycleService, *repository.InMemorySessionRepository, *recordingDispatcher) {
	repo := repository.NewInMemorySessionRepository()
	dispatcher := &recordingDispatcher{}
	svc := NewLifecycleService(LifecycleDependencies{
		SessionRepo: repo,
		Dispatcher:  dispatcher,
	})
	return svc, repo, dispatcher
}

func TestTransitionLegality(t *testing.T) {
	cases := []struct {
		name string
		from domain.SessionStatus
		to   domain.SessionStatus
		ok   bool
	}{
		{"not_started to pending", domain.SessionStatusNotStarted, domain.SessionStatusPending, true},
		{"pending to in_progress", domain.SessionStatusPending, domain.SessionStatusInProgress, true},
		{"in_progress to in_progress", domain.SessionStatusInProgress, domain.SessionStatusInProgress, true},
		{"in_progress to pending_review", domain.SessionStatusInProgress, domain.SessionStatusPendingReview, true},
		{"in_progress to completed", domain.SessionStatusInProgress, domain.SessionStatusCompleted, true},
		{"pending_review to completed", domain.SessionStatusPendingReview, domain.SessionStatusCompleted, true},
		{"pending_review to rejected", domain.SessionStatusPendingReview, domain.SessionStatusRejected, true},
		{"pending to expired", domain.SessionStatusPending, domain.SessionStatusExpired, true},
		{"not_started to cancelled", domain.SessionStatusNotStarted, domain.SessionStatusCancelled, true},

		{"not_started to in_progress", domain.SessionStatusNotStarted, domain.SessionStatusInProgress, false},
		{"not_started to completed", domain.SessionStatusNotStarted, domain.SessionStatusCompleted, false},
		{"pending to completed", domain.SessionStatusPending, domain.SessionStatusCompleted, false},
		{"in_progress to pending", domain.SessionStatusInProgress, domain.SessionStatusPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := newLifecycleFixture()
			session := seedSession(repo, tc.from, nil)

			input := TransitionInput{To: tc.to}
			if tc.to == domain.SessionStatusRejected {
				input.Note = "document mismatch"
			}
			updated, err := svc.Transition(context.Background(), session.Token, input)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, updated.Status)
			} else {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, apperrors.CodeStaleState), "expected stale state, got %v", err)
			}
		})
	}
}

func TestTransitionTerminalIsImmutable(t *testing.T) {
	for _, terminal := range domain.TerminalStatuses() {
		t.Run(string(terminal), func(t *testing.T) {
			svc, repo, _ := newLifecycleFixture()
			session := seedSession(repo, terminal, nil)

			_, err := svc.Transition(context.Background(), session.Token, TransitionInput{
				To:   domain.SessionStatusExpired,
				Note: "x",
			})
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeSessionClosed))

			persisted, err := repo.GetByToken(context.Background(), session.Token)
			require.NoError(t, err)
			assert.Equal(t, terminal, persisted.Status)
		})
	}
}

func TestTransitionRejectedRequiresReason(t *testing.T) {
	svc, repo, _ := newLifecycleFixture()
	session := seedSession(repo, domain.SessionStatusPendingReview, nil)

	_, err := svc.Transition(context.Background(), session.Token, TransitionInput{To: domain.SessionStatusRejected})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	updated, err := svc.Transition(context.Background(), session.Token, TransitionInput{
		To:   domain.SessionStatusRejected,
		Note: "face mismatch",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusRejected, updated.Status)
	assert.Contains(t, updated.Notes, "face mismatch")
	assert.NotNil(t, updated.CompletedAt)
}

func TestTransitionSideEffects(t *testing.T) {
	svc, repo, dispatcher := newLifecycleFixture()
	actor := agent("agent-1")
	session := seedSession(repo, domain.SessionStatusPending, nil)

	updated, err := svc.Transition(context.Background(), session.Token, TransitionInput{
		To:    domain.SessionStatusInProgress,
		Actor: actor,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.StartedAt)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, actor.ID, *updated.AssigneeID)

	firstStart := *updated.StartedAt

	// A reconnect transitions in_progress to in_progress without resetting
	// the start timestamp or stealing the assignment.
	other := agent("agent-2")
	again, err := svc.Transition(context.Background(), session.Token, TransitionInput{
		To:    domain.SessionStatusInProgress,
		Actor: other,
	})
	require.NoError(t, err)
	assert.Equal(t, firstStart, *again.StartedAt)
	assert.Equal(t, actor.ID, *again.AssigneeID)

	published := dispatcher.byType(events.EventSessionStatusChanged)
	assert.Len(t, published, 2)
}

func TestTransitionEventCarriesOldAndNewStatus(t *testing.T) {
	svc, repo, dispatcher := newLifecycleFixture()
	session := seedSession(repo, domain.SessionStatusPending, nil)

	_, err := svc.Transition(context.Background(), session.Token, TransitionInput{
		To:    domain.SessionStatusInProgress,
		Actor: agent("agent-1"),
	})
	require.NoError(t, err)

	published := dispatcher.byType(events.EventSessionStatusChanged)
	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.SessionStatusChangedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.SessionStatusPending, payload.OldStatus)
	assert.Equal(t, domain.SessionStatusInProgress, payload.NewStatus)
}

func TestTransitionUnknownToken(t *testing.T) {
	svc, _, _ := newLifecycleFixture()
	_, err := svc.Transition(context.Background(), "missing", TransitionInput{To: domain.SessionStatusPending})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestExpireAbandonedIdempotent(t *testing.T) {
	svc, repo, _ := newLifecycleFixture()
	session := seedSession(repo, domain.SessionStatusInProgress, nil)

	expired, err := svc.ExpireAbandoned(context.Background(), session.Token)
	require.NoError(t, err)
	assert.True(t, expired)

	// Second disconnect handler fires after the room already emptied.
	expired, err = svc.ExpireAbandoned(context.Background(), session.Token)
	require.NoError(t, err)
	assert.False(t, expired)

	persisted, err := repo.GetByToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusExpired, persisted.Status)
	assert.Contains(t, persisted.Notes, "disconnected")
}

func TestExpireAbandonedDoesNotClobberCompletion(t *testing.T) {
	svc, repo, _ := newLifecycleFixture()
	session := seedSession(repo, domain.SessionStatusCompleted, nil)

	expired, err := svc.ExpireAbandoned(context.Background(), session.Token)
	require.NoError(t, err)
	assert.False(t, expired)

	persisted, err := repo.GetByToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompleted, persisted.Status)
}

func TestEndByRequester(t *testing.T) {
	svc, repo, _ := newLifecycleFixture()
	session := seedSession(repo, domain.SessionStatusInProgress, nil)

	ended, err := svc.EndByRequester(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusExpired, ended.Status)

	// A retry of the hangup reports success without another transition.
	again, err := svc.EndByRequester(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusExpired, again.Status)
}

func TestMarkFirstJoin(t *testing.T) {
	svc, repo, _ := newLifecycleFixture()
	session := seedSession(repo, domain.SessionStatusNotStarted, nil)

	svc.MarkFirstJoin(context.Background(), session.Token)
	persisted, err := repo.GetByToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusPending, persisted.Status)

	// Later joins are no-ops.
	svc.MarkFirstJoin(context.Background(), session.Token)
	persisted, err = repo.GetByToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusPending, persisted.Status)
}
