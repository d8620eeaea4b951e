package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/events"
	"github.com/spec-kit/verification-service/internal/repository"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

func newClaimFixture(staff ...*domain.StaffMember) (*ClaimService, *repository.InMemorySessionRepository, *recordingDispatcher) {
	repo := repository.NewInMemorySessionRepository()
	dispatcher := &recordingDispatcher{}
	svc := NewClaimService(ClaimDependencies{
		SessionRepo: repo,
		StaffRepo:   newFakeStaffRepo(staff...),
		Dispatcher:  dispatcher,
	})
	return svc, repo, dispatcher
}

func TestClaimRaceHasExactlyOneWinner(t *testing.T) {
	const contenders = 32

	staff := make([]*domain.StaffMember, contenders)
	for i := range staff {
		staff[i] = agent(fmt.Sprintf("agent-%02d", i))
	}
	svc, repo, dispatcher := newClaimFixture(staff...)
	session := seedSession(repo, domain.SessionStatusNotStarted, nil)

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Claim(context.Background(), staff[i], session.Token, "")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, apperrors.IsCode(err, apperrors.CodeAlreadyClaimed), "loser got %v", err)
	}
	assert.Equal(t, 1, winners)

	persisted, err := repo.GetByToken(context.Background(), session.Token)
	require.NoError(t, err)
	require.NotNil(t, persisted.AssigneeID)
	assert.Len(t, dispatcher.byType(events.EventSessionClaimed), 1)
}

func TestClaimIdempotentForSameStaff(t *testing.T) {
	actor := agent("agent-1")
	svc, repo, _ := newClaimFixture(actor)
	session := seedSession(repo, domain.SessionStatusPending, nil)

	first, err := svc.Claim(context.Background(), actor, session.Token, "")
	require.NoError(t, err)
	require.NotNil(t, first.AssigneeID)

	second, err := svc.Claim(context.Background(), actor, session.Token, "")
	require.NoError(t, err)
	assert.Equal(t, actor.ID, *second.AssigneeID)
}

func TestClaimLoserGetsCurrentHolder(t *testing.T) {
	holder := agent("agent-1")
	rival := agent("agent-2")
	svc, repo, _ := newClaimFixture(holder, rival)
	holderID := holder.ID
	session := seedSession(repo, domain.SessionStatusPending, &holderID)

	_, err := svc.Claim(context.Background(), rival, session.Token, "")
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeAlreadyClaimed, domainErr.Code)
	assert.Equal(t, holder.ID, domainErr.Details["assignee_id"])
}

func TestClaimClosedSession(t *testing.T) {
	actor := agent("agent-1")
	svc, repo, _ := newClaimFixture(actor)
	session := seedSession(repo, domain.SessionStatusExpired, nil)

	_, err := svc.Claim(context.Background(), actor, session.Token, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSessionClosed))
}

func TestClaimUnknownToken(t *testing.T) {
	actor := agent("agent-1")
	svc, _, _ := newClaimFixture(actor)

	_, err := svc.Claim(context.Background(), actor, "missing", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestAdminAssignsAnotherStaff(t *testing.T) {
	boss := admin("admin-1")
	worker := agent("agent-1")
	svc, repo, _ := newClaimFixture(boss, worker)
	session := seedSession(repo, domain.SessionStatusNotStarted, nil)

	claimed, err := svc.Claim(context.Background(), boss, session.Token, worker.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed.AssigneeID)
	assert.Equal(t, worker.ID, *claimed.AssigneeID)
}

func TestAgentCannotAssignOthers(t *testing.T) {
	actor := agent("agent-1")
	other := agent("agent-2")
	svc, repo, _ := newClaimFixture(actor, other)
	session := seedSession(repo, domain.SessionStatusNotStarted, nil)

	_, err := svc.Claim(context.Background(), actor, session.Token, other.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestAdminCannotAssignInactiveStaff(t *testing.T) {
	boss := admin("admin-1")
	inactive := agent("agent-1")
	inactive.Active = false
	svc, repo, _ := newClaimFixture(boss, inactive)
	session := seedSession(repo, domain.SessionStatusNotStarted, nil)

	_, err := svc.Claim(context.Background(), boss, session.Token, inactive.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}
