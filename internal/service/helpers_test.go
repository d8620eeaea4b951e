package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/events"
	"github.com/spec-kit/verification-service/internal/repository"
)

type fakeStaffRepo struct {
	mu      sync.Mutex
	members map[string]*domain.StaffMember
}

func newFakeStaffRepo(members ...*domain.StaffMember) *fakeStaffRepo {
	repo := &fakeStaffRepo{members: make(map[string]*domain.StaffMember)}
	for _, m := range members {
		repo.members[m.ID] = m
	}
	return repo
}

func (r *fakeStaffRepo) Create(_ context.Context, staff *domain.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	r.members[staff.ID] = staff
	return nil
}

func (r *fakeStaffRepo) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *member
	return &copied, nil
}

func (r *fakeStaffRepo) GetByUsername(_ context.Context, username string) (*domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, member := range r.members {
		if member.Username == username {
			copied := *member
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) byType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func agent(id string) *domain.StaffMember {
	return &domain.StaffMember{ID: id, Username: id, Role: domain.StaffRoleAgent, Active: true}
}

func admin(id string) *domain.StaffMember {
	return &domain.StaffMember{ID: id, Username: id, Role: domain.StaffRoleAdmin, Active: true}
}

func seedSession(repo *repository.InMemorySessionRepository, status domain.SessionStatus, assignee *string) *domain.Session {
	session := &domain.Session{
		Token:          uuid.NewString(),
		Status:         status,
		AssigneeID:     assignee,
		RequesterName:  "Dana Smith",
		RequesterPhone: "+15550001111",
		JoinLink:       "http://localhost:3005/join/placeholder",
		LinkExpiresAt:  time.Now().Add(24 * time.Hour),
	}
	session.JoinLink = "http://localhost:3005/join/" + session.Token
	if err := repo.Create(context.Background(), session); err != nil {
		panic(err)
	}
	return session
}
