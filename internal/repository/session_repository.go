package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/verification-service/internal/domain"
)

// SessionFilter captures staff listing parameters.
type SessionFilter struct {
	Statuses          []domain.SessionStatus
	AssigneeID        *string
	IncludeUnassigned bool
	Limit             int
	Offset            int
}

// StatusChange describes the side effects applied together with a status
// transition. The whole change commits as one conditional UPDATE.
type StatusChange struct {
	To             domain.SessionStatus
	SetStartedAt   bool
	SetCompletedAt bool
	BindAssignee   *string
	AppendNote     string
}

// SessionRepository encapsulates verification session persistence. Claim and
// UpdateStatus are compare-and-set operations: they return pgx.ErrNoRows when
// the guard did not match, and callers re-read to classify the failure.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	GetByLink(ctx context.Context, link string) (*domain.Session, error)
	List(ctx context.Context, filter SessionFilter) ([]domain.Session, error)
	Claim(ctx context.Context, token, staffID string) (*domain.Session, error)
	UpdateStatus(ctx context.Context, token string, from []domain.SessionStatus, change StatusChange) (*domain.Session, domain.SessionStatus, error)
}

const sessionColumns = `id, token, status, assignee_id, requester_name, requester_phone, requester_email,
           join_link, link_expires_at, notes, created_at, started_at, completed_at, updated_at`

const sessionColumnsPrefixed = `s.id, s.token, s.status, s.assignee_id, s.requester_name, s.requester_phone, s.requester_email,
           s.join_link, s.link_expires_at, s.notes, s.created_at, s.started_at, s.completed_at, s.updated_at`

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository instantiates the repository.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	const query = `
        INSERT INTO verification_sessions
            (token, status, assignee_id, requester_name, requester_phone, requester_email, join_link, link_expires_at, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		session.Token,
		session.Status,
		session.AssigneeID,
		session.RequesterName,
		session.RequesterPhone,
		session.RequesterEmail,
		session.JoinLink,
		session.LinkExpiresAt,
		session.Notes,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
}

func (r *sessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM verification_sessions WHERE token=$1`, sessionColumns)
	return r.fetchSingle(ctx, query, token)
}

func (r *sessionRepository) GetByLink(ctx context.Context, link string) (*domain.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM verification_sessions WHERE join_link=$1 OR token=$1`, sessionColumns)
	return r.fetchSingle(ctx, query, link)
}

func (r *sessionRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Session, error) {
	var session domain.Session
	if err := scanSession(r.pool.QueryRow(ctx, query, args...), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) List(ctx context.Context, filter SessionFilter) ([]domain.Session, error) {
	base := fmt.Sprintf(`SELECT %s FROM verification_sessions`, sessionColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		if filter.IncludeUnassigned {
			clauses = append(clauses, fmt.Sprintf("(assignee_id = $%d OR assignee_id IS NULL)", len(args)))
		} else {
			clauses = append(clauses, fmt.Sprintf("assignee_id = $%d", len(args)))
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Session
	for rows.Next() {
		var session domain.Session
		if err := scanSession(rows, &session); err != nil {
			return nil, err
		}
		result = append(result, session)
	}
	return result, rows.Err()
}

// Claim commits only when the session is unclaimed (or already held by the
// caller) and non-terminal. Concurrent claims on the same token serialize on
// the row; exactly one UPDATE matches.
func (r *sessionRepository) Claim(ctx context.Context, token, staffID string) (*domain.Session, error) {
	query := fmt.Sprintf(`
        UPDATE verification_sessions
        SET assignee_id=$1, updated_at=NOW()
        WHERE token=$2
          AND (assignee_id IS NULL OR assignee_id=$1)
          AND NOT (status = ANY($3))
        RETURNING %s`, sessionColumns)

	var session domain.Session
	err := scanSession(r.pool.QueryRow(ctx, query, staffID, token, statusStrings(domain.TerminalStatuses())), &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateStatus self-joins the target row so RETURNING can expose the
// pre-transition status alongside the updated row; FROM sees the old snapshot.
func (r *sessionRepository) UpdateStatus(ctx context.Context, token string, from []domain.SessionStatus, change StatusChange) (*domain.Session, domain.SessionStatus, error) {
	sets := []string{"status=$1", "updated_at=NOW()"}
	args := []any{change.To}

	if change.SetStartedAt {
		sets = append(sets, "started_at=COALESCE(s.started_at, NOW())")
	}
	if change.SetCompletedAt {
		sets = append(sets, "completed_at=NOW()")
	}
	if change.BindAssignee != nil {
		args = append(args, *change.BindAssignee)
		sets = append(sets, fmt.Sprintf("assignee_id=COALESCE(s.assignee_id, $%d)", len(args)))
	}
	if change.AppendNote != "" {
		args = append(args, change.AppendNote)
		sets = append(sets, fmt.Sprintf("notes=TRIM(COALESCE(s.notes,'') || ' ' || $%d)", len(args)))
	}

	args = append(args, token)
	tokenIdx := len(args)
	args = append(args, statusStrings(from))

	query := fmt.Sprintf(`
        UPDATE verification_sessions AS s
        SET %s
        FROM verification_sessions AS prev
        WHERE prev.id = s.id AND s.token=$%d AND s.status = ANY($%d)
        RETURNING %s, prev.status`, strings.Join(sets, ", "), tokenIdx, tokenIdx+1, sessionColumnsPrefixed)

	var session domain.Session
	var prevStatus domain.SessionStatus
	dest := append(sessionFields(&session), &prevStatus)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(dest...); err != nil {
		return nil, "", err
	}
	return &session, prevStatus, nil
}

func scanSession(row pgx.Row, session *domain.Session) error {
	return row.Scan(sessionFields(session)...)
}

func sessionFields(session *domain.Session) []any {
	return []any{
		&session.ID,
		&session.Token,
		&session.Status,
		&session.AssigneeID,
		&session.RequesterName,
		&session.RequesterPhone,
		&session.RequesterEmail,
		&session.JoinLink,
		&session.LinkExpiresAt,
		&session.Notes,
		&session.CreatedAt,
		&session.StartedAt,
		&session.CompletedAt,
		&session.UpdatedAt,
	}
}

func statusStrings(statuses []domain.SessionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
