package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mateatletas/backend/core/membership"
)

const (
	membershipColumns = `id, user_id, period, status, expires_at, created_at, updated_at`

	// one non-cancelled membership per user & period
	membershipPeriodIndex = "membership_user_id_period_uidx"
)

type membershipRepository struct {
	db *sqlx.DB
}

var _ membership.Repository = (*membershipRepository)(nil) // interface compliance check

func NewMembershipRepository(db *sqlx.DB) membership.Repository {
	return &membershipRepository{db: db}
}

// membershipRow maps a row of the membership table.
type membershipRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Period    string    `db:"period"`
	Status    string    `db:"status"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r membershipRow) toMembership() membership.Membership {
	return membership.Membership{
		ID:        r.ID,
		UserID:    r.UserID,
		Period:    r.Period,
		Status:    membership.Status(r.Status),
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newMembershipRow(m membership.Membership) membershipRow {
	return membershipRow{
		ID:        m.ID,
		UserID:    m.UserID,
		Period:    m.Period,
		Status:    string(m.Status),
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (repo *membershipRepository) CreateMembership(ctx context.Context, m membership.Membership) (membership.Membership, error) {
	m.ID = uuid.New().String()
	q := `INSERT INTO membership (` + membershipColumns + `)
		VALUES (:id, :user_id, :period, :status, :expires_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newMembershipRow(m)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == membershipPeriodIndex {
			return membership.Membership{}, membership.ErrAlreadyExists
		}
		return membership.Membership{}, errors.Wrap(err, "inserting membership")
	}
	return m, nil
}

func (repo *membershipRepository) GetMembership(ctx context.Context, id string) (membership.Membership, error) {
	if _, err := uuid.Parse(id); err != nil {
		return membership.Membership{}, membership.ErrNotFound
	}

	var r membershipRow
	q := `SELECT ` + membershipColumns + ` FROM membership WHERE id = $1`
	if err := repo.db.GetContext(ctx, &r, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return membership.Membership{}, membership.ErrNotFound
		}
		return membership.Membership{}, errors.Wrap(err, "getting membership")
	}
	return r.toMembership(), nil
}

// QueryMemberships returns the matching Memberships, latest period first.
func (repo *membershipRepository) QueryMemberships(ctx context.Context, filter *membership.QueryFilter) ([]membership.Membership, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.UserID != "" {
			if _, err := uuid.Parse(filter.UserID); err != nil {
				return []membership.Membership{}, nil
			}
			args = append(args, filter.UserID)
			where = append(where, "user_id = $"+strconv.Itoa(len(args)))
		}
		if filter.Status != "" {
			args = append(args, string(filter.Status))
			where = append(where, "status = $"+strconv.Itoa(len(args)))
		}
		if filter.Period != "" {
			args = append(args, filter.Period)
			where = append(where, "period = $"+strconv.Itoa(len(args)))
		}
	}

	q := `SELECT ` + membershipColumns + ` FROM membership`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY period DESC, created_at DESC"

	var rows []membershipRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying memberships")
	}
	res := make([]membership.Membership, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toMembership())
	}
	return res, nil
}

func (repo *membershipRepository) UpdateMembership(ctx context.Context, m membership.Membership) (membership.Membership, error) {
	q := `UPDATE membership SET status = :status, expires_at = :expires_at, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newMembershipRow(m))
	if err != nil {
		return membership.Membership{}, errors.Wrap(err, "updating membership")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return membership.Membership{}, membership.ErrNotFound
	}
	return m, nil
}

func (repo *membershipRepository) ExpireMemberships(ctx context.Context, now time.Time) (int, error) {
	q := `UPDATE membership SET status = $1, updated_at = $2 WHERE status = $3 AND expires_at < $4`
	res, err := repo.db.ExecContext(ctx, q,
		string(membership.StatusExpired), now.UTC(), string(membership.StatusActive), now)
	if err != nil {
		return 0, errors.Wrap(err, "expiring memberships")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "expiring memberships")
	}
	return int(n), nil
}
