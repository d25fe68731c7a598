package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mateatletas/backend/core/membership"
)

type membershipRepository struct {
	db *membershipTable
}

var _ membership.Repository = (*membershipRepository)(nil) // interface compliance check

func NewMembershipRepository(db *DB) membership.Repository {
	return &membershipRepository{db: db.membership}
}

func (repo *membershipRepository) CreateMembership(_ context.Context, m membership.Membership) (membership.Membership, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.table {
		if other.UserID == m.UserID && other.Period == m.Period && other.Status != membership.StatusCancelled {
			return membership.Membership{}, membership.ErrAlreadyExists
		}
	}

	m.ID = uuid.New().String()
	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *membershipRepository) GetMembership(_ context.Context, id string) (membership.Membership, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return *m, nil
	}
	return membership.Membership{}, membership.ErrNotFound
}

// QueryMemberships returns the matching Memberships, latest period first.
func (repo *membershipRepository) QueryMemberships(_ context.Context, filter *membership.QueryFilter) ([]membership.Membership, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	res := make([]membership.Membership, 0)
	for _, m := range repo.db.table {
		if filter != nil {
			if filter.UserID != "" && m.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && m.Status != filter.Status {
				continue
			}
			if filter.Period != "" && m.Period != filter.Period {
				continue
			}
		}
		res = append(res, *m)
	}

	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Period != res[j].Period {
			return res[i].Period > res[j].Period
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (repo *membershipRepository) UpdateMembership(_ context.Context, m membership.Membership) (membership.Membership, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[m.ID]; !ok {
		return membership.Membership{}, membership.ErrNotFound
	}
	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *membershipRepository) ExpireMemberships(_ context.Context, now time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, m := range repo.db.table {
		if m.Status == membership.StatusActive && m.ExpiresAt.Before(now) {
			m.Status = membership.StatusExpired
			m.UpdatedAt = now
			cnt++
		}
	}
	return cnt, nil
}
