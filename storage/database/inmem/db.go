// Package inmemdb holds in-memory repositories, used for local development & tests.
package inmemdb

import (
	"sync"

	"github.com/mateatletas/backend/core/membership"
	"github.com/mateatletas/backend/core/user"
)

type (
	DB struct {
		user       *userTable
		membership *membershipTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	membershipTable struct {
		sync.RWMutex
		table map[string]*membership.Membership
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		membership: &membershipTable{table: make(map[string]*membership.Membership)},
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.membership.Lock()
	db.membership.table = make(map[string]*membership.Membership)
	db.membership.Unlock()
}
