// Package testutil holds fixtures shared by the test suites.
package testutil

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"

	"github.com/mateatletas/backend/core"
	"github.com/mateatletas/backend/core/membership"
	"github.com/mateatletas/backend/core/period"
	"github.com/mateatletas/backend/core/user"
)

// NewConfig returns a test configuration using the in-memory storage.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:   "Mateatletas",
		Env:       "test",
		TestMode:  true,
		SecretKey: "test-secret-key",
		Timezone:  "UTC",
		Server: core.ServerConfig{
			Host:                      "localhost",
			Address:                   ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			RateLimitRPS:              1000,
			RateLimitBurst:            1000,
		},
		Database: core.DatabaseConfig{Engine: "memory"},
	}
}

// NewValidator returns a validator with every custom validation & translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// Logger writes to the test log.
func Logger(t *testing.T) *log.Logger {
	return log.New(testWriter{t}, "", 0)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateMembership stores a Membership of usr for the "YYYY-MM" period p, expiring in loc.
func CreateMembership(
	t *testing.T,
	repo membership.Repository,
	usr user.User,
	p string,
	status membership.Status,
	loc *time.Location,
) membership.Membership {
	t.Helper()
	parsed, err := period.Parse(p)
	if err != nil {
		t.Fatalf("CreateMembership() failed: %v", err)
	}
	now := time.Now().UTC()
	m, err := repo.CreateMembership(context.Background(), membership.Membership{
		UserID:    usr.ID,
		Period:    parsed.String(),
		Status:    status,
		ExpiresAt: parsed.ExpiresAt(loc),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateMembership() failed: %v", err)
	}
	return m
}
