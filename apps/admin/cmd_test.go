package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateatletas/backend/core/membership"
	"github.com/mateatletas/backend/core/user"
	logsvc "github.com/mateatletas/backend/services/logger"
	inmemdb "github.com/mateatletas/backend/storage/database/inmem"
	"github.com/mateatletas/backend/tests"
)

type testCLI struct {
	*commandLine
	mbRepo membership.Repository
}

func setup(t *testing.T) testCLI {
	t.Helper()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	mbRepo := inmemdb.NewMembershipRepository(db)
	usrSvc := user.NewService(usrRepo)

	return testCLI{
		commandLine: &commandLine{
			usrRepo: usrRepo,
			usrSvc:  usrSvc,
			mbSvc:   membership.NewService(mbRepo, usrSvc, time.UTC),
			logger:  logsvc.NewDiscardLogger(),
			out:     io.Discard,
		},
		mbRepo: mbRepo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.ErrorIs(t, err, tt.wantErr)
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func mockReadPassword(t *testing.T, pwd string) {
	t.Helper()
	readPasswordFunc = func(fd int) ([]byte, error) {
		if pwd == "" {
			return nil, nil
		}
		return []byte(pwd), nil
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	t.Run("in-memory database", func(t *testing.T) {
		cli := setup(t)
		assert.Equal(t, errNoSQLDatabase, cli.run([]string{"admin", "migrate", "up"}))
	})

	cli := setup(t)
	db, err := sql.Open("postgres", "postgres://localhost/mateatletas?sslmode=disable") // never connects
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	cli.db = db

	origRun := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = origRun })

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		if _, err := fs.Stat(fsys, dir); err != nil {
			return err
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "20210110091000"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "20210110090000"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "add_courses", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	t.Cleanup(func() { readPasswordFunc = origReadPassword })

	existing := testutil.CreateUser(t, cli.usrRepo, "Ana Gomez", "anagomez", "ana@test.ar", "OldPass123!", nil, false)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErrStr: "flag provided but not defined: -lol"},
		{name: "username but no password", args: []string{"adduser", "-username", "carlos"}, wantErr: errHelp},
		{name: "weak password", args: []string{"adduser", "-username", "carlos"}, extra: extra{pwd: "carlos"}, wantErrStr: "weak password: " +
			"new password must contain at least 8 characters; new password must contain an upper-case letter; " +
			"new password must contain a digit; new password must contain a special character"},
		{name: "email taken", args: []string{"adduser", "-username", "carlos", "-email", "ana@test.ar"}, extra: extra{pwd: "Str0ng!Pwd"}},
		{name: "create", args: []string{"adduser", "-username", "Carlos", "-email", "carlos@test.ar", "-name", "Carlos Ruiz"}, extra: extra{pwd: "Str0ng!Pwd"}},
		{name: "create admin", args: []string{"adduser", "-username", "root_admin", "-admin"}, extra: extra{pwd: "Str0ng!Pwd"}},
		{name: "create with email only", args: []string{"adduser", "-email", "root@test.ar"}, extra: extra{pwd: "Str0ng!Pwd"}},
	}
	for _, tt := range tests {
		pwd := ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}
		mockReadPassword(t, pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	ctx := context.Background()

	// the existing user, found by email, was reactivated with the new password
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Str0ng!Pwd"))
	assert.Equal(t, "anagomez", usr.Username)

	usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Username: "carlos"})
	require.NoError(t, err)
	assert.Equal(t, "Carlos Ruiz", usr.Name)
	assert.Equal(t, "carlos@test.ar", usr.Email)
	assert.True(t, usr.IsActive)
	assert.False(t, usr.IsAdmin())

	usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Username: "root_admin"})
	require.NoError(t, err)
	assert.Equal(t, "root_admin", usr.Name)
	assert.ElementsMatch(t, user.AllRoles, usr.Roles)

	usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: "root@test.ar"})
	require.NoError(t, err)
	assert.Equal(t, "root@test.ar", usr.Name)
	assert.Empty(t, usr.Username)
}

var origReadPassword = readPasswordFunc

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	t.Cleanup(func() { readPasswordFunc = origReadPassword })

	usr := testutil.CreateUser(t, cli.usrRepo, "User", "awesome", "awe@test.ar", "OldPass123!", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lmao"}, wantErr: user.ErrNotFound},
		{name: "temporary password too short", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}, wantErr: user.ErrTempPasswordShort},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lmao"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.ar"}, extra: extra{pwd: "temp1"}},
	}
	for _, tt := range tests {
		pwd := ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}
		mockReadPassword(t, pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err != nil {
				return
			}

			refreshedUsr, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "password not updated")
			assert.NoError(t, refreshedUsr.CheckPassword(pwd))
			assert.True(t, refreshedUsr.MustChangePassword)
		})
	}
}

func Test_commandLine_expireMemberships(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, cli.usrRepo, "Beto Diaz", "betodiaz", "beto@test.ar", "OldPass123!", []string{user.RoleTutor}, true)
	elapsed := testutil.CreateMembership(t, cli.mbRepo, usr, "2020-01", membership.StatusActive, time.UTC)
	pending := testutil.CreateMembership(t, cli.mbRepo, usr, "2020-02", membership.StatusPending, time.UTC)
	future := testutil.CreateMembership(t, cli.mbRepo, usr, "2999-12", membership.StatusActive, time.UTC)

	require.NoError(t, cli.run([]string{"admin", "expirememberships"}))

	tests := []struct {
		id   string
		want membership.Status
	}{
		{id: elapsed.ID, want: membership.StatusExpired},
		{id: pending.ID, want: membership.StatusPending},
		{id: future.ID, want: membership.StatusActive},
	}
	for _, tt := range tests {
		m, err := cli.mbRepo.GetMembership(ctx, tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, m.Status, m.Period)
	}

	// idempotent
	require.NoError(t, cli.run([]string{"admin", "expirememberships"}))
}
