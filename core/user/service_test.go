package user_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateatletas/backend/core"
	"github.com/mateatletas/backend/core/user"
	inmemdb "github.com/mateatletas/backend/storage/database/inmem"
	testutil "github.com/mateatletas/backend/tests"
)

func newTestService(t *testing.T) (*user.Service, user.Repository) {
	t.Helper()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	return user.NewService(repo), repo
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, user.NewUser{
		Name:     "Ana Tutor",
		Username: "anatutor",
		Email:    "ana@mateatletas.test",
		Password: "Str0ng!Pwd",
		Roles:    []string{user.RoleTutor},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsTutor())
	assert.False(t, usr.MustChangePassword)
	assert.NoError(t, usr.CheckPassword("Str0ng!Pwd"))

	got, err := svc.GetByUsernameOrEmail(ctx, "  ANA@mateatletas.test ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
}

func TestService_CheckUniqueness(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Ana", "anatutor", "ana@mateatletas.test", "pwd", nil, true)

	tests := []struct {
		name      string
		uname     string
		email     string
		excl      []user.User
		wantField string
	}{
		{name: "free", uname: "other", email: "other@mateatletas.test"},
		{name: "username taken", uname: "anatutor", email: "other@mateatletas.test", wantField: "username"},
		{name: "email taken", uname: "other", email: "ana@mateatletas.test", wantField: "email"},
		{name: "empty values ignored", uname: "", email: ""},
		{name: "excluded user", uname: "anatutor", email: "ana@mateatletas.test", excl: []user.User{usr}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CheckUniqueness(ctx, tt.uname, tt.email, tt.excl...)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Contains(t, vErr.FieldMessages(), tt.wantField)
		})
	}
}

func TestService_ChangePassword(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Ana", "anatutor", "", "OldPass123!", nil, true)

	tests := []struct {
		name     string
		data     user.ChangePassword
		wantErr  error
		wantWeak bool
	}{
		{
			name:     "weak new password",
			data:     user.ChangePassword{CurrentPassword: "OldPass123!", NewPassword: "weak"},
			wantWeak: true,
		},
		{
			name:     "missing current password",
			data:     user.ChangePassword{NewPassword: "NewSecurePass456!"},
			wantWeak: true,
		},
		{
			name:    "incorrect current password",
			data:    user.ChangePassword{CurrentPassword: "WrongPass123!", NewPassword: "NewSecurePass456!"},
			wantErr: user.ErrIncorrectPassword,
		},
		{
			name: "success",
			data: user.ChangePassword{CurrentPassword: "OldPass123!", NewPassword: "NewSecurePass456!"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ChangePassword(ctx, usr, tt.data)
			switch {
			case tt.wantWeak:
				var weakErr *user.WeakPasswordError
				assert.True(t, errors.As(err, &weakErr), "got %v", err)
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			default:
				require.NoError(t, err)
				assert.NoError(t, got.CheckPassword(tt.data.NewPassword))

				stored, err := svc.GetByID(ctx, usr.ID)
				require.NoError(t, err)
				assert.NoError(t, stored.CheckPassword(tt.data.NewPassword))
				assert.Error(t, stored.CheckPassword(tt.data.CurrentPassword))
			}
		})
	}
}

func TestService_ResetPassword(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Ana", "anatutor", "ana@mateatletas.test", "OldPass123!", nil, true)

	_, err := svc.ResetPassword(ctx, "anatutor", "abc")
	assert.Equal(t, user.ErrTempPasswordShort, err)

	_, err = svc.ResetPassword(ctx, "nobody", "temp1")
	assert.Equal(t, user.ErrNotFound, err)

	reset, err := svc.ResetPassword(ctx, "ana@mateatletas.test", "temp")
	require.NoError(t, err)
	assert.True(t, reset.MustChangePassword)
	assert.NoError(t, reset.CheckPassword("temp"))

	// the short temporary password is a valid current password
	changed, err := svc.ChangePassword(ctx, reset, user.ChangePassword{CurrentPassword: "temp", NewPassword: "Password123!"})
	require.NoError(t, err)
	assert.False(t, changed.MustChangePassword)

	stored, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, stored.MustChangePassword)
	assert.NoError(t, stored.CheckPassword("Password123!"))
}

func TestService_Query(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	ana := testutil.CreateUser(t, repo, "Ana", "anatutor", "ana@mateatletas.test", "", []string{user.RoleTutor}, true)
	beto := testutil.CreateUser(t, repo, "Beto", "betostudent", "beto@mateatletas.test", "", []string{user.RoleStudent}, false)
	admin := testutil.CreateUser(t, repo, "Carla", "carlaadmin", "carla@mateatletas.test", "", []string{user.RoleAdminOwner}, true)

	inactive := false
	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		wantIDs  []string
	}{
		{
			name:     "all by name",
			ordering: []core.DBOrdering{{Field: "name", Ascending: true}},
			wantIDs:  []string{ana.ID, beto.ID, admin.ID},
		},
		{
			name:     "unknown ordering field ignored",
			filter:   &user.QueryFilter{Roles: []string{user.RoleTutor}},
			ordering: []core.DBOrdering{{Field: "password_hash"}},
			wantIDs:  []string{ana.ID},
		},
		{
			name:    "search",
			filter:  &user.QueryFilter{Search: "BETO"},
			wantIDs: []string{beto.ID},
		},
		{
			name:    "role prefix",
			filter:  &user.QueryFilter{Roles: []string{user.RoleAdmin}},
			wantIDs: []string{admin.ID},
		},
		{
			name:    "inactive",
			filter:  &user.QueryFilter{IsActive: &inactive},
			wantIDs: []string{beto.ID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := svc.Query(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			ids := make([]string, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Ana", "anatutor", "ana@mateatletas.test", "", nil, true)

	active := false
	updated, err := svc.Update(ctx, usr, user.UpdateUser{
		Name:     "Ana María",
		Username: usr.Username,
		Email:    usr.Email,
		IsActive: &active,
		Roles:    []string{user.RoleTeacher},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", updated.Name)
	assert.False(t, updated.IsActive)
	assert.True(t, updated.IsTeacher())

	cnt, err := svc.Delete(ctx, usr.ID, "unknown")
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)

	_, err = svc.GetByID(ctx, usr.ID)
	assert.Equal(t, user.ErrNotFound, err)
}
