package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateatletas/backend/core/user"
	testutil "github.com/mateatletas/backend/tests"
)

func TestNewUser_Validate(t *testing.T) {
	validate, translator := testutil.NewValidator()
	svc, repo := newTestService(t)
	testutil.CreateUser(t, repo, "Ana", "anatutor", "ana@mateatletas.test", "", nil, true)
	user.SetCommonPasswords([]string{"Qwerty123!"})
	defer user.SetCommonPasswords(nil)

	valid := user.NewUser{
		Name:            "Beto",
		Username:        "betostudent",
		Password:        "Str0ng!Pwd",
		PasswordConfirm: "Str0ng!Pwd",
		Roles:           []string{user.RoleStudent},
	}

	tests := []struct {
		name       string
		modify     func(nu *user.NewUser)
		wantFields map[string]string
		wantUnique bool
	}{
		{name: "valid", modify: func(nu *user.NewUser) {}},
		{
			name:       "username or email required",
			modify:     func(nu *user.NewUser) { nu.Username = "" },
			wantFields: map[string]string{"username": "one of username or email is required"},
		},
		{
			name:       "unknown role",
			modify:     func(nu *user.NewUser) { nu.Roles = []string{"superhero:"} },
			wantFields: map[string]string{"roles": "invalid roles"},
		},
		{
			name: "password does not match",
			modify: func(nu *user.NewUser) {
				nu.PasswordConfirm = "Other!Pwd1"
			},
			wantFields: map[string]string{"password_confirm": ""},
		},
		{
			name:       "password with whitespace",
			modify:     func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Str0ng! Pwd", "Str0ng! Pwd" },
			wantFields: map[string]string{"password": "password must not contain whitespace"},
		},
		{
			name:       "numeric password",
			modify:     func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "1234567890", "1234567890" },
			wantFields: map[string]string{"password": "password cannot be entirely numeric"},
		},
		{
			name:       "password too weak",
			modify:     func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "weakpassword", "weakpassword" },
			wantFields: map[string]string{"password": ""},
		},
		{
			name:       "password similar to username",
			modify:     func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Betostudent1!", "Betostudent1!" },
			wantFields: map[string]string{"password": "password cannot be similar to user attributes"},
		},
		{
			name:       "common password",
			modify:     func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Qwerty123!", "Qwerty123!" },
			wantFields: map[string]string{"password": "password is too common"},
		},
		{
			name:       "username taken",
			modify:     func(nu *user.NewUser) { nu.Username = "ANATUTOR" },
			wantUnique: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid
			tt.modify(&nu)
			err := nu.Validate(context.Background(), validate, svc)

			switch {
			case tt.wantUnique:
				assert.Error(t, err)
			case tt.wantFields == nil:
				assert.NoError(t, err)
			default:
				require.Error(t, err)
				vErrs, ok := err.(validator.ValidationErrors)
				require.True(t, ok, "got %T: %v", err, err)
				got := make(map[string]string, len(vErrs))
				for _, fe := range vErrs {
					got[fe.Field()] = fe.Translate(translator)
				}
				for fld, msg := range tt.wantFields {
					require.Contains(t, got, fld)
					if msg != "" {
						assert.Equal(t, msg, got[fld])
					}
				}
			}
		})
	}
}
