package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
)

func TestSignup(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, nil, nil)

	admin, err := svc.Signup(f.ctx, SignupInput{
		Name:      "Third",
		Email:     " Third@Example.com ",
		Password:  "secret1",
		Role:      model.RoleAdmin,
		AdminType: "Admin 3",
	})
	require.NoError(t, err)
	assert.Equal(t, "third@example.com", admin.Email)
	assert.NotEqual(t, "secret1", admin.PasswordHash)

	user, err := svc.Signup(f.ctx, SignupInput{Name: "Dan", Email: "dan@example.com", Password: "secret1", Role: model.RoleUser, Admin: &admin.ID})
	require.NoError(t, err)
	require.NotNil(t, user.AdminID)
	assert.Equal(t, admin.ID, *user.AdminID)

	authed, err := svc.Authenticate(f.ctx, "DAN@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = svc.Authenticate(f.ctx, "dan@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Authenticate(f.ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSignupRules(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, nil, nil)

	tests := []struct {
		name string
		in   SignupInput
		want error
	}{
		{"missing name", SignupInput{Email: "a@x.com", Password: "secret1", Role: model.RoleUser, Admin: &f.admin.ID}, ErrValidation},
		{"bad email", SignupInput{Name: "a", Email: "nope", Password: "secret1", Role: model.RoleUser, Admin: &f.admin.ID}, ErrValidation},
		{"short password", SignupInput{Name: "a", Email: "a@x.com", Password: "123", Role: model.RoleUser, Admin: &f.admin.ID}, ErrValidation},
		{"unknown role", SignupInput{Name: "a", Email: "a@x.com", Password: "secret1", Role: "root"}, ErrValidation},
		{"user without admin", SignupInput{Name: "a", Email: "a@x.com", Password: "secret1", Role: model.RoleUser}, ErrValidation},
		{"admin reference is a user", SignupInput{Name: "a", Email: "a@x.com", Password: "secret1", Role: model.RoleUser, Admin: &f.alice.ID}, ErrValidation},
		{"unknown admin type", SignupInput{Name: "a", Email: "a@x.com", Password: "secret1", Role: model.RoleAdmin, AdminType: "Admin 9"}, ErrValidation},
		{"seat taken", SignupInput{Name: "a", Email: "a@x.com", Password: "secret1", Role: model.RoleAdmin, AdminType: "Admin 1"}, ErrConflict},
		{"duplicate email", SignupInput{Name: "a", Email: "ALICE@example.com", Password: "secret1", Role: model.RoleUser, Admin: &f.admin.ID}, ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(f.ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignupAdminAllowList(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, map[string]string{"admin 3": "Boss@Example.com"}, nil)

	_, err := svc.Signup(f.ctx, SignupInput{Name: "x", Email: "intruder@example.com", Password: "secret1", Role: model.RoleAdmin, AdminType: "Admin 3"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Signup(f.ctx, SignupInput{Name: "Boss", Email: "boss@example.com", Password: "secret1", Role: model.RoleAdmin, AdminType: "Admin 3"})
	assert.NoError(t, err)
}

func TestUserDirectory(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, nil, nil)

	admins, err := svc.ListAdmins(f.ctx)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, "Admin 1", admins[0].AdminType)

	users, err := svc.ListUsersUnderAdmin(f.ctx, actorOf(f.admin))
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)

	_, err = svc.ListUsersUnderAdmin(f.ctx, actorOf(f.alice))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTelegramLinking(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, nil, nil)

	code, err := svc.IssueLinkCode(f.ctx, actorOf(f.bob))
	require.NoError(t, err)
	assert.Len(t, code, 12)

	_, err = svc.LinkTelegram(f.ctx, "wrong", 7)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.LinkTelegram(f.ctx, " ", 7)
	assert.ErrorIs(t, err, ErrValidation)

	linked, err := svc.LinkTelegram(f.ctx, code, 7)
	require.NoError(t, err)
	assert.Equal(t, f.bob.ID, linked.ID)

	found, err := svc.FindByTelegramChat(f.ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, f.bob.ID, found.ID)

	_, err = svc.LinkTelegram(f.ctx, code, 8)
	assert.ErrorIs(t, err, ErrNotFound, "codes are single use")

	_, err = svc.FindByTelegramChat(f.ctx, 8)
	assert.ErrorIs(t, err, ErrNotFound)
}
