package staff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/permission"
	"github.com/erazemk/garderoba/internal/testutil"
)

var (
	owner   = model.Session{Identifier: "root", Role: model.RoleCreator}
	manager = model.Session{Identifier: "boss", Role: model.RoleAdmin}
	desk    = model.Session{Identifier: "ana", Role: model.RoleCashier}
)

func newService(t *testing.T) *Service {
	t.Helper()
	clock := testutil.NewClock(testutil.Epoch)
	return NewService(db.NewTestDB(t), permission.Default(), clock.Now, nil)
}

func TestCreateAndList(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	u, err := s.Create(ctx, owner, " ana ", "Ana Novak", model.RoleCashier)
	require.NoError(t, err)
	assert.Equal(t, "ana", u.Username)
	assert.True(t, u.CreatedAt.Equal(testutil.Epoch))

	_, err = s.Create(ctx, owner, "ana", "", model.RoleCashier)
	assert.ErrorIs(t, err, model.ErrAlreadyExists)

	users, err := s.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateRejects(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, manager, "x1", "", model.RoleCashier)
	assert.ErrorIs(t, err, model.ErrPermissionDenied, "managers cannot manage users")

	_, err = s.Create(ctx, owner, "x1", "", model.RoleClient)
	assert.ErrorIs(t, err, model.ErrUnknownRole)

	_, err = s.Create(ctx, owner, "x1", "", "janitor")
	assert.ErrorIs(t, err, model.ErrUnknownRole)

	_, err = s.Create(ctx, owner, "x", "", model.RoleCashier)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestBlocking(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.Provision(ctx, "ana", "", model.RoleCashier)
	require.NoError(t, err)

	require.NoError(t, s.SetBlocked(ctx, owner, "ana", true))
	users, _ := s.ListAll(ctx)
	assert.True(t, users[0].IsBlocked)

	require.NoError(t, s.SetBlockedDirect(ctx, "ana", false))
	users, _ = s.ListAll(ctx)
	assert.False(t, users[0].IsBlocked)

	assert.ErrorIs(t, s.SetBlocked(ctx, owner, "ghost", true), model.ErrNotFound)
	assert.ErrorIs(t, s.SetBlocked(ctx, desk, "ana", true), model.ErrPermissionDenied)
	assert.ErrorIs(t, s.SetBlocked(ctx, owner, "root", true), model.ErrValidation)
}

func TestRoleChanges(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.Provision(ctx, "ana", "", model.RoleCashier)
	require.NoError(t, err)

	require.NoError(t, s.SetRole(ctx, owner, "ana", model.RoleAdmin))
	users, _ := s.ListAll(ctx)
	assert.Equal(t, model.RoleAdmin, users[0].Role)

	assert.ErrorIs(t, s.SetRole(ctx, manager, "ana", model.RoleCashier), model.ErrPermissionDenied)
	assert.ErrorIs(t, s.SetRole(ctx, owner, "ana", "wizard"), model.ErrUnknownRole)
	assert.ErrorIs(t, s.SetRoleDirect(ctx, "ghost", model.RoleCashier), model.ErrNotFound)
}

func TestCannotGrantMoreThanHeld(t *testing.T) {
	matrix, err := permission.New(
		map[string][]permission.Action{
			"owner":    permission.AllActions,
			"hr":       {permission.ManageUsers, permission.ManageRoles, permission.CheckIn, permission.CheckOut, permission.AccessChat},
			"operator": {permission.CheckIn, permission.CheckOut, permission.AccessChat},
			"client":   {},
		},
		map[string]string{
			model.RoleCreator: "owner",
			"personnel":       "hr",
			model.RoleCashier: "operator",
			model.RoleClient:  "client",
		},
	)
	require.NoError(t, err)

	s := NewService(db.NewTestDB(t), matrix, testutil.NewClock(testutil.Epoch).Now, nil)
	ctx := context.Background()
	hr := model.Session{Identifier: "hana", Role: "personnel"}

	_, err = s.Create(ctx, hr, "ana", "", model.RoleCashier)
	require.NoError(t, err)

	_, err = s.Create(ctx, hr, "mallory", "", model.RoleCreator)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	assert.ErrorIs(t, s.SetRole(ctx, hr, "ana", model.RoleCreator), model.ErrPermissionDenied)

	users, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, model.RoleCashier, users[0].Role)
}
