package core_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay.io/ai-chat-server/internal/core"
	"chatrelay.io/ai-chat-server/internal/store"
)

func TestRegisterCreatesUserInBothStores(t *testing.T) {
	ctx := context.Background()
	dir, db := newFakeDirectory(), newFakeStore()
	svc := core.NewUserService(dir, db, nil)

	user, err := svc.Register(ctx, "John", "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, "johnexamplecom", user.UserID)
	assert.Equal(t, "John", user.Name)
	assert.Equal(t, "john@example.com", user.Email)

	dirUser, err := dir.Memory.GetUser(ctx, "johnexamplecom")
	require.NoError(t, err)
	require.NotNil(t, dirUser)
	assert.Equal(t, core.DirectoryUser{ID: "johnexamplecom", Name: "John", Email: "john@example.com", Role: "user"}, *dirUser)

	dbUser, ok := db.users["johnexamplecom"]
	require.True(t, ok)
	assert.Equal(t, "john@example.com", dbUser.Email)
}

func TestRegisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir, db := newFakeDirectory(), newFakeStore()
	svc := core.NewUserService(dir, db, nil)

	first, err := svc.Register(ctx, "John", "john@example.com")
	require.NoError(t, err)
	second, err := svc.Register(ctx, "John", "john@example.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, dir.upserts)
	assert.Equal(t, 1, db.creates)

	users, err := dir.Memory.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Len(t, db.users, 1)
}

func TestRegisterRejectsMissingFieldsWithoutIO(t *testing.T) {
	cases := []struct{ name, email string }{
		{"", "john@example.com"},
		{"John", ""},
		{"", ""},
		{"John", "not-an-email"},
	}
	for _, tc := range cases {
		dir, db := newFakeDirectory(), newFakeStore()
		svc := core.NewUserService(dir, db, nil)

		_, err := svc.Register(context.Background(), tc.name, tc.email)
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
		assert.Zero(t, dir.calls(), "directory calls for %+v", tc)
		assert.Zero(t, db.calls(), "store calls for %+v", tc)
	}
}

func TestRegisterDirectoryFailureIsInternal(t *testing.T) {
	dir, db := newFakeDirectory(), newFakeStore()
	dir.upsertErr = errBoom
	svc := core.NewUserService(dir, db, nil)

	_, err := svc.Register(context.Background(), "John", "john@example.com")
	assert.ErrorIs(t, err, core.ErrInternal)
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, db.calls())
}

func TestRegisterStoreFailureLeavesDirectoryUser(t *testing.T) {
	ctx := context.Background()
	dir, db := newFakeDirectory(), newFakeStore()
	db.createErr = errBoom
	svc := core.NewUserService(dir, db, nil)

	_, err := svc.Register(ctx, "John", "john@example.com")
	assert.ErrorIs(t, err, core.ErrInternal)

	// No rollback across stores.
	dirUser, err := dir.Memory.GetUser(ctx, "johnexamplecom")
	require.NoError(t, err)
	assert.NotNil(t, dirUser)
	assert.Empty(t, db.users)

	// A retry repairs the database without touching the directory again.
	db.createErr = nil
	_, err = svc.Register(ctx, "John", "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, dir.upserts)
	assert.Len(t, db.users, 1)
}

func TestRegisterCollidingEmailsShareUser(t *testing.T) {
	ctx := context.Background()
	dir, db := newFakeDirectory(), newFakeStore()
	svc := core.NewUserService(dir, db, nil)

	first, err := svc.Register(ctx, "AB", "ab@cd.com")
	require.NoError(t, err)
	second, err := svc.Register(ctx, "A", "a@bcd.com")
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, 1, dir.upserts)
	assert.Equal(t, "ab@cd.com", db.users[first.UserID].Email)
}

func TestRegisterTreatsConcurrentInsertAsExisting(t *testing.T) {
	dir, db := newFakeDirectory(), newFakeStore()
	// The lookup sees no row, then another registration wins the insert.
	db.createErr = fmt.Errorf("failed to insert user johnexamplecom: %w", store.ErrDuplicate)
	svc := core.NewUserService(dir, db, nil)

	user, err := svc.Register(context.Background(), "John", "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, &store.User{UserID: "johnexamplecom", Name: "John", Email: "john@example.com"}, user)
	assert.Equal(t, 1, db.gets)
	assert.Equal(t, 1, db.creates)
}

func TestRegisterWarnsOnlyWhenItStrandsADirectoryUser(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	dir, db := newFakeDirectory(), newFakeStore()
	require.NoError(t, dir.Memory.UpsertUser(ctx, core.DirectoryUser{ID: "johnexamplecom", Name: "John", Role: "user"}))
	db.getErr = errBoom
	svc := core.NewUserService(dir, db, logger)

	_, err := svc.Register(ctx, "John", "john@example.com")
	assert.ErrorIs(t, err, core.ErrInternal)
	assert.NotContains(t, logs.String(), "directory only")

	dir = newFakeDirectory()
	svc = core.NewUserService(dir, db, logger)
	_, err = svc.Register(ctx, "John", "john@example.com")
	assert.ErrorIs(t, err, core.ErrInternal)
	assert.Equal(t, 1, dir.upserts)
	assert.Contains(t, logs.String(), "user exists in directory only")
}
