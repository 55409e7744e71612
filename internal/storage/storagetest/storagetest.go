// Package storagetest holds behaviour checks shared by every UserStore implementation.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/dunes-blog/internal/models"
	"github.com/hongminglow/dunes-blog/internal/storage"
)

// Run exercises store against the UserStore contract. Usernames are
// suffixed so the suite can run against a shared database.
func Run(t *testing.T, store storage.UserStore) {
	t.Helper()
	ctx := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	name := func(base string) string { return base + "_" + suffix }

	t.Run("create and find", func(t *testing.T) {
		created, err := store.CreateUser(ctx, models.User{
			Username:     name("admin"),
			PasswordHash: "$2a$10$hash",
			Role:         models.RoleAdmin,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())
		assert.Nil(t, created.LastLogin)

		byName, err := store.FindByUsername(ctx, name("admin"))
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)
		assert.Equal(t, "$2a$10$hash", byName.PasswordHash)
		assert.Equal(t, models.RoleAdmin, byName.Role)
		assert.WithinDuration(t, created.CreatedAt, byName.CreatedAt, time.Millisecond)

		byID, err := store.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, byName.Username, byID.Username)
	})

	t.Run("default role", func(t *testing.T) {
		created, err := store.CreateUser(ctx, models.User{Username: name("writer"), PasswordHash: "h"})
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, created.Role)
	})

	t.Run("lookup is exact", func(t *testing.T) {
		_, err := store.FindByUsername(ctx, name("ADMIN"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.FindByUsername(ctx, name("admin")+" ")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.FindByID(ctx, "missing-"+suffix)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := store.CreateUser(ctx, models.User{Username: name("admin"), PasswordHash: "other"})
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	})

	t.Run("invalid user", func(t *testing.T) {
		_, err := store.CreateUser(ctx, models.User{Username: "", PasswordHash: "h"})
		assert.ErrorIs(t, err, storage.ErrInvalidUser)
		_, err = store.CreateUser(ctx, models.User{Username: name("norole"), PasswordHash: "h", Role: "root"})
		assert.ErrorIs(t, err, storage.ErrInvalidUser)
	})

	t.Run("touch last login", func(t *testing.T) {
		user, err := store.FindByUsername(ctx, name("admin"))
		require.NoError(t, err)

		at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
		require.NoError(t, store.TouchLastLogin(ctx, user.ID, at))

		user, err = store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, user.LastLogin)
		assert.True(t, at.Equal(*user.LastLogin))

		assert.ErrorIs(t, store.TouchLastLogin(ctx, "missing-"+suffix, at), storage.ErrNotFound)
	})

	t.Run("update password", func(t *testing.T) {
		user, err := store.FindByUsername(ctx, name("writer"))
		require.NoError(t, err)
		require.NoError(t, store.UpdatePassword(ctx, user.ID, "new-hash"))

		user, err = store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", user.PasswordHash)

		assert.ErrorIs(t, store.UpdatePassword(ctx, "missing-"+suffix, "h"), storage.ErrNotFound)
	})

	t.Run("concurrent touches", func(t *testing.T) {
		user, err := store.FindByUsername(ctx, name("admin"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				at := time.Date(2024, 3, 2, 0, 0, i, 0, time.UTC)
				assert.NoError(t, store.TouchLastLogin(ctx, user.ID, at))
			}()
		}
		wg.Wait()

		_, err = store.FindByUsername(ctx, name("admin"))
		require.NoError(t, err)
	})
}
