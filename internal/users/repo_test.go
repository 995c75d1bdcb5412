package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func TestRepositoryCreateNormalizesEmail(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, NewUser{
		Email:        "  Thandi@Example.com ",
		PasswordHash: "hash",
		FirstName:    " Thandi ",
		LastName:     "Nkosi",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleCustomer, user.Role)
	assert.True(t, user.IsActive)
	assert.Equal(t, "Thandi", user.FirstName)

	found, err := repo.FindByEmail(ctx, "THANDI@example.com ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryRecordLogin(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	user, err := repo.Create(ctx, NewUser{Email: "a@example.com", PasswordHash: "old-hash", FirstName: "A", LastName: "B"})
	require.NoError(t, err)

	first := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordLogin(ctx, user.ID, first, ""))
	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLoginAt)
	assert.True(t, reloaded.LastLoginAt.Equal(first))
	assert.Equal(t, "old-hash", reloaded.PasswordHash)

	second := first.Add(time.Hour)
	require.NoError(t, repo.RecordLogin(ctx, user.ID, second, "new-hash"))
	reloaded, err = repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.LastLoginAt.Equal(second))
	assert.Equal(t, "new-hash", reloaded.PasswordHash)
}
