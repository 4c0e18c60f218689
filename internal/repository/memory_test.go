package repository

import (
	"context"
	"testing"
	"time"

	"petagenda/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionRepository(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SetAndGetSession", func(t *testing.T) {
		session := &models.Session{ChatID: 123, Token: "abc"}
		err := repo.SetSession(ctx, session)
		require.NoError(t, err)

		got, err := repo.GetSession(ctx, 123)
		require.NoError(t, err)
		assert.Equal(t, session, got)
	})

	t.Run("DefaultTTL", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, &models.Session{ChatID: 124, Token: "abc"}))

		now = now.Add(2 * time.Hour)
		got, err := repo.GetSession(ctx, 124)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SessionExpiry", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, &models.Session{ChatID: 125, Token: "abc", ExpiresAt: now.Add(time.Minute)}))

		got, _ := repo.GetSession(ctx, 125)
		assert.NotNil(t, got)

		now = now.Add(time.Minute)
		got, _ = repo.GetSession(ctx, 125)
		assert.Nil(t, got)
	})

	t.Run("DeleteSession", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, &models.Session{ChatID: 126, Token: "abc"}))
		err := repo.DeleteSession(ctx, 126)
		require.NoError(t, err)
		got, _ := repo.GetSession(ctx, 126)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		chatID := int64(456)
		allowed, _ := repo.CheckRateLimit(ctx, chatID, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, chatID, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, chatID, 2, time.Second)
		assert.False(t, allowed)

		now = now.Add(time.Second + 10*time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, chatID, 2, time.Second)
		assert.True(t, allowed)
	})
}
