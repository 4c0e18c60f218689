package repository

import (
	"context"
	"testing"
	"time"

	"petagenda/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetSession", func(t *testing.T) {
		session := &models.Session{
			ChatID:   123,
			Token:    "abc",
			Operator: models.Operator{ID: 1, Name: "Ana"},
		}

		err := repo.SetSession(ctx, session)
		require.NoError(t, err)

		got, err := repo.GetSession(ctx, 123)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "abc", got.Token)
		assert.Equal(t, "Ana", got.Operator.Name)
		assert.InDelta(t, time.Hour.Seconds(), s.TTL(sessionKey(123)).Seconds(), 1)
	})

	t.Run("GetNonExistentSession", func(t *testing.T) {
		got, err := repo.GetSession(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SessionExpiry", func(t *testing.T) {
		session := &models.Session{ChatID: 321, Token: "t", ExpiresAt: time.Now().Add(10 * time.Minute)}
		require.NoError(t, repo.SetSession(ctx, session))

		s.FastForward(11 * time.Minute)
		got, err := repo.GetSession(ctx, 321)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("AlreadyExpiredIsNotStored", func(t *testing.T) {
		session := &models.Session{ChatID: 654, Token: "t", ExpiresAt: time.Now().Add(-time.Second)}
		require.NoError(t, repo.SetSession(ctx, session))
		assert.False(t, s.Exists(sessionKey(654)))
	})

	t.Run("DeleteSession", func(t *testing.T) {
		session := &models.Session{ChatID: 456, Token: "x"}
		require.NoError(t, repo.SetSession(ctx, session))

		err := repo.DeleteSession(ctx, 456)
		require.NoError(t, err)

		got, _ := repo.GetSession(ctx, 456)
		assert.Nil(t, got)
	})

	t.Run("CorruptPayload", func(t *testing.T) {
		require.NoError(t, s.Set(sessionKey(777), "{not json"))
		_, err := repo.GetSession(ctx, 777)
		assert.Error(t, err)
	})

	t.Run("RateLimit", func(t *testing.T) {
		chatID := int64(789)
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, chatID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, chatID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, chatID, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, chatID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisSessionRepository(nil, time.Hour)
		_, err := repo.GetSession(ctx, 123)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
		assert.Error(t, Ping(ctx, nil))
	})

	t.Run("Ping", func(t *testing.T) {
		err := Ping(ctx, client)
		assert.NoError(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		err := Close(client)
		assert.NoError(t, err)
	})
}
