package repository

import (
	"context"
	"sync"
	"time"

	"petagenda/internal/models"
)

type MemorySessionRepository struct {
	sessions   sync.Map
	rateLimits sync.Map
	ttl        time.Duration
	now        func() time.Time
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		ttl: ttl,
		now: time.Now,
	}
}

type sessionEntry struct {
	session   *models.Session
	expiresAt time.Time
}

func (r *MemorySessionRepository) GetSession(_ context.Context, chatID int64) (*models.Session, error) {
	val, ok := r.sessions.Load(chatID)
	if !ok {
		return nil, nil
	}
	entry := val.(sessionEntry)
	if !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt) {
		r.sessions.Delete(chatID)
		return nil, nil
	}
	return entry.session, nil
}

func (r *MemorySessionRepository) SetSession(_ context.Context, session *models.Session) error {
	expiresAt := session.ExpiresAt
	if expiresAt.IsZero() && r.ttl > 0 {
		expiresAt = r.now().Add(r.ttl)
	}
	r.sessions.Store(session.ChatID, sessionEntry{session: session, expiresAt: expiresAt})
	return nil
}

func (r *MemorySessionRepository) DeleteSession(_ context.Context, chatID int64) error {
	r.sessions.Delete(chatID)
	return nil
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemorySessionRepository) CheckRateLimit(_ context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	now := r.now()
	val, _ := r.rateLimits.LoadOrStore(chatID, &rateLimitEntry{})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.expiresAt.IsZero() || now.After(entry.expiresAt) {
		entry.count = 1
		entry.expiresAt = now.Add(window)
	} else {
		entry.count++
	}
	return entry.count <= limit, nil
}
