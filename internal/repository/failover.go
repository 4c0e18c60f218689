package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"petagenda/internal/domain"
	"petagenda/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionRepository serves from primary until it fails, then from
// fallback, probing primary again once per recoveryInterval. A delete that
// primary missed is remembered until primary accepts it, so a session logged
// out during an outage is never served again from primary.
type FailoverSessionRepository struct {
	primary   domain.SessionRepository
	fallback  domain.SessionRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64

	mu      sync.Mutex
	deleted map[int64]struct{}
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		deleted:  make(map[int64]struct{}),
	}
}

func (r *FailoverSessionRepository) markDeleted(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted[chatID] = struct{}{}
}

func (r *FailoverSessionRepository) clearDeleted(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.deleted, chatID)
}

func (r *FailoverSessionRepository) isDeleted(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.deleted[chatID]
	return ok
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverSessionRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverSessionRepository) observe(err error) {
	if err == nil {
		if r.isDown.CompareAndSwap(true, false) {
			r.logger.Info().Msg("Primary session repository recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary session repository failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverSessionRepository) GetSession(ctx context.Context, chatID int64) (*models.Session, error) {
	if r.isDeleted(chatID) {
		return r.replayDelete(ctx, chatID)
	}
	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, chatID)
		r.observe(err)
		if err == nil {
			return session, nil
		}
	}
	return r.fallback.GetSession(ctx, chatID)
}

func (r *FailoverSessionRepository) SetSession(ctx context.Context, session *models.Session) error {
	if r.usePrimary() {
		err := r.primary.SetSession(ctx, session)
		r.observe(err)
		if err == nil {
			r.clearDeleted(session.ChatID)
			return nil
		}
	}
	return r.fallback.SetSession(ctx, session)
}

// DeleteSession always clears fallback as well; it may hold a session written
// during an outage. When primary cannot take the delete it is replayed later.
func (r *FailoverSessionRepository) DeleteSession(ctx context.Context, chatID int64) error {
	fallbackErr := r.fallback.DeleteSession(ctx, chatID)
	if r.usePrimary() {
		err := r.primary.DeleteSession(ctx, chatID)
		r.observe(err)
		if err == nil {
			r.clearDeleted(chatID)
			return nil
		}
	}
	r.markDeleted(chatID)
	return fallbackErr
}

// replayDelete answers a read for a chat whose delete primary has not seen.
// Fallback is authoritative until primary takes the delete; a session created
// in fallback after the logout is then copied to primary.
func (r *FailoverSessionRepository) replayDelete(ctx context.Context, chatID int64) (*models.Session, error) {
	session, err := r.fallback.GetSession(ctx, chatID)
	if err != nil || !r.usePrimary() {
		return session, err
	}

	delErr := r.primary.DeleteSession(ctx, chatID)
	r.observe(delErr)
	if delErr != nil {
		return session, nil
	}
	r.clearDeleted(chatID)
	r.logger.Info().Int64("chat_id", chatID).Msg("Replayed session delete on primary")

	if session != nil {
		setErr := r.primary.SetSession(ctx, session)
		r.observe(setErr)
		if setErr != nil {
			r.logger.Warn().Err(setErr).Int64("chat_id", chatID).Msg("Failed to copy session to primary")
		}
	}
	return session, nil
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, chatID, limit, window)
		r.observe(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, chatID, limit, window)
}
