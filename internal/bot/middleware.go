package bot

import (
	"context"
	"errors"
	"time"

	"petagenda/internal/petshop"
	"petagenda/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// allow applies the per-chat flood limit. A failing limiter lets the update
// through.
func (b *Bot) allow(ctx context.Context, chatID int64, update tgbotapi.Update) bool {
	limit := b.config.Bot.RateLimitMessages
	if limit <= 0 {
		return true
	}
	window := time.Duration(b.config.Bot.RateLimitWindow) * time.Second

	allowed, err := b.sessions.CheckRateLimit(ctx, chatID, limit, window)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Rate limit check failed")
		return true
	}
	if allowed {
		return true
	}

	zerolog.Ctx(ctx).Warn().Int64("chat_id", chatID).Msg("Rate limit exceeded")
	if b.metrics != nil {
		b.metrics.RateLimited.Inc()
	}
	if update.Message != nil {
		b.sendMessage(chatID, msgRateLimited)
	}
	return false
}

// requireSession loads the chat's session and returns a context carrying
// its token. Without a live session the operator is asked to log in.
func (b *Bot) requireSession(ctx context.Context, chatID int64) (context.Context, bool) {
	session, err := b.sessions.Current(ctx, chatID)
	switch {
	case err == nil:
		return petshop.WithToken(ctx, session.Token), true
	case errors.Is(err, service.ErrSessionExpired):
		b.sendMessage(chatID, msgSessionExpired)
	case errors.Is(err, service.ErrNoSession):
		b.sendMessage(chatID, msgLoginRequired)
	default:
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to load session")
		b.sendMessage(chatID, msgSessionStoreDown)
	}
	return ctx, false
}

// handleAuthFailure ends the session when the backend rejected its token.
// It reports whether err was such a rejection.
func (b *Bot) handleAuthFailure(ctx context.Context, chatID int64, err error) bool {
	if !errors.Is(err, petshop.ErrUnauthorized) {
		return false
	}
	if ierr := b.sessions.Invalidate(ctx, chatID); ierr != nil {
		zerolog.Ctx(ctx).Error().Err(ierr).Int64("chat_id", chatID).Msg("Failed to invalidate session")
	}
	b.sendMessage(chatID, msgSessionRejected)
	return true
}

// reportError turns a failed backend call into a chat message.
func (b *Bot) reportError(ctx context.Context, chatID int64, prefix string, err error) {
	if b.metrics != nil {
		b.metrics.ErrorsTotal.Inc()
	}
	if b.handleAuthFailure(ctx, chatID, err) {
		return
	}
	zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg(prefix)
	b.sendMessage(chatID, prefix+": "+userMessage(err))
}
