package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"petagenda/internal/domain"
	"petagenda/internal/events"
	"petagenda/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")
)

// Reasons attached to session_closed events.
const (
	CloseReasonLogout       = "logout"
	CloseReasonExpired      = "expired"
	CloseReasonUnauthorized = "unauthorized"
)

// SessionService owns the login lifecycle of every chat.
type SessionService struct {
	repo   domain.SessionRepository
	auth   domain.Authenticator
	events domain.EventPublisher
	ttl    time.Duration
	logger *zerolog.Logger
	now    func() time.Time
}

func NewSessionService(
	repo domain.SessionRepository,
	auth domain.Authenticator,
	publisher domain.EventPublisher,
	ttl time.Duration,
	logger *zerolog.Logger,
) *SessionService {
	return &SessionService{
		repo:   repo,
		auth:   auth,
		events: publisher,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (s *SessionService) Login(ctx context.Context, chatID int64, creds models.Credentials) (*models.Session, error) {
	token, op, err := s.auth.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.Session{
		ChatID:    chatID,
		Token:     token,
		Operator:  op,
		CreatedAt: now,
	}
	if s.ttl > 0 {
		session.ExpiresAt = now.Add(s.ttl)
	}

	if err := s.repo.SetSession(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.logger.Info().Int64("chat_id", chatID).Str("operator", op.Email).Msg("Session opened")
	s.publish(events.EventSessionOpened, events.SessionEventPayload{ChatID: chatID, Operator: op.Email})
	return session, nil
}

func (s *SessionService) Logout(ctx context.Context, chatID int64) error {
	return s.close(ctx, chatID, CloseReasonLogout)
}

// Invalidate destroys the session after the backend rejected its token.
func (s *SessionService) Invalidate(ctx context.Context, chatID int64) error {
	return s.close(ctx, chatID, CloseReasonUnauthorized)
}

// Current returns the live session of chatID. Expired sessions are destroyed
// and reported as ErrSessionExpired.
func (s *SessionService) Current(ctx context.Context, chatID int64) (*models.Session, error) {
	session, err := s.repo.GetSession(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	if session.Expired(s.now()) {
		if err := s.close(ctx, chatID, CloseReasonExpired); err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to drop expired session")
		}
		return nil, ErrSessionExpired
	}
	return session, nil
}

func (s *SessionService) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	return s.repo.CheckRateLimit(ctx, chatID, limit, window)
}

func (s *SessionService) close(ctx context.Context, chatID int64, reason string) error {
	if err := s.repo.DeleteSession(ctx, chatID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info().Int64("chat_id", chatID).Str("reason", reason).Msg("Session closed")
	s.publish(events.EventSessionClosed, events.SessionEventPayload{ChatID: chatID, Reason: reason})
	return nil
}

func (s *SessionService) publish(eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Event handler failed")
	}
}
