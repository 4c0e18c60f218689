package domain

import (
	"context"
	"time"

	"petagenda/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SessionRepository stores one session per chat.
type SessionRepository interface {
	GetSession(ctx context.Context, chatID int64) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, chatID int64) error
	CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error)
}

type SessionManager interface {
	Login(ctx context.Context, chatID int64, creds models.Credentials) (*models.Session, error)
	Logout(ctx context.Context, chatID int64) error
	Current(ctx context.Context, chatID int64) (*models.Session, error)
	Invalidate(ctx context.Context, chatID int64) error
	CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ReferenceSource lists the data the booking cascade selects from.
type ReferenceSource interface {
	ListClients(ctx context.Context) ([]models.Client, error)
	ListPets(ctx context.Context) ([]models.Pet, error)
	ListServices(ctx context.Context) ([]models.Service, error)
}

// AppointmentAPI is the appointment side of the scheduling backend.
type AppointmentAPI interface {
	ListAppointments(ctx context.Context) ([]models.Appointment, error)
	GetAppointment(ctx context.Context, id int64) (*models.Appointment, error)
	CreateAppointment(ctx context.Context, in models.NewAppointment) (*models.Appointment, error)
	UpdateAppointment(ctx context.Context, appt models.Appointment) (*models.Appointment, error)
	DeleteAppointment(ctx context.Context, id int64) error
	AvailableSlots(ctx context.Context, date models.Date, serviceID int64) ([]string, error)
}

// BackendAPI is everything the bot needs from the scheduling backend.
type BackendAPI interface {
	ReferenceSource
	AppointmentAPI
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	GetPet(ctx context.Context, id int64) (*models.Pet, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
}

// Authenticator exchanges operator credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (token string, op models.Operator, err error)
}

type AuditRecorder interface {
	Record(entry models.AuditEntry)
	Recent(ctx context.Context, chatID int64, limit int) ([]models.AuditEntry, error)
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendHTML(chatID int64, text string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}
