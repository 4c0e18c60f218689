package bot

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"petagenda/internal/booking"
	"petagenda/internal/config"
	"petagenda/internal/domain"
	"petagenda/internal/events"
	"petagenda/internal/export"
	"petagenda/internal/models"
	"petagenda/internal/petshop"
	"petagenda/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const updateTimeout = 30 * time.Second

// Appointments is the read side of the appointment screens.
type Appointments interface {
	List(ctx context.Context) ([]service.AppointmentView, error)
	Today(ctx context.Context) ([]service.AppointmentView, error)
	Detail(ctx context.Context, id int64) (*service.AppointmentDetail, error)
	Dashboard(ctx context.Context) (*service.Dashboard, error)
	Delete(ctx context.Context, chatID, id int64) error
}

// Exporter writes appointment workbooks.
type Exporter interface {
	Appointments(rows []export.Row) (string, error)
}

type Bot struct {
	tgService    domain.TelegramService
	config       *config.Config
	sessions     domain.SessionManager
	api          domain.BackendAPI
	appointments Appointments
	audit        domain.AuditRecorder
	exporter     Exporter
	eventBus     *events.EventBus
	metrics      *Metrics
	logger       *zerolog.Logger
	loc          *time.Location

	mu        sync.Mutex
	workflows map[int64]*booking.Workflow
	awaiting  map[int64]string
	now       func() time.Time

	wg sync.WaitGroup
}

func NewBot(
	tgService domain.TelegramService,
	config *config.Config,
	sessions domain.SessionManager,
	api domain.BackendAPI,
	appointments Appointments,
	audit domain.AuditRecorder,
	exporter Exporter,
	eventBus *events.EventBus,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tgService == nil || sessions == nil || api == nil || appointments == nil {
		return nil, errors.New("bot: telegram, sessions, api and appointments are required")
	}

	if eventBus == nil {
		eventBus = events.NewEventBus()
	}

	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	b := &Bot{
		tgService:    tgService,
		config:       config,
		sessions:     sessions,
		api:          api,
		appointments: appointments,
		audit:        audit,
		exporter:     exporter,
		eventBus:     eventBus,
		metrics:      metrics,
		logger:       logger,
		loc:          config.Bot.Location(),
		workflows:    make(map[int64]*booking.Workflow),
		awaiting:     make(map[int64]string),
		now:          time.Now,
	}

	eventBus.Subscribe(events.EventAppointmentCreated, b.onAppointmentsChanged)
	eventBus.Subscribe(events.EventAppointmentStatusChanged, b.onAppointmentsChanged)
	eventBus.Subscribe(events.EventAppointmentDeleted, b.onAppointmentsChanged)
	eventBus.Subscribe(events.EventSessionClosed, b.onSessionClosed)

	return b, nil
}

// Start consumes updates until ctx is done. Each update runs in its own
// goroutine; Start returns after the in-flight ones finish.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.processUpdate(ctx, update)
			}()
		}
	}
}

// Stop stops receiving Telegram updates.
func (b *Bot) Stop() {
	b.tgService.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)
	updateCtx = petshop.WithRequestID(updateCtx, requestID)

	b.withRecovery(func() {
		chatID := chatOf(update)
		if chatID == 0 {
			return
		}

		if !b.allow(updateCtx, chatID, update) {
			return
		}

		if update.CallbackQuery != nil {
			b.countUpdate("callback")
			b.handleCallbackQuery(updateCtx, update.CallbackQuery)
			return
		}

		if update.Message != nil {
			b.countUpdate("message")
			b.handleMessage(updateCtx, update.Message)
		}
	})
}

func chatOf(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if msg.IsCommand() {
		b.clearAwaiting(chatID)
		cmd := msg.Command()
		args := strings.TrimSpace(msg.CommandArguments())
		zerolog.Ctx(ctx).Debug().Int64("chat_id", chatID).Str("command", cmd).Msg("Command received")

		switch cmd {
		case "start":
			b.handleStart(ctx, chatID)
			return
		case "help", "ajuda":
			b.handleHelp(chatID)
			return
		case "login":
			b.handleLogin(ctx, msg, args)
			return
		}

		ctx, ok := b.requireSession(ctx, chatID)
		if !ok {
			return
		}

		switch cmd {
		case "logout", "sair":
			b.handleLogout(ctx, chatID)
		case "novo":
			b.handleNewBooking(ctx, chatID)
		case "agendamentos":
			b.sendAppointmentList(ctx, chatID, 0, 0)
		case "hoje":
			b.sendToday(ctx, chatID)
		case "agendamento":
			b.handleAppointmentCommand(ctx, chatID, args)
		case "painel":
			b.sendDashboard(ctx, chatID, 0)
		case "exportar":
			b.handleExport(ctx, chatID)
		case "historico":
			b.handleHistory(ctx, chatID)
		default:
			b.sendMessage(chatID, msgUnknownCommand)
		}
		return
	}

	if text == "" {
		return
	}

	if field := b.takeAwaiting(chatID); field == awaitNotes {
		ctx, ok := b.requireSession(ctx, chatID)
		if !ok {
			return
		}
		b.handleNotesInput(ctx, chatID, text)
		return
	}

	b.sendMessage(chatID, msgUnknownCommand)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if err := b.tgService.AnswerCallback(cb.ID, ""); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Failed to answer callback")
	}

	data := cb.Data
	if data == "" || data == cbNoop {
		return
	}

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	ctx, ok := b.requireSession(ctx, chatID)
	if !ok {
		return
	}

	switch {
	case strings.HasPrefix(data, prefixBooking):
		b.handleBookingCallback(ctx, chatID, messageID, data)
	case strings.HasPrefix(data, prefixAppointment):
		b.handleAppointmentCallback(ctx, chatID, messageID, data)
	case data == cbDashboard:
		b.sendDashboard(ctx, chatID, messageID)
	default:
		zerolog.Ctx(ctx).Warn().Str("data", data).Msg("Unknown callback")
	}
}

// workflow returns the booking workflow of chatID, creating it on first use.
func (b *Bot) workflow(chatID int64) *booking.Workflow {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w, ok := b.workflows[chatID]; ok {
		return w
	}
	l := b.logger.With().Str("component", "booking").Int64("chat_id", chatID).Logger()
	w := booking.New(booking.Deps{
		API:      b.api,
		Notifier: &chatNotifier{bot: b, chatID: chatID},
		Events:   b.eventBus,
		Location: b.loc,
		Now:      b.now,
		Logger:   &l,
	}, chatID)
	b.workflows[chatID] = w
	return w
}

func (b *Bot) dropWorkflow(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.workflows, chatID)
	delete(b.awaiting, chatID)
}

const awaitNotes = "notes"

func (b *Bot) setAwaiting(chatID int64, field string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.awaiting[chatID] = field
}

func (b *Bot) takeAwaiting(chatID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	field := b.awaiting[chatID]
	delete(b.awaiting, chatID)
	return field
}

func (b *Bot) clearAwaiting(chatID int64) {
	b.takeAwaiting(chatID)
}

// onAppointmentsChanged reloads the appointment list of the chat that
// changed it.
func (b *Bot) onAppointmentsChanged(ev *events.Event) error {
	var p events.AppointmentEventPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	if p.ChatID == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	session, err := b.sessions.Current(ctx, p.ChatID)
	if err != nil {
		return nil
	}
	b.sendAppointmentList(petshop.WithToken(ctx, session.Token), p.ChatID, 0, 0)
	return nil
}

func (b *Bot) onSessionClosed(ev *events.Event) error {
	var p events.SessionEventPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	b.dropWorkflow(p.ChatID)
	return nil
}

func (b *Bot) pageSize() int {
	if b.config.Bot.PaginationSize > 0 {
		return b.config.Bot.PaginationSize
	}
	return models.DefaultPaginationSize
}
