package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"petagenda/internal/config"
	"petagenda/internal/domain"
	"petagenda/internal/events"
	"petagenda/internal/export"
	"petagenda/internal/models"
	"petagenda/internal/petshop"
	"petagenda/internal/repository"
	"petagenda/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testChat int64 = 555

type sent struct {
	Kind      string
	Text      string
	MessageID int
	Keyboard  *tgbotapi.InlineKeyboardMarkup
}

func (s sent) callbacks() []string {
	if s.Keyboard == nil {
		return nil
	}
	var out []string
	for _, row := range s.Keyboard.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

func (s sent) labels() []string {
	if s.Keyboard == nil {
		return nil
	}
	var out []string
	for _, row := range s.Keyboard.InlineKeyboard {
		for _, btn := range row {
			out = append(out, btn.Text)
		}
	}
	return out
}

type fakeTelegram struct {
	mu        sync.Mutex
	sent      []sent
	requests  []tgbotapi.Chattable
	documents []string
	updates   chan tgbotapi.Update
	stopped   bool
}

func (f *fakeTelegram) record(s sent) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, s)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return f.record(sent{Kind: "raw"})
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) SendMessage(_ int64, text string) (tgbotapi.Message, error) {
	return f.record(sent{Kind: "text", Text: text})
}

func (f *fakeTelegram) SendHTML(_ int64, text string) (tgbotapi.Message, error) {
	return f.record(sent{Kind: "html", Text: text})
}

func (f *fakeTelegram) SendWithInlineKeyboard(_ int64, text string, kb tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	return f.record(sent{Kind: "keyboard", Text: text, Keyboard: &kb})
}

func (f *fakeTelegram) SendDocument(_ int64, path, caption string) (tgbotapi.Message, error) {
	f.mu.Lock()
	f.documents = append(f.documents, path)
	f.mu.Unlock()
	return f.record(sent{Kind: "document", Text: caption})
}

func (f *fakeTelegram) EditMessage(_ int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	return f.record(sent{Kind: "edit", Text: text, MessageID: messageID, Keyboard: kb})
}

func (f *fakeTelegram) AnswerCallback(string, string) error {
	return nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "petagenda_test_bot"}
}

func (f *fakeTelegram) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeTelegram) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func (f *fakeTelegram) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sent{}
	}
	return f.sent[len(f.sent)-1]
}

// texts returns the texts sent after mark.
func (f *fakeTelegram) textsSince(mark int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent[mark:] {
		out = append(out, s.Text)
	}
	return out
}

func (f *fakeTelegram) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var _ domain.TelegramService = (*fakeTelegram)(nil)

// fakeBackend is an in-memory REST backend.
type fakeBackend struct {
	mu      sync.Mutex
	token   string
	calls   map[string]int
	auth    []string
	created []string
	updated []models.Appointment
	fail    map[string]int
	appts   []models.Appointment
}

const (
	clientsJSON  = `[{"id":1,"nome":"Ana Souza","telefone":"11 9999-0000"},{"id":2,"nome":"Bruno <Lima>"}]`
	petsJSON     = `{"count":2,"results":[{"id":10,"nome":"Rex","especie":"C","raca":"Beagle","cliente":1},{"id":11,"nome":"Mia","especie":"G","cliente":2}]}`
	servicesJSON = `[{"id":5,"nome":"Banho","preco":"50.00","duracao":30,"ativo":true},{"id":6,"nome":"Tosa","preco":"80.00","duracao":60,"ativo":false}]`
)

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	f.calls[key]++
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	if code := f.fail[key]; code != 0 {
		w.WriteHeader(code)
		_, _ = io.WriteString(w, `{"error":"falhou"}`)
		return
	}

	if r.URL.Path == "/auth/login/" {
		var creds models.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"Credenciais inválidas"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"`+f.token+`","user":{"id":1,"nome":"Ana"}}`)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Token inválido"}`)
		return
	}

	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "clientes":
		_, _ = io.WriteString(w, clientsJSON)
	case path == "pets":
		_, _ = io.WriteString(w, petsJSON)
	case path == "servicos":
		_, _ = io.WriteString(w, servicesJSON)
	case path == "clientes/1":
		_, _ = io.WriteString(w, `{"id":1,"nome":"Ana Souza","telefone":"11 9999-0000"}`)
	case path == "pets/10":
		_, _ = io.WriteString(w, `{"id":10,"nome":"Rex","especie":"C","raca":"Beagle","cliente":1}`)
	case path == "servicos/5":
		_, _ = io.WriteString(w, `{"id":5,"nome":"Banho","preco":"50.00","duracao":30,"ativo":true}`)
	case path == "agendamentos/horarios_disponiveis":
		_, _ = io.WriteString(w, `{"horarios_disponiveis":["09:00","09:30:00","2025-03-10T10:00:00","lixo"]}`)
	case path == "agendamentos" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(f.appts)
	case path == "agendamentos" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		f.created = append(f.created, string(body))
		var in models.NewAppointment
		_ = json.Unmarshal(body, &in)
		appt := models.Appointment{ID: 99, PetID: in.PetID, ServiceID: in.ServiceID, ScheduledAt: in.ScheduledAt, Status: in.Status, Notes: in.Notes}
		f.appts = append(f.appts, appt)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(appt)
	case len(parts) == 2 && parts[0] == "agendamentos":
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		idx := -1
		for i, a := range f.appts {
			if a.ID == id {
				idx = i
			}
		}
		if idx < 0 {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Não encontrado."}`)
			return
		}
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(f.appts[idx])
		case http.MethodPut:
			var appt models.Appointment
			_ = json.NewDecoder(r.Body).Decode(&appt)
			f.updated = append(f.updated, appt)
			f.appts[idx] = appt
			_ = json.NewEncoder(w).Encode(appt)
		case http.MethodDelete:
			f.appts = append(f.appts[:idx], f.appts[idx+1:]...)
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Não encontrado."}`)
	}
}

func (f *fakeBackend) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeAudit struct {
	entries []models.AuditEntry
}

func (a *fakeAudit) Record(e models.AuditEntry) {
	a.entries = append(a.entries, e)
}

func (a *fakeAudit) Recent(_ context.Context, chatID int64, limit int) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if a.entries[i].ChatID == chatID {
			out = append(out, a.entries[i])
		}
	}
	return out, nil
}

type fakeExporter struct {
	dir  string
	rows []export.Row
	err  error
}

func (e *fakeExporter) Appointments(rows []export.Row) (string, error) {
	e.rows = rows
	if e.err != nil {
		return "", e.err
	}
	path := filepath.Join(e.dir, "agendamentos.xlsx")
	return path, os.WriteFile(path, []byte("xlsx"), 0o600)
}

type harness struct {
	bot      *Bot
	tg       *fakeTelegram
	backend  *fakeBackend
	sessions *service.SessionService
	audit    *fakeAudit
	exporter *fakeExporter
	bus      *events.EventBus
}

func newHarness(t *testing.T, mutate ...func(cfg *config.Config)) *harness {
	t.Helper()

	backend := &fakeBackend{
		token: "tok",
		calls: map[string]int{},
		fail:  map[string]int{},
		appts: []models.Appointment{
			{ID: 3, PetID: 10, ServiceID: 5, ScheduledAt: "2025-03-10T09:00:00", Status: models.StatusScheduled, Notes: "x", CreatedAt: "2025-03-01T14:30:00Z"},
		},
	}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Backend: config.BackendConfig{BaseURL: srv.URL, TimeoutSeconds: 5},
		Bot:     config.BotConfig{PaginationSize: 8, Timezone: "UTC"},
	}
	for _, m := range mutate {
		m(cfg)
	}

	logger := zerolog.Nop()
	client := petshop.NewClient(cfg.Backend, &logger)
	bus := events.NewEventBus()
	sessions := service.NewSessionService(repository.NewMemorySessionRepository(0), client, bus, time.Hour, &logger)
	appts := service.NewAppointmentService(client, bus, time.UTC, &logger)
	tg := &fakeTelegram{updates: make(chan tgbotapi.Update)}
	audit := &fakeAudit{}
	exporter := &fakeExporter{dir: t.TempDir()}

	b, err := NewBot(tg, cfg, sessions, client, appts, audit, exporter, bus, NewMetrics(prometheus.NewRegistry()), &logger)
	require.NoError(t, err)
	b.now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }

	return &harness{bot: b, tg: tg, backend: backend, sessions: sessions, audit: audit, exporter: exporter, bus: bus}
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: chatID},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		length := len(text)
		if i := strings.IndexByte(text, ' '); i >= 0 {
			length = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{MessageID: 42, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func (h *harness) send(text string) {
	h.bot.processUpdate(context.Background(), commandUpdate(testChat, text))
}

func (h *harness) press(data string) {
	h.bot.processUpdate(context.Background(), callbackUpdate(testChat, data))
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	h.send("/login ana@pet.com secret")
	_, err := h.sessions.Current(context.Background(), testChat)
	require.NoError(t, err)
}
