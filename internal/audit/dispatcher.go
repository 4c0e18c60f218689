package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"petagenda/internal/events"
	"petagenda/internal/models"

	"github.com/rs/zerolog"
)

const (
	EntitySession     = "sessao"
	EntityAppointment = "agendamento"

	defaultQueueSize = 100
	writeTimeout     = 5 * time.Second
)

// Store persists journal entries.
type Store interface {
	InsertAudit(ctx context.Context, entry *models.AuditEntry) error
	RecentAudit(ctx context.Context, chatID int64, limit int) ([]models.AuditEntry, error)
}

// Dispatcher writes journal entries from a single background worker.
// Record never blocks: when the queue is full the entry is dropped.
type Dispatcher struct {
	store  Store
	logger *zerolog.Logger
	queue  chan models.AuditEntry

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

func NewDispatcher(store Store, size int, logger *zerolog.Logger) *Dispatcher {
	if size <= 0 {
		size = defaultQueueSize
	}
	d := &Dispatcher{
		store:  store,
		logger: logger,
		queue:  make(chan models.AuditEntry, size),
		done:   make(chan struct{}),
	}

	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for entry := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := d.store.InsertAudit(ctx, &entry); err != nil {
			d.logger.Error().Err(err).
				Int64("chat_id", entry.ChatID).
				Str("action", entry.Action).
				Msg("audit write failed")
		}
		cancel()
	}
}

func (d *Dispatcher) Record(entry models.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- entry:
	default:
		d.dropped.Add(1)
		d.logger.Warn().Int64("chat_id", entry.ChatID).Str("action", entry.Action).Msg("audit queue full, dropping entry")
	}
}

func (d *Dispatcher) Recent(ctx context.Context, chatID int64, limit int) ([]models.AuditEntry, error) {
	return d.store.RecentAudit(ctx, chatID, limit)
}

// Dropped reports how many entries were discarded on a full queue.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting entries and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

// Subscribe journals session and appointment events published on bus.
func (d *Dispatcher) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventSessionOpened, d.onSession)
	bus.Subscribe(events.EventSessionClosed, d.onSession)
	bus.Subscribe(events.EventAppointmentCreated, d.onAppointment)
	bus.Subscribe(events.EventAppointmentStatusChanged, d.onAppointment)
	bus.Subscribe(events.EventAppointmentDeleted, d.onAppointment)
}

func (d *Dispatcher) onSession(ev *events.Event) error {
	var p events.SessionEventPayload
	if err := ev.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", ev.Type, err)
	}

	details := p.Operator
	if p.Reason != "" {
		if details != "" {
			details += " "
		}
		details += "(" + p.Reason + ")"
	}

	d.Record(models.AuditEntry{
		ChatID:    p.ChatID,
		Action:    ev.Type,
		Entity:    EntitySession,
		Details:   details,
		CreatedAt: ev.CreatedAt,
	})
	return nil
}

func (d *Dispatcher) onAppointment(ev *events.Event) error {
	var p events.AppointmentEventPayload
	if err := ev.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", ev.Type, err)
	}

	var details string
	switch ev.Type {
	case events.EventAppointmentCreated:
		details = p.ScheduledAt
	case events.EventAppointmentStatusChanged:
		details = p.PrevStatus + " -> " + p.Status
	}

	d.Record(models.AuditEntry{
		ChatID:    p.ChatID,
		Action:    ev.Type,
		Entity:    EntityAppointment,
		EntityID:  p.AppointmentID,
		Details:   details,
		CreatedAt: ev.CreatedAt,
	})
	return nil
}
