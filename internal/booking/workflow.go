package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"petagenda/internal/domain"
	"petagenda/internal/events"
	"petagenda/internal/models"
	"petagenda/internal/petshop"

	"github.com/rs/zerolog"
)

// API is the part of the backend the booking workflow talks to.
type API interface {
	ListClients(ctx context.Context) ([]models.Client, error)
	ListPets(ctx context.Context) ([]models.Pet, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	AvailableSlots(ctx context.Context, date models.Date, serviceID int64) ([]string, error)
	CreateAppointment(ctx context.Context, in models.NewAppointment) (*models.Appointment, error)
	UpdateAppointment(ctx context.Context, appt models.Appointment) (*models.Appointment, error)
}

// SlotState describes the availability list of the current (date, service) pair.
type SlotState int

const (
	SlotsIdle SlotState = iota
	SlotsLoading
	SlotsReady
	SlotsEmpty
	SlotsFailed
)

// State is a copy of the workflow for rendering.
type State struct {
	Clients       []models.Client
	Services      []models.Service
	CandidatePets []models.Pet

	ClientID  int64
	PetID     int64
	ServiceID int64
	Date      models.Date
	HasDate   bool
	Slot      models.TimeOfDay
	HasSlot   bool
	Notes     string

	Slots     []models.TimeOfDay
	SlotState SlotState
	Pending   bool
}

// Workflow is the booking form of one chat: reference data, the dependent
// selections and the availability list. Its mutex is never held across a
// backend call.
type Workflow struct {
	api    API
	notify Notifier
	events domain.EventPublisher
	loc    *time.Location
	now    func() time.Time
	logger *zerolog.Logger
	chatID int64

	mu       sync.Mutex
	clients  []models.Client
	pets     []models.Pet
	services []models.Service

	candidates []models.Pet
	clientID   int64
	petID      int64
	serviceID  int64
	date       models.Date
	hasDate    bool
	slot       models.TimeOfDay
	hasSlot    bool
	notes      string

	slots     []models.TimeOfDay
	slotState SlotState
	token     uint64
	pending   bool
}

type Deps struct {
	API      API
	Notifier Notifier
	Events   domain.EventPublisher
	Location *time.Location
	Now      func() time.Time
	Logger   *zerolog.Logger
}

func New(deps Deps, chatID int64) *Workflow {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	notify := deps.Notifier
	if notify == nil {
		notify = NotifierFunc(func(context.Context, Notification) {})
	}
	return &Workflow{
		api:    deps.API,
		notify: notify,
		events: deps.Events,
		loc:    loc,
		now:    now,
		logger: logger,
		chatID: chatID,
	}
}

// Load fetches clients, pets and services concurrently. Each failure is
// reported on its own and leaves only that collection empty. The returned
// error joins the individual failures.
func (w *Workflow) Load(ctx context.Context) error {
	var (
		wg       sync.WaitGroup
		clients  []models.Client
		pets     []models.Pet
		services []models.Service
		errs     [3]error
	)

	wg.Add(3)
	go func() { defer wg.Done(); clients, errs[0] = w.api.ListClients(ctx) }()
	go func() { defer wg.Done(); pets, errs[1] = w.api.ListPets(ctx) }()
	go func() { defer wg.Done(); services, errs[2] = w.api.ListServices(ctx) }()
	wg.Wait()

	for i, msg := range []string{msgLoadClients, msgLoadPets, msgLoadServices} {
		if errs[i] != nil {
			w.logger.Warn().Err(errs[i]).Msg(msg)
			w.notify.Notify(ctx, Notification{Level: LevelDanger, Text: msg})
		}
	}

	w.mu.Lock()
	w.clients = nonNil(clients, errs[0])
	w.pets = nonNil(pets, errs[1])
	w.services = nonNil(services, errs[2])
	w.resetSelectionsLocked()
	w.mu.Unlock()

	return errors.Join(errs[:]...)
}

func nonNil[T any](items []T, err error) []T {
	if err != nil || items == nil {
		return []T{}
	}
	return items
}

// SelectClient narrows the candidate pets to the client's and clears the pet.
// id 0 clears the client.
func (w *Workflow) SelectClient(id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id != 0 && !containsClient(w.clients, id) {
		return ErrUnknownClient
	}

	w.clientID = id
	w.petID = 0
	w.candidates = w.candidates[:0:0]
	if id == 0 {
		return nil
	}
	for _, p := range w.pets {
		if p.ClientID == id {
			w.candidates = append(w.candidates, p)
		}
	}
	return nil
}

// SelectPet accepts only a pet among the current candidates.
func (w *Workflow) SelectPet(id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.candidates) == 0 {
		return ErrNoCandidatePets
	}
	for _, p := range w.candidates {
		if p.ID == id {
			w.petID = id
			return nil
		}
	}
	return ErrPetNotCandidate
}

// SelectService records the service and, when a date is set, resolves the
// availability for the pair. Inactive services are selectable.
func (w *Workflow) SelectService(ctx context.Context, id int64) error {
	w.mu.Lock()
	if id != 0 && !containsService(w.services, id) {
		w.mu.Unlock()
		return ErrUnknownService
	}
	w.serviceID = id
	w.mu.Unlock()

	return w.resolve(ctx)
}

// SelectDate records day and, when a service is set, resolves the
// availability for the pair. Days before today in the workflow's zone are
// rejected.
func (w *Workflow) SelectDate(ctx context.Context, day models.Date) error {
	if day.Before(w.Today()) {
		return ErrPastDate
	}
	w.mu.Lock()
	w.date = day
	w.hasDate = true
	w.mu.Unlock()

	return w.resolve(ctx)
}

// ClearDate forgets the date and any availability derived from it.
func (w *Workflow) ClearDate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.date = models.Date{}
	w.hasDate = false
	w.token++
	w.clearSlotsLocked(SlotsIdle)
}

// resolve queries availability for the current (date, service) pair. Every
// call invalidates earlier in-flight queries; a response is applied only if
// no newer query started meanwhile.
func (w *Workflow) resolve(ctx context.Context) error {
	w.mu.Lock()
	w.token++
	token := w.token
	if !w.hasDate || w.serviceID == 0 {
		w.clearSlotsLocked(SlotsIdle)
		w.mu.Unlock()
		return nil
	}
	date, serviceID := w.date, w.serviceID
	w.clearSlotsLocked(SlotsLoading)
	w.mu.Unlock()

	raw, err := w.api.AvailableSlots(ctx, date, serviceID)

	w.mu.Lock()
	if token != w.token {
		w.mu.Unlock()
		w.logger.Debug().Uint64("token", token).Msg("Discarding stale availability response")
		return nil
	}
	if err != nil {
		w.clearSlotsLocked(SlotsFailed)
		w.mu.Unlock()
		w.logger.Warn().Err(err).Int64("service_id", serviceID).Str("date", date.String()).Msg("Availability query failed")
		w.notify.Notify(ctx, Notification{Level: LevelDanger, Text: msgLoadSlots})
		return err
	}

	slots := w.normalize(raw)
	w.slots = slots
	if len(slots) == 0 {
		w.slotState = SlotsEmpty
	} else {
		w.slotState = SlotsReady
	}
	w.mu.Unlock()
	return nil
}

func (w *Workflow) normalize(raw []string) []models.TimeOfDay {
	seen := make(map[models.TimeOfDay]bool, len(raw))
	slots := make([]models.TimeOfDay, 0, len(raw))
	for _, value := range raw {
		t, err := models.ParseTimeOfDay(value, w.loc)
		if err != nil {
			w.logger.Warn().Err(err).Str("slot", value).Msg("Skipping malformed slot")
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		slots = append(slots, t)
	}
	return slots
}

// SelectSlot accepts only a slot offered by the latest resolution.
func (w *Workflow) SelectSlot(t models.TimeOfDay) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.slots {
		if s == t {
			w.slot = t
			w.hasSlot = true
			return nil
		}
	}
	return ErrSlotUnavailable
}

func (w *Workflow) SetNotes(notes string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notes = notes
}

func (w *Workflow) validateLocked() error {
	var missing []string
	if w.petID == 0 {
		missing = append(missing, FieldPet)
	}
	if w.serviceID == 0 {
		missing = append(missing, FieldService)
	}
	if !w.hasDate {
		missing = append(missing, FieldDate)
	}
	if !w.hasSlot {
		missing = append(missing, FieldSlot)
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// ComposeTimestamp renders slot on day as local wall time without zone.
func ComposeTimestamp(day models.Date, slot models.TimeOfDay) string {
	return slot.Stamp(day)
}

func (w *Workflow) payloadLocked() models.NewAppointment {
	return models.NewAppointment{
		PetID:       w.petID,
		ServiceID:   w.serviceID,
		ScheduledAt: ComposeTimestamp(w.date, w.slot),
		Notes:       w.notes,
		Status:      models.StatusScheduled,
	}
}

// Submit creates the appointment. On success the workflow is reset and one
// appointment_created event is published; on failure the selections are kept.
func (w *Workflow) Submit(ctx context.Context) (*models.Appointment, error) {
	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		w.notify.Notify(ctx, Notification{Level: LevelInfo, Text: msgSubmitInFlight})
		return nil, ErrSubmitInProgress
	}
	if err := w.validateLocked(); err != nil {
		w.mu.Unlock()
		w.notify.Notify(ctx, Notification{Level: LevelDanger, Text: msgIncomplete})
		return nil, err
	}
	payload := w.payloadLocked()
	w.pending = true
	w.mu.Unlock()

	created, err := w.api.CreateAppointment(ctx, payload)

	w.mu.Lock()
	w.pending = false
	if err == nil {
		w.resetSelectionsLocked()
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error().Err(err).Interface("payload", payload).Msg("Failed to create appointment")
		w.notify.Notify(ctx, Notification{Level: LevelDanger, Text: msgCreateFailed + ": " + Describe(err)})
		return nil, err
	}

	if created == nil {
		created = &models.Appointment{}
	}
	w.logger.Info().
		Int64("chat_id", w.chatID).
		Int64("appointment_id", created.ID).
		Str("data_agendamento", payload.ScheduledAt).
		Msg("Appointment created")
	w.notify.Notify(ctx, Notification{Level: LevelSuccess, Text: msgCreated})
	w.publish(events.EventAppointmentCreated, events.AppointmentEventPayload{
		ChatID:        w.chatID,
		AppointmentID: created.ID,
		PetID:         payload.PetID,
		ServiceID:     payload.ServiceID,
		ScheduledAt:   payload.ScheduledAt,
		Status:        string(payload.Status),
	})
	return created, nil
}

// ChangeStatus stores appt with only its status replaced. Any status may
// follow any other. It shares the pending guard with Submit.
func (w *Workflow) ChangeStatus(ctx context.Context, appt models.Appointment, status models.AppointmentStatus) (*models.Appointment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		w.notify.Notify(ctx, Notification{Level: LevelInfo, Text: msgSubmitInFlight})
		return nil, ErrSubmitInProgress
	}
	w.pending = true
	w.mu.Unlock()

	prev := appt.Status
	appt.Status = status
	updated, err := w.api.UpdateAppointment(ctx, appt)

	w.mu.Lock()
	w.pending = false
	w.mu.Unlock()

	if err != nil {
		w.logger.Error().Err(err).Int64("appointment_id", appt.ID).Str("status", string(status)).Msg("Failed to update status")
		w.notify.Notify(ctx, Notification{Level: LevelDanger, Text: msgStatusFailed})
		return nil, err
	}

	if updated == nil {
		updated = &appt
	}
	w.notify.Notify(ctx, Notification{Level: LevelSuccess, Text: msgStatusUpdated})
	w.publish(events.EventAppointmentStatusChanged, events.AppointmentEventPayload{
		ChatID:        w.chatID,
		AppointmentID: appt.ID,
		PetID:         appt.PetID,
		ServiceID:     appt.ServiceID,
		ScheduledAt:   appt.ScheduledAt,
		Status:        string(status),
		PrevStatus:    string(prev),
	})
	return updated, nil
}

// Reset clears every selection and the availability list.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetSelectionsLocked()
}

func (w *Workflow) resetSelectionsLocked() {
	w.candidates = []models.Pet{}
	w.clientID = 0
	w.petID = 0
	w.serviceID = 0
	w.date = models.Date{}
	w.hasDate = false
	w.notes = ""
	w.token++
	w.clearSlotsLocked(SlotsIdle)
}

func (w *Workflow) clearSlotsLocked(state SlotState) {
	w.slots = []models.TimeOfDay{}
	w.slot = models.TimeOfDay{}
	w.hasSlot = false
	w.slotState = state
}

// Snapshot returns a copy of the current state.
func (w *Workflow) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		Clients:       append([]models.Client(nil), w.clients...),
		Services:      append([]models.Service(nil), w.services...),
		CandidatePets: append([]models.Pet(nil), w.candidates...),
		ClientID:      w.clientID,
		PetID:         w.petID,
		ServiceID:     w.serviceID,
		Date:          w.date,
		HasDate:       w.hasDate,
		Slot:          w.slot,
		HasSlot:       w.hasSlot,
		Notes:         w.notes,
		Slots:         append([]models.TimeOfDay(nil), w.slots...),
		SlotState:     w.slotState,
		Pending:       w.pending,
	}
}

// Today is the current calendar day in the workflow's zone.
func (w *Workflow) Today() models.Date {
	return models.DateOf(w.now().In(w.loc))
}

// Location is the zone dates and slots are interpreted in.
func (w *Workflow) Location() *time.Location {
	return w.loc
}

func (w *Workflow) publish(eventType string, payload interface{}) {
	if w.events == nil {
		return
	}
	if err := w.events.PublishJSON(eventType, payload); err != nil {
		w.logger.Warn().Err(err).Str("event", eventType).Msg("Event handler failed")
	}
}

// Describe turns a backend failure into operator text: the backend's own
// message when it sent one, otherwise a generic explanation.
func Describe(err error) string {
	if msg := petshop.Message(err); msg != "" {
		return msg
	}
	if errors.Is(err, petshop.ErrTransport) {
		return msgBackendDown
	}
	return msgGenericFailure
}

func containsClient(clients []models.Client, id int64) bool {
	for _, c := range clients {
		if c.ID == id {
			return true
		}
	}
	return false
}

func containsService(services []models.Service, id int64) bool {
	for _, s := range services {
		if s.ID == id {
			return true
		}
	}
	return false
}
