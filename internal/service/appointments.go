package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"petagenda/internal/domain"
	"petagenda/internal/events"
	"petagenda/internal/models"

	"github.com/rs/zerolog"
)

// AppointmentView is an appointment with display names resolved.
type AppointmentView struct {
	models.Appointment
	PetName     string
	ServiceName string
	When        time.Time
	HasTime     bool
}

// AppointmentDetail is an appointment with its related records. Related
// records are nil when their fetch failed.
type AppointmentDetail struct {
	Appointment models.Appointment
	When        time.Time
	HasTime     bool
	Pet         *models.Pet
	Service     *models.Service
	Client      *models.Client
}

type Dashboard struct {
	Clients      int
	Pets         int
	Services     int
	Appointments int
	Today        int
	Upcoming     []AppointmentView
}

// AppointmentService backs the read-mostly appointment screens.
type AppointmentService struct {
	api    domain.BackendAPI
	events domain.EventPublisher
	loc    *time.Location
	logger *zerolog.Logger
	now    func() time.Time
}

func NewAppointmentService(
	api domain.BackendAPI,
	publisher domain.EventPublisher,
	loc *time.Location,
	logger *zerolog.Logger,
) *AppointmentService {
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentService{
		api:    api,
		events: publisher,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// List returns every appointment ordered by date. Pet and service names come
// from the appointment itself or from the reference lists; a failure to load
// the reference lists only degrades the names.
func (s *AppointmentService) List(ctx context.Context) ([]AppointmentView, error) {
	var (
		wg       sync.WaitGroup
		appts    []models.Appointment
		pets     []models.Pet
		services []models.Service
		apptErr  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		appts, apptErr = s.api.ListAppointments(ctx)
	}()
	go func() {
		defer wg.Done()
		var err error
		if pets, err = s.api.ListPets(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to load pets for appointment list")
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if services, err = s.api.ListServices(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to load services for appointment list")
		}
	}()
	wg.Wait()

	if apptErr != nil {
		return nil, apptErr
	}
	return s.views(appts, pets, services), nil
}

// Today returns the appointments whose local date is the current day.
func (s *AppointmentService) Today(ctx context.Context) ([]AppointmentView, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	today := make([]AppointmentView, 0, len(all))
	for _, v := range all {
		if v.HasTime && sameDay(v.When, s.now().In(s.loc)) {
			today = append(today, v)
		}
	}
	return today, nil
}

// Detail fetches the appointment together with its pet and service, then the
// pet's owner. Only the appointment itself is mandatory.
func (s *AppointmentService) Detail(ctx context.Context, id int64) (*AppointmentDetail, error) {
	appt, err := s.api.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{Appointment: *appt}
	detail.When, detail.HasTime = appt.ScheduledTime(s.loc)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pet, err := s.api.GetPet(ctx, appt.PetID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("pet_id", appt.PetID).Msg("Failed to load pet")
			return
		}
		detail.Pet = pet
	}()
	go func() {
		defer wg.Done()
		svc, err := s.api.GetService(ctx, appt.ServiceID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("service_id", appt.ServiceID).Msg("Failed to load service")
			return
		}
		detail.Service = svc
	}()
	wg.Wait()

	if detail.Pet != nil && detail.Pet.ClientID != 0 {
		client, err := s.api.GetClient(ctx, detail.Pet.ClientID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("client_id", detail.Pet.ClientID).Msg("Failed to load client")
		} else {
			detail.Client = client
		}
	}
	return detail, nil
}

// Dashboard loads the four collections concurrently. Any failure fails the
// whole dashboard.
func (s *AppointmentService) Dashboard(ctx context.Context) (*Dashboard, error) {
	var (
		wg       sync.WaitGroup
		clients  []models.Client
		pets     []models.Pet
		services []models.Service
		appts    []models.Appointment
		errs     [4]error
	)

	wg.Add(4)
	go func() { defer wg.Done(); clients, errs[0] = s.api.ListClients(ctx) }()
	go func() { defer wg.Done(); pets, errs[1] = s.api.ListPets(ctx) }()
	go func() { defer wg.Done(); services, errs[2] = s.api.ListServices(ctx) }()
	go func() { defer wg.Done(); appts, errs[3] = s.api.ListAppointments(ctx) }()
	wg.Wait()

	if err := errors.Join(errs[:]...); err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}

	now := s.now().In(s.loc)
	views := s.views(appts, pets, services)
	dash := &Dashboard{
		Clients:      len(clients),
		Pets:         len(pets),
		Services:     len(services),
		Appointments: len(appts),
	}
	for _, v := range views {
		if !v.HasTime {
			continue
		}
		if sameDay(v.When, now) {
			dash.Today++
		}
		if v.When.After(now) && len(dash.Upcoming) < models.UpcomingLimit {
			dash.Upcoming = append(dash.Upcoming, v)
		}
	}
	return dash, nil
}

// Delete removes the appointment and announces it.
func (s *AppointmentService) Delete(ctx context.Context, chatID, id int64) error {
	if err := s.api.DeleteAppointment(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("chat_id", chatID).Int64("appointment_id", id).Msg("Appointment deleted")
	if s.events != nil {
		if err := s.events.PublishJSON(events.EventAppointmentDeleted, events.AppointmentEventPayload{
			ChatID:        chatID,
			AppointmentID: id,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("Event handler failed")
		}
	}
	return nil
}

// views resolves names and sorts by scheduled time; undated entries go last.
func (s *AppointmentService) views(appts []models.Appointment, pets []models.Pet, services []models.Service) []AppointmentView {
	petNames := make(map[int64]string, len(pets))
	for _, p := range pets {
		petNames[p.ID] = p.Name
	}
	serviceNames := make(map[int64]string, len(services))
	for _, sv := range services {
		serviceNames[sv.ID] = sv.Name
	}

	views := make([]AppointmentView, 0, len(appts))
	for _, a := range appts {
		v := AppointmentView{Appointment: a}
		v.When, v.HasTime = a.ScheduledTime(s.loc)
		v.PetName = firstNonEmpty(a.PetName, petNames[a.PetID], fmt.Sprintf("Pet #%d", a.PetID))
		v.ServiceName = firstNonEmpty(a.ServiceName, serviceNames[a.ServiceID], fmt.Sprintf("Serviço #%d", a.ServiceID))
		views = append(views, v)
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].HasTime != views[j].HasTime {
			return views[i].HasTime
		}
		return views[i].When.Before(views[j].When)
	})
	return views
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
