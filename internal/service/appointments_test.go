package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"petagenda/internal/events"
	"petagenda/internal/models"
	"petagenda/internal/petshop"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	clients  []models.Client
	pets     []models.Pet
	services []models.Service
	appts    []models.Appointment
	fail     map[string]error
	deleted  []int64
}

func (f *fakeBackend) err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[op]
}

func (f *fakeBackend) ListClients(context.Context) ([]models.Client, error) {
	return f.clients, f.err("clients")
}

func (f *fakeBackend) ListPets(context.Context) ([]models.Pet, error) {
	return f.pets, f.err("pets")
}

func (f *fakeBackend) ListServices(context.Context) ([]models.Service, error) {
	return f.services, f.err("services")
}

func (f *fakeBackend) ListAppointments(context.Context) ([]models.Appointment, error) {
	return f.appts, f.err("appointments")
}

func (f *fakeBackend) GetAppointment(_ context.Context, id int64) (*models.Appointment, error) {
	if err := f.err("appointment"); err != nil {
		return nil, err
	}
	for _, a := range f.appts {
		if a.ID == id {
			a := a
			return &a, nil
		}
	}
	return nil, &petshop.APIError{Status: 404}
}

func (f *fakeBackend) GetPet(_ context.Context, id int64) (*models.Pet, error) {
	if err := f.err("pet"); err != nil {
		return nil, err
	}
	for _, p := range f.pets {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, &petshop.APIError{Status: 404}
}

func (f *fakeBackend) GetService(_ context.Context, id int64) (*models.Service, error) {
	if err := f.err("service"); err != nil {
		return nil, err
	}
	for _, s := range f.services {
		if s.ID == id {
			s := s
			return &s, nil
		}
	}
	return nil, &petshop.APIError{Status: 404}
}

func (f *fakeBackend) GetClient(_ context.Context, id int64) (*models.Client, error) {
	if err := f.err("client"); err != nil {
		return nil, err
	}
	for _, c := range f.clients {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, &petshop.APIError{Status: 404}
}

func (f *fakeBackend) CreateAppointment(context.Context, models.NewAppointment) (*models.Appointment, error) {
	return nil, errors.New("not used")
}

func (f *fakeBackend) UpdateAppointment(context.Context, models.Appointment) (*models.Appointment, error) {
	return nil, errors.New("not used")
}

func (f *fakeBackend) DeleteAppointment(_ context.Context, id int64) error {
	if err := f.err("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) AvailableSlots(context.Context, models.Date, int64) ([]string, error) {
	return nil, errors.New("not used")
}

var testLoc = time.FixedZone("BRT", -3*3600)

func newBackend() *fakeBackend {
	return &fakeBackend{
		clients: []models.Client{{ID: 1, Name: "Ana"}, {ID: 2, Name: "Bruno"}},
		pets: []models.Pet{
			{ID: 10, Name: "Rex", ClientID: 1},
			{ID: 11, Name: "Mia", ClientID: 2},
		},
		services: []models.Service{{ID: 5, Name: "Banho", Price: "50.00", Active: true}},
		appts: []models.Appointment{
			{ID: 1, PetID: 10, ServiceID: 5, ScheduledAt: "2025-03-11T10:00:00", Status: models.StatusScheduled},
			{ID: 2, PetID: 11, ServiceID: 5, ScheduledAt: "2025-03-10T08:00:00", Status: models.StatusConfirmed, PetName: "Mimi"},
			{ID: 3, PetID: 99, ServiceID: 77, ScheduledAt: "2025-03-10T15:30:00", Status: models.StatusScheduled},
			{ID: 4, PetID: 10, ServiceID: 5, ScheduledAt: "", Status: models.StatusCancelled},
			{ID: 5, PetID: 10, ServiceID: 5, ScheduledAt: "2025-03-09T09:00:00", Status: models.StatusCompleted},
		},
		fail: map[string]error{},
	}
}

func newAppointmentService(api *fakeBackend, pub *recordingPublisher) *AppointmentService {
	logger := zerolog.Nop()
	svc := NewAppointmentService(api, pub, testLoc, &logger)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, testLoc) }
	return svc
}

func TestAppointmentList(t *testing.T) {
	api := newBackend()
	svc := newAppointmentService(api, &recordingPublisher{})

	views, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 5)

	ids := make([]int64, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []int64{5, 2, 3, 1, 4}, ids)

	assert.Equal(t, "Mimi", views[1].PetName, "name carried by the appointment wins")
	assert.Equal(t, "Pet #99", views[2].PetName)
	assert.Equal(t, "Serviço #77", views[2].ServiceName)
	assert.Equal(t, "Rex", views[3].PetName)
	assert.Equal(t, "Banho", views[3].ServiceName)
	assert.False(t, views[4].HasTime)
}

func TestAppointmentListToleratesReferenceFailure(t *testing.T) {
	api := newBackend()
	api.fail["pets"] = petshop.ErrTransport
	svc := newAppointmentService(api, &recordingPublisher{})

	views, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pet #10", views[3].PetName)
}

func TestAppointmentListFailure(t *testing.T) {
	api := newBackend()
	api.fail["appointments"] = petshop.ErrTransport
	svc := newAppointmentService(api, &recordingPublisher{})

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, petshop.ErrTransport)
}

func TestAppointmentToday(t *testing.T) {
	svc := newAppointmentService(newBackend(), &recordingPublisher{})

	today, err := svc.Today(context.Background())
	require.NoError(t, err)
	require.Len(t, today, 2)
	assert.Equal(t, int64(2), today[0].ID)
	assert.Equal(t, int64(3), today[1].ID)
}

func TestAppointmentDetail(t *testing.T) {
	t.Run("Full", func(t *testing.T) {
		svc := newAppointmentService(newBackend(), &recordingPublisher{})

		detail, err := svc.Detail(context.Background(), 1)
		require.NoError(t, err)
		require.NotNil(t, detail.Pet)
		require.NotNil(t, detail.Service)
		require.NotNil(t, detail.Client)
		assert.Equal(t, "Rex", detail.Pet.Name)
		assert.Equal(t, "Banho", detail.Service.Name)
		assert.Equal(t, "Ana", detail.Client.Name)
		assert.True(t, detail.HasTime)
		assert.Equal(t, 10, detail.When.Hour())
	})

	t.Run("RelatedFailuresTolerated", func(t *testing.T) {
		api := newBackend()
		api.fail["pet"] = petshop.ErrTransport
		api.fail["service"] = &petshop.APIError{Status: 500}
		svc := newAppointmentService(api, &recordingPublisher{})

		detail, err := svc.Detail(context.Background(), 1)
		require.NoError(t, err)
		assert.Nil(t, detail.Pet)
		assert.Nil(t, detail.Service)
		assert.Nil(t, detail.Client)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := newAppointmentService(newBackend(), &recordingPublisher{})

		_, err := svc.Detail(context.Background(), 404)
		assert.ErrorIs(t, err, petshop.ErrNotFound)
	})
}

func TestDashboard(t *testing.T) {
	t.Run("Counts", func(t *testing.T) {
		svc := newAppointmentService(newBackend(), &recordingPublisher{})

		dash, err := svc.Dashboard(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, dash.Clients)
		assert.Equal(t, 2, dash.Pets)
		assert.Equal(t, 1, dash.Services)
		assert.Equal(t, 5, dash.Appointments)
		assert.Equal(t, 2, dash.Today)

		require.Len(t, dash.Upcoming, 2)
		assert.Equal(t, int64(3), dash.Upcoming[0].ID)
		assert.Equal(t, int64(1), dash.Upcoming[1].ID)
	})

	t.Run("UpcomingCapped", func(t *testing.T) {
		api := newBackend()
		api.appts = nil
		for i := 0; i < 8; i++ {
			api.appts = append(api.appts, models.Appointment{
				ID:          int64(100 + i),
				PetID:       10,
				ServiceID:   5,
				ScheduledAt: time.Date(2025, 3, 20-i, 9, 0, 0, 0, testLoc).Format(models.WireTimestampLayout),
			})
		}
		svc := newAppointmentService(api, &recordingPublisher{})

		dash, err := svc.Dashboard(context.Background())
		require.NoError(t, err)
		require.Len(t, dash.Upcoming, models.UpcomingLimit)
		assert.Equal(t, int64(107), dash.Upcoming[0].ID)
	})

	t.Run("AnyFailureFails", func(t *testing.T) {
		api := newBackend()
		api.fail["services"] = petshop.ErrTransport
		svc := newAppointmentService(api, &recordingPublisher{})

		_, err := svc.Dashboard(context.Background())
		assert.ErrorIs(t, err, petshop.ErrTransport)
	})
}

func TestAppointmentDelete(t *testing.T) {
	api := newBackend()
	pub := &recordingPublisher{}
	svc := newAppointmentService(api, pub)

	require.NoError(t, svc.Delete(context.Background(), 7, 3))
	assert.Equal(t, []int64{3}, api.deleted)
	assert.Equal(t, []string{events.EventAppointmentDeleted}, pub.events)

	api.fail["delete"] = &petshop.APIError{Status: 404}
	err := svc.Delete(context.Background(), 7, 3)
	assert.ErrorIs(t, err, petshop.ErrNotFound)
	assert.Len(t, pub.events, 1)
}
