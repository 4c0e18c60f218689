package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Client is a customer owning zero or more pets.
type Client struct {
	ID    int64  `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email,omitempty"`
	Phone string `json:"telefone,omitempty"`
}

// Pet belongs to exactly one client.
type Pet struct {
	ID       int64  `json:"id"`
	Name     string `json:"nome"`
	Species  string `json:"especie,omitempty"`
	Breed    string `json:"raca,omitempty"`
	Notes    string `json:"observacoes,omitempty"`
	ClientID int64  `json:"cliente"`
}

// SpeciesName maps the backend species code to a display name.
func (p Pet) SpeciesName() string {
	switch p.Species {
	case "C":
		return "Cachorro"
	case "G":
		return "Gato"
	case "O":
		return "Outro"
	default:
		return "Desconhecido"
	}
}

// Service is a bookable offering.
type Service struct {
	ID          int64  `json:"id"`
	Name        string `json:"nome"`
	Description string `json:"descricao,omitempty"`
	Price       Price  `json:"preco"`
	Duration    int    `json:"duracao"`
	Category    string `json:"categoria,omitempty"`
	Notes       string `json:"observacoes,omitempty"`
	Active      bool   `json:"ativo"`
}

// Price is a decimal currency value. The backend serializes decimals as
// strings ("50.00") but numbers are accepted as well.
type Price string

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = Price(n.String())
	return nil
}

// Float returns the numeric value, 0 when unparseable.
func (p Price) Float() float64 {
	f, err := strconv.ParseFloat(string(p), 64)
	if err != nil {
		return 0
	}
	return f
}

// String formats the price as Brazilian reais, e.g. "R$ 1.250,50".
func (p Price) String() string {
	cents := int64(math.Round(p.Float() * 100))
	neg := cents < 0
	if neg {
		cents = -cents
	}
	intPart := strconv.FormatInt(cents/100, 10)
	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents%100)
}

// AppointmentStatus is the closed status vocabulary of an appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "agendado"
	StatusConfirmed AppointmentStatus = "confirmado"
	StatusCancelled AppointmentStatus = "cancelado"
	StatusCompleted AppointmentStatus = "concluido"
)

// AllStatuses lists the vocabulary in display order.
var AllStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func (s AppointmentStatus) Label() string {
	switch s {
	case StatusScheduled:
		return "Agendado"
	case StatusConfirmed:
		return "Confirmado"
	case StatusCancelled:
		return "Cancelado"
	case StatusCompleted:
		return "Concluído"
	default:
		return string(s)
	}
}

func (s AppointmentStatus) Emoji() string {
	switch s {
	case StatusScheduled:
		return "🕒"
	case StatusConfirmed:
		return "✅"
	case StatusCancelled:
		return "❌"
	case StatusCompleted:
		return "🏁"
	default:
		return "•"
	}
}

// Appointment books one pet for one service at one moment.
type Appointment struct {
	ID          int64             `json:"id,omitempty"`
	PetID       int64             `json:"pet"`
	ServiceID   int64             `json:"servico"`
	ScheduledAt string            `json:"data_agendamento"`
	Status      AppointmentStatus `json:"status"`
	Notes       string            `json:"observacoes"`
	CreatedAt   string            `json:"data_criacao,omitempty"`
	PetName     string            `json:"pet_nome,omitempty"`
	ServiceName string            `json:"servico_nome,omitempty"`
}

// ScheduledTime parses data_agendamento. Values carrying a zone are converted
// into loc; bare wall times are interpreted in loc.
func (a Appointment) ScheduledTime(loc *time.Location) (time.Time, bool) {
	return ParseBackendTime(a.ScheduledAt, loc)
}

// CreatedTime parses data_criacao the same way as ScheduledTime.
func (a Appointment) CreatedTime(loc *time.Location) (time.Time, bool) {
	return ParseBackendTime(a.CreatedAt, loc)
}

// ParseBackendTime accepts RFC 3339 (with or without fraction), bare local
// timestamps and plain dates.
func ParseBackendTime(raw string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.In(loc), true
	}
	for _, layout := range []string{WireTimestampLayout, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04", "2006-01-02 15:04:05", DateLayout} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NewAppointment is the creation payload for POST /agendamentos/.
type NewAppointment struct {
	PetID       int64             `json:"pet"`
	ServiceID   int64             `json:"servico"`
	ScheduledAt string            `json:"data_agendamento"`
	Notes       string            `json:"observacoes"`
	Status      AppointmentStatus `json:"status"`
}

// AvailableSlots is the body of the availability endpoint.
type AvailableSlots struct {
	Slots []string `json:"horarios_disponiveis"`
}

// Credentials for POST /auth/login/.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Operator is the backend user behind a session.
type Operator struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"nome,omitempty"`
	Email string `json:"email,omitempty"`
}

// Session is the authenticated state of one chat. It is created at login and
// destroyed at logout, expiry, or when the backend rejects the token.
type Session struct {
	ChatID    int64     `json:"chat_id"`
	Token     string    `json:"token"`
	Operator  Operator  `json:"operator"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.Token == "" {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuditEntry is one operator action recorded in the local journal.
type AuditEntry struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  int64     `json:"entity_id,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
