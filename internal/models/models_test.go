package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceUnmarshal(t *testing.T) {
	var svc struct {
		A Price `json:"a"`
		B Price `json:"b"`
		C Price `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"50.00","b":1250.5,"c":null}`), &svc))

	assert.Equal(t, Price("50.00"), svc.A)
	assert.Equal(t, Price("1250.5"), svc.B)
	assert.Equal(t, Price(""), svc.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &svc))
}

func TestPriceString(t *testing.T) {
	tests := []struct {
		in   Price
		want string
	}{
		{"50.00", "R$ 50,00"},
		{"1250.5", "R$ 1.250,50"},
		{"1234567.891", "R$ 1.234.567,89"},
		{"", "R$ 0,00"},
		{"abc", "R$ 0,00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String(), string(tt.in))
	}
}

func TestAppointmentStatus(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.Valid(), s)
		assert.NotEqual(t, string(s), s.Label())
	}
	assert.False(t, AppointmentStatus("pending").Valid())
	assert.Equal(t, "pending", AppointmentStatus("pending").Label())
}

func TestParseBackendTime(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)

	t.Run("BareWallTime", func(t *testing.T) {
		got, ok := ParseBackendTime("2025-03-10T09:00:00", loc)
		require.True(t, ok)
		assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, loc), got)
	})

	t.Run("WithZone", func(t *testing.T) {
		got, ok := ParseBackendTime("2025-03-10T12:00:00Z", loc)
		require.True(t, ok)
		assert.Equal(t, 9, got.Hour())
		assert.Equal(t, loc, got.Location())
	})

	t.Run("Fraction", func(t *testing.T) {
		got, ok := ParseBackendTime("2025-03-10T09:00:00.123456-03:00", loc)
		require.True(t, ok)
		assert.Equal(t, 9, got.Hour())
	})

	t.Run("DateOnly", func(t *testing.T) {
		got, ok := ParseBackendTime("2025-03-10", loc)
		require.True(t, ok)
		assert.Equal(t, 10, got.Day())
	})

	t.Run("Invalid", func(t *testing.T) {
		_, ok := ParseBackendTime("ontem", loc)
		assert.False(t, ok)
		_, ok = ParseBackendTime("", loc)
		assert.False(t, ok)
	})
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	var nilSession *Session
	assert.True(t, nilSession.Expired(now))
	assert.True(t, (&Session{}).Expired(now))
	assert.False(t, (&Session{Token: "t"}).Expired(now))
	assert.False(t, (&Session{Token: "t", ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&Session{Token: "t", ExpiresAt: now}).Expired(now))
}

func TestPetSpeciesName(t *testing.T) {
	assert.Equal(t, "Cachorro", Pet{Species: "C"}.SpeciesName())
	assert.Equal(t, "Gato", Pet{Species: "G"}.SpeciesName())
	assert.Equal(t, "Outro", Pet{Species: "O"}.SpeciesName())
	assert.Equal(t, "Desconhecido", Pet{}.SpeciesName())
}
