package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncomplete is wrapped by every *ValidationError.
	ErrIncomplete       = errors.New("booking incomplete")
	ErrSubmitInProgress = errors.New("a submission is already in progress")
	ErrUnknownClient    = errors.New("unknown client")
	ErrUnknownService   = errors.New("unknown service")
	ErrNoCandidatePets  = errors.New("selected client has no pets")
	ErrPetNotCandidate  = errors.New("pet does not belong to the selected client")
	ErrSlotUnavailable  = errors.New("slot not offered for the selected date and service")
	ErrPastDate         = errors.New("date is before today")
	ErrInvalidStatus    = errors.New("invalid appointment status")
)

// Field names reported by ValidationError.
const (
	FieldPet     = "pet"
	FieldService = "servico"
	FieldDate    = "data"
	FieldSlot    = "horario"
)

// ValidationError lists the required selections that are missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrIncomplete, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrIncomplete
}
