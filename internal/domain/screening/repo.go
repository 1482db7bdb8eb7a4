package screening

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("screening event not found")
	ErrPatientNotFound = errors.New("patient not found for this screening")
)

type EventRepository interface {
	// Create appends e. ID, ScreeningDate and CreatedAt are assigned by the store
	// when zero.
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	List(ctx context.Context, limit, offset int) ([]*Event, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Event, int, error)
}
