package account

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/femtrack/api/internal/domain/screening"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("already exists")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid input")
)

type AccountRepository interface {
	// Create assigns a.ID when it is nil. A duplicate username or email
	// returns ErrConflict.
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	// Update writes names, email, password hash and staff flag. Role is never
	// written.
	Update(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Account, int, error)
}

type PatientProfileRepository interface {
	Create(ctx context.Context, p *PatientProfile) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*PatientProfile, error)
	UpdateMeasurements(ctx context.Context, p *PatientProfile) error
	List(ctx context.Context, limit, offset int) ([]*PatientProfile, int, error)
	// RiskCounts groups all patients by projected tier, including Unknown.
	RiskCounts(ctx context.Context) (map[screening.RiskTier]int, error)
}

type DoctorProfileRepository interface {
	Create(ctx context.Context, d *DoctorProfile) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*DoctorProfile, error)
	Update(ctx context.Context, d *DoctorProfile) error
}
