package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/femtrack/api/internal/domain/screening"
	"github.com/femtrack/api/internal/platform/auth"
	"github.com/femtrack/api/internal/platform/db"
)

type Service struct {
	tx       db.TxRunner
	accounts AccountRepository
	patients PatientProfileRepository
	doctors  DoctorProfileRepository
	hasher   auth.Hasher
}

func NewService(tx db.TxRunner, accounts AccountRepository, patients PatientProfileRepository,
	doctors DoctorProfileRepository, hasher auth.Hasher) *Service {
	return &Service{tx: tx, accounts: accounts, patients: patients, doctors: doctors, hasher: hasher}
}

// Registration is the self-service signup payload.
type Registration struct {
	Username       string  `json:"username" validate:"required,max=150"`
	Email          string  `json:"email" validate:"required,email,max=254"`
	Password       string  `json:"password" validate:"required,min=8,max=72"`
	FirstName      string  `json:"first_name" validate:"max=150"`
	LastName       string  `json:"last_name" validate:"max=150"`
	Specialization *string `json:"specialization,omitempty" validate:"omitempty,max=100"`
}

// RegisterPatient creates a patient account with an empty profile.
func (s *Service) RegisterPatient(ctx context.Context, reg Registration) (*Account, error) {
	return s.register(ctx, reg, RolePatient, func(ctx context.Context, a *Account) error {
		return s.patients.Create(ctx, &PatientProfile{AccountID: a.ID})
	})
}

// RegisterDoctor creates a doctor account and its profile.
func (s *Service) RegisterDoctor(ctx context.Context, reg Registration) (*Account, error) {
	return s.register(ctx, reg, RoleDoctor, func(ctx context.Context, a *Account) error {
		return s.doctors.Create(ctx, &DoctorProfile{AccountID: a.ID, Specialization: reg.Specialization})
	})
}

func (s *Service) register(ctx context.Context, reg Registration, role Role,
	createProfile func(context.Context, *Account) error) (*Account, error) {
	a := &Account{
		Username:  FoldHandle(reg.Username),
		Email:     NormalizeEmail(reg.Email),
		Role:      role,
		FirstName: strings.TrimSpace(reg.FirstName),
		LastName:  strings.TrimSpace(reg.LastName),
	}
	if a.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalid)
	}
	if a.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalid)
	}
	if len(reg.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalid)
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, err
	}
	a.PasswordHash = hash

	// Account and profile share one lifetime.
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Create(ctx, a); err != nil {
			return err
		}
		return createProfile(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Authenticate resolves login by email when it contains "@" and by username
// otherwise. Any mismatch returns auth.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*Account, error) {
	var (
		a   *Account
		err error
	)
	if strings.Contains(login, "@") {
		a, err = s.accounts.GetByEmail(ctx, NormalizeEmail(login))
	} else {
		a, err = s.accounts.GetByUsername(ctx, FoldHandle(login))
	}
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Compare(a.PasswordHash, password); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAccount(ctx context.Context, viewer Viewer, id uuid.UUID) (*Account, error) {
	if err := selfOnly(viewer, id); err != nil {
		return nil, err
	}
	return s.accounts.GetByID(ctx, id)
}

func (s *Service) ListAccounts(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	return s.accounts.List(ctx, limit, offset)
}

// AccountUpdate carries the editable account fields. Role is not editable.
type AccountUpdate struct {
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=72"`
	Role      *string `json:"user_type"`
}

func selfOnly(viewer Viewer, id uuid.UUID) error {
	if viewer.AccountID != id {
		return ErrForbidden
	}
	return nil
}

// UpdateAccount applies upd to the caller's own account.
func (s *Service) UpdateAccount(ctx context.Context, viewer Viewer, id uuid.UUID, upd AccountUpdate) (*Account, error) {
	if err := selfOnly(viewer, id); err != nil {
		return nil, err
	}
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Role != nil && Role(*upd.Role) != a.Role {
		return nil, fmt.Errorf("%w: user_type cannot be changed", ErrInvalid)
	}
	if upd.Email != nil {
		if a.Email = NormalizeEmail(*upd.Email); a.Email == "" {
			return nil, fmt.Errorf("%w: email is required", ErrInvalid)
		}
	}
	if upd.FirstName != nil {
		a.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		a.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.Password != nil {
		hash, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, err
		}
		a.PasswordHash = hash
	}
	if err := s.accounts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAccount removes the caller's own account together with its profile.
func (s *Service) DeleteAccount(ctx context.Context, viewer Viewer, id uuid.UUID) error {
	if err := selfOnly(viewer, id); err != nil {
		return err
	}
	return s.accounts.Delete(ctx, id)
}

// Me is the caller's account with its role profile.
type Me struct {
	*Account
	Patient *PatientProfile `json:"patient_profile,omitempty"`
	Doctor  *DoctorProfile  `json:"doctor_profile,omitempty"`
}

func (s *Service) Me(ctx context.Context, viewer Viewer) (*Me, error) {
	a, err := s.accounts.GetByID(ctx, viewer.AccountID)
	if err != nil {
		return nil, err
	}
	me := &Me{Account: a}
	switch a.Role {
	case RolePatient:
		if me.Patient, err = s.patients.GetByAccountID(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("patient profile: %w", err)
		}
		me.Patient.Account = nil
	case RoleDoctor:
		if me.Doctor, err = s.doctors.GetByAccountID(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("doctor profile: %w", err)
		}
		me.Doctor.Account = nil
	}
	return me, nil
}

// canSeePatient allows doctors and the patient themself.
func canSeePatient(viewer Viewer, id uuid.UUID) error {
	if viewer.IsDoctor() || viewer.AccountID == id {
		return nil
	}
	return ErrForbidden
}

func (s *Service) GetPatient(ctx context.Context, viewer Viewer, id uuid.UUID) (*PatientProfile, error) {
	if err := canSeePatient(viewer, id); err != nil {
		return nil, err
	}
	return s.patients.GetByAccountID(ctx, id)
}

// ListPatients returns every patient for doctors and only the caller for patients.
func (s *Service) ListPatients(ctx context.Context, viewer Viewer, limit, offset int) ([]*PatientProfile, int, error) {
	if viewer.IsDoctor() {
		return s.patients.List(ctx, limit, offset)
	}
	p, err := s.patients.GetByAccountID(ctx, viewer.AccountID)
	if errors.Is(err, ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if offset > 0 {
		return nil, 1, nil
	}
	return []*PatientProfile{p}, 1, nil
}

// UpdateMeasurements replaces the numeric attributes of a patient.
func (s *Service) UpdateMeasurements(ctx context.Context, viewer Viewer, id uuid.UUID, m Measurements) (*PatientProfile, error) {
	if err := canSeePatient(viewer, id); err != nil {
		return nil, err
	}
	for name, v := range map[string]*int{
		"age":                       m.Age,
		"sexual_partners":           m.SexualPartners,
		"first_sexual_activity_age": m.FirstSexualActivityAge,
	} {
		if v != nil && *v < 0 {
			return nil, fmt.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
	}

	p, err := s.patients.GetByAccountID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Age = m.Age
	p.SexualPartners = m.SexualPartners
	p.FirstSexualActivityAge = m.FirstSexualActivityAge
	if err := s.patients.UpdateMeasurements(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) RiskReport(ctx context.Context, viewer Viewer, id uuid.UUID) (*RiskReport, error) {
	if err := canSeePatient(viewer, id); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByAccountID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RiskReport{AccountID: p.AccountID, RiskLevel: p.RiskLevel, LastScreeningDate: p.LastScreeningDate}, nil
}

// Dashboard lists patients for the doctor's table.
func (s *Service) Dashboard(ctx context.Context, limit, offset int) ([]DashboardRow, int, error) {
	patients, total, err := s.patients.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]DashboardRow, 0, len(patients))
	for _, p := range patients {
		row := DashboardRow{
			AccountID:          p.AccountID,
			RiskLevel:          p.RiskLevel,
			LastAssessmentDate: p.LastScreeningDate,
		}
		if p.Account != nil {
			row.PatientID = p.Account.Username
			row.Name = p.Account.DisplayName()
			row.Email = p.Account.Email
		}
		rows = append(rows, row)
	}
	return rows, total, nil
}

// SummaryCounts groups patients by projected risk. Patients without any
// screening count as pending.
func (s *Service) SummaryCounts(ctx context.Context) (*RiskSummary, error) {
	counts, err := s.patients.RiskCounts(ctx)
	if err != nil {
		return nil, err
	}
	sum := &RiskSummary{
		HighRisk:          counts[screening.HighRisk],
		ModerateRisk:      counts[screening.ModerateRisk],
		LowRisk:           counts[screening.LowRisk],
		PendingAssessment: counts[screening.Unknown],
	}
	for _, n := range counts {
		sum.TotalPatients += n
	}
	return sum, nil
}

// GetDoctor returns a doctor's own profile.
func (s *Service) GetDoctor(ctx context.Context, viewer Viewer, id uuid.UUID) (*DoctorProfile, error) {
	if !viewer.IsDoctor() || viewer.AccountID != id {
		return nil, ErrNotFound
	}
	return s.doctors.GetByAccountID(ctx, id)
}

// UpdateSpecialization sets or clears a doctor's own specialization.
func (s *Service) UpdateSpecialization(ctx context.Context, viewer Viewer, id uuid.UUID, specialization *string) (*DoctorProfile, error) {
	d, err := s.GetDoctor(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if specialization != nil {
		trimmed := strings.TrimSpace(*specialization)
		if len(trimmed) > 100 {
			return nil, fmt.Errorf("%w: specialization is too long", ErrInvalid)
		}
		if trimmed == "" {
			specialization = nil
		} else {
			specialization = &trimmed
		}
	}
	d.Specialization = specialization
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Directory exposes patient ages to screening assessments.
type Directory struct {
	patients PatientProfileRepository
}

func NewDirectory(patients PatientProfileRepository) *Directory {
	return &Directory{patients: patients}
}

func (d *Directory) PatientAge(ctx context.Context, patientID uuid.UUID) (*int, error) {
	p, err := d.patients.GetByAccountID(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return nil, screening.ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return p.Age, nil
}
