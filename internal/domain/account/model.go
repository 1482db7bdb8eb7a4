package account

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/femtrack/api/internal/domain/screening"
	"github.com/femtrack/api/internal/platform/auth"
)

// Role is fixed when the account is created.
type Role string

const (
	RolePatient Role = auth.RolePatient
	RoleDoctor  Role = auth.RoleDoctor
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Account maps to the account table. Username is stored case-folded.
type Account struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"user_type"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	IsStaff      bool      `db:"is_staff" json:"is_staff"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName prefers "First Last" and falls back to the username, then the email.
func (a *Account) DisplayName() string {
	if a.FirstName != "" && a.LastName != "" {
		return a.FirstName + " " + a.LastName
	}
	if a.Username != "" {
		return a.Username
	}
	return a.Email
}

// FoldHandle canonicalizes a login handle for storage and lookup.
func FoldHandle(s string) string {
	// Casers are stateful; one per call.
	return cases.Fold().String(strings.TrimSpace(s))
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// PatientProfile maps to patient_profile. RiskLevel and LastScreeningDate
// are projected from the patient's most recent screening event on read.
type PatientProfile struct {
	AccountID              uuid.UUID          `db:"account_id" json:"user_id"`
	Account                *Account           `db:"-" json:"user,omitempty"`
	Age                    *int               `db:"age" json:"age"`
	SexualPartners         *int               `db:"sexual_partners" json:"sexual_partners"`
	FirstSexualActivityAge *int               `db:"first_sexual_activity_age" json:"first_sexual_activity_age"`
	RiskLevel              screening.RiskTier `db:"-" json:"risk_level"`
	LastScreeningDate      *time.Time         `db:"-" json:"last_screening_date"`
	CreatedAt              time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time          `db:"updated_at" json:"updated_at"`
}

// Measurements are the mutable numeric attributes of a patient.
type Measurements struct {
	Age                    *int `json:"age" validate:"omitempty,gte=0,lte=150"`
	SexualPartners         *int `json:"sexual_partners" validate:"omitempty,gte=0"`
	FirstSexualActivityAge *int `json:"first_sexual_activity_age" validate:"omitempty,gte=0,lte=150"`
}

// DoctorProfile maps to doctor_profile.
type DoctorProfile struct {
	AccountID      uuid.UUID `db:"account_id" json:"user_id"`
	Account        *Account  `db:"-" json:"user,omitempty"`
	Specialization *string   `db:"specialization" json:"specialization"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Viewer is the authenticated caller on whose behalf a read or write runs.
type Viewer struct {
	AccountID uuid.UUID
	Role      Role
}

func (v Viewer) IsDoctor() bool { return v.Role == RoleDoctor }

// RiskReport is a patient's current risk projection.
type RiskReport struct {
	AccountID         uuid.UUID          `json:"user"`
	RiskLevel         screening.RiskTier `json:"risk_level"`
	LastScreeningDate *time.Time         `json:"last_screening_date"`
}

// DashboardRow is one line of the doctor's patient table.
type DashboardRow struct {
	AccountID          uuid.UUID          `json:"user"`
	PatientID          string             `json:"patient_id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	RiskLevel          screening.RiskTier `json:"risk_level"`
	LastAssessmentDate *time.Time         `json:"last_assessment_date"`
}

// RiskSummary counts patients by projected tier.
type RiskSummary struct {
	TotalPatients     int `json:"total_patients"`
	HighRisk          int `json:"high_risk"`
	ModerateRisk      int `json:"moderate_risk"`
	LowRisk           int `json:"low_risk"`
	PendingAssessment int `json:"pending_assessment"`
}
