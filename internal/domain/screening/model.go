package screening

import (
	"time"

	"github.com/google/uuid"
)

// Event is one append-only screening assessment of a patient. Its
// AssessmentRiskLevel is the tier computed at the time of the assessment.
type Event struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	PatientID           uuid.UUID  `db:"patient_id" json:"patient"`
	DoctorID            *uuid.UUID `db:"doctor_id" json:"doctor"`
	ScreeningDate       time.Time  `db:"screening_date" json:"screening_date"`
	ScreeningType       string     `db:"screening_type" json:"screening_type"`
	HPVTestResult       string     `db:"hpv_test_result" json:"hpv_test_result"`
	PapSmearResult      string     `db:"pap_smear_result" json:"pap_smear_result"`
	SmokingStatus       Flag       `db:"smoking_status" json:"smoking_status"`
	STDsHistory         Flag       `db:"stds_history" json:"stds_history"`
	Region              string     `db:"region" json:"region"`
	InsuranceCovered    Flag       `db:"insurance_covered" json:"insurance_covered"`
	RecommendedAction   string     `db:"recommended_action" json:"recommended_action"`
	AssessmentRiskLevel RiskTier   `db:"assessment_risk_level" json:"assessment_risk_level"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`

	// Read-side joins.
	PatientEmail string  `db:"-" json:"patient_email,omitempty"`
	DoctorEmail  *string `db:"-" json:"doctor_email,omitempty"`
}
