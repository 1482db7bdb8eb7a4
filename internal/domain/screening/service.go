package screening

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalid marks rejected input.
var ErrInvalid = errors.New("invalid screening")

// PatientDirectory resolves the patient attributes an assessment depends on.
// PatientAge returns ErrPatientNotFound for an unknown patient and a nil age
// when none is recorded.
type PatientDirectory interface {
	PatientAge(ctx context.Context, patientID uuid.UUID) (*int, error)
}

// AssessmentRecorder observes each recorded assessment.
type AssessmentRecorder interface {
	AssessmentRecorded(tier string)
}

type Service struct {
	events   EventRepository
	patients PatientDirectory
	recorder AssessmentRecorder
}

func NewService(events EventRepository, patients PatientDirectory, recorder AssessmentRecorder) *Service {
	return &Service{events: events, patients: patients, recorder: recorder}
}

// Assessment is a doctor-submitted screening. The risk tier is always
// computed from these attributes and the patient's recorded age.
type Assessment struct {
	PatientID         uuid.UUID `json:"patient" validate:"required"`
	ScreeningType     string    `json:"screening_type" validate:"required,max=50"`
	HPVTestResult     string    `json:"hpv_test_result" validate:"max=20"`
	PapSmearResult    string    `json:"pap_smear_result" validate:"max=20"`
	SmokingStatus     Flag      `json:"smoking_status" validate:"omitempty,oneof=Y N"`
	STDsHistory       Flag      `json:"stds_history" validate:"omitempty,oneof=Y N"`
	Region            string    `json:"region" validate:"max=100"`
	InsuranceCovered  Flag      `json:"insurance_covered" validate:"omitempty,oneof=Y N"`
	RecommendedAction string    `json:"recommended_action"`
}

func flagOrNo(f Flag) Flag {
	if f == Yes {
		return Yes
	}
	return No
}

// RecordAssessment classifies in and appends it as a new event attributed to
// doctorID. The patient's projected risk becomes the new event's tier.
func (s *Service) RecordAssessment(ctx context.Context, doctorID uuid.UUID, in Assessment) (*Event, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient is required", ErrInvalid)
	}
	if strings.TrimSpace(in.ScreeningType) == "" {
		return nil, fmt.Errorf("%w: screening_type is required", ErrInvalid)
	}

	age, err := s.patients.PatientAge(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}

	attrs := Attributes{
		SmokingStatus:  flagOrNo(in.SmokingStatus),
		STDsHistory:    flagOrNo(in.STDsHistory),
		HPVTestResult:  strings.TrimSpace(in.HPVTestResult),
		PapSmearResult: strings.TrimSpace(in.PapSmearResult),
	}
	if age != nil {
		attrs.Age = *age
	}

	e := &Event{
		PatientID:           in.PatientID,
		DoctorID:            &doctorID,
		ScreeningType:       strings.TrimSpace(in.ScreeningType),
		HPVTestResult:       attrs.HPVTestResult,
		PapSmearResult:      attrs.PapSmearResult,
		SmokingStatus:       attrs.SmokingStatus,
		STDsHistory:         attrs.STDsHistory,
		Region:              in.Region,
		InsuranceCovered:    flagOrNo(in.InsuranceCovered),
		RecommendedAction:   in.RecommendedAction,
		AssessmentRiskLevel: Classify(attrs),
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, err
	}
	if s.recorder != nil {
		s.recorder.AssessmentRecorded(string(e.AssessmentRiskLevel))
	}
	return e, nil
}

// GetEvent returns the event with id. A non-nil patientScope hides events of
// other patients.
func (s *Service) GetEvent(ctx context.Context, patientScope *uuid.UUID, id uuid.UUID) (*Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patientScope != nil && e.PatientID != *patientScope {
		return nil, ErrNotFound
	}
	return e, nil
}

// ListEvents returns events newest first, restricted to one patient when
// patientScope is set.
func (s *Service) ListEvents(ctx context.Context, patientScope *uuid.UUID, limit, offset int) ([]*Event, int, error) {
	if patientScope != nil {
		return s.events.ListByPatient(ctx, *patientScope, limit, offset)
	}
	return s.events.List(ctx, limit, offset)
}
