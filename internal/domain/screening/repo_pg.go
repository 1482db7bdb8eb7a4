package screening

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/femtrack/api/internal/platform/db"
)

type eventRepoPG struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) EventRepository {
	return &eventRepoPG{pool: pool}
}

func (r *eventRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const eventCols = `e.id, e.patient_id, e.doctor_id, e.screening_date, e.screening_type,
	e.hpv_test_result, e.pap_smear_result, e.smoking_status, e.stds_history,
	e.region, e.insurance_covered, e.recommended_action, e.assessment_risk_level, e.created_at,
	pa.email, da.email`

const eventFrom = `screening_event e
	JOIN account pa ON pa.id = e.patient_id
	LEFT JOIN account da ON da.id = e.doctor_id`

// Newest first. seq breaks ties between events created in the same instant.
const eventOrder = `ORDER BY e.created_at DESC, e.seq DESC`

func (r *eventRepoPG) Create(ctx context.Context, e *Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	var date any
	if !e.ScreeningDate.IsZero() {
		date = e.ScreeningDate
	}

	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO screening_event (
			id, patient_id, doctor_id, screening_date, screening_type,
			hpv_test_result, pap_smear_result, smoking_status, stds_history,
			region, insurance_covered, recommended_action, assessment_risk_level
		) VALUES ($1,$2,$3,COALESCE($4::date, CURRENT_DATE),$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING screening_date, created_at`,
		e.ID, e.PatientID, e.DoctorID, date, e.ScreeningType,
		e.HPVTestResult, e.PapSmearResult, string(e.SmokingStatus), string(e.STDsHistory),
		e.Region, string(e.InsuranceCovered), e.RecommendedAction, string(e.AssessmentRiskLevel),
	).Scan(&e.ScreeningDate, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: %s", ErrPatientNotFound, e.PatientID)
		}
		return fmt.Errorf("insert screening event: %w", err)
	}
	return nil
}

func (r *eventRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	e, err := scanEvent(r.conn(ctx).QueryRow(ctx, `SELECT `+eventCols+` FROM `+eventFrom+` WHERE e.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get screening event: %w", err)
	}
	return e, nil
}

func (r *eventRepoPG) List(ctx context.Context, limit, offset int) ([]*Event, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM screening_event`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count screening events: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+eventCols+` FROM `+eventFrom+` `+eventOrder+` LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list screening events: %w", err)
	}
	return collectEvents(rows, total)
}

func (r *eventRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM screening_event WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count screening events: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+eventCols+` FROM `+eventFrom+` WHERE e.patient_id = $1 `+eventOrder+` LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list screening events: %w", err)
	}
	return collectEvents(rows, total)
}

func collectEvents(rows pgx.Rows, total int) ([]*Event, int, error) {
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan screening event: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate screening events: %w", err)
	}
	return items, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e                      Event
		smoking, stds, insured string
		tier                   string
	)
	err := row.Scan(
		&e.ID, &e.PatientID, &e.DoctorID, &e.ScreeningDate, &e.ScreeningType,
		&e.HPVTestResult, &e.PapSmearResult, &smoking, &stds,
		&e.Region, &insured, &e.RecommendedAction, &tier, &e.CreatedAt,
		&e.PatientEmail, &e.DoctorEmail,
	)
	if err != nil {
		return nil, err
	}
	e.SmokingStatus = Flag(smoking)
	e.STDsHistory = Flag(stds)
	e.InsuranceCovered = Flag(insured)
	e.AssessmentRiskLevel = RiskTier(tier)
	return &e, nil
}
