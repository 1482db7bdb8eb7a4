package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/femtrack/api/internal/domain/screening"
	"github.com/femtrack/api/internal/platform/db"
)

func connFor(ctx context.Context, pool *pgxpool.Pool) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// mapErr translates driver errors into the package's sentinels.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503", "23514":
			return fmt.Errorf("%w: %s", ErrInvalid, pgErr.Message)
		}
	}
	return err
}

// -- Account Repository --

type accountRepoPG struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) AccountRepository {
	return &accountRepoPG{pool: pool}
}

func (r *accountRepoPG) conn(ctx context.Context) db.Querier { return connFor(ctx, r.pool) }

const accountCols = `id, username, email, password_hash, role, first_name, last_name, is_staff, created_at, updated_at`

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO account (id, username, email, password_hash, role, first_name, last_name, is_staff)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		a.ID, a.Username, a.Email, a.PasswordHash, string(a.Role), a.FirstName, a.LastName, a.IsStaff,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", mapErr(err))
	}
	return nil
}

func (r *accountRepoPG) get(ctx context.Context, where string, arg any) (*Account, error) {
	a, err := scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE `+where, arg))
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *accountRepoPG) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return r.get(ctx, `username = $1`, username)
}

func (r *accountRepoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.get(ctx, `lower(email) = lower($1)`, email)
}

func (r *accountRepoPG) Update(ctx context.Context, a *Account) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE account SET email = $2, password_hash = $3, first_name = $4, last_name = $5,
			is_staff = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.IsStaff,
	).Scan(&a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update account: %w", mapErr(err))
	}
	return nil
}

func (r *accountRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM account WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepoPG) List(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM account`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+accountCols+` FROM account ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var items []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan account: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		a    Account
		role string
	)
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &role,
		&a.FirstName, &a.LastName, &a.IsStaff, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Role = Role(role)
	return &a, nil
}

// -- Patient Profile Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientProfileRepo(pool *pgxpool.Pool) PatientProfileRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier { return connFor(ctx, r.pool) }

// latestEvent projects the most recent screening event of each patient.
const latestEvent = `LEFT JOIN LATERAL (
		SELECT e.assessment_risk_level, e.screening_date
		FROM screening_event e
		WHERE e.patient_id = p.account_id
		ORDER BY e.created_at DESC, e.seq DESC
		LIMIT 1
	) le ON TRUE`

const patientSelect = `SELECT p.account_id, p.age, p.sexual_partners, p.first_sexual_activity_age,
		p.created_at, p.updated_at,
		COALESCE(le.assessment_risk_level, 'Unknown'), le.screening_date,
		a.id, a.username, a.email, a.password_hash, a.role, a.first_name, a.last_name, a.is_staff,
		a.created_at, a.updated_at
	FROM patient_profile p
	JOIN account a ON a.id = p.account_id
	` + latestEvent

func (r *patientRepoPG) Create(ctx context.Context, p *PatientProfile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_profile (account_id, age, sexual_partners, first_sexual_activity_age)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		p.AccountID, p.Age, p.SexualPartners, p.FirstSexualActivityAge,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient profile: %w", mapErr(err))
	}
	if p.RiskLevel == "" {
		p.RiskLevel = screening.Unknown
	}
	return nil
}

func (r *patientRepoPG) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*PatientProfile, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, patientSelect+` WHERE p.account_id = $1`, accountID))
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (r *patientRepoPG) UpdateMeasurements(ctx context.Context, p *PatientProfile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient_profile SET age = $2, sexual_partners = $3, first_sexual_activity_age = $4,
			updated_at = NOW()
		WHERE account_id = $1
		RETURNING updated_at`,
		p.AccountID, p.Age, p.SexualPartners, p.FirstSexualActivityAge,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update patient profile: %w", mapErr(err))
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*PatientProfile, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_profile`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patient profiles: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		patientSelect+` ORDER BY a.username LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patient profiles: %w", err)
	}
	defer rows.Close()

	var items []*PatientProfile
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient profile: %w", err)
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) RiskCounts(ctx context.Context) (map[screening.RiskTier]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT COALESCE(le.assessment_risk_level, 'Unknown') AS tier, COUNT(*)
		FROM patient_profile p
		`+latestEvent+`
		GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("count patients by risk: %w", err)
	}
	defer rows.Close()

	counts := make(map[screening.RiskTier]int)
	for rows.Next() {
		var (
			tier string
			n    int
		)
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, fmt.Errorf("scan risk count: %w", err)
		}
		counts[screening.RiskTier(tier)] = n
	}
	return counts, rows.Err()
}

func scanPatient(row rowScanner) (*PatientProfile, error) {
	var (
		p    PatientProfile
		a    Account
		tier string
		role string
	)
	err := row.Scan(
		&p.AccountID, &p.Age, &p.SexualPartners, &p.FirstSexualActivityAge,
		&p.CreatedAt, &p.UpdatedAt,
		&tier, &p.LastScreeningDate,
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &role, &a.FirstName, &a.LastName, &a.IsStaff,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Role = Role(role)
	p.Account = &a
	p.RiskLevel = screening.RiskTier(tier)
	return &p, nil
}

// -- Doctor Profile Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorProfileRepo(pool *pgxpool.Pool) DoctorProfileRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier { return connFor(ctx, r.pool) }

func (r *doctorRepoPG) Create(ctx context.Context, d *DoctorProfile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_profile (account_id, specialization)
		VALUES ($1, $2)
		RETURNING created_at, updated_at`,
		d.AccountID, d.Specialization,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert doctor profile: %w", mapErr(err))
	}
	return nil
}

func (r *doctorRepoPG) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*DoctorProfile, error) {
	var (
		d    DoctorProfile
		a    Account
		role string
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT d.account_id, d.specialization, d.created_at, d.updated_at,
			a.id, a.username, a.email, a.password_hash, a.role, a.first_name, a.last_name, a.is_staff,
			a.created_at, a.updated_at
		FROM doctor_profile d
		JOIN account a ON a.id = d.account_id
		WHERE d.account_id = $1`, accountID,
	).Scan(
		&d.AccountID, &d.Specialization, &d.CreatedAt, &d.UpdatedAt,
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &role, &a.FirstName, &a.LastName, &a.IsStaff,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	a.Role = Role(role)
	d.Account = &a
	return &d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *DoctorProfile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor_profile SET specialization = $2, updated_at = NOW()
		WHERE account_id = $1
		RETURNING updated_at`,
		d.AccountID, d.Specialization,
	).Scan(&d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update doctor profile: %w", mapErr(err))
	}
	return nil
}
