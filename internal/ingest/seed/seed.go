// Package seed loads normalized screening records into the store. Each record
// resolves its patient account and profile by handle, replaces the profile's
// measurements and appends one screening event attributed to the default
// doctor.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/femtrack/api/internal/domain/account"
	"github.com/femtrack/api/internal/domain/screening"
	"github.com/femtrack/api/internal/ingest/normalize"
	"github.com/femtrack/api/internal/platform/auth"
	"github.com/femtrack/api/internal/platform/db"
)

// LockKey is the advisory lock held for the duration of a run.
const LockKey int64 = 0x66656d7365656421

// ErrDefaultDoctorRole means the configured default doctor handle belongs to
// a patient account.
var ErrDefaultDoctorRole = errors.New("default doctor handle belongs to a non-doctor account")

// errDryRun forces the transaction to roll back after a successful dry run.
var errDryRun = errors.New("dry run")

// Store groups the repositories a run writes through. Lock, when set, runs
// first inside the batch transaction.
type Store struct {
	Tx       db.TxRunner
	Accounts account.AccountRepository
	Patients account.PatientProfileRepository
	Doctors  account.DoctorProfileRepository
	Events   screening.EventRepository
	Lock     func(ctx context.Context) error
}

// NewPGStore wires a Store to Postgres.
func NewPGStore(pool *pgxpool.Pool) Store {
	return Store{
		Tx:       db.NewTxRunner(pool),
		Accounts: account.NewAccountRepo(pool),
		Patients: account.NewPatientProfileRepo(pool),
		Doctors:  account.NewDoctorProfileRepo(pool),
		Events:   screening.NewEventRepo(pool),
		Lock: func(ctx context.Context) error {
			return db.AdvisoryXactLock(ctx, LockKey)
		},
	}
}

type Seeder struct {
	store  Store
	cfg    Config
	hasher auth.Hasher
	logger zerolog.Logger
}

func New(store Store, cfg Config, hasher auth.Hasher, logger zerolog.Logger) (*Seeder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAtomic
	}
	return &Seeder{store: store, cfg: cfg, hasher: hasher, logger: logger}, nil
}

type RunOptions struct {
	// DryRun performs every write and then rolls back.
	DryRun bool
}

// SeedFile reads path and runs it. In atomic mode a row that fails to parse
// aborts the run before any write.
func (s *Seeder) SeedFile(ctx context.Context, path string, opts RunOptions) (*Report, error) {
	entries, parseErrs, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	for _, perr := range parseErrs {
		s.logger.Error().Int("line", perr.Line).Str("patient_id", perr.PatientID).Err(perr.Err).Msg("skipping unreadable row")
	}
	if len(parseErrs) > 0 && s.cfg.Mode == ModeAtomic {
		rep := &Report{Mode: s.cfg.Mode, DryRun: opts.DryRun, Failures: parseErrs}
		return rep, fmt.Errorf("%w: %w", ErrBatchAborted, parseErrs[0])
	}

	rep, err := s.Run(ctx, entries, opts)
	if rep != nil {
		rep.Failures = append(parseErrs, rep.Failures...)
	}
	return rep, err
}

// Seed runs records numbered as consecutive file rows after a header.
func (s *Seeder) Seed(ctx context.Context, records []normalize.Record) (*Report, error) {
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{Line: i + 2, Record: r}
	}
	return s.Run(ctx, entries, RunOptions{})
}

// Run loads entries in order inside one transaction.
func (s *Seeder) Run(ctx context.Context, entries []Entry, opts RunOptions) (*Report, error) {
	rep := &Report{Mode: s.cfg.Mode, DryRun: opts.DryRun}

	// One hash for every account the run creates.
	placeholder, err := s.hasher.Hash(s.cfg.PlaceholderCredential)
	if err != nil {
		return nil, fmt.Errorf("hash placeholder credential: %w", err)
	}

	var aborted *RecordLoadError
	err = s.store.Tx.InTx(ctx, func(ctx context.Context) error {
		if s.store.Lock != nil {
			if err := s.store.Lock(ctx); err != nil {
				return fmt.Errorf("acquire seed lock: %w", err)
			}
		}

		doctorID, created, err := s.ensureDefaultDoctor(ctx)
		if err != nil {
			return err
		}
		rep.DoctorCreated = created

		for _, entry := range entries {
			var res recordResult
			apply := func(ctx context.Context) error {
				var err error
				res, err = s.seedRecord(ctx, entry.Record, doctorID, placeholder)
				return err
			}

			if s.cfg.Mode == ModeBestEffort {
				err = s.store.Tx.InTx(ctx, apply)
			} else {
				err = apply(ctx)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				lerr := &RecordLoadError{PatientID: entry.Record.PatientID, Line: entry.Line, Err: err}
				rep.Failures = append(rep.Failures, lerr)
				s.logger.Error().Int("line", entry.Line).Str("patient_id", entry.Record.PatientID).Err(err).Msg("failed to seed record")
				if s.cfg.Mode == ModeAtomic {
					aborted = lerr
					return lerr
				}
				continue
			}
			rep.add(res)
		}

		if opts.DryRun {
			return errDryRun
		}
		return nil
	})

	switch {
	case err == nil:
		rep.Committed = true
		return rep, nil
	case errors.Is(err, errDryRun):
		return rep, nil
	case aborted != nil:
		rep.resetCounts()
		return rep, fmt.Errorf("%w: %w", ErrBatchAborted, aborted)
	default:
		return nil, fmt.Errorf("seed: %w", err)
	}
}

// ensureDefaultDoctor returns the default doctor's account id, creating the
// account and profile when absent.
func (s *Seeder) ensureDefaultDoctor(ctx context.Context) (uuid.UUID, bool, error) {
	handle := account.FoldHandle(s.cfg.DefaultDoctorHandle)
	a, err := s.store.Accounts.GetByUsername(ctx, handle)
	switch {
	case errors.Is(err, account.ErrNotFound):
		hash, err := s.hasher.Hash(s.cfg.DoctorCredential)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("hash doctor credential: %w", err)
		}
		a = &account.Account{
			Username:     handle,
			Email:        account.NormalizeEmail(s.cfg.DefaultDoctorEmail),
			PasswordHash: hash,
			Role:         account.RoleDoctor,
			FirstName:    "Default",
			LastName:     "Doctor",
			IsStaff:      true,
		}
		if err := s.store.Accounts.Create(ctx, a); err != nil {
			return uuid.Nil, false, fmt.Errorf("create default doctor: %w", err)
		}
		if err := s.store.Doctors.Create(ctx, &account.DoctorProfile{AccountID: a.ID}); err != nil {
			return uuid.Nil, false, fmt.Errorf("create default doctor profile: %w", err)
		}
		s.logger.Info().Str("username", handle).Str("email", a.Email).Msg("created default doctor")
		return a.ID, true, nil
	case err != nil:
		return uuid.Nil, false, fmt.Errorf("look up default doctor: %w", err)
	}

	if a.Role != account.RoleDoctor {
		return uuid.Nil, false, fmt.Errorf("%w: %s", ErrDefaultDoctorRole, handle)
	}
	if _, err := s.store.Doctors.GetByAccountID(ctx, a.ID); errors.Is(err, account.ErrNotFound) {
		if err := s.store.Doctors.Create(ctx, &account.DoctorProfile{AccountID: a.ID}); err != nil {
			return uuid.Nil, false, fmt.Errorf("create default doctor profile: %w", err)
		}
		s.logger.Warn().Str("username", handle).Msg("default doctor had no profile; created one")
	} else if err != nil {
		return uuid.Nil, false, fmt.Errorf("look up default doctor profile: %w", err)
	} else {
		s.logger.Info().Str("username", handle).Msg("default doctor already exists")
	}
	return a.ID, false, nil
}

func (s *Seeder) seedRecord(ctx context.Context, r normalize.Record, doctorID uuid.UUID, placeholder string) (recordResult, error) {
	var res recordResult
	handle := account.FoldHandle(r.PatientID)
	log := s.logger.With().Str("patient_id", r.PatientID).Logger()

	a, err := s.store.Accounts.GetByUsername(ctx, handle)
	switch {
	case errors.Is(err, account.ErrNotFound):
		a = &account.Account{
			Username:     handle,
			Email:        handle + "@" + strings.Trim(s.cfg.EmailDomain, " @"),
			PasswordHash: placeholder,
			Role:         account.RolePatient,
		}
		if err := s.store.Accounts.Create(ctx, a); err != nil {
			return res, fmt.Errorf("create account: %w", err)
		}
		res.accountCreated = true
		log.Debug().Str("username", handle).Msg("created user")
	case err != nil:
		return res, fmt.Errorf("look up account: %w", err)
	case a.Role != account.RolePatient:
		return res, fmt.Errorf("account %q has role %s", handle, a.Role)
	}

	p, err := s.store.Patients.GetByAccountID(ctx, a.ID)
	switch {
	case errors.Is(err, account.ErrNotFound):
		p = &account.PatientProfile{AccountID: a.ID}
		setMeasurements(p, r)
		if err := s.store.Patients.Create(ctx, p); err != nil {
			return res, fmt.Errorf("create patient profile: %w", err)
		}
		res.profileCreated = true
		log.Debug().Msg("created patient profile")
	case err != nil:
		return res, fmt.Errorf("look up patient profile: %w", err)
	default:
		setMeasurements(p, r)
		if err := s.store.Patients.UpdateMeasurements(ctx, p); err != nil {
			return res, fmt.Errorf("update patient profile: %w", err)
		}
		log.Debug().Msg("updated patient profile")
	}

	// The newest event's tier becomes the patient's current risk.
	e := &screening.Event{
		PatientID:           a.ID,
		DoctorID:            &doctorID,
		ScreeningType:       r.ScreeningTypeLast,
		HPVTestResult:       r.HPVTestResult,
		PapSmearResult:      r.PapSmearResult,
		SmokingStatus:       r.SmokingStatus,
		STDsHistory:         r.STDsHistory,
		Region:              r.Region,
		InsuranceCovered:    r.InsuranceCovered,
		RecommendedAction:   r.RecommendedAction,
		AssessmentRiskLevel: r.RiskLevel,
	}
	if err := s.store.Events.Create(ctx, e); err != nil {
		return res, fmt.Errorf("create screening event: %w", err)
	}
	log.Debug().Str("risk_level", string(r.RiskLevel)).Msg("created screening record")
	return res, nil
}

func setMeasurements(p *account.PatientProfile, r normalize.Record) {
	age, partners, first := r.Age, r.SexualPartners, r.FirstSexualActivityAge
	p.Age = &age
	p.SexualPartners = &partners
	p.FirstSexualActivityAge = &first
}
