package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/femtrack/api/internal/domain/account"
	"github.com/femtrack/api/internal/domain/screening"
	"github.com/femtrack/api/internal/ingest/normalize"
)

type plainHasher struct{ calls int }

func (h *plainHasher) Hash(password string) (string, error) {
	h.calls++
	return "plain:" + password, nil
}

func (h *plainHasher) Compare(hash, password string) error {
	if hash != "plain:"+password {
		return errors.New("mismatch")
	}
	return nil
}

func testConfig(mode Mode) Config {
	return Config{
		DefaultDoctorHandle:   "Dr_Default",
		DefaultDoctorEmail:    "doctor@clinic.test",
		DoctorCredential:      "doctor-secret",
		PlaceholderCredential: "patient-secret",
		EmailDomain:           "patients.test",
		Mode:                  mode,
	}
}

func newTestSeeder(t *testing.T, mode Mode) (*Seeder, *memDB, *plainHasher) {
	t.Helper()
	m := newMemDB()
	h := &plainHasher{}
	s, err := New(m.store(), testConfig(mode), h, zerolog.Nop())
	require.NoError(t, err)
	return s, m, h
}

func record(id string, age int, tier screening.RiskTier) normalize.Record {
	return normalize.Record{
		PatientID:              id,
		Age:                    age,
		SexualPartners:         2,
		FirstSexualActivityAge: 18,
		RiskLevel:              tier,
		HPVTestResult:          "NEGATIVE",
		PapSmearResult:         "N",
		SmokingStatus:          screening.No,
		STDsHistory:            screening.No,
		Region:                 "Nairobi",
		InsuranceCovered:       screening.Yes,
		RecommendedAction:      "Routine",
		ScreeningTypeLast:      "Pap Smear",
	}
}

func threeRecords() []normalize.Record {
	return []normalize.Record{
		record("P0001", 30, screening.LowRisk),
		record("P0002", 55, screening.ModerateRisk),
		record("P0003", 41, screening.HighRisk),
	}
}

func TestSeed_CreatesEverything(t *testing.T) {
	s, m, h := newTestSeeder(t, ModeAtomic)

	rep, err := s.Seed(context.Background(), threeRecords())
	require.NoError(t, err)
	assert.True(t, rep.Committed)
	assert.True(t, rep.DoctorCreated)
	assert.Equal(t, 3, rep.AccountsCreated)
	assert.Equal(t, 3, rep.ProfilesCreated)
	assert.Equal(t, 0, rep.ProfilesUpdated)
	assert.Equal(t, 3, rep.EventsCreated)
	assert.Empty(t, rep.Failures)
	assert.Equal(t, 1, m.locked)
	assert.Equal(t, 2, h.calls, "placeholder and doctor credential are each hashed once")

	doctor, ok := m.accountByUsername("dr_default")
	require.True(t, ok, "doctor handle is case-folded")
	assert.Equal(t, account.RoleDoctor, doctor.Role)
	assert.True(t, doctor.IsStaff)
	assert.Equal(t, "plain:doctor-secret", doctor.PasswordHash)
	assert.Contains(t, m.state.doctors, doctor.ID)

	patient, ok := m.accountByUsername("p0002")
	require.True(t, ok)
	assert.Equal(t, "p0002@patients.test", patient.Email)
	assert.Equal(t, account.RolePatient, patient.Role)
	assert.Equal(t, "plain:patient-secret", patient.PasswordHash)
	assert.Equal(t, 55, *m.state.patients[patient.ID].Age)

	events := m.eventsFor(patient.ID)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].DoctorID)
	assert.Equal(t, doctor.ID, *events[0].DoctorID)
	assert.Equal(t, screening.ModerateRisk, events[0].AssessmentRiskLevel)
	assert.Equal(t, "Pap Smear", events[0].ScreeningType)
	assert.Equal(t, screening.Yes, events[0].InsuranceCovered)
}

func TestSeed_Idempotent(t *testing.T) {
	s, m, _ := newTestSeeder(t, ModeAtomic)
	ctx := context.Background()

	_, err := s.Seed(ctx, threeRecords())
	require.NoError(t, err)
	rep, err := s.Seed(ctx, threeRecords())
	require.NoError(t, err)

	assert.False(t, rep.DoctorCreated)
	assert.Equal(t, 0, rep.AccountsCreated)
	assert.Equal(t, 0, rep.ProfilesCreated)
	assert.Equal(t, 3, rep.ProfilesUpdated)
	assert.Equal(t, 3, rep.EventsCreated)

	assert.Len(t, m.state.accounts, 4, "three patients and one doctor")
	assert.Len(t, m.state.patients, 3)
	assert.Len(t, m.state.doctors, 1)
	assert.Len(t, m.state.events, 6, "events accumulate")
}

func TestSeed_SecondRunReplacesProfile(t *testing.T) {
	s, m, _ := newTestSeeder(t, ModeAtomic)
	ctx := context.Background()

	_, err := s.Seed(ctx, []normalize.Record{record("P0001", 30, screening.LowRisk)})
	require.NoError(t, err)

	changed := record("P0001", 52, screening.HighRisk)
	changed.SexualPartners = 4
	changed.FirstSexualActivityAge = 16
	_, err = s.Seed(ctx, []normalize.Record{changed})
	require.NoError(t, err)

	a, ok := m.accountByUsername("p0001")
	require.True(t, ok)
	p, err := memPatients{m}.GetByAccountID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 52, *p.Age)
	assert.Equal(t, 4, *p.SexualPartners)
	assert.Equal(t, 16, *p.FirstSexualActivityAge)
	assert.Equal(t, screening.HighRisk, p.RiskLevel, "the newest event sets the current tier")
	assert.Len(t, m.eventsFor(a.ID), 2)
}

func TestSeed_AtomicRollsBack(t *testing.T) {
	s, m, _ := newTestSeeder(t, ModeAtomic)
	m.failEvent = "p0002"

	rep, err := s.Seed(context.Background(), threeRecords())
	require.ErrorIs(t, err, ErrBatchAborted)
	require.ErrorIs(t, err, errInjected)

	assert.False(t, rep.Committed)
	assert.Equal(t, 0, rep.AccountsCreated)
	assert.Equal(t, 0, rep.EventsCreated)
	assert.False(t, rep.DoctorCreated)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "P0002", rep.Failures[0].PatientID)
	assert.Equal(t, 3, rep.Failures[0].Line)

	assert.Empty(t, m.state.accounts, "nothing is committed, not even the doctor")
	assert.Empty(t, m.state.events)
}

func TestSeed_BestEffortCommitsTheRest(t *testing.T) {
	s, m, _ := newTestSeeder(t, ModeBestEffort)
	m.failEvent = "p0002"

	rep, err := s.Seed(context.Background(), threeRecords())
	require.NoError(t, err)
	assert.True(t, rep.Committed)
	assert.Equal(t, 2, rep.AccountsCreated)
	assert.Equal(t, 2, rep.ProfilesCreated)
	assert.Equal(t, 2, rep.EventsCreated)
	require.Len(t, rep.Failures, 1)
	assert.ErrorIs(t, rep.Failures[0], errInjected)

	_, ok := m.accountByUsername("p0002")
	assert.False(t, ok, "the failing record's account is rolled back with its savepoint")
	_, ok = m.accountByUsername("p0003")
	assert.True(t, ok)
	assert.Len(t, m.state.events, 2)
}

func TestSeed_DoctorHandleCollision(t *testing.T) {
	s, m, _ := newTestSeeder(t, ModeBestEffort)
	ctx := context.Background()
	require.NoError(t, memAccounts{m}.Create(ctx, &account.Account{
		Username: "p0001", Email: "p0001@elsewhere.test", Role: account.RoleDoctor,
	}))

	rep, err := s.Seed(ctx, threeRecords())
	require.NoError(t, err)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "P0001", rep.Failures[0].PatientID)
	assert.Contains(t, rep.Failures[0].Error(), "role doctor")
	assert.Equal(t, 2, rep.EventsCreated)
}

func TestSeed_DefaultDoctorMustBeDoctor(t *testing.T) {
	s, m, _ := newTestSeeder(t, ModeAtomic)
	ctx := context.Background()
	require.NoError(t, memAccounts{m}.Create(ctx, &account.Account{
		Username: "dr_default", Email: "x@clinic.test", Role: account.RolePatient,
	}))

	rep, err := s.Seed(ctx, threeRecords())
	require.ErrorIs(t, err, ErrDefaultDoctorRole)
	assert.Nil(t, rep)
	assert.Len(t, m.state.accounts, 1)
}

func TestSeed_DefaultDoctorWithoutProfile(t *testing.T) {
	s, m, _ := newTestSeeder(t, ModeAtomic)
	ctx := context.Background()
	require.NoError(t, memAccounts{m}.Create(ctx, &account.Account{
		Username: "dr_default", Email: "doctor@clinic.test", Role: account.RoleDoctor,
	}))

	rep, err := s.Seed(ctx, threeRecords()[:1])
	require.NoError(t, err)
	assert.False(t, rep.DoctorCreated)
	assert.Len(t, m.state.doctors, 1)
}

func TestRun_DryRun(t *testing.T) {
	s, m, _ := newTestSeeder(t, ModeAtomic)
	entries := []Entry{{Line: 2, Record: record("P0001", 30, screening.LowRisk)}}

	rep, err := s.Run(context.Background(), entries, RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.False(t, rep.Committed)
	assert.Equal(t, 1, rep.EventsCreated, "counts describe the work that would be done")
	assert.Empty(t, m.state.accounts)
	assert.Empty(t, m.state.events)
}

func writeCSV(t *testing.T, records []normalize.Record, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clean.csv")
	require.NoError(t, normalize.WriteFile(path, records))
	if extra != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		require.NoError(t, err)
		_, err = f.WriteString(extra)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	return path
}

func TestSeedFile(t *testing.T) {
	s, m, _ := newTestSeeder(t, ModeAtomic)
	path := writeCSV(t, threeRecords(), "")

	rep, err := s.SeedFile(context.Background(), path, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.EventsCreated)
	assert.Len(t, m.state.patients, 3)
}

func TestSeedFile_NotFound(t *testing.T) {
	s, _, _ := newTestSeeder(t, ModeAtomic)

	_, err := s.SeedFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), RunOptions{})
	require.ErrorIs(t, err, normalize.ErrSourceNotFound)
}

func TestSeedFile_ParseErrors(t *testing.T) {
	bad := "P0004,forty,2,18,Low Risk,NEGATIVE,N,N,N,R,Y,A,T\n"

	t.Run("atomic aborts before writing", func(t *testing.T) {
		s, m, _ := newTestSeeder(t, ModeAtomic)
		rep, err := s.SeedFile(context.Background(), writeCSV(t, threeRecords(), bad), RunOptions{})
		require.ErrorIs(t, err, ErrBatchAborted)
		require.Len(t, rep.Failures, 1)
		assert.Equal(t, 5, rep.Failures[0].Line)
		assert.Equal(t, "P0004", rep.Failures[0].PatientID)
		assert.Zero(t, m.txs)
	})

	t.Run("best effort seeds the readable rows", func(t *testing.T) {
		s, m, _ := newTestSeeder(t, ModeBestEffort)
		rep, err := s.SeedFile(context.Background(), writeCSV(t, threeRecords(), bad), RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, rep.EventsCreated)
		require.Len(t, rep.Failures, 1)
		assert.Equal(t, "P0004", rep.Failures[0].PatientID)
		assert.Len(t, m.state.patients, 3)
	})
}

func TestReadFile_LinesSurviveBlankRows(t *testing.T) {
	bad := "P0004,forty,2,18,Low Risk,NEGATIVE,N,N,N,R,Y,A,T\n"
	path := writeCSV(t, threeRecords(), "\n  ,  \n"+bad)

	entries, failed, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{entries[0].Line, entries[1].Line, entries[2].Line})
	require.Len(t, failed, 1)
	assert.Equal(t, 7, failed[0].Line)
	assert.Equal(t, "P0004", failed[0].PatientID)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAtomic, "atomic": ModeAtomic, " Best-Effort ": ModeBestEffort} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("partial")
	assert.Error(t, err)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(ModeAtomic)
	cfg.DefaultDoctorHandle = " "
	cfg.EmailDomain = "@"
	_, err := New(newMemDB().store(), cfg, &plainHasher{}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default doctor handle")
	assert.Contains(t, err.Error(), "email domain")
}
