package seed

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/femtrack/api/internal/domain/account"
	"github.com/femtrack/api/internal/domain/screening"
)

// memState is everything a transaction can roll back.
type memState struct {
	accounts map[uuid.UUID]account.Account
	patients map[uuid.UUID]account.PatientProfile
	doctors  map[uuid.UUID]account.DoctorProfile
	events   []screening.Event
}

func (s memState) clone() memState {
	out := memState{
		accounts: make(map[uuid.UUID]account.Account, len(s.accounts)),
		patients: make(map[uuid.UUID]account.PatientProfile, len(s.patients)),
		doctors:  make(map[uuid.UUID]account.DoctorProfile, len(s.doctors)),
		events:   append([]screening.Event(nil), s.events...),
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.patients {
		out.patients[k] = v
	}
	for k, v := range s.doctors {
		out.doctors[k] = v
	}
	return out
}

// memDB is an in-memory store. InTx snapshots state and restores it when fn
// fails, so nested calls behave like savepoints.
type memDB struct {
	state  memState
	clock  time.Time
	txs    int
	locked int
	// failEvent makes Events.Create fail for the patient with this username.
	failEvent string
}

func newMemDB() *memDB {
	return &memDB{
		state: memState{
			accounts: map[uuid.UUID]account.Account{},
			patients: map[uuid.UUID]account.PatientProfile{},
			doctors:  map[uuid.UUID]account.DoctorProfile{},
		},
		clock: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memDB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txs++
	snapshot := m.state.clone()
	if err := fn(ctx); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *memDB) store() Store {
	return Store{
		Tx:       m,
		Accounts: memAccounts{m},
		Patients: memPatients{m},
		Doctors:  memDoctors{m},
		Events:   memEvents{m},
		Lock: func(context.Context) error {
			m.locked++
			return nil
		},
	}
}

func (m *memDB) accountByUsername(username string) (account.Account, bool) {
	for _, a := range m.state.accounts {
		if a.Username == username {
			return a, true
		}
	}
	return account.Account{}, false
}

func (m *memDB) eventsFor(patientID uuid.UUID) []screening.Event {
	var out []screening.Event
	for _, e := range m.state.events {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out
}

type memAccounts struct{ m *memDB }

func (r memAccounts) Create(_ context.Context, a *account.Account) error {
	for _, existing := range r.m.state.accounts {
		if existing.Username == a.Username || existing.Email == a.Email {
			return account.ErrConflict
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.m.state.accounts[a.ID] = *a
	return nil
}

func (r memAccounts) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	a, ok := r.m.state.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &a, nil
}

func (r memAccounts) GetByUsername(_ context.Context, username string) (*account.Account, error) {
	a, ok := r.m.accountByUsername(username)
	if !ok {
		return nil, account.ErrNotFound
	}
	return &a, nil
}

func (r memAccounts) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	for _, a := range r.m.state.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, account.ErrNotFound
}

func (r memAccounts) Update(_ context.Context, a *account.Account) error {
	existing, ok := r.m.state.accounts[a.ID]
	if !ok {
		return account.ErrNotFound
	}
	updated := *a
	updated.Role = existing.Role
	r.m.state.accounts[a.ID] = updated
	return nil
}

func (r memAccounts) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.m.state.accounts, id)
	delete(r.m.state.patients, id)
	delete(r.m.state.doctors, id)
	return nil
}

func (r memAccounts) List(_ context.Context, limit, offset int) ([]*account.Account, int, error) {
	var all []*account.Account
	for _, a := range r.m.state.accounts {
		all = append(all, &a)
	}
	return all, len(all), nil
}

type memPatients struct{ m *memDB }

func (r memPatients) Create(_ context.Context, p *account.PatientProfile) error {
	a, ok := r.m.state.accounts[p.AccountID]
	if !ok || a.Role != account.RolePatient {
		return account.ErrInvalid
	}
	if _, ok := r.m.state.patients[p.AccountID]; ok {
		return account.ErrConflict
	}
	r.m.state.patients[p.AccountID] = *p
	return nil
}

func (r memPatients) GetByAccountID(_ context.Context, id uuid.UUID) (*account.PatientProfile, error) {
	p, ok := r.m.state.patients[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	p.RiskLevel = screening.Unknown
	if events := r.m.eventsFor(id); len(events) > 0 {
		p.RiskLevel = events[len(events)-1].AssessmentRiskLevel
	}
	return &p, nil
}

func (r memPatients) UpdateMeasurements(_ context.Context, p *account.PatientProfile) error {
	existing, ok := r.m.state.patients[p.AccountID]
	if !ok {
		return account.ErrNotFound
	}
	existing.Age = p.Age
	existing.SexualPartners = p.SexualPartners
	existing.FirstSexualActivityAge = p.FirstSexualActivityAge
	r.m.state.patients[p.AccountID] = existing
	return nil
}

func (r memPatients) List(ctx context.Context, limit, offset int) ([]*account.PatientProfile, int, error) {
	ids := make([]uuid.UUID, 0, len(r.m.state.patients))
	for id := range r.m.state.patients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	var out []*account.PatientProfile
	for _, id := range ids {
		p, _ := r.GetByAccountID(ctx, id)
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r memPatients) RiskCounts(ctx context.Context) (map[screening.RiskTier]int, error) {
	all, _, _ := r.List(ctx, 0, 0)
	out := map[screening.RiskTier]int{}
	for _, p := range all {
		out[p.RiskLevel]++
	}
	return out, nil
}

type memDoctors struct{ m *memDB }

func (r memDoctors) Create(_ context.Context, d *account.DoctorProfile) error {
	a, ok := r.m.state.accounts[d.AccountID]
	if !ok || a.Role != account.RoleDoctor {
		return account.ErrInvalid
	}
	r.m.state.doctors[d.AccountID] = *d
	return nil
}

func (r memDoctors) GetByAccountID(_ context.Context, id uuid.UUID) (*account.DoctorProfile, error) {
	d, ok := r.m.state.doctors[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &d, nil
}

func (r memDoctors) Update(_ context.Context, d *account.DoctorProfile) error {
	r.m.state.doctors[d.AccountID] = *d
	return nil
}

type memEvents struct{ m *memDB }

var errInjected = errors.New("injected write failure")

func (r memEvents) Create(_ context.Context, e *screening.Event) error {
	if _, ok := r.m.state.patients[e.PatientID]; !ok {
		return screening.ErrPatientNotFound
	}
	if a := r.m.state.accounts[e.PatientID]; r.m.failEvent != "" && a.Username == r.m.failEvent {
		return errInjected
	}
	e.ID = uuid.New()
	r.m.clock = r.m.clock.Add(time.Second)
	e.CreatedAt = r.m.clock
	r.m.state.events = append(r.m.state.events, *e)
	return nil
}

func (r memEvents) GetByID(_ context.Context, id uuid.UUID) (*screening.Event, error) {
	for _, e := range r.m.state.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, screening.ErrNotFound
}

func (r memEvents) List(_ context.Context, limit, offset int) ([]*screening.Event, int, error) {
	var out []*screening.Event
	for i := range r.m.state.events {
		out = append(out, &r.m.state.events[i])
	}
	return out, len(out), nil
}

func (r memEvents) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*screening.Event, int, error) {
	events := r.m.eventsFor(patientID)
	out := make([]*screening.Event, len(events))
	for i := range events {
		out[i] = &events[i]
	}
	return out, len(out), nil
}
