package seed

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrBatchAborted is returned when an atomic run rolls back.
var ErrBatchAborted = errors.New("seed batch aborted")

// RecordLoadError is one record that could not be parsed or stored.
type RecordLoadError struct {
	PatientID string
	// Line is the 1-based row number in the source file, counting the header.
	Line int
	Err  error
}

func (e *RecordLoadError) Error() string {
	if e.PatientID == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d (%s): %v", e.Line, e.PatientID, e.Err)
}

func (e *RecordLoadError) Unwrap() error { return e.Err }

// Report summarizes one run. Counts only include committed work, so they are
// zero when nothing was committed.
type Report struct {
	Mode            Mode
	DryRun          bool
	Committed       bool
	DoctorCreated   bool
	AccountsCreated int
	ProfilesCreated int
	ProfilesUpdated int
	EventsCreated   int
	Failures        []*RecordLoadError
}

type recordResult struct {
	accountCreated bool
	profileCreated bool
}

func (r *Report) add(res recordResult) {
	if res.accountCreated {
		r.AccountsCreated++
	}
	if res.profileCreated {
		r.ProfilesCreated++
	} else {
		r.ProfilesUpdated++
	}
	r.EventsCreated++
}

func (r *Report) resetCounts() {
	r.DoctorCreated = false
	r.AccountsCreated = 0
	r.ProfilesCreated = 0
	r.ProfilesUpdated = 0
	r.EventsCreated = 0
}

func (r *Report) MarshalZerologObject(e *zerolog.Event) {
	e.Str("mode", string(r.Mode)).
		Bool("dry_run", r.DryRun).
		Bool("committed", r.Committed).
		Bool("doctor_created", r.DoctorCreated).
		Int("accounts_created", r.AccountsCreated).
		Int("profiles_created", r.ProfilesCreated).
		Int("profiles_updated", r.ProfilesUpdated).
		Int("events_created", r.EventsCreated).
		Int("failures", len(r.Failures))
}
