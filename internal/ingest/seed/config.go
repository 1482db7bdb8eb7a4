package seed

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how a failing record affects the batch.
type Mode string

const (
	// ModeAtomic rolls the whole batch back on the first failing record.
	ModeAtomic Mode = "atomic"
	// ModeBestEffort rolls back only the failing record and commits the rest.
	ModeBestEffort Mode = "best-effort"
)

// ParseMode accepts "atomic" and "best-effort". Empty means atomic.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeAtomic:
		return ModeAtomic, nil
	case ModeBestEffort:
		return m, nil
	default:
		return "", fmt.Errorf("unknown seed mode %q (want %s or %s)", s, ModeAtomic, ModeBestEffort)
	}
}

// Config carries every value the loader would otherwise hard-code.
type Config struct {
	DefaultDoctorHandle   string
	DefaultDoctorEmail    string
	DoctorCredential      string
	PlaceholderCredential string
	EmailDomain           string
	Mode                  Mode
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DefaultDoctorHandle) == "" {
		errs = append(errs, errors.New("default doctor handle is required"))
	}
	if strings.TrimSpace(c.DefaultDoctorEmail) == "" {
		errs = append(errs, errors.New("default doctor email is required"))
	}
	if c.DoctorCredential == "" || c.PlaceholderCredential == "" {
		errs = append(errs, errors.New("seed credentials are required"))
	}
	if strings.Trim(c.EmailDomain, " @") == "" {
		errs = append(errs, errors.New("email domain is required"))
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
