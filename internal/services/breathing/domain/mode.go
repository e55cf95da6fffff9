// Package domain holds the pure rules of the breathing trainer: modes,
// comfort ratings, timing parameters, the adaptation rule table, and the
// progress scoring math. Nothing here touches storage or transport.
package domain

import (
	"strings"

	apperrors "github.com/stillpond/breathe/internal/platform/errors"
)

// Mode is one of the fixed breathing protocols.
type Mode string

const (
	// ModeDaily is the default paced protocol for daily practice.
	ModeDaily Mode = "daily"
	// ModeReset is a short protocol with a hold between breaths.
	ModeReset Mode = "reset"
	// ModeSilent is the daily protocol without audio guidance.
	ModeSilent Mode = "silent"
)

// Modes lists all known modes in a stable order.
func Modes() []Mode {
	return []Mode{ModeDaily, ModeReset, ModeSilent}
}

// ParseMode validates a raw mode value.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.TrimSpace(raw)) {
	case ModeDaily:
		return ModeDaily, nil
	case ModeReset:
		return ModeReset, nil
	case ModeSilent:
		return ModeSilent, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeModeUnknown, "mode not found", map[string]string{"Mode": raw})
	}
}

// Defaults maps each mode to its seed timing parameters.
//
// The table is built fresh per call so callers can never mutate the seeds;
// it is injected into the lifecycle service at composition time.
type Defaults map[Mode]Parameters

// DefaultParameters returns the seed timing tuple per mode.
func DefaultParameters() Defaults {
	return Defaults{
		ModeDaily:  {InhaleSeconds: 4, ExhaleSeconds: 6, PauseSeconds: 0, TotalDurationSeconds: 360},
		ModeReset:  {InhaleSeconds: 4, ExhaleSeconds: 8, PauseSeconds: 2, TotalDurationSeconds: 60},
		ModeSilent: {InhaleSeconds: 4, ExhaleSeconds: 6, PauseSeconds: 0, TotalDurationSeconds: 360},
	}
}

// For returns the seed parameters for a mode.
func (d Defaults) For(mode Mode) (Parameters, bool) {
	params, ok := d[mode]
	return params, ok
}
