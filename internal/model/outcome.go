package model

import (
	"fmt"
	"strings"
)

// Outcome is the terminal verdict of one check of a target.
//
// Design decision: The zero value is OutcomeTimeout. A result that was never
// explicitly classified is therefore reported as ambiguous instead of being
// mistaken for "no slots", which would hide real availability.
type Outcome int

const (
	// OutcomeTimeout means neither a negative message nor any slot evidence
	// appeared within the wait budget, or navigation failed.
	OutcomeTimeout Outcome = iota

	// OutcomeNoSlots means an explicit "no appointments" message was visible.
	OutcomeNoSlots

	// OutcomeSlotsFound means one or more free time slots were visible.
	OutcomeSlotsFound

	// OutcomeBlocked means the page was materially empty, which is treated as
	// an access denial by anti-automation defenses.
	OutcomeBlocked
)

// String returns the stable lower-case name used in logs, JSON and SQLite.
func (o Outcome) String() string {
	switch o {
	case OutcomeTimeout:
		return "timeout"
	case OutcomeNoSlots:
		return "no_slots"
	case OutcomeSlotsFound:
		return "slots_found"
	case OutcomeBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutcome converts a stored outcome name back into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timeout":
		return OutcomeTimeout, nil
	case "no_slots":
		return OutcomeNoSlots, nil
	case "slots_found":
		return OutcomeSlotsFound, nil
	case "blocked":
		return OutcomeBlocked, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOutcome, s)
	}
}

// AllOutcomes returns every outcome in declaration order.
func AllOutcomes() []Outcome {
	return []Outcome{OutcomeTimeout, OutcomeNoSlots, OutcomeSlotsFound, OutcomeBlocked}
}
