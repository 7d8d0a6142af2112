package domain

import "fmt"

// PercentUnknown marks a ProgressState without percent information
const PercentUnknown = -1

// ProgressState is what a supervised process reported during one poll
type ProgressState struct {
	// Status is a human readable status line, empty when none was seen
	Status string `json:"status,omitempty"`

	// Percent is 0..100, or PercentUnknown
	Percent int `json:"percent"`

	// Fresh is set when this poll produced new translated information.
	// Percent may still be set on a stale state because it carries over.
	Fresh bool `json:"fresh"`

	// Done is set only on the terminal notification after the process exited
	Done bool `json:"done"`
}

// NoProgress is the state before anything was recognized
func NoProgress() ProgressState {
	return ProgressState{Percent: PercentUnknown}
}

// HasPercent reports whether Percent carries a value
func (p ProgressState) HasPercent() bool {
	return p.Percent >= 0
}

// HasStatus reports whether Status carries a value
func (p ProgressState) HasStatus() bool {
	return p.Status != ""
}

func (p ProgressState) String() string {
	switch {
	case p.HasPercent() && p.HasStatus():
		return fmt.Sprintf("%d%% %s", p.Percent, p.Status)
	case p.HasPercent():
		return fmt.Sprintf("%d%%", p.Percent)
	default:
		return p.Status
	}
}

// ClampPercent limits n to 0..100
func ClampPercent(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// Decision is returned by a progress callback
type Decision int

const (
	Continue Decision = iota
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "continue"
}

// ProgressFunc receives progress once per poll and a final state with Done
// set. Its Decision is ignored on the final call.
type ProgressFunc func(state ProgressState) Decision
