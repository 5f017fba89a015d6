// Package cricket implements ball outcomes, the prediction table and payouts
// for the ball-by-ball prediction game.
package cricket

import "fmt"

// Outcome is the result of a single delivery.
// The variant set is closed: RunsScored and Wicket are the only implementations.
type Outcome interface {
	// Runs returns the runs added to the score (0 for a wicket).
	Runs() int
	// IsWicket reports whether the batter was dismissed.
	IsWicket() bool
	// String returns a short label such as "6 runs" or "WICKET".
	String() string

	outcome()
}

// RunsScored is a delivery that added Value runs (0 is a dot ball).
type RunsScored struct {
	Value int
}

// Wicket is a delivery that took a wicket.
type Wicket struct{}

func (RunsScored) outcome() {}
func (Wicket) outcome()     {}

// Runs returns the runs scored.
func (r RunsScored) Runs() int { return r.Value }

// IsWicket always returns false.
func (RunsScored) IsWicket() bool { return false }

func (r RunsScored) String() string {
	switch r.Value {
	case 0:
		return "Dot ball"
	case 1:
		return "1 run"
	default:
		return fmt.Sprintf("%d runs", r.Value)
	}
}

// Runs returns 0: a wicket ball adds nothing to the score.
func (Wicket) Runs() int { return 0 }

// IsWicket always returns true.
func (Wicket) IsWicket() bool { return true }

func (Wicket) String() string { return "WICKET" }

// Common outcomes.
var (
	Dot  Outcome = RunsScored{Value: 0}
	One  Outcome = RunsScored{Value: 1}
	Two  Outcome = RunsScored{Value: 2}
	Four Outcome = RunsScored{Value: 4}
	Six  Outcome = RunsScored{Value: 6}
	Out  Outcome = Wicket{}
)

// Emoji returns the ball emoji shown on the live dashboard.
func Emoji(o Outcome) string {
	if o.IsWicket() {
		return "🔴"
	}
	switch o.Runs() {
	case 0:
		return "⚫"
	case 4:
		return "🟢"
	case 6:
		return "🟣"
	default:
		return "🔵"
	}
}
