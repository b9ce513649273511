package engagement

import "time"

// DefaultMinDwell is how long a viewer must have the profile visible.
const DefaultMinDwell = 5 * time.Second

// Signals are the engagement observations a client reports with a view.
type Signals struct {
	// Dwell is time spent with the page visible; hidden time is excluded.
	Dwell      time.Duration
	Interacted bool
	// Visible is false when the page is currently hidden.
	Visible bool
}

// Gate decides whether a page visit counts as a view.
type Gate struct {
	MinDwell time.Duration
}

func NewGate(minDwell time.Duration) Gate {
	if minDwell <= 0 {
		minDwell = DefaultMinDwell
	}
	return Gate{MinDwell: minDwell}
}

// Satisfied requires the minimum dwell and at least one scroll or click while
// the page is visible. A hidden page is re-checked when it becomes visible.
func (g Gate) Satisfied(s Signals) bool {
	return s.Visible && s.Interacted && s.Dwell >= g.MinDwell
}
