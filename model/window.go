package model

import "time"

// WindowKind tags which variant a TimeWindowSpec holds.
type WindowKind int

const (
	// NamedWindow is a 12 hour "morning" or "evening" slot.
	NamedWindow WindowKind = iota
	// ExplicitWindow is a start/finish clock pair.
	ExplicitWindow
)

func (k WindowKind) String() string {
	switch k {
	case NamedWindow:
		return "named"
	case ExplicitWindow:
		return "explicit"
	default:
		return "unknown"
	}
}

// Named window keywords.
const (
	WindowMorning = "morning"
	WindowEvening = "evening"
)

// Date is a calendar day with no time zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ClockTime is a wall clock reading.
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

// Duration returns the offset of the clock reading from midnight.
func (c ClockTime) Duration() time.Duration {
	return time.Duration(c.Hour)*time.Hour +
		time.Duration(c.Minute)*time.Minute +
		time.Duration(c.Second)*time.Second
}

// TimeWindowSpec describes the observation window before it is resolved to
// UTC. Name is meaningful only for NamedWindow, Start and Finish only for
// ExplicitWindow.
type TimeWindowSpec struct {
	Kind    WindowKind
	Date    Date
	Name    string
	Start   ClockTime
	Finish  ClockTime
	Cadence time.Duration
}

// Label names the window in output paths: the keyword for named windows and
// "custom" for explicit ones.
func (s TimeWindowSpec) Label() string {
	if s.Kind == NamedWindow {
		return s.Name
	}
	return "custom"
}
