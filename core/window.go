package core

import (
	"fmt"
	"math"
	"time"

	"github.com/CLEOsat-group/satellite-tracking/model"
)

// NamedWindowSpan is the length of a morning or evening window.
const NamedWindowSpan = 12 * time.Hour

// ResolveWindow turns a local window description into an absolute UTC
// interval. utcOffset is the number of hours added to local time to get UTC.
func ResolveWindow(spec model.TimeWindowSpec, utcOffset float64) (model.ResolvedWindow, error) {
	if spec.Cadence <= 0 {
		return model.ResolvedWindow{}, fmt.Errorf("%w: cadence %s must be positive", ErrConfiguration, spec.Cadence)
	}
	if spec.Cadence%time.Second != 0 {
		return model.ResolvedWindow{}, fmt.Errorf("%w: cadence %s must be a whole number of seconds", ErrConfiguration, spec.Cadence)
	}
	if math.IsNaN(utcOffset) || math.IsInf(utcOffset, 0) {
		return model.ResolvedWindow{}, fmt.Errorf("%w: utc offset is not finite", ErrConfiguration)
	}
	if err := validateDate(spec.Date); err != nil {
		return model.ResolvedWindow{}, err
	}

	switch spec.Kind {
	case model.NamedWindow:
		return resolveNamed(spec, utcOffset)
	case model.ExplicitWindow:
		return resolveExplicit(spec)
	default:
		return model.ResolvedWindow{}, fmt.Errorf("%w: unknown window kind %d", ErrConfiguration, spec.Kind)
	}
}

func resolveNamed(spec model.TimeWindowSpec, utcOffset float64) (model.ResolvedWindow, error) {
	var hour float64
	switch spec.Name {
	case model.WindowMorning:
		hour = 0
	case model.WindowEvening:
		hour = 12
	default:
		return model.ResolvedWindow{}, fmt.Errorf("%w: unknown window %q", ErrConfiguration, spec.Name)
	}
	hour += utcOffset

	// Only the morning window moves to the previous calendar day. An
	// evening window pushed past midnight wraps its hour and keeps the day.
	day := spec.Date.Day
	if spec.Name == model.WindowMorning && hour < 0 {
		day--
	}
	switch {
	case hour >= 24:
		hour -= 24
	case hour < 0:
		hour += 24
	}

	midnight := time.Date(spec.Date.Year, spec.Date.Month, day, 0, 0, 0, 0, time.UTC)
	start := midnight.Add(time.Duration(math.Round(hour*3600)) * time.Second)
	return model.ResolvedWindow{
		Start:   start,
		End:     start.Add(NamedWindowSpan),
		Cadence: spec.Cadence,
	}, nil
}

func resolveExplicit(spec model.TimeWindowSpec) (model.ResolvedWindow, error) {
	if err := validateClock("start", spec.Start); err != nil {
		return model.ResolvedWindow{}, err
	}
	if err := validateClock("finish", spec.Finish); err != nil {
		return model.ResolvedWindow{}, err
	}

	midnight := time.Date(spec.Date.Year, spec.Date.Month, spec.Date.Day, 0, 0, 0, 0, time.UTC)
	start := midnight.Add(spec.Start.Duration())
	end := midnight.Add(spec.Finish.Duration())
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return model.ResolvedWindow{Start: start, End: end, Cadence: spec.Cadence}, nil
}

func validateDate(d model.Date) error {
	if d.Month < time.January || d.Month > time.December {
		return fmt.Errorf("%w: month %d out of range", ErrConfiguration, d.Month)
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	if t.Year() != d.Year || t.Month() != d.Month || t.Day() != d.Day {
		return fmt.Errorf("%w: invalid date %04d-%02d-%02d", ErrConfiguration, d.Year, d.Month, d.Day)
	}
	return nil
}

func validateClock(field string, c model.ClockTime) error {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 || c.Second < 0 || c.Second > 59 {
		return fmt.Errorf("%w: %s %02d:%02d:%02d is not a clock time", ErrConfiguration, field, c.Hour, c.Minute, c.Second)
	}
	return nil
}
