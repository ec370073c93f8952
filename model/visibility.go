package model

import (
	"math"
	"time"
)

// Sexagesimal is an angle or hour value split into whole units, minutes and
// seconds. The sign is kept apart so that values such as -0°30' survive.
type Sexagesimal struct {
	Negative bool
	Whole    int
	Minutes  int
	Seconds  float64
}

// Round rounds the seconds to the given number of decimals and carries any
// overflow into minutes and whole units, so 59.997s never prints as 60.00.
// A positive wrap folds the whole part, 24 for hours of right ascension.
// A value that rounds to zero loses its sign.
func (s Sexagesimal) Round(decimals, wrap int) Sexagesimal {
	perSecond := int64(math.Round(math.Pow10(decimals)))
	ticks := int64(math.Round(s.Seconds*float64(perSecond))) +
		(int64(s.Whole)*3600+int64(s.Minutes)*60)*perSecond

	secs, frac := ticks/perSecond, ticks%perSecond
	whole := secs / 3600
	if wrap > 0 {
		whole %= int64(wrap)
	}
	return Sexagesimal{
		Negative: s.Negative && ticks != 0,
		Whole:    int(whole),
		Minutes:  int(secs / 60 % 60),
		Seconds:  float64(secs%60) + float64(frac)/float64(perSecond),
	}
}

// SubSatellitePoint is the geodetic point beneath the satellite.
type SubSatellitePoint struct {
	Longitude  float64 // degrees, east positive
	Latitude   float64 // degrees
	AltitudeKm float64
}

// VisibilitySample is one visible time step.
type VisibilitySample struct {
	Time time.Time

	SubPoint SubSatellitePoint

	Azimuth  float64 // degrees
	Altitude float64 // degrees above the horizon

	RA  Sexagesimal // hours, minutes, seconds
	Dec Sexagesimal // degrees, arcminutes, arcseconds

	SunRA     float64 // hours
	SunDec    float64 // degrees
	SunZenith float64 // degrees

	AngularVelocity float64 // arcsec/s
}

// Outcome classifies how a satellite's scan ended.
type Outcome int

const (
	// OutcomeNotVisible means the scan completed without a visible step.
	OutcomeNotVisible Outcome = iota
	// OutcomeVisible means the scan completed with at least one sample.
	OutcomeVisible
	// OutcomePropagationFailed means the orbit service failed mid-window;
	// samples gathered before the failure are discarded.
	OutcomePropagationFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotVisible:
		return "not_visible"
	case OutcomeVisible:
		return "visible"
	case OutcomePropagationFailed:
		return "propagation_failed"
	default:
		return "unknown"
	}
}

// VisibilityRecord is the result of scanning one satellite. Samples are in
// chronological order and are empty unless Outcome is OutcomeVisible.
type VisibilityRecord struct {
	Satellite string
	Outcome   Outcome
	Samples   []VisibilitySample
	Err       error
}

// Absent reports whether the satellite contributes no rows to a report.
func (r VisibilityRecord) Absent() bool {
	return r.Outcome != OutcomeVisible || len(r.Samples) == 0
}
