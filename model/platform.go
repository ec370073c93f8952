package model

import "time"

// Observatory is a ground site in decimal degrees. Longitude is positive
// east, negative west, and always within [-180, 180].
type Observatory struct {
	Name      string
	Latitude  float64 // degrees
	Longitude float64 // degrees
	Altitude  float64 // metres above sea level

	// UTCOffset is the number of hours added to local clock time to obtain
	// UTC (La Silla is +4).
	UTCOffset float64
}

// AltitudeKm returns the site altitude in kilometres, the unit the orbit
// service expects.
func (o Observatory) AltitudeKm() float64 {
	return o.Altitude / 1000.0
}

// ObservationConstraints bounds when a satellite counts as visible.
type ObservationConstraints struct {
	MinSatelliteAltitude float64 // degrees above the horizon
	SunZenithLower       float64 // degrees
	SunZenithUpper       float64 // degrees
}

// ResolvedWindow is the absolute UTC interval scanned for one run.
type ResolvedWindow struct {
	Start   time.Time
	End     time.Time
	Cadence time.Duration
}

// Steps returns how many samples a scan of the window takes.
func (w ResolvedWindow) Steps() int {
	if w.Cadence <= 0 || !w.Start.Before(w.End) {
		return 0
	}
	span := w.End.Sub(w.Start)
	n := int(span / w.Cadence)
	if span%w.Cadence != 0 {
		n++
	}
	return n
}
