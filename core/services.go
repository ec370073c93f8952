package core

import (
	"fmt"
	"math"
	"time"

	"github.com/CLEOsat-group/satellite-tracking/model"
)

// OrbitSource binds satellite identities to propagators.
type OrbitSource interface {
	// Bind returns a propagator for the named satellite. Each call returns
	// an independent value so workers never share propagator state.
	Bind(satellite string) (Orbit, error)
}

// Orbit places one satellite in time.
type Orbit interface {
	// SubSatellitePoint returns the geodetic point beneath the satellite:
	// longitude and latitude in degrees, altitude in km.
	SubSatellitePoint(t time.Time) (lon, lat, altKm float64, err error)
	// LookAngle returns azimuth and altitude in radians as seen from the
	// given site (degrees, km).
	LookAngle(t time.Time, lon, lat, altKm float64) (az, alt float64, err error)
}

// Sky provides solar ephemerides and observer-bound frame transforms.
type Sky interface {
	// SunRADec returns the apparent solar right ascension and declination
	// in radians.
	SunRADec(t time.Time) (ra, dec float64)
	// SunZenith returns the solar zenith angle in degrees at the site.
	SunZenith(t time.Time, lon, lat float64) float64
	// Observer binds a horizontal to equatorial transform to a site.
	Observer(obs model.Observatory) Observer
}

// Observer converts horizontal coordinates to equatorial for one site.
type Observer interface {
	// EquatorialOf takes azimuth and altitude in radians and returns right
	// ascension and declination in radians.
	EquatorialOf(t time.Time, az, alt float64) (ra, dec float64)
}

// RunContext is the immutable state shared by every scan of a run.
type RunContext struct {
	Observatory model.Observatory
	Constraints model.ObservationConstraints
	Window      model.ResolvedWindow
	Orbits      OrbitSource
	Sky         Sky
}

// Validate checks the parts of a run that every scan relies on. The
// propagator resolves whole seconds only, so the window must start on a
// second boundary and step by whole seconds.
func (rc RunContext) Validate() error {
	if rc.Orbits == nil || rc.Sky == nil {
		return fmt.Errorf("%w: run has no orbit source or sky", ErrConfiguration)
	}
	c := rc.Constraints
	for _, v := range []float64{c.MinSatelliteAltitude, c.SunZenithLower, c.SunZenithUpper} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: observation constraints must be finite", ErrConfiguration)
		}
	}
	if c.SunZenithLower >= c.SunZenithUpper {
		return fmt.Errorf("%w: sun zenith lower bound %g is not below upper bound %g",
			ErrConfiguration, c.SunZenithLower, c.SunZenithUpper)
	}
	w := rc.Window
	if w.Cadence <= 0 || w.Cadence%time.Second != 0 {
		return fmt.Errorf("%w: cadence %s must be a positive whole number of seconds", ErrConfiguration, w.Cadence)
	}
	if w.Start.Nanosecond() != 0 {
		return fmt.Errorf("%w: window start %s is not on a whole second", ErrConfiguration, w.Start.Format(time.RFC3339Nano))
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: window ends before it starts", ErrConfiguration)
	}
	return nil
}
