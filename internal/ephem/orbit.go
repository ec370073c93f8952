// Package ephem implements the orbit and sky services consumed by the
// visibility scanner: SGP4 propagation through go-satellite, and the solar
// ephemeris and horizontal to J2000 equatorial transform through meeus.
package ephem

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/unit"

	"github.com/CLEOsat-group/satellite-tracking/core"
	"github.com/CLEOsat-group/satellite-tracking/internal/tle"
	"github.com/CLEOsat-group/satellite-tracking/model"
)

// Propagated positions outside this range (km from the geocentre) mean the
// model has diverged or the satellite has decayed.
const (
	minRadiusKm = 6200.0
	maxRadiusKm = 50000.0
)

// Lookup resolves satellite names to TLE records; *kb.Catalogue satisfies it.
type Lookup interface {
	Resolve(name string) (model.TLE, error)
}

// OrbitSource binds catalogue entries to SGP4 propagators.
type OrbitSource struct {
	lookup  Lookup
	gravity satellite.Gravity
}

// NewOrbitSource returns a source using the WGS84 gravity model.
func NewOrbitSource(lookup Lookup) *OrbitSource {
	return &OrbitSource{lookup: lookup, gravity: satellite.GravityWGS84}
}

// Bind implements core.OrbitSource.
func (s *OrbitSource) Bind(name string) (core.Orbit, error) {
	rec, err := s.lookup.Resolve(name)
	if err != nil {
		return nil, err
	}
	return NewOrbit(rec, s.gravity)
}

// Orbit is an SGP4 propagator for one satellite. It caches the last
// propagated instant and is not safe for concurrent use.
type Orbit struct {
	name string
	sat  satellite.Satellite

	cachedAt  time.Time
	cachedECI satellite.Vector3
	cachedErr error
	cached    bool
}

// NewOrbit initialises SGP4 from a TLE record.
func NewOrbit(rec model.TLE, gravity satellite.Gravity) (*Orbit, error) {
	if err := tle.Validate(rec.Line1, rec.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for %s: %w", rec.Name, err)
	}
	sat := satellite.TLEToSat(rec.Line1, rec.Line2, gravity)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for %s: code=%d %s", rec.Name, sat.Error, sat.ErrorStr)
	}
	return &Orbit{name: rec.Name, sat: sat}, nil
}

func (o *Orbit) propagate(t time.Time) (satellite.Vector3, error) {
	if o.cached && o.cachedAt.Equal(t) {
		return o.cachedECI, o.cachedErr
	}
	y, mo, d, h, mi, s := civil(t)
	pos, _ := satellite.Propagate(o.sat, y, mo, d, h, mi, s)

	var err error
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		err = fmt.Errorf("sgp4 propagation failed for %s: output is NaN/Inf", o.name)
	} else if mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z); mag < minRadiusKm || mag > maxRadiusKm {
		err = fmt.Errorf("sgp4 propagation failed for %s: unreasonable position magnitude %.1f km", o.name, mag)
	}

	o.cachedAt, o.cachedECI, o.cachedErr, o.cached = t, pos, err, true
	return pos, err
}

// SubSatellitePoint implements core.Orbit.
func (o *Orbit) SubSatellitePoint(t time.Time) (lon, lat, altKm float64, err error) {
	eci, err := o.propagate(t)
	if err != nil {
		return 0, 0, 0, err
	}
	altKm, _, ll := satellite.ECIToLLA(eci, GMST(t))
	lon = wrapDegrees(unit.Angle(ll.Longitude).Deg())
	lat = unit.Angle(ll.Latitude).Deg()
	return lon, lat, altKm, nil
}

// LookAngle implements core.Orbit.
func (o *Orbit) LookAngle(t time.Time, lon, lat, altKm float64) (az, alt float64, err error) {
	eci, err := o.propagate(t)
	if err != nil {
		return 0, 0, err
	}
	site := satellite.LatLong{
		Latitude:  unit.AngleFromDeg(lat).Rad(),
		Longitude: unit.AngleFromDeg(lon).Rad(),
	}
	look := satellite.ECIToLookAngles(eci, site, altKm, JulianDay(t))
	return look.Az, look.El, nil
}

// GMST returns Greenwich mean sidereal time in radians.
func GMST(t time.Time) float64 {
	y, mo, d, h, mi, s := civil(t)
	return satellite.GSTimeFromDate(y, mo, d, h, mi, s)
}

// JulianDay returns the Julian date of t to the second.
func JulianDay(t time.Time) float64 {
	y, mo, d, h, mi, s := civil(t)
	return satellite.JDay(y, mo, d, h, mi, s)
}

func civil(t time.Time) (year, month, day, hour, min, sec int) {
	t = t.UTC()
	y, m, d := t.Date()
	h, mi, s := t.Clock()
	return y, int(m), d, h, mi, s
}

// wrapDegrees maps any angle onto [-180, 180).
func wrapDegrees(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}
