package ephem

import (
	"time"

	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
)

// SunRADec returns the apparent right ascension in [0, 2π) and declination
// of the Sun, equinox of date, both in radians.
func SunRADec(t time.Time) (ra, dec float64) {
	α, δ := solar.ApparentEquatorial(julian.TimeToJD(t))
	return α.Rad(), δ.Rad()
}

// SunZenith returns the geometric solar zenith angle in degrees at a site
// given in degrees, longitude positive east.
func SunZenith(t time.Time, lon, lat float64) float64 {
	jd := julian.TimeToJD(t)
	α, δ := solar.ApparentEquatorial(jd)
	_, h := coord.EqToHz(α, δ, unit.AngleFromDeg(lat), unit.AngleFromDeg(-lon), sidereal.Apparent(jd))
	return 90 - h.Deg()
}

// apparentSiderealTime returns apparent Greenwich sidereal time in radians.
func apparentSiderealTime(t time.Time) float64 {
	return sidereal.Apparent(julian.TimeToJD(t)).Rad()
}

