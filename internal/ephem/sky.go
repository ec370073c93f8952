package ephem

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/apparent"
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/precess"
	"github.com/soniakeys/meeus/v3/refraction"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/unit"

	"github.com/CLEOsat-group/satellite-tracking/core"
	"github.com/CLEOsat-group/satellite-tracking/model"
)

// Standard atmosphere assumed for observed altitudes.
const (
	StandardPressure    = 1010.0 // hPa
	StandardTemperature = 15.0   // °C
)

// Refraction is only removed above this altitude; the Bennett formula
// diverges a few degrees below the horizon.
var minRefractedAltitude = unit.AngleFromDeg(-1)

// Sky implements core.Sky.
type Sky struct{}

// SunRADec implements core.Sky.
func (Sky) SunRADec(t time.Time) (ra, dec float64) { return SunRADec(t) }

// SunZenith implements core.Sky.
func (Sky) SunZenith(t time.Time, lon, lat float64) float64 { return SunZenith(t, lon, lat) }

// Observer implements core.Sky.
func (Sky) Observer(obs model.Observatory) core.Observer {
	return NewObserver(obs)
}

// ObserverOption adjusts an Observer.
type ObserverOption func(*Observer)

// WithAtmosphere sets the pressure (hPa) and temperature (°C) used to
// remove refraction. A non-positive pressure disables the correction.
func WithAtmosphere(pressure, temperature float64) ObserverOption {
	return func(o *Observer) {
		o.pressure, o.temperature = pressure, temperature
	}
}

// Observer converts horizontal coordinates at one site to astrometric
// equatorial coordinates referred to J2000.
type Observer struct {
	lat unit.Angle
	lon unit.Angle // east positive

	pressure    float64
	temperature float64
}

// NewObserver binds an observer to the site under the standard atmosphere.
func NewObserver(obs model.Observatory, opts ...ObserverOption) *Observer {
	o := &Observer{
		lat:         unit.AngleFromDeg(obs.Latitude),
		lon:         unit.AngleFromDeg(obs.Longitude),
		pressure:    StandardPressure,
		temperature: StandardTemperature,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LocalSiderealTime returns the local apparent sidereal time in radians.
func (o *Observer) LocalSiderealTime(t time.Time) float64 {
	return unit.RAFromRad(apparentSiderealTime(t) + o.lon.Rad()).Rad()
}

// TrueAltitude removes atmospheric refraction from an observed altitude in
// radians, scaled from the Bennett formula to the observer's atmosphere.
func (o *Observer) TrueAltitude(alt float64) float64 {
	h := unit.Angle(alt)
	if o.pressure <= 0 || h < minRefractedAltitude {
		return alt
	}
	scale := o.pressure / StandardPressure * 283 / (273 + o.temperature)
	return (h - refraction.Bennett(h).Mul(scale)).Rad()
}

// ApparentOf returns the apparent right ascension and declination of date
// for an azimuth (from north through east) and a true altitude, radians.
func (o *Observer) ApparentOf(t time.Time, az, alt float64) (ra, dec float64) {
	α, δ := o.apparentOf(julian.TimeToJD(t), az, alt)
	return α.Rad(), δ.Rad()
}

func (o *Observer) apparentOf(jd, az, alt float64) (unit.RA, unit.Angle) {
	// Azimuth is measured from the south and longitude westward here.
	return coord.HzToEq(unit.Angle(az-math.Pi), unit.Angle(alt), o.lat, -o.lon, sidereal.Apparent(jd))
}

// EquatorialOf implements core.Observer. The altitude is taken as observed:
// refraction is removed, then nutation and annual aberration, and the mean
// place of date is precessed to J2000.
func (o *Observer) EquatorialOf(t time.Time, az, alt float64) (ra, dec float64) {
	jd := julian.TimeToJD(t)
	α, δ := o.apparentOf(jd, az, o.TrueAltitude(alt))

	nα, nδ := apparent.Nutation(α, δ, jd)
	aα, aδ := apparent.Aberration(α, δ, jd)
	eq := coord.Equatorial{
		RA:  unit.RAFromRad(α.Rad() - nα.Rad() - aα.Rad()),
		Dec: δ - nδ - aδ,
	}
	precess.NewPrecessor(base.JDEToJulianYear(jd), 2000).Precess(&eq, &eq)
	return eq.RA.Rad(), eq.Dec.Rad()
}
