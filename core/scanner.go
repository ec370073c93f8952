package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/CLEOsat-group/satellite-tracking/internal/logging"
	"github.com/CLEOsat-group/satellite-tracking/model"
	"github.com/CLEOsat-group/satellite-tracking/timectrl"
)

const radToDeg = 180.0 / math.Pi

// ScanFunc computes the visibility record of one satellite. It receives all
// run state as arguments and never touches shared mutable state.
type ScanFunc func(ctx context.Context, rc RunContext, satellite string) model.VisibilityRecord

// Visible reports whether a satellite at altitude (degrees above the
// horizon) is observable with the Sun at zenith (degrees). All bounds are
// strict.
func Visible(c model.ObservationConstraints, altitude, zenith float64) bool {
	return altitude > c.MinSatelliteAltitude &&
		zenith > c.SunZenithLower &&
		zenith < c.SunZenithUpper
}

// AngularVelocity returns the apparent motion in arcsec/s between two
// consecutive steps, given the azimuth and altitude deltas in degrees.
func AngularVelocity(dAz, dAlt float64, cadence time.Duration) float64 {
	secs := cadence.Seconds()
	if secs <= 0 {
		return 0
	}
	return math.Hypot(dAz*3600, dAlt*3600) / secs
}

// Scan walks the run window for one satellite and collects a sample for
// every visible step. A propagation failure discards everything gathered so
// far and yields an OutcomePropagationFailed record.
func Scan(ctx context.Context, rc RunContext, satellite string) model.VisibilityRecord {
	log := logging.LoggerFromContext(ctx)
	if log == nil {
		log = logging.Noop()
	}
	record := model.VisibilityRecord{Satellite: satellite}
	if err := rc.Validate(); err != nil {
		record.Outcome = model.OutcomePropagationFailed
		record.Err = err
		return record
	}

	orbit, err := rc.Orbits.Bind(satellite)
	if err != nil {
		record.Outcome = model.OutcomePropagationFailed
		record.Err = fmt.Errorf("%w: bind %s: %w", ErrPropagation, satellite, err)
		return record
	}
	observer := rc.Sky.Observer(rc.Observatory)
	obs := rc.Observatory

	var prevAz, prevAlt float64
	var samples []model.VisibilitySample
	clock := timectrl.NewStepClock(rc.Window.Start, rc.Window.End, rc.Window.Cadence)
	err = clock.Run(func(t time.Time) error {
		lon, lat, altKm, err := orbit.SubSatellitePoint(t)
		if err != nil {
			return fmt.Errorf("sub-satellite point at %s: %w", t.Format(time.RFC3339), err)
		}
		azRad, altRad, err := orbit.LookAngle(t, obs.Longitude, obs.Latitude, obs.AltitudeKm())
		if err != nil {
			return fmt.Errorf("look angle at %s: %w", t.Format(time.RFC3339), err)
		}
		sunRA, sunDec := rc.Sky.SunRADec(t)
		zenith := rc.Sky.SunZenith(t, obs.Longitude, obs.Latitude)
		ra, dec := observer.EquatorialOf(t, azRad, altRad)

		az := azRad * radToDeg
		alt := altRad * radToDeg
		if Visible(rc.Constraints, alt, zenith) {
			samples = append(samples, model.VisibilitySample{
				Time:            t,
				SubPoint:        model.SubSatellitePoint{Longitude: lon, Latitude: lat, AltitudeKm: altKm},
				Azimuth:         az,
				Altitude:        alt,
				RA:              SplitSexagesimal(RAHours(ra)),
				Dec:             SplitSexagesimal(DecDegrees(dec)),
				SunRA:           RAHours(sunRA),
				SunDec:          DecDegrees(sunDec),
				SunZenith:       zenith,
				AngularVelocity: AngularVelocity(az-prevAz, alt-prevAlt, rc.Window.Cadence),
			})
		}
		prevAz, prevAlt = az, alt
		return nil
	})
	if err != nil {
		record.Outcome = model.OutcomePropagationFailed
		if !errors.Is(err, ErrPropagation) {
			err = fmt.Errorf("%w: %s: %w", ErrPropagation, satellite, err)
		}
		record.Err = err
		log.Debug(ctx, "scan aborted",
			logging.String("satellite", satellite),
			logging.Int("steps", clock.Steps()),
			logging.String("failed_at", clock.Now().Format(time.RFC3339)),
			logging.Err(err),
		)
		return record
	}

	record.Samples = samples
	if len(samples) > 0 {
		record.Outcome = model.OutcomeVisible
	}
	log.Debug(ctx, "scan complete",
		logging.String("satellite", satellite),
		logging.Int("steps", clock.Steps()),
		logging.Int("samples", len(samples)),
	)
	return record
}
