package core

import (
	"fmt"
	"math"

	"github.com/CLEOsat-group/satellite-tracking/model"
)

// ObservatoryInput is the observatory as written in a run config. Latitude
// and Longitude hold either one decimal-degree value or degrees, minutes
// and seconds. The raw longitude is positive west.
type ObservatoryInput struct {
	Name      string
	Latitude  []float64
	Longitude []float64
	Altitude  float64 // metres
	UTCOffset float64 // hours
}

// ResolveObservatory converts raw coordinates into a model.Observatory
// with signed decimal degrees, longitude positive east.
func ResolveObservatory(in ObservatoryInput) (model.Observatory, error) {
	lat, err := AccumulateDMS(in.Latitude)
	if err != nil {
		return model.Observatory{}, fmt.Errorf("latitude: %w", err)
	}
	if lat < -90 || lat > 90 {
		return model.Observatory{}, fmt.Errorf("%w: latitude %g outside [-90, 90]", ErrValidation, lat)
	}

	rawLon, err := AccumulateDMS(in.Longitude)
	if err != nil {
		return model.Observatory{}, fmt.Errorf("longitude: %w", err)
	}
	if rawLon < -360 || rawLon > 360 {
		return model.Observatory{}, fmt.Errorf("%w: longitude %g outside [-360, 360]", ErrValidation, rawLon)
	}
	lon := NormalizeLongitude(rawLon)
	if lon < -180 || lon > 180 {
		return model.Observatory{}, fmt.Errorf("%w: longitude %g normalizes to %g", ErrValidation, rawLon, lon)
	}

	if math.IsNaN(in.Altitude) || math.IsInf(in.Altitude, 0) {
		return model.Observatory{}, fmt.Errorf("%w: altitude is not finite", ErrValidation)
	}
	if math.IsNaN(in.UTCOffset) || in.UTCOffset < -14 || in.UTCOffset > 14 {
		return model.Observatory{}, fmt.Errorf("%w: utc offset %g outside [-14, 14]", ErrValidation, in.UTCOffset)
	}

	return model.Observatory{
		Name:      in.Name,
		Latitude:  lat,
		Longitude: lon,
		Altitude:  in.Altitude,
		UTCOffset: in.UTCOffset,
	}, nil
}

// AccumulateDMS folds degree, minute and second parts into decimal degrees.
// The magnitude is the sum of |part_i| / 60^i. The result is negative when
// any part is negative, so [-29, 15, 0] and [0, -30] are both southern.
func AccumulateDMS(parts []float64) (float64, error) {
	if len(parts) == 0 {
		return 0, fmt.Errorf("%w: no coordinate parts", ErrValidation)
	}
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %d coordinate parts, want at most 3", ErrValidation, len(parts))
	}

	sign := 1.0
	magnitude := 0.0
	scale := 1.0
	for i, p := range parts {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, fmt.Errorf("%w: coordinate part %d is not finite", ErrValidation, i)
		}
		if p < 0 {
			sign = -1
		}
		abs := math.Abs(p)
		if i > 0 && abs >= 60 {
			return 0, fmt.Errorf("%w: coordinate part %d is %g, want < 60", ErrValidation, i, p)
		}
		magnitude += abs / scale
		scale *= 60
	}
	return sign * magnitude, nil
}

// NormalizeLongitude maps a positive-west longitude onto the signed
// east-positive range. Values beyond 180 wrap to 360 - v; anything else is
// negated.
func NormalizeLongitude(raw float64) float64 {
	if raw > 180 {
		return 360 - raw
	}
	return -raw
}
