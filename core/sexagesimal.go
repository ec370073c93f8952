package core

import (
	"math"

	"github.com/soniakeys/unit"

	"github.com/CLEOsat-group/satellite-tracking/model"
)

// RAHours converts a right ascension in radians to hours in [0, 24).
func RAHours(ra float64) float64 {
	return unit.RAFromRad(ra).Hour()
}

// DecDegrees converts a declination in radians to degrees.
func DecDegrees(dec float64) float64 {
	return unit.Angle(dec).Deg()
}

// SplitSexagesimal decomposes a value into whole units, minutes and seconds.
// The sign is carried separately so a value such as -0.5 keeps it.
func SplitSexagesimal(v float64) model.Sexagesimal {
	neg := v < 0
	v = math.Abs(v)
	whole := math.Floor(v)
	rem := (v - whole) * 60
	minutes := math.Floor(rem)
	seconds := (rem - minutes) * 60
	return model.Sexagesimal{
		Negative: neg,
		Whole:    int(whole),
		Minutes:  int(minutes),
		Seconds:  seconds,
	}
}
