package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/CLEOsat-group/satellite-tracking/model"
)

// lookFunc is a stub Orbit driven by a function of time. Angles in degrees.
type lookFunc func(t time.Time) (az, alt float64, err error)

func (f lookFunc) SubSatellitePoint(t time.Time) (float64, float64, float64, error) {
	_, _, err := f(t)
	return -70, -30, 550, err
}

func (f lookFunc) LookAngle(t time.Time, lon, lat, altKm float64) (float64, float64, error) {
	az, alt, err := f(t)
	return az * math.Pi / 180, alt * math.Pi / 180, err
}

type stubOrbits map[string]Orbit

func (s stubOrbits) Bind(name string) (Orbit, error) {
	o, ok := s[name]
	if !ok {
		return nil, errors.New("no such satellite")
	}
	return o, nil
}

type stubSky struct {
	zenith float64
}

func (s stubSky) SunRADec(time.Time) (float64, float64) { return math.Pi, -0.1 }

func (s stubSky) SunZenith(time.Time, float64, float64) float64 { return s.zenith }

func (s stubSky) Observer(model.Observatory) Observer { return passThroughObserver{} }

type passThroughObserver struct{}

func (passThroughObserver) EquatorialOf(_ time.Time, az, alt float64) (float64, float64) {
	return az, alt
}

var testStart = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

func testContext(orbits OrbitSource, zenith float64, steps int) RunContext {
	return RunContext{
		Observatory: model.Observatory{Name: "test", Latitude: -29, Longitude: -70.7, Altitude: 2400, UTCOffset: 4},
		Constraints: model.ObservationConstraints{
			MinSatelliteAltitude: 3.5 / 60,
			SunZenithLower:       96,
			SunZenithUpper:       120,
		},
		Window: model.ResolvedWindow{
			Start:   testStart,
			End:     testStart.Add(time.Duration(steps) * time.Second),
			Cadence: time.Second,
		},
		Orbits: orbits,
		Sky:    stubSky{zenith: zenith},
	}
}

// risingOrbit climbs one arcminute per second at a fixed azimuth.
func risingOrbit(t time.Time) (float64, float64, error) {
	k := t.Sub(testStart).Seconds()
	return 90, k / 60, nil
}

func TestVisiblePredicateIsStrict(t *testing.T) {
	c := model.ObservationConstraints{MinSatelliteAltitude: 10, SunZenithLower: 96, SunZenithUpper: 120}

	tests := []struct {
		name     string
		alt, zen float64
		want     bool
	}{
		{"inside", 45, 100, true},
		{"altitude on bound", 10, 100, false},
		{"altitude below", 9.99, 100, false},
		{"zenith on lower bound", 45, 96, false},
		{"zenith on upper bound", 45, 120, false},
		{"zenith too bright", 45, 80, false},
		{"zenith beyond upper", 45, 130, false},
		{"just inside all", 10.0001, 96.0001, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Visible(c, tt.alt, tt.zen); got != tt.want {
				t.Fatalf("Visible(alt=%v, zen=%v) = %v, want %v", tt.alt, tt.zen, got, tt.want)
			}
		})
	}
}

func TestAngularVelocity(t *testing.T) {
	if got := AngularVelocity(0, 1.0/60, time.Second); math.Abs(got-60) > 1e-9 {
		t.Fatalf("AngularVelocity(0, 1') = %v, want 60", got)
	}
	if got := AngularVelocity(3.0/3600, 4.0/3600, 2*time.Second); math.Abs(got-2.5) > 1e-9 {
		t.Fatalf("AngularVelocity(3\", 4\", 2s) = %v, want 2.5", got)
	}
	if got := AngularVelocity(1, 0, time.Minute); math.Abs(got-60) > 1e-9 {
		t.Fatalf("AngularVelocity(1°, 60s) = %v, want 60", got)
	}
	if got := AngularVelocity(-1, 0, time.Minute); math.Abs(got-60) > 1e-9 {
		t.Fatalf("AngularVelocity(-1°, 60s) = %v, want 60", got)
	}
	if got := AngularVelocity(1, 1, 0); got != 0 {
		t.Fatalf("AngularVelocity with zero cadence = %v, want 0", got)
	}
}

func TestScanCollectsVisibleSteps(t *testing.T) {
	rc := testContext(stubOrbits{"SAT-1": lookFunc(risingOrbit)}, 100, 10)

	rec := Scan(context.Background(), rc, "SAT-1")
	if rec.Outcome != model.OutcomeVisible || rec.Err != nil {
		t.Fatalf("Scan() outcome = %v err = %v, want visible", rec.Outcome, rec.Err)
	}
	// Altitude k/60 exceeds 3.5/60 for k = 4..9.
	if len(rec.Samples) != 6 {
		t.Fatalf("Scan() produced %d samples, want 6", len(rec.Samples))
	}
	for i, s := range rec.Samples {
		want := testStart.Add(time.Duration(4+i) * time.Second)
		if !s.Time.Equal(want) {
			t.Fatalf("sample %d at %v, want %v", i, s.Time, want)
		}
		if math.Abs(s.AngularVelocity-60) > 1e-6 {
			t.Fatalf("sample %d angular velocity = %v, want 60", i, s.AngularVelocity)
		}
	}

	first := rec.Samples[0]
	if first.SubPoint.AltitudeKm != 550 || math.Abs(first.Azimuth-90) > 1e-9 {
		t.Fatalf("unexpected sample geometry %+v", first)
	}
	if math.Abs(first.SunRA-12) > 1e-12 {
		t.Fatalf("SunRA = %v, want 12h", first.SunRA)
	}
	if math.Abs(first.SunDec-(-0.1*180/math.Pi)) > 1e-12 {
		t.Fatalf("SunDec = %v, want %v", first.SunDec, -0.1*180/math.Pi)
	}
	// The pass-through observer maps azimuth 90° to RA 6h.
	ra := float64(first.RA.Whole) + float64(first.RA.Minutes)/60 + first.RA.Seconds/3600
	if first.RA.Negative || math.Abs(ra-6) > 1e-9 {
		t.Fatalf("RA = %+v, want 6h", first.RA)
	}
}

func TestScanFirstStepVelocityUsesZeroBaseline(t *testing.T) {
	orbit := lookFunc(func(time.Time) (float64, float64, error) { return 0, 1, nil })
	rc := testContext(stubOrbits{"SAT-1": orbit}, 100, 1)

	rec := Scan(context.Background(), rc, "SAT-1")
	if len(rec.Samples) != 1 {
		t.Fatalf("Scan() produced %d samples, want 1", len(rec.Samples))
	}
	if got := rec.Samples[0].AngularVelocity; math.Abs(got-3600) > 1e-6 {
		t.Fatalf("first-step angular velocity = %v, want 3600", got)
	}
}

func TestScanDaylightIsNotVisible(t *testing.T) {
	rc := testContext(stubOrbits{"SAT-1": lookFunc(risingOrbit)}, 45, 10)

	rec := Scan(context.Background(), rc, "SAT-1")
	if rec.Outcome != model.OutcomeNotVisible || len(rec.Samples) != 0 || rec.Err != nil {
		t.Fatalf("Scan() = %+v, want not visible", rec)
	}
	if !rec.Absent() {
		t.Fatalf("Absent() = false for not-visible record")
	}
}

func TestScanPropagationFailureDiscardsSamples(t *testing.T) {
	boom := errors.New("decayed")
	orbit := lookFunc(func(t time.Time) (float64, float64, error) {
		az, alt, _ := risingOrbit(t)
		if t.Sub(testStart) >= 7*time.Second {
			return 0, 0, boom
		}
		return az, alt, nil
	})
	rc := testContext(stubOrbits{"SAT-1": orbit}, 100, 10)

	rec := Scan(context.Background(), rc, "SAT-1")
	if rec.Outcome != model.OutcomePropagationFailed {
		t.Fatalf("Outcome = %v, want propagation_failed", rec.Outcome)
	}
	if len(rec.Samples) != 0 {
		t.Fatalf("failed scan kept %d samples", len(rec.Samples))
	}
	if !errors.Is(rec.Err, ErrPropagation) || !errors.Is(rec.Err, boom) {
		t.Fatalf("Err = %v, want ErrPropagation wrapping the cause", rec.Err)
	}
}

func TestScanUnknownSatellite(t *testing.T) {
	rc := testContext(stubOrbits{}, 100, 10)

	rec := Scan(context.Background(), rc, "MISSING")
	if rec.Outcome != model.OutcomePropagationFailed || !errors.Is(rec.Err, ErrPropagation) {
		t.Fatalf("Scan() = %+v, want propagation failure", rec)
	}
}

func TestScanRejectsInvalidRun(t *testing.T) {
	calls := 0
	orbit := lookFunc(func(t time.Time) (float64, float64, error) {
		calls++
		return risingOrbit(t)
	})

	tests := []struct {
		name   string
		mutate func(*RunContext)
	}{
		{"zenith bounds inverted", func(rc *RunContext) {
			rc.Constraints.SunZenithLower, rc.Constraints.SunZenithUpper = 120, 96
		}},
		{"zenith bounds equal", func(rc *RunContext) { rc.Constraints.SunZenithUpper = 96 }},
		{"altitude not finite", func(rc *RunContext) { rc.Constraints.MinSatelliteAltitude = math.NaN() }},
		{"sub-second cadence", func(rc *RunContext) { rc.Window.Cadence = 500 * time.Millisecond }},
		{"sub-second start", func(rc *RunContext) { rc.Window.Start = testStart.Add(250 * time.Millisecond) }},
		{"end before start", func(rc *RunContext) { rc.Window.End = testStart.Add(-time.Second) }},
		{"no sky", func(rc *RunContext) { rc.Sky = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := testContext(stubOrbits{"SAT-1": orbit}, 100, 10)
			tt.mutate(&rc)
			if err := rc.Validate(); !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Validate() = %v, want ErrConfiguration", err)
			}
			rec := Scan(context.Background(), rc, "SAT-1")
			if rec.Outcome != model.OutcomePropagationFailed || !errors.Is(rec.Err, ErrConfiguration) {
				t.Fatalf("Scan() = %+v, want configuration failure", rec)
			}
		})
	}
	if calls != 0 {
		t.Fatalf("orbit queried %d times for invalid runs", calls)
	}
	if err := testContext(stubOrbits{}, 100, 10).Validate(); err != nil {
		t.Fatalf("Validate() of a good run = %v", err)
	}
}

func TestSplitSexagesimal(t *testing.T) {
	s := SplitSexagesimal(-12.5125)
	if !s.Negative || s.Whole != 12 || s.Minutes != 30 || math.Abs(s.Seconds-45) > 1e-6 {
		t.Fatalf("SplitSexagesimal(-12.5125) = %+v", s)
	}
	s = SplitSexagesimal(-0.5)
	if !s.Negative || s.Whole != 0 || s.Minutes != 30 {
		t.Fatalf("SplitSexagesimal(-0.5) = %+v, want -0°30'", s)
	}
	if h := RAHours(-math.Pi / 2); math.Abs(h-18) > 1e-12 {
		t.Fatalf("RAHours(-π/2) = %v, want 18", h)
	}
}
