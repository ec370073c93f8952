// Package report renders visibility records into the complete and simple
// report files and lays out the run's output directory.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"

	"github.com/CLEOsat-group/satellite-tracking/model"
)

// Column sets of the two report files.
var (
	CompleteColumns = []string{
		"satellite", "utc", "sub_lon", "sub_lat", "sub_alt_km", "az", "alt",
		"ra_h", "ra_m", "ra_s", "dec_d", "dec_m", "dec_s",
		"sun_ra_h", "sun_dec_deg", "sun_zenith_deg", "angular_velocity",
	}
	SimpleColumns = []string{"satellite", "utc", "ra", "dec", "angular_velocity"}
)

// Header describes the run at the top of every report file.
type Header struct {
	Brand       string
	Observatory model.Observatory
	Spec        model.TimeWindowSpec
	Window      model.ResolvedWindow
	Constraints model.ObservationConstraints
}

// Counts tallies record outcomes.
type Counts struct {
	Visible    int
	NotVisible int
	Failed     int
	FailedIDs  []string
}

// Count tallies outcomes in catalogue order.
func Count(records []model.VisibilityRecord) Counts {
	var c Counts
	for _, r := range records {
		switch r.Outcome {
		case model.OutcomeVisible:
			c.Visible++
		case model.OutcomePropagationFailed:
			c.Failed++
			c.FailedIDs = append(c.FailedIDs, r.Satellite)
		default:
			c.NotVisible++
		}
	}
	return c
}

// WriteHeader writes the "# " prefixed summary block.
func WriteHeader(w io.Writer, h Header, records []model.VisibilityRecord) error {
	obs := h.Observatory
	c := Count(records)

	lines := []string{
		fmt.Sprintf("satellites: %s", h.Brand),
		fmt.Sprintf("observatory: %s lat %v lon %v alt %.0f m utc offset %+g h",
			obs.Name,
			sexa.FmtAngle(unit.AngleFromDeg(obs.Latitude)),
			sexa.FmtAngle(unit.AngleFromDeg(obs.Longitude)),
			obs.Altitude, obs.UTCOffset),
		fmt.Sprintf("window: %s %s to %s UTC, cadence %s",
			h.Spec.Label(),
			h.Window.Start.UTC().Format(time.DateTime),
			h.Window.End.UTC().Format(time.DateTime),
			h.Window.Cadence),
		fmt.Sprintf("constraints: altitude > %g deg, %g < sun zenith < %g deg",
			h.Constraints.MinSatelliteAltitude, h.Constraints.SunZenithLower, h.Constraints.SunZenithUpper),
		fmt.Sprintf("scanned: %d visible: %d not visible: %d failed: %d",
			len(records), c.Visible, c.NotVisible, c.Failed),
	}
	if c.Failed > 0 {
		lines = append(lines, "failed: "+strings.Join(c.FailedIDs, ", "))
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "# %s\n", l); err != nil {
			return err
		}
	}
	return nil
}

// WriteComplete writes every column for each visible sample.
func WriteComplete(w io.Writer, h Header, records []model.VisibilityRecord) error {
	return writeTable(w, h, records, CompleteColumns, completeRow)
}

// WriteSimple writes identity, time, RA/Dec and angular velocity.
func WriteSimple(w io.Writer, h Header, records []model.VisibilityRecord) error {
	return writeTable(w, h, records, SimpleColumns, simpleRow)
}

func writeTable(w io.Writer, h Header, records []model.VisibilityRecord,
	columns []string, row func(string, model.VisibilitySample) []string) error {
	if err := WriteHeader(w, h, records); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, r := range records {
		if r.Absent() {
			continue
		}
		for _, s := range r.Samples {
			if err := cw.Write(row(r.Satellite, s)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func completeRow(id string, s model.VisibilitySample) []string {
	ra, dec := s.RA.Round(2, 24), s.Dec.Round(2, 0)
	return []string{
		id,
		s.Time.UTC().Format(time.RFC3339),
		ffmt(s.SubPoint.Longitude, 4),
		ffmt(s.SubPoint.Latitude, 4),
		ffmt(s.SubPoint.AltitudeKm, 3),
		ffmt(s.Azimuth, 4),
		ffmt(s.Altitude, 4),
		signedWhole(ra),
		strconv.Itoa(ra.Minutes),
		ffmt(ra.Seconds, 2),
		signedWhole(dec),
		strconv.Itoa(dec.Minutes),
		ffmt(dec.Seconds, 2),
		ffmt(s.SunRA, 4),
		ffmt(s.SunDec, 4),
		ffmt(s.SunZenith, 4),
		ffmt(s.AngularVelocity, 2),
	}
}

func simpleRow(id string, s model.VisibilitySample) []string {
	return []string{
		id,
		s.Time.UTC().Format(time.RFC3339),
		FormatHMS(s.RA),
		FormatDMS(s.Dec),
		ffmt(s.AngularVelocity, 2),
	}
}

// FormatHMS renders an hour value as hh:mm:ss.ss, wrapping 24h to 00h.
func FormatHMS(v model.Sexagesimal) string {
	v = v.Round(2, 24)
	return fmt.Sprintf("%s%02d:%02d:%05.2f", sign(v, ""), v.Whole, v.Minutes, v.Seconds)
}

// FormatDMS renders a degree value as +dd:mm:ss.s with an explicit sign.
func FormatDMS(v model.Sexagesimal) string {
	v = v.Round(1, 0)
	return fmt.Sprintf("%s%02d:%02d:%04.1f", sign(v, "+"), v.Whole, v.Minutes, v.Seconds)
}

func sign(v model.Sexagesimal, positive string) string {
	if v.Negative {
		return "-"
	}
	return positive
}

// signedWhole keeps the sign of values such as -0°30'.
func signedWhole(v model.Sexagesimal) string {
	return sign(v, "") + strconv.Itoa(v.Whole)
}

func ffmt(v float64, prec int) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// Directory returns <base>/<brand>_<yyyy>_<mm>_<dd>_<label>.
func Directory(base, brand string, spec model.TimeWindowSpec) string {
	d := spec.Date
	return filepath.Join(base, fmt.Sprintf("%s_%04d_%02d_%02d_%s",
		brand, d.Year, int(d.Month), d.Day, spec.Label()))
}
