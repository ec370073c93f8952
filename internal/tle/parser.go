package tle

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/CLEOsat-group/satellite-tracking/internal/logging"
	"github.com/CLEOsat-group/satellite-tracking/model"
)

// LineLength is the fixed width of TLE lines 1 and 2.
const LineLength = 69

// ErrMalformed indicates TLE text that cannot be parsed.
var ErrMalformed = errors.New("malformed TLE")

// Parse reads 3-line NORAD TLE text from r. Malformed entries are skipped
// with a warning; input that yields no entries at all is ErrMalformed.
func Parse(ctx context.Context, r io.Reader, log logging.Logger) ([]model.TLE, error) {
	if log == nil {
		log = logging.Noop()
	}

	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []model.TLE
	for i := 0; i+2 < len(lines); {
		name, line1, line2 := lines[i], lines[i+1], lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resynchronise on the next line.
			log.Warn(ctx, "skipping malformed TLE entry",
				logging.Int("line_index", i),
				logging.String("name", name),
			)
			i++
			continue
		}
		if err := Validate(line1, line2); err != nil {
			log.Warn(ctx, "skipping invalid TLE entry",
				logging.String("name", strings.TrimSpace(name)),
				logging.Err(err),
			)
			i += 3
			continue
		}

		entries = append(entries, model.TLE{
			Name:  strings.TrimSpace(name),
			Line1: line1,
			Line2: line2,
		})
		i += 3
	}

	if len(entries) == 0 && len(lines) > 0 {
		return nil, fmt.Errorf("%w: no valid entries in %d lines", ErrMalformed, len(lines))
	}
	return entries, nil
}

// Validate checks the fixed layout of a TLE line pair. The SGP4 library
// aborts the process on unparsable input, so every pair must pass this
// before it is bound to a propagator: each numeric column the propagator
// reads is parsed here the same way, and both mod-10 checksums must hold.
func Validate(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != LineLength {
		return fmt.Errorf("%w: line1 length %d, expected %d", ErrMalformed, len(line1), LineLength)
	}
	if len(line2) != LineLength {
		return fmt.Errorf("%w: line2 length %d, expected %d", ErrMalformed, len(line2), LineLength)
	}
	if line1[0] != '1' {
		return fmt.Errorf("%w: line1 must start with '1', got '%c'", ErrMalformed, line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("%w: line2 must start with '2', got '%c'", ErrMalformed, line2[0])
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("%w: catalogue numbers differ (%q, %q)", ErrMalformed, line1[2:7], line2[2:7])
	}
	for i, line := range []string{line1, line2} {
		if err := verifyChecksum(line); err != nil {
			return fmt.Errorf("%w: line%d: %w", ErrMalformed, i+1, err)
		}
	}
	for _, f := range numericFields(line1, line2) {
		if err := f.check(); err != nil {
			return fmt.Errorf("%w: %s %q: %w", ErrMalformed, f.name, f.text, err)
		}
	}
	return nil
}

type numericField struct {
	name    string
	text    string
	integer bool
}

func (f numericField) check() error {
	if f.integer {
		_, err := strconv.ParseInt(f.text, 10, 0)
		return err
	}
	_, err := strconv.ParseFloat(f.text, 64)
	return err
}

// numericFields lists the columns the propagator converts, assembled
// exactly as it assembles them (implied decimal points and exponents
// included, at most two blanks dropped).
func numericFields(line1, line2 string) []numericField {
	squeeze := func(s string) string { return strings.Replace(s, " ", "", 2) }
	return []numericField{
		{name: "catalogue number", text: strings.TrimSpace(line1[2:7]), integer: true},
		{name: "epoch year", text: line1[18:20], integer: true},
		{name: "epoch day", text: line1[20:32]},
		{name: "mean motion derivative", text: squeeze(line1[33:43])},
		{name: "mean motion second derivative", text: squeeze(line1[44:45] + "." + line1[45:50] + "e" + line1[50:52])},
		{name: "bstar", text: squeeze(line1[53:54] + "." + line1[54:59] + "e" + line1[59:61])},
		{name: "inclination", text: squeeze(line2[8:16])},
		{name: "right ascension of node", text: squeeze(line2[17:25])},
		{name: "eccentricity", text: "." + line2[26:33]},
		{name: "argument of perigee", text: squeeze(line2[34:42])},
		{name: "mean anomaly", text: squeeze(line2[43:51])},
		{name: "mean motion", text: squeeze(line2[52:63])},
	}
}

// verifyChecksum applies the NORAD mod-10 rule: digits count their value,
// minus signs count one, everything else zero.
func verifyChecksum(line string) error {
	want := line[LineLength-1]
	if want < '0' || want > '9' {
		return fmt.Errorf("checksum column %q is not a digit", want)
	}
	sum := 0
	for _, c := range line[:LineLength-1] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	if got := byte('0' + sum%10); got != want {
		return fmt.Errorf("checksum %c, computed %c", want, got)
	}
	return nil
}

// BrandPattern matches the satellite names of one constellation, e.g.
// "STARLINK-1007" or "ONEWEB-0012 (DEORBITED)" for brands starlink and
// oneweb. Matching is on the upper-cased brand.
func BrandPattern(brand string) *regexp.Regexp {
	b := regexp.QuoteMeta(strings.ToUpper(strings.TrimSpace(brand)))
	return regexp.MustCompile(b + `-[0-9]*.*\)|` + b + `.[0-9]*`)
}
