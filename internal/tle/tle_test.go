package tle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func tleText(names ...string) string {
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s\n%s\n%s\n", n, issLine1, issLine2)
	}
	return b.String()
}

// withChecksum rewrites the last column of a TLE line so that only the
// field under test is wrong.
func withChecksum(line string) string {
	sum := 0
	for _, c := range line[:LineLength-1] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return line[:LineLength-1] + string(rune('0'+sum%10))
}

func TestParse(t *testing.T) {
	input := "ISS (ZARYA)             \r\n" + issLine1 + "\r\n" + issLine2 + "\r\n\n" +
		"GARBAGE\nnot a line\n" +
		"STARLINK-1007\n" + issLine1 + "\n" + issLine2 + "\n"

	got, err := Parse(context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Parse returned %d entries, want 2", len(got))
	}
	if got[0].Name != "ISS (ZARYA)" || got[1].Name != "STARLINK-1007" {
		t.Fatalf("names = %q, %q", got[0].Name, got[1].Name)
	}
	if got[0].Line1 != issLine1 || got[0].Line2 != issLine2 {
		t.Fatalf("lines not preserved: %#v", got[0])
	}
	if got[0].CatalogNumber() != "25544" {
		t.Fatalf("CatalogNumber() = %q", got[0].CatalogNumber())
	}
}

func TestParseRejectsInputWithoutEntries(t *testing.T) {
	_, err := Parse(context.Background(), strings.NewReader("a\nb\nc\nd\n"), nil)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Parse error = %v, want ErrMalformed", err)
	}
	got, err := Parse(context.Background(), strings.NewReader(""), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty input = %v, %v", got, err)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(issLine1, issLine2); err != nil {
		t.Fatalf("Validate(ISS) error = %v", err)
	}
	tests := map[string][2]string{
		"short line1":       {issLine1[:60], issLine2},
		"short line2":       {issLine1, issLine2[:68]},
		"swapped":           {issLine2, issLine1},
		"catalogue differs": {issLine1, "2 25545" + issLine2[7:]},
		"bad checksum":      {issLine1[:68] + "8", issLine2},
		"checksum letter":   {issLine1, issLine2[:68] + "x"},
		"inclination":       {issLine1, withChecksum(strings.Replace(issLine2, "51.6416", "51.64X6", 1))},
		"epoch year":        {withChecksum(strings.Replace(issLine1, "08264", "0 264", 1)), issLine2},
		"bstar exponent":    {withChecksum(strings.Replace(issLine1, "-11606-4", "-11606-Z", 1)), issLine2},
		"eccentricity":      {issLine1, withChecksum(strings.Replace(issLine2, "0006703", "00067.3", 1))},
		"mean motion":       {issLine1, withChecksum(strings.Replace(issLine2, "15.72125391", "15.72 2 5 1", 1))},
	}
	if err := Validate(withChecksum(issLine1), withChecksum(issLine2)); err != nil {
		t.Fatalf("withChecksum altered a valid pair: %v", err)
	}
	for name, lines := range tests {
		t.Run(name, func(t *testing.T) {
			if err := Validate(lines[0], lines[1]); !errors.Is(err, ErrMalformed) {
				t.Fatalf("Validate error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestBrandPattern(t *testing.T) {
	p := BrandPattern("oneweb")
	for _, name := range []string{"ONEWEB-0012", "ONEWEB-0108 (DEORBITED)"} {
		if !p.MatchString(name) {
			t.Fatalf("BrandPattern(oneweb) does not match %q", name)
		}
	}
	for _, name := range []string{"STARLINK-1007", "ISS (ZARYA)", "oneweb-0012"} {
		if p.MatchString(name) {
			t.Fatalf("BrandPattern(oneweb) matches %q", name)
		}
	}
	if got := p.FindString("ONEWEB-0108 (DEORBITED)"); got != "ONEWEB-0108 (DEORBITED)" {
		t.Fatalf("FindString = %q", got)
	}
}

func TestFetcher(t *testing.T) {
	body := tleText("ONEWEB-0012")
	var path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		if r.URL.Path == "/supplemental/missing.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	f := NewFetcher(server.URL+"/supplemental/", nil)
	data, err := f.Fetch(context.Background(), "OneWeb")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(data) != body {
		t.Fatalf("body mismatch: got %d bytes, want %d", len(data), len(body))
	}
	if got := path.Load(); got != "/supplemental/oneweb.txt" {
		t.Fatalf("requested %v, want /supplemental/oneweb.txt", got)
	}

	_, err = f.Fetch(context.Background(), "missing")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("Fetch(missing) error = %v, want status 404", err)
	}
}

func TestFileCacheRoundTripAndPrune(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir, 2)
	ctx := context.Background()

	if _, _, err := c.Latest(ctx, "starlink"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Latest on empty cache error = %v, want ErrCacheMiss", err)
	}

	base := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		data := []byte(fmt.Sprintf("file %d", i))
		if err := c.Put(ctx, "starlink", data, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	if err := c.Put(ctx, "oneweb", []byte("other brand"), base); err != nil {
		t.Fatalf("Put oneweb: %v", err)
	}

	data, ts, err := c.Latest(ctx, "starlink")
	if err != nil {
		t.Fatalf("Latest error: %v", err)
	}
	if string(data) != "file 2" || !ts.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("Latest = %q at %v", data, ts)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "tle_starlink_*.txt"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("kept %d starlink files, want 2", len(matches))
	}
	if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("tle_oneweb_%d.txt", base.Unix()))); err != nil {
		t.Fatalf("other brand pruned: %v", err)
	}
}

func TestSourcePrefersFreshCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(tleText("STARLINK-1007")))
	}))
	defer server.Close()

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	metrics := &sourceMetrics{}
	src := &Source{
		Fetcher: NewFetcher(server.URL, nil),
		Cache:   NewFileCache(t.TempDir(), 3),
		MaxAge:  time.Hour,
		Metrics: metrics,
		now:     func() time.Time { return now },
	}
	ctx := context.Background()

	if _, _, err := src.Load(ctx, "starlink"); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	now = now.Add(30 * time.Minute)
	if _, fetchedAt, err := src.Load(ctx, "starlink"); err != nil || !fetchedAt.Equal(now.Add(-30*time.Minute)) {
		t.Fatalf("second Load fetchedAt=%v err=%v", fetchedAt, err)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hit %d times, want 1", hits.Load())
	}

	now = now.Add(2 * time.Hour)
	if _, _, err := src.Load(ctx, "starlink"); err != nil {
		t.Fatalf("stale Load: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("stale cache not refreshed: %d hits", hits.Load())
	}
	if metrics.downloads != 2 || metrics.hits != 1 || metrics.misses != 2 {
		t.Fatalf("metrics = %+v", metrics)
	}
}

func TestSourceWithoutFetcherNeedsCache(t *testing.T) {
	src := &Source{Cache: NewFileCache(t.TempDir(), 1), MaxAge: time.Hour}
	if _, _, err := src.Load(context.Background(), "starlink"); err == nil {
		t.Fatalf("expected error with empty cache and no fetcher")
	}
}

type sourceMetrics struct {
	downloads, hits, misses int
}

func (m *sourceMetrics) ObserveDownload(time.Duration) { m.downloads++ }

func (m *sourceMetrics) ObserveCacheLookup(hit bool) {
	if hit {
		m.hits++
		return
	}
	m.misses++
}
