// Package config loads the YAML run configuration for the track command.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CLEOsat-group/satellite-tracking/core"
	"github.com/CLEOsat-group/satellite-tracking/model"
)

// EnvWorkers overrides run.workers when set.
const EnvWorkers = "TRACK_WORKERS"

// Defaults applied to optional keys.
const (
	DefaultCompleteFile = "complete.txt"
	DefaultSimpleFile   = "simple.txt"
	DefaultCacheDir     = ".tle-cache"
	DefaultCacheFiles   = 5
)

// Config is the whole run configuration file.
type Config struct {
	Observatory Observatory `yaml:"observatory"`
	Constraints Constraints `yaml:"constraints"`
	Time        Time        `yaml:"time"`
	Catalogue   Catalogue   `yaml:"catalogue"`
	Output      Output      `yaml:"output"`
	Run         Run         `yaml:"run"`
}

// Observatory either names a built-in site or spells out the coordinates.
// Explicit fields win over the site table.
type Observatory struct {
	Site      string   `yaml:"site,omitempty"`
	Name      string   `yaml:"name,omitempty"`
	Latitude  Angle    `yaml:"latitude,omitempty"`
	Longitude Angle    `yaml:"longitude,omitempty"` // positive west
	Altitude  *float64 `yaml:"altitude,omitempty"`  // metres
	UTCOffset *float64 `yaml:"utc_offset,omitempty"`
}

// Constraints mirrors model.ObservationConstraints; every key is required.
type Constraints struct {
	LowestAltitudeSatellite *float64 `yaml:"lowest_altitude_satellite"`
	SunZenithLowest         *float64 `yaml:"sun_zenith_lowest"`
	SunZenithHighest        *float64 `yaml:"sun_zenith_highest"`
}

// Time holds the observation date and exactly one window form: a named
// window or a start/finish pair in UTC.
type Time struct {
	Year    int           `yaml:"year"`
	Month   int           `yaml:"month"`
	Day     int           `yaml:"day"`
	Window  string        `yaml:"window,omitempty"`
	Start   string        `yaml:"start,omitempty"`
	Finish  string        `yaml:"finish,omitempty"`
	Cadence time.Duration `yaml:"cadence"`
}

// Catalogue says where the TLE file comes from.
type Catalogue struct {
	Brand    string `yaml:"brand"`
	Download bool   `yaml:"download"`
	File     string `yaml:"file,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Cache    Cache  `yaml:"cache"`
}

// Cache configures where downloaded TLE files are kept. A Redis address
// selects the shared cache instead of the directory.
type Cache struct {
	Directory     string        `yaml:"directory,omitempty"`
	MaxFiles      int           `yaml:"max_files,omitempty"`
	MaxAge        time.Duration `yaml:"max_age,omitempty"`
	RedisAddr     string        `yaml:"redis_addr,omitempty"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	RedisDB       int           `yaml:"redis_db,omitempty"`
}

// Output names the report directory and files.
type Output struct {
	Directory string `yaml:"directory"`
	Complete  string `yaml:"complete,omitempty"`
	Simple    string `yaml:"simple,omitempty"`
}

// Run holds execution knobs.
type Run struct {
	Workers     int    `yaml:"workers,omitempty"`
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// Angle is a coordinate written either as decimal degrees or as a list of
// one to three degree, minute and second parts.
type Angle []float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Angle) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := value.Decode(&v); err != nil {
			return fmt.Errorf("line %d: angle: %w", value.Line, err)
		}
		*a = Angle{v}
		return nil
	case yaml.SequenceNode:
		var parts []float64
		if err := value.Decode(&parts); err != nil {
			return fmt.Errorf("line %d: angle: %w", value.Line, err)
		}
		if len(parts) == 0 || len(parts) > 3 {
			return fmt.Errorf("line %d: angle needs 1 to 3 parts, got %d", value.Line, len(parts))
		}
		*a = Angle(parts)
		return nil
	default:
		return fmt.Errorf("line %d: angle must be a number or a list", value.Line)
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses a configuration, fills defaults and validates it. Unknown
// keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty configuration", core.ErrConfiguration)
		}
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Output.Complete == "" {
		c.Output.Complete = DefaultCompleteFile
	}
	if c.Output.Simple == "" {
		c.Output.Simple = DefaultSimpleFile
	}
	if c.Catalogue.Cache.Directory == "" {
		c.Catalogue.Cache.Directory = DefaultCacheDir
	}
	if c.Catalogue.Cache.MaxFiles == 0 {
		c.Catalogue.Cache.MaxFiles = DefaultCacheFiles
	}
}

// Validate reports every missing or invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	obs := c.Observatory
	if obs.Site != "" {
		if _, ok := LookupSite(obs.Site); !ok {
			add("observatory.site: unknown site %q", obs.Site)
		}
	}
	if len(obs.Latitude) == 0 && obs.Site == "" {
		add("observatory.latitude: required")
	}
	if len(obs.Longitude) == 0 && obs.Site == "" {
		add("observatory.longitude: required")
	}
	if obs.Altitude == nil && obs.Site == "" {
		add("observatory.altitude: required")
	}
	if obs.UTCOffset == nil && obs.Site == "" {
		add("observatory.utc_offset: required")
	}

	cons := c.Constraints
	if cons.LowestAltitudeSatellite == nil {
		add("constraints.lowest_altitude_satellite: required")
	} else if v := *cons.LowestAltitudeSatellite; v < -90 || v > 90 {
		add("constraints.lowest_altitude_satellite: %g outside [-90, 90]", v)
	}
	if cons.SunZenithLowest == nil {
		add("constraints.sun_zenith_lowest: required")
	}
	if cons.SunZenithHighest == nil {
		add("constraints.sun_zenith_highest: required")
	}
	if cons.SunZenithLowest != nil && cons.SunZenithHighest != nil &&
		*cons.SunZenithLowest >= *cons.SunZenithHighest {
		add("constraints: sun_zenith_lowest %g must be below sun_zenith_highest %g",
			*cons.SunZenithLowest, *cons.SunZenithHighest)
	}

	tm := c.Time
	if tm.Year == 0 || tm.Month == 0 || tm.Day == 0 {
		add("time: year, month and day are required")
	}
	explicit := tm.Start != "" || tm.Finish != ""
	switch {
	case tm.Window != "" && explicit:
		add("time: set either window or start/finish, not both")
	case tm.Window == "" && !explicit:
		add("time: one of window or start/finish is required")
	case tm.Window != "":
		if tm.Window != model.WindowMorning && tm.Window != model.WindowEvening {
			add("time.window: %q is neither %q nor %q", tm.Window, model.WindowMorning, model.WindowEvening)
		}
	default:
		if _, err := ParseClock(tm.Start); err != nil {
			add("time.start: %v", err)
		}
		if _, err := ParseClock(tm.Finish); err != nil {
			add("time.finish: %v", err)
		}
	}
	switch {
	case tm.Cadence <= 0:
		add("time.cadence: must be a positive duration")
	case tm.Cadence%time.Second != 0:
		add("time.cadence: %s is not a whole number of seconds", tm.Cadence)
	}

	cat := c.Catalogue
	if strings.TrimSpace(cat.Brand) == "" {
		add("catalogue.brand: required")
	}
	if !cat.Download && cat.File == "" {
		add("catalogue.file: required when download is false")
	}
	if cat.Cache.MaxFiles < 0 {
		add("catalogue.cache.max_files: must not be negative")
	}
	if cat.Cache.MaxAge < 0 {
		add("catalogue.cache.max_age: must not be negative")
	}

	if c.Output.Directory == "" {
		add("output.directory: required")
	}
	if c.Run.Workers < 0 {
		add("run.workers: must not be negative")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", core.ErrConfiguration, errors.Join(errs...))
}

// ApplyEnv applies environment overrides; getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s=%q is not a worker count", core.ErrConfiguration, EnvWorkers, v)
		}
		c.Run.Workers = n
	}
	return nil
}

// SetDate replaces the observation date with a YYYY-MM-DD value.
func (c *Config) SetDate(s string) error {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("%w: date %q: %w", core.ErrConfiguration, s, err)
	}
	c.Time.Year, c.Time.Month, c.Time.Day = d.Year(), int(d.Month()), d.Day()
	return nil
}

// SetWindow switches to a named window, dropping any start/finish pair.
func (c *Config) SetWindow(name string) error {
	if name != model.WindowMorning && name != model.WindowEvening {
		return fmt.Errorf("%w: window %q is neither %q nor %q",
			core.ErrConfiguration, name, model.WindowMorning, model.WindowEvening)
	}
	c.Time.Window = name
	c.Time.Start, c.Time.Finish = "", ""
	return nil
}

// ObservatoryInput merges the site table entry with explicit fields.
func (c *Config) ObservatoryInput() (core.ObservatoryInput, error) {
	obs := c.Observatory
	var in core.ObservatoryInput
	if obs.Site != "" {
		site, ok := LookupSite(obs.Site)
		if !ok {
			return in, fmt.Errorf("%w: unknown site %q", core.ErrConfiguration, obs.Site)
		}
		in = site.Input()
	}
	if obs.Name != "" {
		in.Name = obs.Name
	}
	if len(obs.Latitude) > 0 {
		in.Latitude = append([]float64(nil), obs.Latitude...)
	}
	if len(obs.Longitude) > 0 {
		in.Longitude = append([]float64(nil), obs.Longitude...)
	}
	if obs.Altitude != nil {
		in.Altitude = *obs.Altitude
	}
	if obs.UTCOffset != nil {
		in.UTCOffset = *obs.UTCOffset
	}
	return in, nil
}

// ObservationConstraints returns the visibility thresholds. Validate must have passed.
func (c *Config) ObservationConstraints() model.ObservationConstraints {
	return model.ObservationConstraints{
		MinSatelliteAltitude: deref(c.Constraints.LowestAltitudeSatellite),
		SunZenithLower:       deref(c.Constraints.SunZenithLowest),
		SunZenithUpper:       deref(c.Constraints.SunZenithHighest),
	}
}

// WindowSpec returns the unresolved observation window.
func (c *Config) WindowSpec() (model.TimeWindowSpec, error) {
	tm := c.Time
	spec := model.TimeWindowSpec{
		Date:    model.Date{Year: tm.Year, Month: time.Month(tm.Month), Day: tm.Day},
		Cadence: tm.Cadence,
	}
	if tm.Window != "" {
		spec.Kind = model.NamedWindow
		spec.Name = tm.Window
		return spec, nil
	}

	start, err := ParseClock(tm.Start)
	if err != nil {
		return spec, fmt.Errorf("%w: time.start: %w", core.ErrConfiguration, err)
	}
	finish, err := ParseClock(tm.Finish)
	if err != nil {
		return spec, fmt.Errorf("%w: time.finish: %w", core.ErrConfiguration, err)
	}
	spec.Kind = model.ExplicitWindow
	spec.Start, spec.Finish = start, finish
	return spec, nil
}

// Encode writes the configuration as YAML.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// ParseClock parses "hh:mm:ss" or "hh:mm". Ranges are checked when the
// window is resolved.
func ParseClock(s string) (model.ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return model.ClockTime{}, fmt.Errorf("clock %q is not hh:mm[:ss]", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return model.ClockTime{}, fmt.Errorf("clock %q is not hh:mm[:ss]", s)
		}
		v[i] = n
	}
	return model.ClockTime{Hour: v[0], Minute: v[1], Second: v[2]}, nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
