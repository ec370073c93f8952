package config

import (
	"sort"
	"strings"

	"github.com/CLEOsat-group/satellite-tracking/core"
)

// Site is a built-in observatory. Longitude is positive west, the same
// convention as the configuration file.
type Site struct {
	Name      string
	Latitude  float64
	Longitude float64
	Altitude  float64 // metres
	UTCOffset float64
}

var sites = map[string]Site{
	"lasilla":     {Name: "La Silla Observatory", Latitude: -29.2567, Longitude: 70.7300, Altitude: 2400, UTCOffset: 4},
	"paranal":     {Name: "Paranal Observatory", Latitude: -24.6275, Longitude: 70.4044, Altitude: 2635, UTCOffset: 4},
	"cerropachon": {Name: "Cerro Pachon", Latitude: -30.2407, Longitude: 70.7366, Altitude: 2715, UTCOffset: 4},
	"ctio":        {Name: "Cerro Tololo Inter-American Observatory", Latitude: -30.1690, Longitude: 70.8063, Altitude: 2207, UTCOffset: 4},
	"lco":         {Name: "Las Campanas Observatory", Latitude: -29.0146, Longitude: 70.6926, Altitude: 2380, UTCOffset: 4},
	"maunakea":    {Name: "Mauna Kea Observatories", Latitude: 19.8206, Longitude: 155.4681, Altitude: 4205, UTCOffset: 10},
	"roquemuchachos": {
		Name: "Roque de los Muchachos Observatory", Latitude: 28.7606, Longitude: 17.8816, Altitude: 2396, UTCOffset: 0,
	},
}

// LookupSite finds a built-in site. Keys ignore case, spaces, dashes and
// underscores, so "La Silla" and "la_silla" both match.
func LookupSite(key string) (Site, bool) {
	s, ok := sites[siteKey(key)]
	return s, ok
}

// SiteKeys lists the built-in site keys in order.
func SiteKeys() []string {
	keys := make([]string, 0, len(sites))
	for k := range sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Input returns the site as raw observatory input.
func (s Site) Input() core.ObservatoryInput {
	return core.ObservatoryInput{
		Name:      s.Name,
		Latitude:  []float64{s.Latitude},
		Longitude: []float64{s.Longitude},
		Altitude:  s.Altitude,
		UTCOffset: s.UTCOffset,
	}
}

func siteKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}
