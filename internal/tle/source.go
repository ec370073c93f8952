package tle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CLEOsat-group/satellite-tracking/internal/logging"
)

// SourceMetrics receives download and cache lookup observations.
type SourceMetrics interface {
	ObserveDownload(d time.Duration)
	ObserveCacheLookup(hit bool)
}

// Source obtains a brand's TLE file from the cache while it is fresh and
// downloads it otherwise.
type Source struct {
	Fetcher *Fetcher
	Cache   Cache
	// MaxAge is how long a cached file stays fresh. Zero never trusts the
	// cache.
	MaxAge  time.Duration
	Metrics SourceMetrics
	Log     logging.Logger

	now func() time.Time
}

// Load returns the TLE file for brand and the time it was downloaded.
func (s *Source) Load(ctx context.Context, brand string) ([]byte, time.Time, error) {
	log := s.Log
	if log == nil {
		log = logging.Noop()
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}

	if s.Cache != nil && s.MaxAge > 0 {
		data, fetchedAt, err := s.Cache.Latest(ctx, brand)
		switch {
		case err == nil && now().Sub(fetchedAt) < s.MaxAge:
			s.observeLookup(true)
			log.Debug(ctx, "using cached TLE file",
				logging.String("brand", brand),
				logging.String("fetched_at", fetchedAt.Format(time.RFC3339)),
			)
			return data, fetchedAt, nil
		case err == nil, errors.Is(err, ErrCacheMiss):
			s.observeLookup(false)
		default:
			s.observeLookup(false)
			log.Warn(ctx, "TLE cache unavailable", logging.String("brand", brand), logging.Err(err))
		}
	}

	if s.Fetcher == nil {
		return nil, time.Time{}, fmt.Errorf("no fresh cached TLE file for %s and downloads are disabled", brand)
	}
	start := time.Now()
	data, err := s.Fetcher.Fetch(ctx, brand)
	if err != nil {
		return nil, time.Time{}, err
	}
	fetchedAt := now().UTC()
	if s.Metrics != nil {
		s.Metrics.ObserveDownload(time.Since(start))
	}

	if s.Cache != nil {
		if err := s.Cache.Put(ctx, brand, data, fetchedAt); err != nil {
			log.Warn(ctx, "storing TLE file in cache failed", logging.String("brand", brand), logging.Err(err))
		}
	}
	return data, fetchedAt, nil
}

func (s *Source) observeLookup(hit bool) {
	if s.Metrics != nil {
		s.Metrics.ObserveCacheLookup(hit)
	}
}
