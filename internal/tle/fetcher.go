package tle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CLEOsat-group/satellite-tracking/internal/logging"
)

// DefaultBaseURL serves one supplemental TLE file per constellation.
const DefaultBaseURL = "https://celestrak.com/NORAD/elements/supplemental"

// maxBodyBytes bounds a single download.
const maxBodyBytes = 50 << 20

// Fetcher retrieves raw TLE files over HTTP.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	log        logging.Logger
}

// NewFetcher creates a Fetcher rooted at baseURL, DefaultBaseURL when empty.
func NewFetcher(baseURL string, log logging.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// URL returns the file location for a constellation brand.
func (f *Fetcher) URL(brand string) string {
	return f.baseURL + "/" + url.PathEscape(strings.ToLower(brand)) + ".txt"
}

// Fetch performs an HTTP GET for the brand's TLE file.
func (f *Fetcher) Fetch(ctx context.Context, brand string) ([]byte, error) {
	src := f.URL(brand)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, src)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", src, maxBodyBytes)
	}

	f.log.Info(ctx, "fetched TLE file",
		logging.String("url", src),
		logging.Int("bytes", len(body)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return body, nil
}
