package tle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrCacheMiss indicates the cache holds no file for a brand.
var ErrCacheMiss = errors.New("TLE cache miss")

// Cache stores downloaded TLE files per constellation brand.
type Cache interface {
	Put(ctx context.Context, brand string, data []byte, fetchedAt time.Time) error
	// Latest returns the newest file and its download time, or ErrCacheMiss.
	Latest(ctx context.Context, brand string) ([]byte, time.Time, error)
}

// FileCache manages TLE files on disk as tle_<brand>_<unix>.txt.
type FileCache struct {
	dir      string
	maxFiles int
}

// NewFileCache creates a FileCache that stores files in dir and keeps at
// most maxFiles per brand.
func NewFileCache(dir string, maxFiles int) *FileCache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &FileCache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

var brandSanitizer = regexp.MustCompile(`[^a-z0-9-]+`)

func cacheBrand(brand string) string {
	return brandSanitizer.ReplaceAllString(strings.ToLower(brand), "-")
}

// Put saves data to a timestamped file and prunes old files beyond maxFiles.
func (c *FileCache) Put(_ context.Context, brand string, data []byte, fetchedAt time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	filename := fmt.Sprintf("tle_%s_%d.txt", cacheBrand(brand), fetchedAt.Unix())
	path := filepath.Join(c.dir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune(brand)
}

// Latest reads the newest cache file for brand by the timestamp in its name.
func (c *FileCache) Latest(_ context.Context, brand string) ([]byte, time.Time, error) {
	files, err := c.listFiles(brand)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w: no files for %s in %s", ErrCacheMiss, brand, c.dir)
	}

	// Files are sorted oldest first; take the last one.
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

func (c *FileCache) listFiles(brand string) ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	prefix := "tle_" + cacheBrand(brand) + "_"
	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".txt") {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".txt")
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0).UTC()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (c *FileCache) prune(brand string) error {
	files, err := c.listFiles(brand)
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}
