package kb

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/CLEOsat-group/satellite-tracking/model"
)

var (
	// ErrNotFound indicates no record carries the requested name.
	ErrNotFound = errors.New("satellite not found")
	// ErrDuplicate indicates a record with the same name is already stored.
	ErrDuplicate = errors.New("satellite already exists")
)

// EventType indicates what kind of change happened in the catalogue.
type EventType int

const (
	EventRecordAdded EventType = iota
)

// Event is emitted to subscribers when the catalogue changes.
type Event struct {
	Type   EventType
	Record model.TLE
	Size   int
}

// Catalogue is an in-memory, thread-safe store of TLE records keyed by
// satellite name. Names keep their insertion order.
type Catalogue struct {
	mu sync.RWMutex

	records map[string]model.TLE
	order   []string

	subs []func(Event)
}

// NewCatalogue constructs an empty catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{
		records: make(map[string]model.TLE),
	}
}

// Add stores a record. It returns ErrDuplicate if the name already exists.
func (c *Catalogue) Add(rec model.TLE) error {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return fmt.Errorf("record has no name")
	}
	rec.Name = name

	c.mu.Lock()
	if _, exists := c.records[name]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	c.records[name] = rec
	c.order = append(c.order, name)
	event := Event{Type: EventRecordAdded, Record: rec, Size: len(c.order)}
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Load adds every record, keeping the first of any repeated name. It
// returns the names that were skipped as duplicates.
func (c *Catalogue) Load(recs []model.TLE) (skipped []string, err error) {
	for _, rec := range recs {
		if err := c.Add(rec); err != nil {
			if errors.Is(err, ErrDuplicate) {
				skipped = append(skipped, strings.TrimSpace(rec.Name))
				continue
			}
			return skipped, err
		}
	}
	return skipped, nil
}

// Get returns the record with exactly the given name.
func (c *Catalogue) Get(name string) (model.TLE, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[strings.TrimSpace(name)]
	if !ok {
		return model.TLE{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return rec, nil
}

// Resolve looks a name up exactly and falls back to a case-insensitive
// comparison, so "starlink-1007" finds "STARLINK-1007".
func (c *Catalogue) Resolve(name string) (model.TLE, error) {
	if rec, err := c.Get(name); err == nil {
		return rec, nil
	}
	want := strings.TrimSpace(name)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range c.order {
		if strings.EqualFold(n, want) {
			return c.records[n], nil
		}
	}
	return model.TLE{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Match returns, in insertion order, the names that contain a match for
// pattern.
func (c *Catalogue) Match(pattern *regexp.Regexp) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var res []string
	for _, n := range c.order {
		if pattern.MatchString(n) {
			res = append(res, n)
		}
	}
	return res
}

// Names returns a snapshot of all names in insertion order.
func (c *Catalogue) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Len returns the number of stored records.
func (c *Catalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Subscribe registers a callback for catalogue events. It returns an
// unsubscribe function.
func (c *Catalogue) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
	idx := len(c.subs) - 1

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < 0 || idx >= len(c.subs) {
			return
		}
		c.subs = append(c.subs[:idx], c.subs[idx+1:]...)
		idx = -1
	}
}
