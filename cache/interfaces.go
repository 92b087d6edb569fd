// Package cache provides the persistent, per-category TTL cache used for
// remote archive responses. Entries live one per file and expire lazily.
package cache

import (
	"encoding/json"
	"time"
)

// Category groups entries that share a TTL.
type Category string

const (
	Search    Category = "search"
	ALTO      Category = "alto"
	IIIF      Category = "iiif"
	Structure Category = "structure"
)

// DefaultTTL applies to categories without an explicit TTL.
const DefaultTTL = time.Hour

// TTLs are the per-category expiry windows. Search indices change often,
// archival content effectively never does.
var TTLs = map[Category]time.Duration{
	Search:    time.Hour,
	ALTO:      24 * time.Hour,
	IIIF:      24 * time.Hour,
	Structure: 24 * time.Hour,
}

// Categories lists the known categories in display order.
func Categories() []Category {
	return []Category{Search, ALTO, IIIF, Structure}
}

// TTL returns the expiry window for a category.
func (c Category) TTL() time.Duration {
	if ttl, ok := TTLs[c]; ok {
		return ttl
	}
	return DefaultTTL
}

// Params are the request parameters an entry is keyed by. Values must be
// JSON primitives.
type Params map[string]any

// Entry is the on-disk envelope
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Params    Params          `json:"params"`
	Value     json.RawMessage `json:"value"`
}

// Status classifies a lookup. Expired and Corrupt behave exactly like Miss
// for callers; they only exist for diagnostics.
type Status int

const (
	Miss Status = iota
	Hit
	Expired
	Corrupt
)

func (s Status) String() string {
	switch s {
	case Hit:
		return "hit"
	case Expired:
		return "expired"
	case Corrupt:
		return "corrupt"
	}
	return "miss"
}

// Lookup is the result of Get.
type Lookup struct {
	Status Status
	Entry  *Entry
	Err    error // set for Corrupt
}

// OK reports a fresh hit.
func (l Lookup) OK() bool { return l.Status == Hit }

// Reader defines the interface for reading cache entries
type Reader interface {
	Get(category Category, params Params) Lookup
}

// Writer defines the interface for writing cache entries
type Writer interface {
	// Set stores value. Failures are logged, never returned.
	Set(category Category, params Params, value any)
	// Delete drops the entry for params, if any.
	Delete(category Category, params Params)
}

// Store combines both cache operations with maintenance.
type Store interface {
	Reader
	Writer
	Clear(category Category) int
	Stats() Stats
}

// Stats summarises the cache contents.
type Stats struct {
	Counts map[Category]int
	Total  int
	Bytes  int64
}
