package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/internal/errs"
)

// staleTempAge is how old an orphaned temp file must be before Prune removes it.
const staleTempAge = time.Hour

// FileCache implements Store using one file per entry.
type FileCache struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

type Option func(*FileCache)

// WithClock overrides the time source used for timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(fc *FileCache) { fc.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(fc *FileCache) { fc.logger = l }
}

// DefaultDir returns ~/.cache/ra-mcp.
func DefaultDir() (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(usr.HomeDir, ".cache", "ra-mcp"), nil
}

// New creates a file cache rooted at dir, creating it if needed.
// An empty dir selects DefaultDir.
func New(dir string, opts ...Option) (*FileCache, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	fc := &FileCache{dir: dir, now: time.Now, logger: zerolog.Nop()}
	for _, o := range opts {
		o(fc)
	}
	return fc, nil
}

// Dir returns the cache directory.
func (fc *FileCache) Dir() string {
	return fc.dir
}

// Get implements Reader. Expired and corrupt entries are deleted.
func (fc *FileCache) Get(category Category, params Params) Lookup {
	key, err := KeyFor(category, params)
	if err != nil {
		return Lookup{Status: Miss, Err: err}
	}
	path := fc.path(category, key)

	entry, err := fc.read(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Lookup{Status: Miss}
	case err != nil:
		fc.remove(path)
		fc.logger.Warn().Err(err).Str("category", string(category)).Str("key", key).Msg("dropped corrupt cache entry")
		return Lookup{Status: Corrupt, Err: err}
	}

	if fc.expired(category, entry) {
		fc.remove(path)
		fc.logger.Debug().Str("category", string(category)).Str("key", key).Msg("cache entry expired")
		return Lookup{Status: Expired, Entry: entry}
	}
	return Lookup{Status: Hit, Entry: entry}
}

// Set implements Writer. Caching is an optimization, so errors are only logged.
func (fc *FileCache) Set(category Category, params Params, value any) {
	if err := fc.Write(category, params, value); err != nil {
		fc.logger.Warn().Err(err).Str("category", string(category)).Msg("cache write failed")
	}
}

// Delete implements Writer.
func (fc *FileCache) Delete(category Category, params Params) {
	key, err := KeyFor(category, params)
	if err != nil {
		return
	}
	fc.remove(fc.path(category, key))
}

// Write stores value and reports failures.
func (fc *FileCache) Write(category Category, params Params, value any) error {
	key, err := KeyFor(category, params)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}

	entry := Entry{
		Timestamp: fc.now(),
		Params:    params,
		Value:     raw,
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(fc.dir, 0o700); err != nil {
		return err
	}

	// Write to temporary file first, then rename (atomic operation)
	path := fc.path(category, key)
	tmp, err := os.CreateTemp(fc.dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Clear removes all entries of a category, or every entry when category is
// empty, and returns the number removed.
func (fc *FileCache) Clear(category Category) int {
	pattern := "*.cache"
	if category != "" {
		pattern = string(category) + "_*.cache"
	}
	matches, err := filepath.Glob(filepath.Join(fc.dir, pattern))
	if err != nil {
		return 0
	}

	count := 0
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			count++
		}
	}
	fc.logger.Info().Str("category", string(category)).Int("removed", count).Msg("cache cleared")
	return count
}

// Stats counts entries per category.
func (fc *FileCache) Stats() Stats {
	st := Stats{Counts: make(map[Category]int)}
	for _, c := range Categories() {
		st.Counts[c] = 0
	}

	entries, err := os.ReadDir(fc.dir)
	if err != nil {
		return st
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		category, ok := categoryOf(e.Name())
		if !ok {
			continue
		}
		st.Counts[category]++
		st.Total++
		if info, err := e.Info(); err == nil {
			st.Bytes += info.Size()
		}
	}
	return st
}

// Prune deletes expired and corrupt entries plus orphaned temp files.
func (fc *FileCache) Prune() (int, error) {
	entries, err := os.ReadDir(fc.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		path := filepath.Join(fc.dir, name)

		if strings.Contains(name, ".cache.tmp.") {
			if info, err := e.Info(); err == nil && fc.now().Sub(info.ModTime()) > staleTempAge {
				if os.Remove(path) == nil {
					removed++
				}
			}
			continue
		}

		category, ok := categoryOf(name)
		if !ok {
			continue
		}
		entry, err := fc.read(path)
		if err != nil || fc.expired(category, entry) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (fc *FileCache) expired(category Category, e *Entry) bool {
	return fc.now().Sub(e.Timestamp) > category.TTL()
}

func (fc *FileCache) read(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, &errs.CacheCorruptionError{Path: path, Err: err}
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, &errs.CacheCorruptionError{Path: path, Err: err}
	}
	if entry.Timestamp.IsZero() || len(entry.Value) == 0 {
		return nil, &errs.CacheCorruptionError{Path: path, Err: errors.New("incomplete envelope")}
	}
	return &entry, nil
}

func (fc *FileCache) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fc.logger.Debug().Err(err).Str("path", path).Msg("cache remove failed")
	}
}

// path generates the full filesystem path for a cache key
func (fc *FileCache) path(category Category, key string) string {
	return filepath.Join(fc.dir, FileName(category, key))
}

var _ Store = (*FileCache)(nil)
