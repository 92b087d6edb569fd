package cache

import (
	"context"
	"encoding/json"
)

// Nop is a Store that never holds anything. Used when caching is disabled.
type Nop struct{}

func (Nop) Get(Category, Params) Lookup { return Lookup{Status: Miss} }
func (Nop) Set(Category, Params, any)   {}
func (Nop) Delete(Category, Params)     {}
func (Nop) Clear(Category) int          { return 0 }
func (Nop) Stats() Stats                { return Stats{Counts: map[Category]int{}} }

var _ Store = Nop{}

// GetJSON decodes a fresh entry into out. A value that no longer decodes
// into out is reported as Corrupt and deleted.
func GetJSON(s Store, category Category, params Params, out any) Lookup {
	l := s.Get(category, params)
	if !l.OK() {
		return l
	}
	if err := json.Unmarshal(l.Entry.Value, out); err != nil {
		s.Delete(category, params)
		return Lookup{Status: Corrupt, Err: err}
	}
	return l
}

// Fetch returns the cached value for (category, params) or calls fetch and
// stores its result. Nothing is stored when fetch fails, so a cancelled or
// failed call never leaves a partial entry behind.
func Fetch[T any](ctx context.Context, s Store, category Category, params Params, fetch func(context.Context) (T, error)) (T, Lookup, error) {
	var cached T
	l := GetJSON(s, category, params, &cached)
	if l.OK() {
		return cached, l, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, l, err
	}
	if ctx.Err() == nil {
		s.Set(category, params, v)
	}
	return v, l, nil
}
