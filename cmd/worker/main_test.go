package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/ramcp/cache"
)

type failingPruner struct{ calls int }

func (f *failingPruner) Prune() (int, error) { f.calls++; return 0, errors.New("disk gone") }
func (f *failingPruner) Stats() cache.Stats  { return cache.Stats{} }

func TestPruneRemovesCorruptEntries(t *testing.T) {
	fc, err := cache.New(t.TempDir())
	require.NoError(t, err)
	fc.Set(cache.Search, cache.Params{"q": "a"}, "fresh")
	require.NoError(t, os.WriteFile(filepath.Join(fc.Dir(), "alto_0000000000000000.cache"), []byte("junk"), 0o600))

	prune(fc, zerolog.Nop())

	st := fc.Stats()
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Counts[cache.Search])
}

func TestPruneFailureIsLogged(t *testing.T) {
	p := &failingPruner{}
	prune(p, zerolog.Nop())
	assert.Equal(t, 1, p.calls)
}

func TestNewScheduler(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"@every 30m", false},
		{"*/5 * * * *", false},
		{"@hourly", false},
		{"not a schedule", true},
	}
	for _, tt := range tests {
		c, err := newScheduler(tt.spec, &failingPruner{}, zerolog.Nop())
		if (err != nil) != tt.wantErr {
			t.Errorf("newScheduler(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
		}
		if err == nil {
			assert.Len(t, c.Entries(), 1)
		}
	}
}
