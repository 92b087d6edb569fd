package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterFreshSessionShowsAll(t *testing.T) {
	tr := NewTracker()
	ids := []string{"SE/RA/1:1", "SE/RA/1:2", "SE/RA/1:3"}

	shown, stubbed := tr.Filter("s1", ids, true)
	assert.Equal(t, ids, shown)
	assert.Empty(t, stubbed)

	shown, stubbed = tr.Filter("s1", ids, true)
	assert.Empty(t, shown)
	assert.Equal(t, ids, stubbed)
}

func TestFilterDedupDisabledStillMarks(t *testing.T) {
	tr := NewTracker()
	ids := []string{"a", "b"}

	shown, stubbed := tr.Filter("s1", ids, false)
	assert.Equal(t, ids, shown)
	assert.Empty(t, stubbed)

	shown, stubbed = tr.Filter("s1", ids, false)
	assert.Equal(t, ids, shown)
	assert.Empty(t, stubbed)

	for _, id := range ids {
		assert.True(t, tr.HasSeen("s1", id))
	}
}

func TestFilterMixed(t *testing.T) {
	tr := NewTracker()
	tr.MarkSeen("s1", "b")

	shown, stubbed := tr.Filter("s1", []string{"a", "b", "c"}, true)
	assert.Equal(t, []string{"a", "c"}, shown)
	assert.Equal(t, []string{"b"}, stubbed)
}

func TestPartitionDoesNotMark(t *testing.T) {
	tr := NewTracker()
	tr.Partition("s1", []string{"a"}, true)
	assert.False(t, tr.HasSeen("s1", "a"))
	assert.Equal(t, 0, tr.Len("s1"))
}

func TestSessionsAreIsolated(t *testing.T) {
	tr := NewTracker()
	tr.MarkSeen("s1", "a")

	assert.True(t, tr.HasSeen("s1", "a"))
	assert.False(t, tr.HasSeen("s2", "a"))
	assert.False(t, tr.HasSeen("unknown", "a"))
	assert.False(t, tr.HasSeen(Scope("s1", "browse"), "a"))
}

func TestReset(t *testing.T) {
	tr := NewTracker()
	tr.MarkSeen("s1", "a", "b")
	assert.Equal(t, 2, tr.Len("s1"))

	tr.Reset()
	assert.Equal(t, 0, tr.Len("s1"))
	assert.False(t, tr.HasSeen("s1", "a"))
}

func TestStub(t *testing.T) {
	assert.Equal(t, "SE/RA/420422/01:5: already shown", Stub("SE/RA/420422/01:5"))
}

func TestConcurrentMarkSeen(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.MarkSeen("s1", fmt.Sprintf("id-%d", i))
			tr.HasSeen("s1", "id-0")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, tr.Len("s1"))
}
