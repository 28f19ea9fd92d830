package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReport(t *testing.T) {
	r := New()
	_, err := uuid.Parse(r.RunID)
	assert.NoError(t, err)
	assert.False(t, r.StartedAt.IsZero())
	assert.Empty(t, r.Entries)
	assert.NotEqual(t, r.RunID, New().RunID)
}

func TestAddCountsAndRejectsDuplicates(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(Entry{EntityID: "italy", Status: StatusSuccess, Provider: "manual"}))
	require.NoError(t, r.Add(Entry{EntityID: "spain", Status: StatusSuccess, Provider: "wikimedia", Attempts: 1}))
	require.NoError(t, r.Add(Entry{EntityID: "spain/barcelona", Status: StatusSkipped}))
	require.NoError(t, r.Add(Entry{EntityID: "atlantis", Status: StatusFailed, Attempts: 4, Reason: "all providers exhausted"}))

	assert.Error(t, r.Add(Entry{EntityID: "spain", Status: StatusFailed}))

	assert.Equal(t, Counts{Total: 4, Success: 2, Skipped: 1, Failed: 1}, r.Summary())
	assert.Len(t, r.ByStatus(StatusSuccess), 2)

	e, ok := r.Get("atlantis")
	require.True(t, ok)
	assert.Equal(t, 4, e.Attempts)
	_, ok = r.Get("nowhere")
	assert.False(t, ok)
}

func TestConcurrentAdd(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Add(Entry{EntityID: fmt.Sprintf("e%02d", i), Status: StatusSuccess})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Summary().Success)
}

func TestFinishSortsEntries(t *testing.T) {
	r := New()
	r.Add(Entry{EntityID: "spain", Status: StatusSuccess})
	r.Add(Entry{EntityID: "italy", Status: StatusSuccess})
	r.Finish()

	assert.Equal(t, "italy", r.Entries[0].EntityID)
	assert.False(t, r.FinishedAt.IsZero())
	assert.GreaterOrEqual(t, r.Duration().Nanoseconds(), int64(0))
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")

	r := New()
	r.Add(Entry{EntityID: "italy", Status: StatusSuccess, Provider: "manual", Bytes: 1234})
	r.Finish()
	require.NoError(t, r.Save(path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, loaded.RunID)
	assert.Equal(t, r.Counts, loaded.Counts)
	require.Len(t, loaded.Entries, 1)
	assert.Equal(t, int64(1234), loaded.Entries[0].Bytes)

	assert.Error(t, loaded.Add(Entry{EntityID: "italy"}))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
