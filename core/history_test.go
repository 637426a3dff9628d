package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	hm := NewHistoryManager(path)
	th := hm.GetTaskHistory("backup")
	th.Add("a/b.txt", 42)
	th.Add("c.txt", 7)
	th.Remove("c.txt")
	require.NoError(t, hm.Save())

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded := NewHistoryManager(path)
	require.NoError(t, loaded.Load())
	rec, ok := loaded.GetTaskHistory("backup").Get("a/b.txt")
	require.True(t, ok)
	assert.Equal(t, int64(42), rec.Size)
	assert.False(t, rec.TransferredAt.IsZero())

	_, ok = loaded.GetTaskHistory("backup").Get("c.txt")
	assert.False(t, ok)
}

func TestHistoryLoadMissingFile(t *testing.T) {
	hm := NewHistoryManager(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, hm.Load())
	assert.Empty(t, hm.GetTaskHistory("any").Snapshot())
}

func TestHistoryLoadFillsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"empty": {}}`), 0644))

	hm := NewHistoryManager(path)
	require.NoError(t, hm.Load())
	assert.NotPanics(t, func() { hm.GetTaskHistory("empty").Add("x", 1) })
}

func TestHistoryLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	assert.Error(t, NewHistoryManager(path).Load())
}

func TestSnapshotIsACopy(t *testing.T) {
	th := NewHistoryManager("").GetTaskHistory("t")
	th.Add("a", 1)
	snap := th.Snapshot()
	delete(snap, "a")
	_, ok := th.Get("a")
	assert.True(t, ok)
}

func TestHistoryConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	hm := NewHistoryManager(path)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hm.GetTaskHistory(fmt.Sprintf("task-%d", i%5)).Add(fmt.Sprintf("f%d.txt", i), int64(i))
			errs <- hm.Save()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	loaded := NewHistoryManager(path)
	require.NoError(t, loaded.Load())
	assert.Len(t, loaded.Tasks, 5)
	_, ok := loaded.GetTaskHistory("task-3").Get("f98.txt")
	assert.True(t, ok)
}
