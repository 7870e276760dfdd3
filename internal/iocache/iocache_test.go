package iocache

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/socinabox/modwatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetManager clears the global manager between tests.
func resetManager(t *testing.T) {
	t.Helper()
	initOnce = sync.Once{}
	closeOnce = sync.Once{}
	Manager = &CacheStoreManager{}
	t.Cleanup(func() {
		CloseStores()
		initOnce = sync.Once{}
		closeOnce = sync.Once{}
		Manager = &CacheStoreManager{}
	})
}

func TestInitStores(t *testing.T) {
	t.Run("cache only", func(t *testing.T) {
		resetManager(t)
		cachePath := filepath.Join(t.TempDir(), "cache.db")

		require.NoError(t, InitStores(schema.SQLiteBackend, cachePath, "", ""))
		assert.NotNil(t, Manager.GetCommitStore())
		assert.Nil(t, Manager.GetHistoryStore(), "history is disabled by default")

		_, err := os.Stat(cachePath)
		assert.NoError(t, err)
	})

	t.Run("both stores", func(t *testing.T) {
		resetManager(t)
		dir := t.TempDir()

		require.NoError(t, InitStores(schema.SQLiteBackend, filepath.Join(dir, "cache.db"), schema.SQLiteBackend, filepath.Join(dir, "history.db")))
		assert.NotNil(t, Manager.GetCommitStore())
		assert.NotNil(t, Manager.GetHistoryStore())
	})

	t.Run("idempotent", func(t *testing.T) {
		resetManager(t)
		cachePath := filepath.Join(t.TempDir(), "cache.db")

		require.NoError(t, InitStores(schema.SQLiteBackend, cachePath, "", ""))
		require.NoError(t, InitStores(schema.MySQLBackend, "bogus", "", ""))
		CloseStores()
		CloseStores()
	})

	t.Run("bad history backend", func(t *testing.T) {
		resetManager(t)

		err := InitStores(schema.SQLiteBackend, ":memory:", "oracle", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "history store")
		assert.Nil(t, Manager.GetCommitStore())
	})
}

func TestClearCache(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewCacheStore(commitCacheTable, schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ClearCache(schema.SQLiteBackend, dbPath, ""))
	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))

	// Missing files are not an error
	assert.NoError(t, ClearCache(schema.SQLiteBackend, dbPath, ""))
	assert.Error(t, ClearCache(schema.SQLiteBackend, "", ""))
	assert.NoError(t, ClearCache(schema.NoneBackend, "", ""))
	assert.Error(t, ClearCache("oracle", "", ""))
}

func TestClearHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := NewHistoryStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ClearHistory(schema.SQLiteBackend, dbPath, ""))
	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, ClearHistory("", "", ""))
}

func TestPrintStatusDisabled(t *testing.T) {
	resetManager(t)

	var buf bytes.Buffer
	require.NoError(t, PrintCacheStatus(&buf))
	require.NoError(t, PrintHistoryStatus(&buf))
	assert.Contains(t, buf.String(), "Commit cache is disabled")
	assert.Contains(t, buf.String(), "Run history is disabled")
}

func TestPrintStatusAndExport(t *testing.T) {
	resetManager(t)
	dir := t.TempDir()
	require.NoError(t, InitStores(schema.SQLiteBackend, filepath.Join(dir, "cache.db"), schema.SQLiteBackend, filepath.Join(dir, "history.db")))

	var buf bytes.Buffer
	err := ExecuteHistoryExport(&buf, filepath.Join(dir, "export"))
	require.Error(t, err, "nothing recorded yet")

	history := Manager.GetHistoryStore()
	runID, err := history.BeginRun(schema.DefaultRepo, schema.NewPollWindow(testNow, time.Hour), testNow)
	require.NoError(t, err)
	require.NoError(t, history.RecordChanges(runID, testRecords()))
	require.NoError(t, history.EndRun(runID, testNow.Add(time.Second), 2, schema.RunSucceeded, ""))
	require.NoError(t, Manager.GetCommitStore().Set("commit:r:abc", []byte("{}"), 1, testNow.Unix()))

	buf.Reset()
	require.NoError(t, PrintCacheStatus(&buf))
	assert.Contains(t, buf.String(), "Total Entries: 1")

	buf.Reset()
	require.NoError(t, PrintHistoryStatus(&buf))
	assert.Contains(t, buf.String(), "Total Runs: 1 (failed: 0)")
	assert.Contains(t, buf.String(), "modwatch_changes: 2 rows")

	buf.Reset()
	out := filepath.Join(dir, "export")
	require.NoError(t, ExecuteHistoryExport(&buf, out))
	assert.Contains(t, buf.String(), "Exported 1 runs")
	assert.Contains(t, buf.String(), "Exported 2 changes")
	assert.FileExists(t, out+".runs.parquet")
	assert.FileExists(t, out+".changes.parquet")

	assert.Error(t, ExecuteHistoryExport(&buf, ""))
}
