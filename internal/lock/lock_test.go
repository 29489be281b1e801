package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	first := NewFileLock(path)
	require.NoError(t, first.TryLock())

	second := NewFileLock(path)
	err := second.TryLock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another vaultd may be running")

	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}

func TestFileLockRecordsPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	fl := NewFileLock(path)
	require.NoError(t, fl.TryLock())
	defer fl.Unlock()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestFileLockUnlockWithoutLock(t *testing.T) {
	fl := NewFileLock(filepath.Join(t.TempDir(), "daemon.lock"))
	assert.NoError(t, fl.Unlock())
}

func TestMutexMapSerializesPerKey(t *testing.T) {
	m := NewMutexMap()

	var today, tomorrow int
	counters := map[string]*int{
		"2026-03-10.json": &today,
		"2026-03-11.json": &tomorrow,
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for key, counter := range counters {
			wg.Add(1)
			go func(key string, counter *int) {
				defer wg.Done()
				m.Lock(key)
				*counter++
				m.Unlock(key)
			}(key, counter)
		}
	}
	wg.Wait()

	assert.Equal(t, 50, today)
	assert.Equal(t, 50, tomorrow)
}
