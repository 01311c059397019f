package guard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquire_FailsWhenLiveLockHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")
	lock, err := Acquire(path, 0)
	require.NoError(t, err)
	defer lock.Release()

	_, err = Acquire(path, 0)
	require.Error(t, err)
}

func TestAcquire_ReplacesStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")
	require.NoError(t, os.WriteFile(path, []byte(`{"pid":999999,"createdAt":"2020-01-01T00:00:00Z"}`), 0o600))

	lock, err := Acquire(path, 0)
	require.NoError(t, err)
	require.NotNil(t, lock)
	require.NoError(t, lock.Release())
}

func TestRelease_OnlyRemovesOwnedLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")
	lock, err := Acquire(path, 0)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))

	require.NoError(t, lock.Release())
}
