package pairing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateKeyPair_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keypair.json")

	first, err := LoadOrCreateKeyPair(path)
	require.NoError(t, err)
	require.NotEmpty(t, first.Public)
	require.NotEmpty(t, first.Private)

	second, err := LoadOrCreateKeyPair(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLoadOrCreateServerID_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_id")

	first, err := LoadOrCreateServerID(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := LoadOrCreateServerID(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
