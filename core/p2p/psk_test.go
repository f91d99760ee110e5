package p2p

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeKeyFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swarm.key")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadPSK(t *testing.T) {
	path := writeKeyFile(t, "/key/swarm/psk/1.0.0/\n/base16/\n"+strings.Repeat("ab", 32)+"\n")

	psk, err := LoadPSK(path)
	require.NoError(t, err)
	require.Len(t, psk, 32)
}

func TestLoadPSKMissingFile(t *testing.T) {
	_, err := LoadPSK(filepath.Join(t.TempDir(), "swarm.key"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "generate one")
}

func TestLoadPSKShortKey(t *testing.T) {
	path := writeKeyFile(t, "/key/swarm/psk/1.0.0/\n/base16/\n"+strings.Repeat("ab", 16)+"\n")

	_, err := LoadPSK(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid swarm key")
}

func TestLoadPSKWrongHeader(t *testing.T) {
	path := writeKeyFile(t, "/key/swarm/psk/9.9.9/\n/base16/\n"+strings.Repeat("ab", 32)+"\n")

	_, err := LoadPSK(path)
	require.Error(t, err)
}
