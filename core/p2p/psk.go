package p2p

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	pnet "github.com/libp2p/go-libp2p/core/pnet"
)

// LoadPSK reads the cluster's pre-shared key from path. The file uses the
// standard v1 swarm key format: two header lines followed by the hex-encoded
// 256-bit key. Every node must carry the same key; hosts built with it refuse
// any connection from outside the private network.
func LoadPSK(path string) (pnet.PSK, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("swarm key %s not found; generate one shared by all nodes with:\n"+
				"  { printf '/key/swarm/psk/1.0.0/\\n/base16/\\n'; openssl rand -hex 32; } > %s", path, path)
		}
		return nil, fmt.Errorf("failed to open swarm key: %w", err)
	}
	defer f.Close()

	psk, err := pnet.DecodeV1PSK(f)
	if err != nil {
		return nil, fmt.Errorf("invalid swarm key %s: %w", path, err)
	}
	return psk, nil
}
