package config

import "hash/fnv"

// HashBytes returns a stable 64-bit FNV-1a hash of b. Empty input returns 0.
// The config manager and the directory source use it to skip unchanged reloads.
func HashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
