package btrc

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// cacheKeyVersion is folded into the hash so a format change
// invalidates every stale entry at once.
const cacheKeyVersion = "v1\n"

// DiskCache memoizes emitted C keyed on a SHA-256 of the resolved
// source. The core pipeline never touches it; the driver consults it
// before compiling.
type DiskCache struct {
	dir string
}

func NewDiskCache(dir string) *DiskCache {
	return &DiskCache{dir: dir}
}

// Key hashes the resolved source text into the cache file name.
func (c *DiskCache) Key(resolvedText string) string {
	sum := sha256.Sum256([]byte(cacheKeyVersion + resolvedText))
	return hex.EncodeToString(sum[:])
}

// Get returns the previously emitted C for the resolved text, if any.
func (c *DiskCache) Get(resolvedText string) (string, bool) {
	data, err := os.ReadFile(c.path(resolvedText))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Put stores emitted C under the resolved text's key.
func (c *DiskCache) Put(resolvedText, generated string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path(resolvedText), []byte(generated), 0o644)
}

func (c *DiskCache) path(resolvedText string) string {
	return filepath.Join(c.dir, c.Key(resolvedText)+".c")
}

// CompileCached resolves includes, consults the cache, and falls back
// to the full pipeline on a miss.
func CompileCached(source, originPath string, loader IncludeLoader, cache *DiskCache, cfg *Config) (string, error) {
	resolved := source
	if loader != nil {
		var err error
		resolved, err = ResolveIncludes(source, originPath, loader)
		if err != nil {
			return "", err
		}
	}
	if cache != nil {
		if generated, ok := cache.Get(resolved); ok {
			return generated, nil
		}
	}
	generated, err := Compile(resolved, cfg)
	if err != nil {
		return "", err
	}
	if cache != nil {
		if err := cache.Put(resolved, generated); err != nil {
			return "", err
		}
	}
	return generated, nil
}
