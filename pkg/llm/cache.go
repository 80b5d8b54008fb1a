package llm

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
)

// Cache is a strict content-addressed response cache on disk. Keys hash
// the full (prompt, model, params) tuple, so a hit is always safe to
// replay; entries never expire.
type Cache struct {
	dir string
}

func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// CacheKey derives the content address for one generation request.
func CacheKey(prompt, model string, params Params) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%.4f\x00%d", prompt, model, params.Temperature, params.MaxTokens)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *Cache) Get(key string) (string, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Put stores a response via write-to-temp-then-rename so concurrent
// workers never observe a partially written entry. Writes are idempotent:
// the same key always maps to the same value.
func (c *Cache) Put(key, text string) error {
	tmp, err := os.CreateTemp(c.dir, key+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".txt")
}
