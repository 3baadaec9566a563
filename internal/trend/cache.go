package trend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Cache persists one JSON result file per (asset, mode), overwritten on
// each run. Production and experimental results live side by side so
// the diff report can compare them.
type Cache struct {
	dir string
}

// NewCache creates the cache directory if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Path returns the cache file for an asset and mode.
func (c *Cache) Path(catalogKey string, mode Mode) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", catalogKey, mode))
}

// Save writes a result, replacing any previous one for the same asset
// and mode. Returns the file path.
func (c *Cache) Save(catalogKey string, mode Mode, result *Result) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal trend result: %w", err)
	}
	path := c.Path(catalogKey, mode)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write trend result: %w", err)
	}
	return path, nil
}

// Load reads a cached result. A missing file surfaces as fs.ErrNotExist.
func (c *Cache) Load(catalogKey string, mode Mode) (*Result, error) {
	data, err := os.ReadFile(c.Path(catalogKey, mode))
	if err != nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse cached trend result: %w", err)
	}
	return &result, nil
}
