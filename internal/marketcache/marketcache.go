// Package marketcache persists derived token ids per condition id as JSON
// files, using atomic write-then-rename so a crash mid-write never leaves a
// corrupt cache entry. This is a derivation cache, not order state — the
// Non-goal excluding persistent order storage across restarts does not
// apply here.
package marketcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ctfmm/internal/model"
)

type cachedMarket struct {
	ConditionID string `json:"condition_id"`
	TokenA      uint64 `json:"token_a"`
	TokenB      uint64 `json:"token_b"`
}

// Cache persists Markets to JSON files in a designated directory.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// Open creates a cache backed by the given directory, creating it if
// necessary.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(conditionID string) string {
	return filepath.Join(c.dir, "market_"+conditionID+".json")
}

// Save atomically persists a market's derived token ids.
func (c *Cache) Save(m model.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(cachedMarket{
		ConditionID: m.ConditionID,
		TokenA:      m.TokenID(model.TokenA),
		TokenB:      m.TokenID(model.TokenB),
	})
	if err != nil {
		return fmt.Errorf("marshal market: %w", err)
	}

	path := c.path(m.ConditionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write market cache: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores a market's derived token ids from disk. Returns nil, nil if
// no cached entry exists for the condition id.
func (c *Cache) Load(conditionID string) (*model.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(conditionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read market cache: %w", err)
	}

	var cached cachedMarket
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("unmarshal market cache: %w", err)
	}

	m := model.NewMarket(cached.ConditionID, cached.TokenA, cached.TokenB)
	return &m, nil
}
