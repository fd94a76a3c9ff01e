package subscription

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"simpleswap/pkg"
)

// PoolCacheEntry is a cached pool and when it last changed
type PoolCacheEntry struct {
	Pool       pkg.Pool
	LastUpdate time.Time
	LastSlot   uint64
	// last seen slot per account; older notifications are ignored
	AccountSlots map[string]uint64
}

// PoolStateUpdater is implemented by pools that can apply raw account data
type PoolStateUpdater interface {
	UpdateFromAccountData(accountID string, data []byte) error
}

// PoolCache manages cached pool state
type PoolCache struct {
	pools map[string]*PoolCacheEntry
	mu    sync.RWMutex
}

func NewPoolCache() *PoolCache {
	return &PoolCache{
		pools: make(map[string]*PoolCacheEntry),
	}
}

// SetPool adds or replaces a pool in the cache
func (pc *PoolCache) SetPool(poolID string, pool pkg.Pool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if entry, exists := pc.pools[poolID]; exists {
		entry.Pool = pool
		entry.LastUpdate = time.Now()
		return
	}
	pc.pools[poolID] = &PoolCacheEntry{
		Pool:         pool,
		LastUpdate:   time.Now(),
		AccountSlots: make(map[string]uint64),
	}
}

func (pc *PoolCache) GetPool(poolID string) (pkg.Pool, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if entry, exists := pc.pools[poolID]; exists {
		return entry.Pool, true
	}
	return nil, false
}

func (pc *PoolCache) GetAllPools() []pkg.Pool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	pools := make([]pkg.Pool, 0, len(pc.pools))
	for _, entry := range pc.pools {
		pools = append(pools, entry.Pool)
	}
	return pools
}

func (pc *PoolCache) RemovePool(poolID string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	delete(pc.pools, poolID)
}

// UpdatePoolAccount applies account data to the cached pool. Notifications older than the last
// one seen for the same account are dropped.
func (pc *PoolCache) UpdatePoolAccount(poolID, accountID string, data []byte, slot uint64) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	entry, exists := pc.pools[poolID]
	if !exists {
		return fmt.Errorf("pool %s not found in cache", poolID)
	}

	if last, seen := entry.AccountSlots[accountID]; seen && slot < last {
		log.Debugf("Ignoring stale update of %s at slot %d (have %d)", accountID, slot, last)
		return nil
	}

	updater, ok := entry.Pool.(PoolStateUpdater)
	if !ok {
		return fmt.Errorf("pool %s cannot apply account updates", poolID)
	}
	if err := updater.UpdateFromAccountData(accountID, data); err != nil {
		return fmt.Errorf("failed to update pool %s from account %s: %w", poolID, accountID, err)
	}

	entry.AccountSlots[accountID] = slot
	entry.LastUpdate = time.Now()
	if slot > entry.LastSlot {
		entry.LastSlot = slot
	}
	log.Debugf("Updated pool %s from account %s at slot %d", poolID, accountID, slot)
	return nil
}

// GetPoolEntry returns a copy of the cache entry for a pool
func (pc *PoolCache) GetPoolEntry(poolID string) (PoolCacheEntry, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	entry, exists := pc.pools[poolID]
	if !exists {
		return PoolCacheEntry{}, false
	}
	slots := make(map[string]uint64, len(entry.AccountSlots))
	for k, v := range entry.AccountSlots {
		slots[k] = v
	}
	out := *entry
	out.AccountSlots = slots
	return out, true
}

func (pc *PoolCache) Size() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	return len(pc.pools)
}

// GetStalePoolIDs returns pool IDs that haven't been updated within maxAge
func (pc *PoolCache) GetStalePoolIDs(maxAge time.Duration) []string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	now := time.Now()
	stalePools := make([]string, 0)
	for poolID, entry := range pc.pools {
		if now.Sub(entry.LastUpdate) > maxAge {
			stalePools = append(stalePools, poolID)
		}
	}
	return stalePools
}
