package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"simpleswap/pkg"
)

// PoolUpdateHandler is called after a pool's cached state changed
type PoolUpdateHandler func(poolID, accountID string, slot uint64)

// VaultPool is a pool whose reserves live in two token accounts
type VaultPool interface {
	pkg.Pool
	GetBaseVault() string
	GetQuoteVault() string
}

type accountSubscriber interface {
	SubscribeAccount(accountID string, handler AccountUpdateHandler) (uint64, error)
	Unsubscribe(id uint64) error
	IsConnected() bool
	Close() error
}

// SubscriptionManager keeps the reserves of watched pools current from account notifications
type SubscriptionManager struct {
	wsClient      accountSubscriber
	poolCache     *PoolCache
	subscriptions map[string][]uint64 // poolID -> local subscription IDs
	handlers      map[string]PoolUpdateHandler
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewSubscriptionManager connects to the pubsub endpoint at wsURL
func NewSubscriptionManager(ctx context.Context, wsURL, commitment string) (*SubscriptionManager, error) {
	managerCtx, cancel := context.WithCancel(ctx)

	wsClient, err := NewWebSocketClient(managerCtx, wsURL, commitment)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create WebSocket client: %w", err)
	}

	return newSubscriptionManager(managerCtx, cancel, wsClient), nil
}

func newSubscriptionManager(ctx context.Context, cancel context.CancelFunc, ws accountSubscriber) *SubscriptionManager {
	return &SubscriptionManager{
		wsClient:      ws,
		poolCache:     NewPoolCache(),
		subscriptions: make(map[string][]uint64),
		handlers:      make(map[string]PoolUpdateHandler),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SubscribePool subscribes to both vault token accounts of pool and caches it.
// Calls for a pool that is already subscribed, or being subscribed, return nil.
func (sm *SubscriptionManager) SubscribePool(pool VaultPool) error {
	poolID := pool.GetID()
	accounts := poolAccounts(pool)
	if len(accounts) == 0 {
		return fmt.Errorf("no accounts to subscribe for pool %s", poolID)
	}

	// the nil entry reserves poolID until the accounts are subscribed
	sm.mu.Lock()
	if _, exists := sm.subscriptions[poolID]; exists {
		sm.mu.Unlock()
		return nil
	}
	sm.subscriptions[poolID] = nil
	sm.mu.Unlock()

	// cache first so the first notification finds the entry
	sm.poolCache.SetPool(poolID, pool)

	ids := make([]uint64, 0, len(accounts))
	for _, account := range accounts {
		subID, err := sm.wsClient.SubscribeAccount(account, func(accountID string, data []byte, slot uint64) {
			sm.handleAccountUpdate(poolID, accountID, data, slot)
		})
		if err != nil {
			for _, id := range ids {
				sm.wsClient.Unsubscribe(id)
			}
			sm.poolCache.RemovePool(poolID)
			sm.mu.Lock()
			delete(sm.subscriptions, poolID)
			sm.mu.Unlock()
			return fmt.Errorf("failed to subscribe to account %s for pool %s: %w", account, poolID, err)
		}
		ids = append(ids, subID)
		log.WithFields(log.Fields{"pool": poolID, "account": account, "sub": subID}).Info("Subscribed to vault")
	}

	sm.mu.Lock()
	_, reserved := sm.subscriptions[poolID]
	if reserved {
		sm.subscriptions[poolID] = ids
	}
	sm.mu.Unlock()

	// UnsubscribePool ran while subscribing
	if !reserved {
		for _, id := range ids {
			sm.wsClient.Unsubscribe(id)
		}
		sm.poolCache.RemovePool(poolID)
	}
	return nil
}

// UnsubscribePool drops the pool's subscriptions and cache entry
func (sm *SubscriptionManager) UnsubscribePool(poolID string) error {
	sm.mu.Lock()
	ids := sm.subscriptions[poolID]
	delete(sm.subscriptions, poolID)
	delete(sm.handlers, poolID)
	sm.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := sm.wsClient.Unsubscribe(id); err != nil {
			log.Warnf("Failed to unsubscribe %d of pool %s: %v", id, poolID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	sm.poolCache.RemovePool(poolID)
	return firstErr
}

func (sm *SubscriptionManager) handleAccountUpdate(poolID, accountID string, data []byte, slot uint64) {
	if err := sm.poolCache.UpdatePoolAccount(poolID, accountID, data, slot); err != nil {
		log.Warnf("Failed to update pool %s account %s: %v", poolID, accountID, err)
		return
	}

	sm.mu.RLock()
	handler, exists := sm.handlers[poolID]
	sm.mu.RUnlock()
	if exists {
		handler(poolID, accountID, slot)
	}
}

// RegisterHandler registers a custom handler for pool updates
func (sm *SubscriptionManager) RegisterHandler(poolID string, handler PoolUpdateHandler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.handlers[poolID] = handler
}

// GetPool returns a pool from the cache
func (sm *SubscriptionManager) GetPool(poolID string) (pkg.Pool, bool) {
	return sm.poolCache.GetPool(poolID)
}

// GetAllPools returns all cached pools
func (sm *SubscriptionManager) GetAllPools() []pkg.Pool {
	return sm.poolCache.GetAllPools()
}

// Cache exposes the pool cache
func (sm *SubscriptionManager) Cache() *PoolCache {
	return sm.poolCache
}

// IsConnected returns whether the WebSocket is connected
func (sm *SubscriptionManager) IsConnected() bool {
	return sm.wsClient.IsConnected()
}

// Close unsubscribes every pool and closes the connection
func (sm *SubscriptionManager) Close() error {
	sm.mu.RLock()
	poolIDs := make([]string, 0, len(sm.subscriptions))
	for poolID := range sm.subscriptions {
		poolIDs = append(poolIDs, poolID)
	}
	sm.mu.RUnlock()

	for _, poolID := range poolIDs {
		sm.UnsubscribePool(poolID)
	}

	sm.cancel()
	return sm.wsClient.Close()
}

// poolAccounts returns the distinct vault accounts of pool
func poolAccounts(pool VaultPool) []string {
	var accounts []string
	seen := make(map[string]bool)
	for _, account := range []string{pool.GetBaseVault(), pool.GetQuoteVault()} {
		if account == "" || seen[account] {
			continue
		}
		seen[account] = true
		accounts = append(accounts, account)
	}
	return accounts
}

// Stats returns subscription statistics
func (sm *SubscriptionManager) Stats() map[string]interface{} {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs := 0
	for _, ids := range sm.subscriptions {
		subs += len(ids)
	}

	return map[string]interface{}{
		"subscriptions": subs,
		"cachedPools":   sm.poolCache.Size(),
		"connected":     sm.wsClient.IsConnected(),
		"timestamp":     time.Now().Format(time.RFC3339),
	}
}
