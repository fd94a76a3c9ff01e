package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
	log "github.com/sirupsen/logrus"
	"simpleswap/pkg"
	"simpleswap/pkg/pool/simpleswap"
	"simpleswap/pkg/router"
	"simpleswap/pkg/subscription"
)

type poolSubscriber interface {
	SubscribePool(pool subscription.VaultPool) error
	RegisterHandler(poolID string, handler subscription.PoolUpdateHandler)
	IsConnected() bool
}

type reserveRefresher interface {
	RefreshReserves(ctx context.Context, reader pkg.AccountReader) error
}

// maxAdhocQuotes bounds the quotes kept for untracked (inputMint, amount) requests
const maxAdhocQuotes = 256

// QuoteCache keeps quotes for the configured pair current. Reserves are refreshed on a schedule
// and, when a subscriber is attached, from vault account notifications. Only tracked pairs are
// recomputed on refresh; quotes for other amounts live in a bounded cache dropped on every refresh.
type QuoteCache struct {
	reader      pkg.AccountReader
	router      *router.SimpleRouter
	subscriber  poolSubscriber
	mintA       string
	mintB       string
	slippageBps int

	mu          sync.RWMutex
	cache       map[string]*CachedQuote
	adhoc       map[string]*CachedQuote
	pairs       map[string]QuotePair
	lastRefresh time.Time
}

func NewQuoteCache(reader pkg.AccountReader, r *router.SimpleRouter, mintA, mintB string, slippageBps int) *QuoteCache {
	return &QuoteCache{
		reader:      reader,
		router:      r,
		mintA:       mintA,
		mintB:       mintB,
		slippageBps: slippageBps,
		cache:       make(map[string]*CachedQuote),
		adhoc:       make(map[string]*CachedQuote),
		pairs:       make(map[string]QuotePair),
	}
}

// AttachSubscriber enables push updates. Pools loaded later are subscribed as well.
func (qc *QuoteCache) AttachSubscriber(sub poolSubscriber) {
	qc.mu.Lock()
	qc.subscriber = sub
	pools := append([]pkg.Pool(nil), qc.router.Pools...)
	qc.mu.Unlock()

	qc.subscribePools(pools)
}

func (qc *QuoteCache) getCacheKey(inputMint, amount string) string {
	return fmt.Sprintf("%s-%s", inputMint, amount)
}

// LoadPools discovers the pools of the pair
func (qc *QuoteCache) LoadPools(ctx context.Context) error {
	qc.mu.Lock()
	err := qc.router.QueryAllPools(ctx, qc.mintA, qc.mintB)
	pools := append([]pkg.Pool(nil), qc.router.Pools...)
	qc.lastRefresh = time.Now()
	qc.mu.Unlock()
	if err != nil {
		return err
	}

	log.Infof("Loaded %d pool(s) for %s/%s", len(pools), qc.mintA, qc.mintB)
	qc.subscribePools(pools)
	return nil
}

func (qc *QuoteCache) subscribePools(pools []pkg.Pool) {
	qc.mu.RLock()
	sub := qc.subscriber
	qc.mu.RUnlock()
	if sub == nil {
		return
	}

	for _, pool := range pools {
		vp, ok := pool.(subscription.VaultPool)
		if !ok {
			continue
		}
		if err := sub.SubscribePool(vp); err != nil {
			log.Warnf("Failed to subscribe to pool %s: %v", pool.GetID(), err)
			continue
		}
		sub.RegisterHandler(pool.GetID(), qc.handlePoolUpdate)
	}
}

// GetOrCalculateQuote returns the cached quote for (inputMint, amount) or computes it.
// slippageBps < 0 selects the service default.
func (qc *QuoteCache) GetOrCalculateQuote(ctx context.Context, inputMint, amount string, slippageBps int) (*CachedQuote, error) {
	if inputMint != qc.mintA && inputMint != qc.mintB {
		return nil, fmt.Errorf("input mint %s is not part of the %s/%s pair", inputMint, qc.mintA, qc.mintB)
	}
	amountIn, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}

	key := qc.getCacheKey(inputMint, amountIn.String())
	qc.mu.RLock()
	quote, exists := qc.cache[key]
	if !exists {
		quote, exists = qc.adhoc[key]
	}
	qc.mu.RUnlock()

	if !exists {
		quote, err = qc.quote(ctx, inputMint, amountIn)
		if err != nil {
			return nil, err
		}
		qc.storeAdhoc(key, quote)
	}

	if slippageBps < 0 || slippageBps == quote.SlippageBps {
		return quote, nil
	}

	outAmount, ok := math.NewIntFromString(quote.OutAmount)
	if !ok {
		return nil, fmt.Errorf("invalid cached output amount %q", quote.OutAmount)
	}
	minAmountOut, err := router.MinAmountOut(outAmount, slippageBps)
	if err != nil {
		return nil, err
	}
	modified := *quote
	modified.SlippageBps = slippageBps
	modified.OtherAmountThreshold = minAmountOut.String()
	return &modified, nil
}

func parseAmount(amount string) (math.Int, error) {
	amountIn, ok := math.NewIntFromString(amount)
	if !ok || !amountIn.IsPositive() {
		return math.ZeroInt(), fmt.Errorf("invalid amount %q", amount)
	}
	return amountIn, nil
}

// storeAdhoc caches an untracked quote, evicting the oldest entry when full
func (qc *QuoteCache) storeAdhoc(key string, quote *CachedQuote) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	if _, exists := qc.adhoc[key]; !exists && len(qc.adhoc) >= maxAdhocQuotes {
		var oldestKey string
		var oldest time.Time
		for k, q := range qc.adhoc {
			if oldestKey == "" || q.LastUpdate.Before(oldest) {
				oldestKey, oldest = k, q.LastUpdate
			}
		}
		delete(qc.adhoc, oldestKey)
	}
	qc.adhoc[key] = quote
}

func (qc *QuoteCache) quote(ctx context.Context, inputMint string, amountIn math.Int) (*CachedQuote, error) {
	startTime := time.Now()

	qc.mu.RLock()
	loaded := len(qc.router.Pools) > 0
	qc.mu.RUnlock()
	if !loaded {
		if err := qc.LoadPools(ctx); err != nil {
			return nil, fmt.Errorf("failed to query pools: %w", err)
		}
	}

	qc.mu.RLock()
	resp, err := qc.router.Quote(ctx, qc.reader, inputMint, amountIn, qc.slippageBps)
	qc.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to quote: %w", err)
	}

	return &CachedQuote{
		QuoteResponse: *resp,
		LastUpdate:    time.Now(),
		TimeTaken:     time.Since(startTime).String(),
	}, nil
}

// calculate recomputes a tracked pair and stores it in the tracked cache
func (qc *QuoteCache) calculate(ctx context.Context, pair QuotePair) (*CachedQuote, error) {
	amountIn, err := parseAmount(pair.Amount)
	if err != nil {
		return nil, err
	}
	quote, err := qc.quote(ctx, pair.InputMint, amountIn)
	if err != nil {
		return nil, err
	}

	key := qc.getCacheKey(pair.InputMint, amountIn.String())
	qc.mu.Lock()
	old, hadOld := qc.cache[key]
	qc.cache[key] = quote
	qc.mu.Unlock()

	entry := log.WithFields(log.Fields{
		"pair": pair.Label,
		"in":   quote.InAmount,
		"out":  quote.OutAmount,
		"took": quote.TimeTaken,
	})
	if hadOld && old.OutAmount != quote.OutAmount {
		entry = entry.WithField("previous", old.OutAmount)
	}
	entry.Debug("Quote updated")

	return quote, nil
}

// Track registers pairs that are kept warm by every refresh. Invalid amounts are skipped.
func (qc *QuoteCache) Track(pairs ...QuotePair) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	for _, pair := range pairs {
		amountIn, err := parseAmount(pair.Amount)
		if err != nil {
			log.Warnf("Not tracking %s: %v", pair.Label, err)
			continue
		}
		pair.Amount = amountIn.String()
		qc.pairs[qc.getCacheKey(pair.InputMint, pair.Amount)] = pair
	}
}

// Refresh reloads reserves from chain and recomputes every tracked quote
func (qc *QuoteCache) Refresh(ctx context.Context) {
	qc.mu.RLock()
	pools := append([]pkg.Pool(nil), qc.router.Pools...)
	qc.mu.RUnlock()

	if len(pools) == 0 {
		if err := qc.LoadPools(ctx); err != nil {
			log.Warnf("Refresh: %v", err)
			return
		}
	} else {
		for _, pool := range pools {
			refresher, ok := pool.(reserveRefresher)
			if !ok {
				continue
			}
			if err := refresher.RefreshReserves(ctx, qc.reader); err != nil {
				log.Warnf("Failed to refresh pool %s: %v", pool.GetID(), err)
			}
		}
		qc.mu.Lock()
		qc.lastRefresh = time.Now()
		qc.mu.Unlock()
	}

	qc.recalculateAll(ctx)
}

// recalculateAll recomputes tracked pairs and drops untracked quotes, which reserves changed under
func (qc *QuoteCache) recalculateAll(ctx context.Context) {
	qc.mu.Lock()
	qc.adhoc = make(map[string]*CachedQuote)
	pairs := make([]QuotePair, 0, len(qc.pairs))
	for _, pair := range qc.pairs {
		pairs = append(pairs, pair)
	}
	qc.mu.Unlock()

	for _, pair := range pairs {
		if _, err := qc.calculate(ctx, pair); err != nil {
			log.Warnf("Error updating quote for %s: %v", pair.Label, err)
		}
	}
}

// handlePoolUpdate runs after a vault notification changed a pool's cached reserves
func (qc *QuoteCache) handlePoolUpdate(poolID, accountID string, slot uint64) {
	log.Debugf("Pool %s vault %s updated at slot %d", poolID, accountID, slot)
	qc.recalculateAll(context.Background())
}

// Vaults describes every loaded pool and its cached reserves
func (qc *QuoteCache) Vaults() []VaultInfo {
	qc.mu.RLock()
	defer qc.mu.RUnlock()

	out := make([]VaultInfo, 0, len(qc.router.Pools))
	for _, pool := range qc.router.Pools {
		ssp, ok := pool.(*simpleswap.SimpleSwapPool)
		if !ok {
			continue
		}
		reserveA, reserveB := ssp.Reserves()
		out = append(out, VaultInfo{
			PoolID:     ssp.GetID(),
			ProgramID:  ssp.GetProgramID().String(),
			MintA:      ssp.MintA.String(),
			MintB:      ssp.MintB.String(),
			VaultA:     ssp.GetBaseVault(),
			VaultB:     ssp.GetQuoteVault(),
			ReserveA:   reserveA,
			ReserveB:   reserveB,
			LastUpdate: ssp.LastUpdate(),
		})
	}
	return out
}

// GetAllCached returns the quotes of tracked pairs
func (qc *QuoteCache) GetAllCached() map[string]*CachedQuote {
	qc.mu.RLock()
	defer qc.mu.RUnlock()

	result := make(map[string]*CachedQuote, len(qc.cache))
	for k, v := range qc.cache {
		result[k] = v
	}
	return result
}

// Health summarizes the cache for /health
func (qc *QuoteCache) Health(started time.Time) HealthResponse {
	qc.mu.RLock()
	defer qc.mu.RUnlock()

	lastUpdate := qc.lastRefresh
	for _, quote := range qc.cache {
		if quote.LastUpdate.After(lastUpdate) {
			lastUpdate = quote.LastUpdate
		}
	}

	status := "healthy"
	if len(qc.router.Pools) == 0 {
		status = "degraded"
	}

	return HealthResponse{
		Status:       status,
		LastUpdate:   lastUpdate,
		CachedRoutes: len(qc.cache) + len(qc.adhoc),
		Pools:        len(qc.router.Pools),
		WebSocket:    qc.subscriber != nil && qc.subscriber.IsConnected(),
		Uptime:       time.Since(started).Round(time.Second).String(),
	}
}
