package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSubscriber records account subscriptions; failOn makes SubscribeAccount fail for that account
type countingSubscriber struct {
	mu           sync.Mutex
	nextID       uint64
	subscribed   []string
	unsubscribed []uint64
	failOn       string
	delay        time.Duration
}

func (c *countingSubscriber) SubscribeAccount(accountID string, handler AccountUpdateHandler) (uint64, error) {
	time.Sleep(c.delay)
	c.mu.Lock()
	defer c.mu.Unlock()
	if accountID == c.failOn {
		return 0, errors.New("subscribe refused")
	}
	c.nextID++
	c.subscribed = append(c.subscribed, accountID)
	return c.nextID, nil
}

func (c *countingSubscriber) Unsubscribe(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, id)
	return nil
}

func (c *countingSubscriber) IsConnected() bool { return true }

func (c *countingSubscriber) Close() error { return nil }

func (c *countingSubscriber) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribed)
}

func TestSubscribePoolConcurrentCallsSubscribeOnce(t *testing.T) {
	ws := &countingSubscriber{delay: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	sm := newSubscriptionManager(ctx, cancel, ws)
	pool := newPool(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sm.SubscribePool(pool))
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, ws.count())
	require.Contains(t, sm.subscriptions, pool.GetID())
	assert.Len(t, sm.subscriptions[pool.GetID()], 2)
	assert.Equal(t, 2, sm.Stats()["subscriptions"])

	require.NoError(t, sm.Close())
	assert.Len(t, ws.unsubscribed, 2)
	assert.Empty(t, sm.subscriptions)
}

func TestSubscribePoolFailureReleasesPool(t *testing.T) {
	pool := newPool(t)
	ws := &countingSubscriber{failOn: pool.GetQuoteVault()}
	ctx, cancel := context.WithCancel(context.Background())
	sm := newSubscriptionManager(ctx, cancel, ws)
	defer sm.Close()

	err := sm.SubscribePool(pool)
	assert.ErrorContains(t, err, "subscribe refused")
	assert.Equal(t, []uint64{1}, ws.unsubscribed)
	assert.NotContains(t, sm.subscriptions, pool.GetID())
	_, cached := sm.GetPool(pool.GetID())
	assert.False(t, cached)

	// the pool can be retried once the account is accepted
	ws.mu.Lock()
	ws.failOn = ""
	ws.mu.Unlock()
	require.NoError(t, sm.SubscribePool(pool))
	assert.Len(t, sm.subscriptions[pool.GetID()], 2)
}
