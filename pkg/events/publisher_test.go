package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"simpleswap/pkg/runner"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	declareErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if f.declareErr != nil {
		return amqp.Queue{}, f.declareErr
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisherRecord(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "steps", "run-7", "prog")
	require.NoError(t, err)
	assert.Equal(t, []string{"steps"}, ch.declared)

	sig := solana.Signature{4, 5, 6}
	require.NoError(t, p.Record(context.Background(), runner.StepResult{
		Step:      runner.StepDepositB,
		Signature: sig,
		Amount:    5_000_000_000,
		StartedAt: time.Now(),
	}))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "steps", ch.keys[0])
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "deposit-b", msg.Type)

	var ev StepEvent
	require.NoError(t, json.Unmarshal(msg.Body, &ev))
	assert.Equal(t, "run-7", ev.RunID)
	assert.Equal(t, "prog", ev.ProgramID)
	assert.Equal(t, sig.String(), ev.Signature)
	assert.True(t, ev.Success)
	assert.Equal(t, uint64(5_000_000_000), ev.Amount)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNewStepEventFailure(t *testing.T) {
	ev := NewStepEvent("r", "p", runner.StepResult{Step: runner.StepSwapAForB, Err: errors.New("0x1771")})
	assert.False(t, ev.Success)
	assert.Equal(t, "0x1771", ev.Error)
	assert.Empty(t, ev.Signature)
}

func TestNewPublisherDeclareError(t *testing.T) {
	ch := &fakeChannel{declareErr: errors.New("access refused")}
	_, err := newPublisher(ch, "steps", "r", "p")
	assert.ErrorContains(t, err, "declare queue")
	assert.True(t, ch.closed)
}

func TestDialLive(t *testing.T) {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		t.Skip("RABBITMQ_URL not set")
	}

	queue := fmt.Sprintf("simpleswap.test.%d", time.Now().UnixNano())
	p, err := Dial(url, queue, "live", "prog")
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Record(context.Background(), runner.StepResult{Step: runner.StepInitVaultA, StartedAt: time.Now()}))
}
