package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
	"simpleswap/pkg/runner"
)

// StepEvent is the JSON body published for every step
type StepEvent struct {
	RunID          string            `json:"run_id"`
	ProgramID      string            `json:"program_id"`
	Step           string            `json:"step"`
	Signature      string            `json:"signature,omitempty"`
	Simulated      bool              `json:"simulated"`
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
	Amount         uint64            `json:"amount,omitempty"`
	ExpectedOutput uint64            `json:"expected_output,omitempty"`
	Balances       map[string]uint64 `json:"balances,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	DurationMs     int64             `json:"duration_ms"`
}

// NewStepEvent converts a runner result into its event
func NewStepEvent(runID, programID string, result runner.StepResult) StepEvent {
	ev := StepEvent{
		RunID:          runID,
		ProgramID:      programID,
		Step:           string(result.Step),
		Simulated:      result.Simulated,
		Success:        result.Succeeded(),
		Amount:         result.Amount,
		ExpectedOutput: result.ExpectedOutput,
		Balances:       result.Balances,
		StartedAt:      result.StartedAt,
		DurationMs:     result.Duration.Milliseconds(),
	}
	if !result.Signature.IsZero() {
		ev.Signature = result.Signature.String()
	}
	if result.Err != nil {
		ev.Error = result.Err.Error()
	}
	return ev
}

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends step events to a durable RabbitMQ queue. It implements runner.Recorder.
type Publisher struct {
	conn      *amqp.Connection
	channel   amqpChannel
	queue     string
	runID     string
	programID string
}

// Dial connects to url, retrying a few times, and declares queue
func Dial(url, queue, runID, programID string) (*Publisher, error) {
	const maxRetries = 3
	retryDelay := 2 * time.Second

	var conn *amqp.Connection
	var err error
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		if i < maxRetries-1 {
			log.Warnf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %v...", i+1, maxRetries, err, retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p, err := newPublisher(ch, queue, runID, programID)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	log.Infof("Publishing step events to queue %s", queue)
	return p, nil
}

func newPublisher(ch amqpChannel, queue, runID, programID string) (*Publisher, error) {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return &Publisher{
		channel:   ch,
		queue:     queue,
		runID:     runID,
		programID: programID,
	}, nil
}

func (p *Publisher) Record(ctx context.Context, result runner.StepResult) error {
	body, err := json.Marshal(NewStepEvent(p.runID, p.programID, result))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         string(result.Step),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Debugf("Published step %s to queue %s", result.Step, p.queue)
	return nil
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
