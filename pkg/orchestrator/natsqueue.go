package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// RemoteQueue is an optional JetStream-backed distributed task queue,
// letting multiple Orchestrator instances share one task backlog across
// processes instead of each holding an in-memory queue. No example in
// the pack uses nats.go, so this follows the library's published
// JetStream client surface directly rather than a copied call site.
type RemoteQueue struct {
	js      nats.JetStreamContext
	subject string
}

// NewRemoteQueue connects to a NATS server and ensures the backing
// stream exists.
func NewRemoteQueue(url, streamName, subject string) (*RemoteQueue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: connect to nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: acquire jetstream context: %w", err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{subject},
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return nil, fmt.Errorf("orchestrator: ensure stream %s: %w", streamName, err)
	}
	return &RemoteQueue{js: js, subject: subject}, nil
}

// Publish enqueues a task onto the shared stream.
func (q *RemoteQueue) Publish(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal task: %w", err)
	}
	_, err = q.js.Publish(q.subject, data)
	if err != nil {
		return fmt.Errorf("orchestrator: publish task: %w", err)
	}
	return nil
}

// Subscribe consumes tasks from the shared stream via a durable pull
// consumer, handing each to handle and acking on success.
func (q *RemoteQueue) Subscribe(ctx context.Context, durableName string, handle func(Task) error) error {
	sub, err := q.js.PullSubscribe(q.subject, durableName)
	if err != nil {
		return fmt.Errorf("orchestrator: pull subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(2*time.Second))
		if err != nil {
			if err == nats.ErrTimeout {
				continue
			}
			return fmt.Errorf("orchestrator: fetch from queue: %w", err)
		}
		for _, msg := range msgs {
			var task Task
			if err := json.Unmarshal(msg.Data, &task); err != nil {
				_ = msg.Nak()
				continue
			}
			if err := handle(task); err != nil {
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}
