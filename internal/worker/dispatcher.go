package worker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const (
	// QueueSessionClosed feeds the report worker pool.
	QueueSessionClosed = "events:session_closed"
	// QueueOrderSettled is an outbox list: downstream delivery (webhooks,
	// analytics) is owned by external consumers, not this service.
	QueueOrderSettled = "events:order_settled"
)

// Job is the generic envelope for all queued events.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SessionClosedEvent triggers the end-of-shift Z-report.
type SessionClosedEvent struct {
	TenantID  string `json:"tenant_id"`
	SessionID string `json:"session_id"`
}

// OrderSettledEvent marks an order whose intent just completed.
type OrderSettledEvent struct {
	TenantID string `json:"tenant_id"`
	OrderID  string `json:"order_id"`
}

// Dispatcher enqueues events into Redis lists. The worker pool dequeues the
// session-closed queue via BRPOP; the order-settled queue is drained by
// external consumers.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

func (d *Dispatcher) EnqueueSessionClosed(ctx context.Context, ev SessionClosedEvent) error {
	return d.enqueue(ctx, QueueSessionClosed, "session.closed", ev)
}

func (d *Dispatcher) EnqueueOrderSettled(ctx context.Context, ev OrderSettledEvent) error {
	return d.enqueue(ctx, QueueOrderSettled, "order.settled", ev)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}
