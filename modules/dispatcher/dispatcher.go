// Package dispatcher fans one notification job out to every channel and recipient.
package dispatcher

import (
	"context"
	"fmt"
	"log"

	"github.com/example/product-catalog/domain/job"
	"github.com/example/product-catalog/domain/notification"
	"github.com/example/product-catalog/modules/queue"
)

// Dispatcher executes notification jobs against the configured channels.
type Dispatcher struct {
	channels map[notification.ChannelKind]notification.Channel
	queue    queue.JobQueue
}

// New creates a dispatcher. Later channels of the same kind replace earlier ones.
func New(q queue.JobQueue, channels ...notification.Channel) *Dispatcher {
	d := &Dispatcher{
		channels: make(map[notification.ChannelKind]notification.Channel, len(channels)),
		queue:    q,
	}
	for _, c := range channels {
		d.channels[c.Kind()] = c
	}
	return d
}

// Enqueue wraps the notification job in a queue envelope and enqueues it.
// It returns once the queue accepts the job; delivery happens on a worker.
func (d *Dispatcher) Enqueue(ctx context.Context, n *notification.Job) (*job.Job, error) {
	j, err := job.NewNotification(n)
	if err != nil {
		return nil, err
	}
	if err := d.queue.Enqueue(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to enqueue notification job: %w", err)
	}
	return j, nil
}

// Execute attempts every channel of the job for every recipient, in order.
// A failing delivery never stops the others; all failures are returned
// together as a *notification.DeliveryError.
func (d *Dispatcher) Execute(ctx context.Context, n *notification.Job) error {
	var failures []notification.ChannelFailure
	ctx = notification.WithJobID(ctx, n.ID)

	for _, r := range n.Recipients {
		for _, kind := range n.Channels {
			ch, ok := d.channels[kind]
			if !ok {
				failures = append(failures, notification.ChannelFailure{
					Channel:   kind,
					Recipient: r,
					Err:       notification.ErrUnknownChannel,
				})
				continue
			}

			if err := ch.Deliver(ctx, r, n.Event, n.Payload); err != nil {
				log.Printf("[dispatcher] %s delivery of %s to %s failed: %v", kind, n.Event, r.Email, err)
				failures = append(failures, notification.ChannelFailure{
					Channel:   kind,
					Recipient: r,
					Err:       err,
				})
			}
		}
	}

	if len(failures) > 0 {
		return &notification.DeliveryError{JobID: n.ID, Failures: failures}
	}
	return nil
}
