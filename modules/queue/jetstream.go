package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/product-catalog/domain/job"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the name of the JetStream stream for catalog jobs.
	StreamName = "CATALOG_JOBS"
	// SubjectJobs matches every job subject.
	SubjectJobs = "catalog.jobs.>"
	// SubjectJobsNew is the subject new jobs are published on.
	SubjectJobsNew = "catalog.jobs.new"
	// SubjectDeadLetter is the subject for dead-letter messages.
	SubjectDeadLetter = "catalog.jobs.dead_letter"
	// ConsumerName is the name of the durable consumer shared by workers.
	ConsumerName = "catalog-workers"
)

// ErrNotConnected is returned when the queue has no NATS connection.
var ErrNotConnected = errors.New("nats not connected")

// JetStreamQueue is a Queue on a NATS JetStream work-queue stream.
// Retries are counted by the worker, so the consumer allows unlimited redelivery.
type JetStreamQueue struct {
	cfg      Config
	nc       *nats.Conn
	js       jetstream.JetStream
	stream   jetstream.Stream
	consumer jetstream.Consumer
}

var _ Queue = (*JetStreamQueue)(nil)

// NewJetStreamQueue creates an unconnected queue.
func NewJetStreamQueue(cfg Config) *JetStreamQueue {
	return &JetStreamQueue{cfg: cfg}
}

// Connect establishes the connection and declares the stream and consumer.
func (q *JetStreamQueue) Connect(ctx context.Context) error {
	nc, err := nats.Connect(q.cfg.URL,
		nats.Name("product-catalog-queue"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	q.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	q.js = js

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Catalog notification and publish jobs",
		Subjects:    []string{SubjectJobs},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      q.cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	q.stream = stream

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ConsumerName,
		Durable:       ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.cfg.AckWait,
		MaxDeliver:    -1,
		FilterSubject: SubjectJobsNew,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	q.consumer = consumer

	log.Printf("[queue] Connected to NATS at %s, stream %s ready", q.cfg.URL, StreamName)
	return nil
}

// Enqueue publishes a job to the stream.
func (q *JetStreamQueue) Enqueue(ctx context.Context, j *job.Job) error {
	ack, err := q.publish(ctx, SubjectJobsNew, j)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	log.Printf("[queue] Enqueued job %s (%s) to stream %s, sequence %d", j.ID, j.Type, ack.Stream, ack.Sequence)
	return nil
}

// DeadLetter publishes a job to the dead-letter subject.
func (q *JetStreamQueue) DeadLetter(ctx context.Context, j *job.Job, reason string) error {
	if _, err := q.publish(ctx, SubjectDeadLetter, j); err != nil {
		return fmt.Errorf("failed to publish to dead-letter: %w", err)
	}
	log.Printf("[queue] Published job %s to dead-letter queue: %s", j.ID, reason)
	return nil
}

func (q *JetStreamQueue) publish(ctx context.Context, subject string, j *job.Job) (*jetstream.PubAck, error) {
	if q.js == nil {
		return nil, job.ErrQueueUnavailable
	}

	data, err := json.Marshal(job.Message{Job: j, MessageID: j.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job message: %w", err)
	}

	return q.js.Publish(ctx, subject, data)
}

// Subscribe streams job deliveries until ctx is cancelled.
func (q *JetStreamQueue) Subscribe(ctx context.Context) (<-chan Message, error) {
	if q.consumer == nil {
		return nil, fmt.Errorf("consumer not initialized")
	}

	iter, err := q.consumer.Messages()
	if err != nil {
		return nil, fmt.Errorf("failed to create message iterator: %w", err)
	}

	out := make(chan Message, q.cfg.Buffer)
	go func() {
		<-ctx.Done()
		iter.Stop()
	}()

	go func() {
		defer close(out)
		for {
			msg, err := iter.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, jetstream.ErrMsgIteratorClosed) {
					log.Println("[queue] Consumer stopped")
					return
				}
				log.Printf("[queue] Error fetching message: %v", err)
				continue
			}

			var jm job.Message
			if err := json.Unmarshal(msg.Data(), &jm); err != nil || jm.Job == nil {
				log.Printf("[queue] Dropping malformed message: %v", err)
				if err := msg.Term(); err != nil {
					log.Printf("[queue] Error terminating message: %v", err)
				}
				continue
			}

			deliveries := 1
			if md, err := msg.Metadata(); err == nil {
				deliveries = int(md.NumDelivered)
			}

			select {
			case out <- &jetStreamMessage{job: jm.Job, deliveries: deliveries, msg: msg}:
			case <-ctx.Done():
				_ = msg.Nak()
				return
			}
		}
	}()

	return out, nil
}

// Close drains and closes the NATS connection.
func (q *JetStreamQueue) Close() error {
	if q.nc != nil {
		if err := q.nc.Drain(); err != nil {
			q.nc.Close()
		}
		log.Println("[queue] Connection closed")
	}
	return nil
}

// IsConnected returns true if connected to NATS.
func (q *JetStreamQueue) IsConnected() bool {
	return q.nc != nil && q.nc.IsConnected()
}

// Pending returns the number of messages waiting in the stream.
func (q *JetStreamQueue) Pending(ctx context.Context) (uint64, error) {
	if q.stream == nil {
		return 0, ErrNotConnected
	}
	info, err := q.stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get stream info: %w", err)
	}
	return info.State.Msgs, nil
}

type jetStreamMessage struct {
	job        *job.Job
	deliveries int
	msg        jetstream.Msg
}

func (m *jetStreamMessage) Job() *job.Job {
	return m.job
}

func (m *jetStreamMessage) DeliveryCount() int {
	return m.deliveries
}

func (m *jetStreamMessage) Ack() error {
	return m.msg.Ack()
}

func (m *jetStreamMessage) Nak() error {
	return m.msg.Nak()
}

func (m *jetStreamMessage) NakWithDelay(delay time.Duration) error {
	return m.msg.NakWithDelay(delay)
}

func (m *jetStreamMessage) Term() error {
	return m.msg.Term()
}

func (m *jetStreamMessage) InProgress() error {
	return m.msg.InProgress()
}
