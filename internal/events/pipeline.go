package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr1hm/go-emergency-dispatch/internal/worker"
)

// Sink is an external destination such as a Kafka topic.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Pipeline moves events off the request path: Publish queues, workers hand
// each event to the broadcaster and every sink.
type Pipeline struct {
	broadcaster *Broadcaster
	sinks       []Sink
	pool        *worker.WorkerPool
	sendTimeout time.Duration
}

func NewPipeline(broadcaster *Broadcaster, workers, bufferSize int, sinks ...Sink) *Pipeline {
	p := &Pipeline{
		broadcaster: broadcaster,
		sinks:       sinks,
		sendTimeout: 5 * time.Second,
	}
	p.pool = worker.NewWorkerPool("events", workers, bufferSize, p.process)
	return p
}

func (p *Pipeline) Start(ctx context.Context) {
	p.pool.Start(ctx)
}

func (p *Pipeline) process(ctx context.Context, job worker.Job) error {
	e := job.(Event)

	if p.broadcaster != nil {
		p.broadcaster.Publish(e)
	}

	var firstErr error
	for _, sink := range p.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
		err := sink.Send(sendCtx, e)
		cancel()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("sink send %s: %w", e.Type, err)
		}
	}
	return firstErr
}

// Publish never blocks; when the queue is full the event is dropped and logged.
func (p *Pipeline) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := p.pool.TrySubmit(e); err != nil {
		slog.Warn("event dropped", "type", e.Type, "institution_id", e.InstitutionID, "error", err)
	}
}

// Stop drains queued events and waits for the workers.
func (p *Pipeline) Stop() {
	p.pool.Stop()
	slog.Info("event pipeline stopped", "delivered", p.pool.Processed(), "failed", p.pool.Failed())
}
