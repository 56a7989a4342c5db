package audit

import (
	"context"
	"log/slog"
	"time"

	"termtrust/internal/platform/metrics"
)

// Sink receives audit events after they are durably stored. Implementations
// must tolerate redelivery; the pipeline retries nothing and drops on
// overflow, so the store remains the system of record.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// NopSink discards events. Used when no broker is configured.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }
func (NopSink) Close()                               {}

const defaultBuffer = 256

// Pipeline writes events to the store synchronously, then hands them to the
// sink from a background worker. Store writes share the caller's transaction
// when one is on the context; sink delivery never blocks the caller.
type Pipeline struct {
	store   Store
	sink    Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
	ch      chan Event
	done    chan struct{}
}

func NewPipeline(store Store, sink Sink, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if sink == nil {
		sink = NopSink{}
	}
	return &Pipeline{
		store:   store,
		sink:    sink,
		metrics: m,
		logger:  logger,
		ch:      make(chan Event, defaultBuffer),
		done:    make(chan struct{}),
	}
}

// Record persists the event and queues it for external delivery. A full
// queue drops the sink copy with a warning; the stored row is unaffected.
// Callers inside a store transaction must use Append and hold the sink copy
// back until the transaction commits, or the sink sees events for work that
// rolled back.
func (p *Pipeline) Record(ctx context.Context, ev *Event) error {
	if err := p.Append(ctx, ev); err != nil {
		return err
	}
	p.Enqueue(*ev)
	return nil
}

// Append persists the event without queueing it for the sink. The store write
// joins the caller's transaction when one is on the context.
func (p *Pipeline) Append(ctx context.Context, ev *Event) error {
	return p.store.Save(ctx, ev)
}

// Enqueue hands a stored event to the sink worker. Non-blocking: a full queue
// drops the sink copy with a warning.
func (p *Pipeline) Enqueue(ev Event) {
	select {
	case p.ch <- ev:
	default:
		p.logger.Warn("audit sink queue full, dropping sink copy",
			"event_id", ev.ID, "kind", ev.Kind)
	}
}

// Run consumes the queue until ctx is canceled, then drains what is already
// buffered before returning.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case ev := <-p.ch:
			p.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-p.ch:
					p.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (p *Pipeline) Wait() {
	<-p.done
}

func (p *Pipeline) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.sink.Publish(ctx, ev); err != nil {
		p.logger.Error("publishing audit event failed",
			"event_id", ev.ID, "kind", ev.Kind, "error", err)
		return
	}
	if p.metrics != nil {
		p.metrics.AuditPublished.Inc()
	}
}
