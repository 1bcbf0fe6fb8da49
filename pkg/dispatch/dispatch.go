// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package dispatch implements the operation dispatcher: a single
// worker goroutine that drains an MPSC ring of queued reads and writes
// and applies them, one at a time, against the publisher and view
// reader it owns (spec.md §4.7, §5), grounded on
// original_source/opdispatch.h.
//
// Every entity-store mutation and every view read is structurally
// serialized through this one goroutine. That is what lets
// pkg/store's EntityStore and pkg/view's Reader skip locking
// altogether: there is never more than one goroutine touching them.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arborian/entigraph/internal/xmetrics"
	"github.com/arborian/entigraph/logging"
	"github.com/arborian/entigraph/pkg/model"
	"github.com/arborian/entigraph/pkg/publish"
	"github.com/arborian/entigraph/pkg/ring"
)

// DefaultRingCapacity is the MPSC ring's capacity when Config.RingCapacity
// is left at zero (spec.md §9's MPSC saturation scenario uses a much
// smaller ring explicitly for test purposes).
const DefaultRingCapacity = 1024

// DefaultIdleBackoff is how long the worker sleeps after finding the
// ring empty before polling again.
const DefaultIdleBackoff = 250 * time.Millisecond

var tracer = otel.Tracer("github.com/arborian/entigraph/pkg/dispatch")

// kind tags which of Operation's two payloads is set.
type kind int

const (
	kindWrite kind = iota
	kindRead
)

// Operation is one unit of work submitted to the dispatcher: either a
// write (an Event to publish) or a read (a ViewDescriptor to
// materialize), carrying a correlation id for tracing and a one-shot
// result channel the worker closes out.
type Operation struct {
	id   uuid.UUID
	kind kind

	writeEvent model.Event
	readQuery  model.ViewDescriptor

	result chan Result
}

// Result is what a completed Operation resolves to: for a write, Err
// is the only meaningful field; for a read, View/Found carry the
// materialized result.
type Result struct {
	Err   error
	View  model.View
	Found bool
}

// NewWrite builds a write Operation for evt.
func NewWrite(evt model.Event) Operation {
	return Operation{id: uuid.New(), kind: kindWrite, writeEvent: evt, result: make(chan Result, 1)}
}

// NewRead builds a read Operation for desc.
func NewRead(desc model.ViewDescriptor) Operation {
	return Operation{id: uuid.New(), kind: kindRead, readQuery: desc, result: make(chan Result, 1)}
}

// Config configures a Dispatcher.
type Config struct {
	RingCapacity int
	IdleBackoff  time.Duration
	Logger       logging.Logger
	Metrics      *xmetrics.Metrics
}

// Reader is the view-materializing dependency a Dispatcher drives reads
// against. *view.Reader satisfies it; tests substitute smaller fakes.
type Reader interface {
	Read(model.ViewDescriptor) (model.View, bool)
}

// Dispatcher owns the Publisher and Reader and drains queued
// Operations against them from a single worker goroutine.
type Dispatcher struct {
	ring        *ring.MPSC[Operation]
	publisher   *publish.Publisher
	reader      Reader
	idleBackoff time.Duration
	log         logging.Logger
	metrics     *xmetrics.Metrics

	done chan struct{}
}

// New returns a running Dispatcher. Call Close to stop its worker.
func New(publisher *publish.Publisher, reader Reader, cfg Config) *Dispatcher {
	capacity := cfg.RingCapacity
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	backoff := cfg.IdleBackoff
	if backoff <= 0 {
		backoff = DefaultIdleBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	d := &Dispatcher{
		ring:        ring.New[Operation](capacity),
		publisher:   publisher,
		reader:      reader,
		idleBackoff: backoff,
		log:         logger,
		metrics:     cfg.Metrics,
		done:        make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit enqueues op. It returns false if the ring is momentarily full;
// the caller decides whether to retry.
func (d *Dispatcher) Submit(op Operation) bool {
	return d.ring.Produce(op)
}

// Close stops the worker goroutine. It does not drain operations
// already queued; callers that need a clean drain should stop
// submitting and wait for the ring to empty before calling Close.
func (d *Dispatcher) Close() {
	close(d.done)
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		default:
		}

		op, ok := d.ring.Consume()
		if !ok {
			time.Sleep(d.idleBackoff)
			continue
		}
		d.apply(op)
	}
}

func (d *Dispatcher) apply(op Operation) {
	if d.metrics != nil {
		d.metrics.QueueDepth.Set(float64(d.ring.Len()))
	}

	ctx, span := tracer.Start(context.Background(), "dispatch.apply",
		trace.WithAttributes(attribute.String("operation.id", op.id.String())))
	defer span.End()

	start := time.Now()
	result := d.applyWithRecover(ctx, op)

	if d.metrics != nil {
		d.metrics.ObserveLatency(op.kindLabel(), time.Since(start).Seconds())
	}
	if result.Err != nil {
		span.SetStatus(codes.Error, result.Err.Error())
		d.log.Error("operation %s failed: %v", op.id, result.Err)
		if d.metrics != nil && op.kind == kindWrite {
			d.metrics.WriteErrors.Inc()
		}
	}
	op.result <- result
}

func (op Operation) kindLabel() string {
	if op.kind == kindWrite {
		return "write"
	}
	return "read"
}

// applyWithRecover guards against a panic inside the publisher or
// reader taking the whole worker goroutine down with it — a single bad
// event must become an error on that operation's result channel, not a
// stalled engine every other caller is blocked waiting on.
func (d *Dispatcher) applyWithRecover(ctx context.Context, op Operation) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Err: fmt.Errorf("operation %s panicked: %v", op.id, r)}
		}
	}()

	switch op.kind {
	case kindWrite:
		_, span := tracer.Start(ctx, "dispatch.apply.write")
		defer span.End()
		err := d.publisher.Apply(op.writeEvent)
		return Result{Err: err}

	case kindRead:
		_, span := tracer.Start(ctx, "dispatch.apply.read")
		defer span.End()
		v, found := d.reader.Read(op.readQuery)
		return Result{View: v, Found: found}

	default:
		return Result{Err: fmt.Errorf("operation %s has unknown kind %d", op.id, op.kind)}
	}
}

// Await blocks until op's result is ready or ctx is done.
func Await(ctx context.Context, op Operation) (Result, error) {
	select {
	case result := <-op.result:
		return result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
