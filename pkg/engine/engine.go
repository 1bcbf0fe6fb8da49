// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package engine assembles the store, publisher, view reader, and
// dispatcher into one running System, and exposes the blocking
// Publisher/ViewReader façades callers actually use (spec.md §4.7,
// §7), grounded on original_source/eventview.h. These are the outer
// halves of the split noted in pkg/publish and pkg/view: where those
// packages' Publisher/Reader mutate and query the store directly on
// the dispatcher goroutine, engine.Publisher/engine.ViewReader run on
// the caller's goroutine and block on a channel for the dispatcher to
// get around to the work.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/arborian/entigraph/internal/xmetrics"
	"github.com/arborian/entigraph/logging"
	"github.com/arborian/entigraph/pkg/dispatch"
	"github.com/arborian/entigraph/pkg/eventlog"
	"github.com/arborian/entigraph/pkg/ids"
	"github.com/arborian/entigraph/pkg/model"
	"github.com/arborian/entigraph/pkg/publish"
	"github.com/arborian/entigraph/pkg/store"
	"github.com/arborian/entigraph/pkg/view"
)

// Config configures a System.
type Config struct {
	WriterID     uint32
	RingCapacity int
	IdleBackoff  time.Duration
	MaxPathDepth int
	Logger       logging.Logger
	Metrics      *xmetrics.Metrics
}

// System bundles one engine goroutine's worth of state: the store it
// owns, the snowflake id generator assigning event ids to writes with
// an unassigned descriptor, and the blocking façades callers use.
type System struct {
	store      *store.EntityStore
	snowflake  *ids.Snowflake
	dispatcher *dispatch.Dispatcher
	log        logging.Logger

	Writer *Publisher
	Reader *ViewReader
}

// New assembles and starts a System.
func New(cfg Config) (*System, error) {
	snowflake, err := ids.NewSnowflake(cfg.WriterID)
	if err != nil {
		return nil, fmt.Errorf("engine: constructing snowflake generator: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	s := store.New()
	publisher := publish.New(s)
	var viewOpts []view.Option
	viewOpts = append(viewOpts, view.WithLogger(logger))
	if cfg.MaxPathDepth > 0 {
		viewOpts = append(viewOpts, view.WithMaxPathDepth(cfg.MaxPathDepth))
	}
	reader := view.New(s, viewOpts...)

	d := dispatch.New(publisher, reader, dispatch.Config{
		RingCapacity: cfg.RingCapacity,
		IdleBackoff:  cfg.IdleBackoff,
		Logger:       logger,
		Metrics:      cfg.Metrics,
	})

	sys := &System{
		store:      s,
		snowflake:  snowflake,
		dispatcher: d,
		log:        logger,
	}
	sys.Writer = &Publisher{sys: sys}
	sys.Reader = &ViewReader{sys: sys}
	return sys, nil
}

// Close stops the engine goroutine. In-flight operations submitted
// before Close is called may still complete; new submissions after
// Close is called will never be drained.
func (s *System) Close() {
	s.dispatcher.Close()
}

// Rebuild replays log through the publisher before the engine starts
// taking new writes, restoring store state after a restart. It is the
// caller's responsibility to call Rebuild before exposing Writer/Reader
// to other goroutines.
func (s *System) Rebuild(ctx context.Context, log eventlog.Log) error {
	p := publish.New(s.store)
	return log.Replay(ctx, func(evt model.Event) error {
		return p.Apply(evt)
	})
}

// Publisher is the blocking façade over write operations: Write
// enqueues an event on the engine's dispatcher and waits for it to be
// applied.
type Publisher struct {
	sys *System
}

// Write assigns entity a fresh event id from the engine's snowflake
// generator, substitutes that id for entity.Descriptor.ID when the
// descriptor carries the "assign next event id" sentinel (ID == 0,
// spec.md §3's note on EntityDescriptor), submits the resulting event
// to the dispatcher, and blocks until it is applied or ctx is done.
// On success it returns the event id assigned, which doubles as the
// entity's id for brand-new entities.
func (p *Publisher) Write(ctx context.Context, entity model.EventEntity) (model.EventID, error) {
	id, err := p.sys.snowflake.Next(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: assigning event id: %w", err)
	}
	if entity.Descriptor.IsUnassigned() {
		entity.Descriptor.ID = id
	}

	op := dispatch.NewWrite(model.Event{ID: id, Entity: entity})
	if !p.sys.dispatcher.Submit(op) {
		return 0, fmt.Errorf("engine: dispatcher ring is full, write rejected")
	}

	result, err := dispatch.Await(ctx, op)
	if err != nil {
		return 0, err
	}
	if result.Err != nil {
		return 0, result.Err
	}
	return id, nil
}

// WriteAndRead writes entity, then immediately reads back desc with an
// Expectation fence pinned to the write's assigned event id — the
// read-after-write idiom spec.md §4.6 calls out, collapsed into one
// call for callers that always want to see their own write.
func (s *System) WriteAndRead(ctx context.Context, entity model.EventEntity, desc model.ViewDescriptor) (model.View, bool, error) {
	id, err := s.Writer.Write(ctx, entity)
	if err != nil {
		return model.View{}, false, err
	}

	target := entity.Descriptor
	if target.IsUnassigned() {
		target.ID = id
	}

	fenced := desc
	fenced.Root = target
	fenced.Expectation = &model.Expectation{Target: target, EventID: id}
	return s.Reader.Read(ctx, fenced)
}

// LoggingWriter wraps a Publisher so every write is durably appended to
// an eventlog.Log before (and regardless of) being applied to the live
// store, the Go analogue of the original's EventWriter::write_event
// (original_source/eventwriter.h): the log append is the durability
// boundary, the store apply is a derived, rebuildable projection of it.
type LoggingWriter struct {
	writer *Publisher
	log    eventlog.Log
}

// NewLoggingWriter returns a LoggingWriter appending to log before
// delegating each write to writer.
func NewLoggingWriter(writer *Publisher, log eventlog.Log) *LoggingWriter {
	return &LoggingWriter{writer: writer, log: log}
}

// Write durably appends entity to the log, then applies it through the
// wrapped Publisher. If the log append fails the write is never
// applied; if the apply fails after a successful append, the event is
// still durable and will be picked up by a future Rebuild.
func (w *LoggingWriter) Write(ctx context.Context, entity model.EventEntity) (model.EventID, error) {
	id, err := w.writer.sys.snowflake.Next(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: assigning event id: %w", err)
	}
	if entity.Descriptor.IsUnassigned() {
		entity.Descriptor.ID = id
	}
	evt := model.Event{ID: id, Entity: entity}

	if err := w.log.Append(ctx, evt); err != nil {
		return 0, fmt.Errorf("engine: appending event %d to log: %w", id, err)
	}

	op := dispatch.NewWrite(evt)
	if !w.writer.sys.dispatcher.Submit(op) {
		return id, fmt.Errorf("engine: dispatcher ring is full, write rejected after log append")
	}
	result, err := dispatch.Await(ctx, op)
	if err != nil {
		return id, err
	}
	return id, result.Err
}

// ViewReader is the blocking façade over read operations.
type ViewReader struct {
	sys *System
}

// Read submits desc to the dispatcher and blocks until the view is
// materialized or ctx is done.
func (r *ViewReader) Read(ctx context.Context, desc model.ViewDescriptor) (model.View, bool, error) {
	op := dispatch.NewRead(desc)
	if !r.sys.dispatcher.Submit(op) {
		return model.View{}, false, fmt.Errorf("engine: dispatcher ring is full, read rejected")
	}

	result, err := dispatch.Await(ctx, op)
	if err != nil {
		return model.View{}, false, err
	}
	if result.Err != nil {
		return model.View{}, false, result.Err
	}
	return result.View, result.Found, nil
}
