// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/arborian/entigraph/pkg/eventlog"
	"github.com/arborian/entigraph/pkg/model"
)

func newTestSystem(t *testing.T) *System {
	t.Helper()
	sys, err := New(Config{WriterID: 7, RingCapacity: 16, IdleBackoff: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error constructing system: %v", err)
	}
	t.Cleanup(sys.Close)
	return sys
}

func TestWriteAssignsIdAndSubstitutesUnassignedDescriptor(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	id, err := sys.Writer.Write(ctx, model.EventEntity{
		Descriptor: model.EntityDescriptor{Type: 1},
		Node:       model.ValueNode{"v": model.NewUint64Value(1)},
	})
	if err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a nonzero assigned event id")
	}

	view, found, err := sys.Reader.Read(ctx, model.ViewDescriptor{
		Root:  model.EntityDescriptor{ID: id, Type: 1},
		Paths: []model.ViewPath{{{Name: "v"}}},
	})
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if !found {
		t.Fatalf("expected to find the entity under its assigned id")
	}
	val, _ := view.Get(model.ViewPath{{Name: "v"}})
	v, _ := val.AsUint64()
	if v != 1 {
		t.Fatalf("expected v == 1, got: %v", v)
	}
}

func TestWriteAndReadSeesItsOwnWrite(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	view, found, err := sys.WriteAndRead(ctx, model.EventEntity{
		Descriptor: model.EntityDescriptor{Type: 1},
		Node:       model.ValueNode{"v": model.NewUint64Value(42)},
	}, model.ViewDescriptor{Paths: []model.ViewPath{{{Name: "v"}}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("expected the read-after-write to find the entity")
	}
	val, _ := view.Get(model.ViewPath{{Name: "v"}})
	v, _ := val.AsUint64()
	if v != 42 {
		t.Fatalf("expected v == 42, got: %v", v)
	}
}

func TestRebuildPopulatesStoreFromLog(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()

	log := eventlog.NewMemLog()
	subject := model.EntityDescriptor{ID: 1, Type: 1}
	if err := log.Append(ctx, model.Event{ID: 5, Entity: model.EventEntity{
		Descriptor: subject,
		Node:       model.ValueNode{"v": model.NewUint64Value(100)},
	}}); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}

	if err := sys.Rebuild(ctx, log); err != nil {
		t.Fatalf("unexpected rebuild error: %v", err)
	}

	view, found, err := sys.Reader.Read(ctx, model.ViewDescriptor{
		Root:  subject,
		Paths: []model.ViewPath{{{Name: "v"}}},
	})
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if !found {
		t.Fatalf("expected rebuild to have populated the subject")
	}
	val, _ := view.Get(model.ViewPath{{Name: "v"}})
	v, _ := val.AsUint64()
	if v != 100 {
		t.Fatalf("expected v == 100 after rebuild, got: %v", v)
	}
}

func TestLoggingWriterAppendsAndApplies(t *testing.T) {
	sys := newTestSystem(t)
	ctx := context.Background()
	log := eventlog.NewMemLog()
	writer := NewLoggingWriter(sys.Writer, log)

	id, err := writer.Write(ctx, model.EventEntity{
		Descriptor: model.EntityDescriptor{Type: 1},
		Node:       model.ValueNode{"v": model.NewUint64Value(7)},
	})
	if err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	var replayedIDs []model.EventID
	if err := log.Replay(ctx, func(evt model.Event) error {
		replayedIDs = append(replayedIDs, evt.ID)
		return nil
	}); err != nil {
		t.Fatalf("unexpected replay error: %v", err)
	}
	if len(replayedIDs) != 1 || replayedIDs[0] != id {
		t.Fatalf("expected the log to contain exactly the written event id %d, got: %v", id, replayedIDs)
	}

	view, found, err := sys.Reader.Read(ctx, model.ViewDescriptor{
		Root:  model.EntityDescriptor{ID: id, Type: 1},
		Paths: []model.ViewPath{{{Name: "v"}}},
	})
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if !found {
		t.Fatalf("expected the logged write to also be applied to the live store")
	}
	_ = view
}
