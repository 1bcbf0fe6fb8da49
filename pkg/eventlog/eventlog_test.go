// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package eventlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arborian/entigraph/pkg/model"
)

func sampleEvents() []model.Event {
	return []model.Event{
		{ID: 1, Entity: model.EventEntity{
			Descriptor: model.EntityDescriptor{ID: 1, Type: 23},
			Node:       model.ValueNode{"name": model.NewStringValue("ted"), "age": model.NewUint64Value(56)},
		}},
		{ID: 2, Entity: model.EventEntity{
			Descriptor: model.EntityDescriptor{ID: 2, Type: 21},
			Node: model.ValueNode{
				"name":       model.NewStringValue("john"),
				"manager_id": model.NewDescriptorValue(model.EntityDescriptor{ID: 1, Type: 23}),
				"active":     model.NewBoolValue(true),
				"rating":     model.NewFloat64Value(4.5),
			},
		}},
	}
}

func TestMemLogReplaysInAppendOrder(t *testing.T) {
	l := NewMemLog()
	ctx := context.Background()
	for _, evt := range sampleEvents() {
		if err := l.Append(ctx, evt); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}
	}

	var replayed []model.Event
	if err := l.Replay(ctx, func(evt model.Event) error {
		replayed = append(replayed, evt)
		return nil
	}); err != nil {
		t.Fatalf("unexpected replay error: %v", err)
	}

	if len(replayed) != 2 || replayed[0].ID != 1 || replayed[1].ID != 2 {
		t.Fatalf("expected events replayed in append order, got: %+v", replayed)
	}
}

func TestBadgerLogRoundTripsEventsInKeyOrder(t *testing.T) {
	dir, err := os.MkdirTemp("", "entigraph-eventlog-*")
	if err != nil {
		t.Fatalf("unexpected error creating temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	l, err := OpenBadgerLog(filepath.Join(dir, "log"))
	if err != nil {
		t.Fatalf("unexpected error opening badger log: %v", err)
	}
	defer l.Close()

	ctx := context.Background()
	events := sampleEvents()
	// Append out of order; Replay must still come back by EventID.
	if err := l.Append(ctx, events[1]); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}
	if err := l.Append(ctx, events[0]); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}

	var replayed []model.Event
	if err := l.Replay(ctx, func(evt model.Event) error {
		replayed = append(replayed, evt)
		return nil
	}); err != nil {
		t.Fatalf("unexpected replay error: %v", err)
	}

	if len(replayed) != 2 || replayed[0].ID != 1 || replayed[1].ID != 2 {
		t.Fatalf("expected replay in ascending EventID order regardless of append order, got: %+v", replayed)
	}

	manager, ok := replayed[1].Entity.Node["manager_id"].AsDescriptor()
	if !ok || manager != (model.EntityDescriptor{ID: 1, Type: 23}) {
		t.Fatalf("expected descriptor field to round trip through JSON, got: %v", manager)
	}
	rating, ok := replayed[1].Entity.Node["rating"].AsFloat64()
	if !ok || rating != 4.5 {
		t.Fatalf("expected float field to round trip through JSON, got: %v", rating)
	}
}

func TestBadgerLogReplayStopsOnCallbackError(t *testing.T) {
	dir, err := os.MkdirTemp("", "entigraph-eventlog-*")
	if err != nil {
		t.Fatalf("unexpected error creating temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	l, err := OpenBadgerLog(filepath.Join(dir, "log"))
	if err != nil {
		t.Fatalf("unexpected error opening badger log: %v", err)
	}
	defer l.Close()

	ctx := context.Background()
	for _, evt := range sampleEvents() {
		if err := l.Append(ctx, evt); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}
	}

	count := 0
	err = l.Replay(ctx, func(model.Event) error {
		count++
		if count == 1 {
			return errStop
		}
		return nil
	})
	if err != errStop {
		t.Fatalf("expected replay to propagate the callback's error, got: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected replay to stop after the first event, processed: %d", count)
	}
}

var errStop = testError("stop")

type testError string

func (e testError) Error() string { return string(e) }
