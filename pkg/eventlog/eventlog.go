// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package eventlog provides a durable, replayable record of every
// event a Publisher has applied, grounded on
// original_source/eventlog.h and modeled on the teacher's disk.Store
// (storage/disk/disk.go): events are the module's only persisted
// artifact, so a Log is an append-only write path plus an in-order
// Replay, not a general key-value store.
//
// MemLog is an in-memory Log for tests and ephemeral deployments.
// BadgerLog persists events to disk via dgraph-io/badger/v4, the same
// embedded key-value engine the teacher's disk.Store wraps.
package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/arborian/entigraph/pkg/model"
)

// Log is an append-only, replayable sequence of events.
type Log interface {
	// Append durably records evt.
	Append(ctx context.Context, evt model.Event) error
	// Replay calls fn once for every event: BadgerLog replays in
	// EventID order, MemLog in append order. Replay stops and returns
	// fn's error if fn returns one.
	Replay(ctx context.Context, fn func(model.Event) error) error
	// Close releases the log's resources.
	Close() error
}

// MemLog is a Log backed by an in-memory slice, safe for concurrent
// use. Replay iterates a snapshot taken under the lock, so events
// appended while a Replay is running are not seen by it.
type MemLog struct {
	mu     sync.Mutex
	events []model.Event
}

// NewMemLog returns an empty MemLog.
func NewMemLog() *MemLog {
	return &MemLog{}
}

func (l *MemLog) Append(_ context.Context, evt model.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
	return nil
}

func (l *MemLog) Replay(_ context.Context, fn func(model.Event) error) error {
	l.mu.Lock()
	snapshot := make([]model.Event, len(l.events))
	copy(snapshot, l.events)
	l.mu.Unlock()

	for _, evt := range snapshot {
		if err := fn(evt); err != nil {
			return err
		}
	}
	return nil
}

func (l *MemLog) Close() error { return nil }

// eventRecord is the JSON wire shape an event's field map is persisted
// as. PrimitiveFieldValue's private fields aren't directly
// marshalable, so each field is flattened into a tagged (kind, value)
// pair.
type eventRecord struct {
	EntityID   model.EntityID         `json:"entity_id"`
	EntityType model.EntityTypeID     `json:"entity_type"`
	Fields     map[string]taggedValue `json:"fields"`
}

type taggedValue struct {
	Kind  model.Kind  `json:"kind"`
	Value interface{} `json:"value"`
}

func encodeValue(v model.PrimitiveFieldValue) taggedValue {
	switch v.Kind() {
	case model.KindUint64:
		u, _ := v.AsUint64()
		return taggedValue{Kind: model.KindUint64, Value: u}
	case model.KindFloat64:
		f, _ := v.AsFloat64()
		return taggedValue{Kind: model.KindFloat64, Value: f}
	case model.KindString:
		s, _ := v.AsString()
		return taggedValue{Kind: model.KindString, Value: s}
	case model.KindBool:
		b, _ := v.AsBool()
		return taggedValue{Kind: model.KindBool, Value: b}
	case model.KindDescriptor:
		d, _ := v.AsDescriptor()
		return taggedValue{Kind: model.KindDescriptor, Value: d}
	default:
		return taggedValue{}
	}
}

func decodeValue(tv taggedValue) (model.PrimitiveFieldValue, error) {
	switch tv.Kind {
	case model.KindUint64:
		n, ok := tv.Value.(float64)
		if !ok {
			return model.PrimitiveFieldValue{}, fmt.Errorf("eventlog: expected numeric uint64 value")
		}
		return model.NewUint64Value(uint64(n)), nil
	case model.KindFloat64:
		n, ok := tv.Value.(float64)
		if !ok {
			return model.PrimitiveFieldValue{}, fmt.Errorf("eventlog: expected numeric float64 value")
		}
		return model.NewFloat64Value(n), nil
	case model.KindString:
		s, ok := tv.Value.(string)
		if !ok {
			return model.PrimitiveFieldValue{}, fmt.Errorf("eventlog: expected string value")
		}
		return model.NewStringValue(s), nil
	case model.KindBool:
		b, ok := tv.Value.(bool)
		if !ok {
			return model.PrimitiveFieldValue{}, fmt.Errorf("eventlog: expected bool value")
		}
		return model.NewBoolValue(b), nil
	case model.KindDescriptor:
		raw, err := json.Marshal(tv.Value)
		if err != nil {
			return model.PrimitiveFieldValue{}, err
		}
		var desc model.EntityDescriptor
		if err := json.Unmarshal(raw, &desc); err != nil {
			return model.PrimitiveFieldValue{}, err
		}
		return model.NewDescriptorValue(desc), nil
	default:
		return model.PrimitiveFieldValue{}, fmt.Errorf("eventlog: unknown value kind %d", tv.Kind)
	}
}

func encodeEvent(evt model.Event) ([]byte, error) {
	rec := eventRecord{
		EntityID:   evt.Entity.Descriptor.ID,
		EntityType: evt.Entity.Descriptor.Type,
		Fields:     make(map[string]taggedValue, len(evt.Entity.Node)),
	}
	for field, val := range evt.Entity.Node {
		rec.Fields[field] = encodeValue(val)
	}
	return json.Marshal(rec)
}

func decodeEvent(id model.EventID, raw []byte) (model.Event, error) {
	var rec eventRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Event{}, err
	}
	node := make(model.ValueNode, len(rec.Fields))
	for field, tv := range rec.Fields {
		val, err := decodeValue(tv)
		if err != nil {
			return model.Event{}, fmt.Errorf("eventlog: decoding field %q of event %d: %w", field, id, err)
		}
		node[field] = val
	}
	return model.Event{
		ID: id,
		Entity: model.EventEntity{
			Descriptor: model.EntityDescriptor{ID: rec.EntityID, Type: rec.EntityType},
			Node:       node,
		},
	}, nil
}

// eventKey encodes id as an 8-byte big-endian key, so badger's
// key-order iteration replays events in ascending EventID order
// without a secondary index.
func eventKey(id model.EventID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// BadgerLog is a Log durably persisted with dgraph-io/badger/v4, the
// same embedded store the teacher's storage/disk package wraps.
type BadgerLog struct {
	db *badger.DB
}

// OpenBadgerLog opens (creating if absent) a BadgerLog rooted at dir.
func OpenBadgerLog(dir string) (*BadgerLog, error) {
	opts := badger.DefaultOptions(dir)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening badger store at %q: %w", dir, err)
	}
	return &BadgerLog{db: db}, nil
}

func (l *BadgerLog) Append(_ context.Context, evt model.Event) error {
	raw, err := encodeEvent(evt)
	if err != nil {
		return fmt.Errorf("eventlog: encoding event %d: %w", evt.ID, err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(evt.ID), raw)
	})
}

func (l *BadgerLog) Replay(ctx context.Context, fn func(model.Event) error) error {
	return l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := binary.BigEndian.Uint64(item.Key())
			var evt model.Event
			if err := item.Value(func(raw []byte) error {
				decoded, err := decodeEvent(id, raw)
				if err != nil {
					return err
				}
				evt = decoded
				return nil
			}); err != nil {
				return err
			}
			if err := fn(evt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *BadgerLog) Close() error {
	return l.db.Close()
}
