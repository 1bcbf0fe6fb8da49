// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package publish implements the event application algorithm: diffing
// referenced descriptors, maintaining forward/reverse reference
// consistency, and materializing stub nodes for forward references to
// not-yet-known entities (spec.md §4.5), grounded on
// original_source/publishimpl.h.
//
// Publisher runs exclusively on the engine goroutine; it is the direct
// analogue of the original's PublisherImpl (the store-mutating half of
// the split between a dispatcher-facing Publisher and its impl — in
// this module that split is pkg/engine.Publisher, the blocking façade,
// versus this package's Publisher, the in-thread applier).
package publish

import (
	"github.com/arborian/entigraph/pkg/model"
	"github.com/arborian/entigraph/pkg/store"
)

// stubWriteTime is the synthetic write time used when materializing a
// stub node for a not-yet-known referenced entity. It is the smallest
// non-zero EventID, so any later real event for that entity strictly
// exceeds it and overwrites the stub's (empty) value map (spec.md §4.5).
const stubWriteTime model.EventID = 1

// Publisher applies events to an EntityStore.
type Publisher struct {
	store *store.EntityStore
}

// New returns a Publisher that mutates store.
func New(s *store.EntityStore) *Publisher {
	return &Publisher{store: s}
}

// Apply installs evt's entity into the store, then re-wires the
// forward/reverse reference index: references the subject dropped are
// dereffed on their targets (materializing a stub first if the target
// is not yet known), and references the subject newly holds are added
// on their targets (same stub materialization).
func (p *Publisher) Apply(evt model.Event) error {
	removed := p.store.Put(evt.ID, evt.Entity)

	for field, oldTarget := range removed {
		if node, ok := p.store.Get(oldTarget); ok {
			node.RemoveReferencer(evt.ID, field, evt.Entity.Descriptor)
		} else {
			p.referenceStub(oldTarget, evt.ID, field, evt.Entity.Descriptor, false)
		}
	}

	for field, val := range evt.Entity.Node {
		desc, ok := val.AsDescriptor()
		if !ok {
			continue
		}
		if node, ok := p.store.Get(desc); ok {
			node.AddReferencer(evt.ID, field, evt.Entity.Descriptor)
		} else {
			p.referenceStub(desc, evt.ID, field, evt.Entity.Descriptor, true)
		}
	}

	return nil
}

// referenceStub materializes a placeholder node for desc — a forward
// reference to an entity the store has not yet seen a real write for —
// and immediately records referencer's add/remove against it. The
// stub's own liveness gate stays at AddTime == 1 until a real event for
// desc arrives and overwrites it (spec.md §4.5, §9).
//
// Per spec.md §9's stub-removal resolution: if referencer is later the
// stub's only referencer and gets dereffed, the stub is left in the
// store as non-live garbage rather than reaped. No background sweep of
// stub-only nodes is implemented.
func (p *Publisher) referenceStub(desc model.EntityDescriptor, refTime model.EventID, field string, referencer model.EntityDescriptor, add bool) {
	p.store.Put(stubWriteTime, model.EventEntity{Descriptor: desc, Node: model.ValueNode{}})
	node, ok := p.store.Get(desc)
	if !ok {
		// Put always installs a node for desc.ID; the only way Get can
		// still miss is if desc.Type doesn't match what's already
		// stored there, i.e. an id collision across types. There is
		// nothing sound to do but drop the reference silently, the
		// same posture the spec takes for any other type mismatch.
		return
	}
	if add {
		node.AddReferencer(refTime, field, referencer)
	} else {
		node.RemoveReferencer(refTime, field, referencer)
	}
}
