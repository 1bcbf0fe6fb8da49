// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package store implements the entity store: a map from entity
// identity to a storage node carrying both its value fields and its
// reverse-reference index (spec.md §3, §4.3, §4.4), grounded on
// original_source/entitystorage.h.
//
// A single goroutine — the engine goroutine driven by pkg/dispatch —
// owns the EntityStore once operations are being submitted; the one
// exception is engine.System.Rebuild, which replays a log on the
// caller's goroutine before any operation is submitted. Unlike the
// teacher's storage/inmem store, which guards its backing map with a
// sync.Mutex/sync.RWMutex pair for multi-reader/single-writer access,
// nothing here takes a lock: structural serialization through the
// dispatcher's MPSC ring (spec.md §5) is what makes concurrent access
// safe, not a mutex.
package store

import "github.com/arborian/entigraph/pkg/model"

// Existence is a two-timestamp liveness gate: the referent is live iff
// AddTime > RemoveTime. Both zero values mean "never touched" — the
// state of a freshly created stub.
type Existence struct {
	AddTime    model.EventID
	RemoveTime model.EventID
}

// Exists reports whether the referent is currently live.
func (e Existence) Exists() bool {
	return e.AddTime > e.RemoveTime
}

// Touch advances AddTime to touchTime if that moves it forward.
// Idempotent and commutative under max, per spec.md §4.3.
func (e *Existence) Touch(touchTime model.EventID) {
	if touchTime > e.AddTime {
		e.AddTime = touchTime
	}
}

// Deref advances RemoveTime to derefTime if that moves it forward.
func (e *Existence) Deref(derefTime model.EventID) {
	if derefTime > e.RemoveTime {
		e.RemoveTime = derefTime
	}
}

// ReferenceSet maps a referencing entity's descriptor to the Existence
// gate recording when it started/stopped referencing the owning node
// under one field.
type ReferenceSet map[model.EntityDescriptor]Existence

// RemovedReferences maps field name to the descriptor that field held
// before an update replaced it — the set of forward references a
// Publisher must deref after a Put.
type RemovedReferences map[string]model.EntityDescriptor

// StorageNode is the storage record for one entity: its liveness gate,
// its current field map, and the reverse index of who references it
// under each field name. A node is created by the first event that
// touches its id, either a direct write or a forward reference from
// elsewhere, and is never destroyed while the store is alive (spec.md
// §3 invariant: stubs are garbage, not reclaimed).
type StorageNode struct {
	existence   Existence
	entity      model.EventEntity
	referencers map[string]ReferenceSet
}

func newNode(writeTime model.EventID, initial model.EventEntity) *StorageNode {
	return &StorageNode{
		existence:   Existence{AddTime: writeTime},
		entity:      initial,
		referencers: map[string]ReferenceSet{},
	}
}

// Type returns the entity type this node holds.
func (n *StorageNode) Type() model.EntityTypeID {
	return n.entity.Descriptor.Type
}

// Exists reports whether this node's own liveness gate is live. A node
// with AddTime == 0 is a stub: it carries no authoritative fields yet
// and only exists to record referencers (spec.md §3 invariant 2).
func (n *StorageNode) Exists() bool {
	return n.existence.Exists()
}

// Deref advances this node's own removal timestamp.
func (n *StorageNode) Deref(derefTime model.EventID) {
	n.existence.Deref(derefTime)
}

// AddReferencer records that referencer now holds a forward reference
// to this node under fieldName, creating the inner bucket on demand.
func (n *StorageNode) AddReferencer(writeTime model.EventID, fieldName string, referencer model.EntityDescriptor) {
	bucket := n.referencers[fieldName]
	if bucket == nil {
		bucket = ReferenceSet{}
		n.referencers[fieldName] = bucket
	}
	existence := bucket[referencer]
	existence.Touch(writeTime)
	bucket[referencer] = existence
	n.existence.Touch(writeTime)
}

// RemoveReferencer records that referencer no longer holds a forward
// reference to this node under fieldName.
func (n *StorageNode) RemoveReferencer(writeTime model.EventID, fieldName string, referencer model.EntityDescriptor) {
	bucket := n.referencers[fieldName]
	if bucket == nil {
		bucket = ReferenceSet{}
		n.referencers[fieldName] = bucket
	}
	existence := bucket[referencer]
	existence.Deref(writeTime)
	bucket[referencer] = existence
	n.existence.Touch(writeTime)
}

// ReferencersForField returns a snapshot of descriptors currently
// holding a live forward reference to this node under field. Order is
// unspecified.
func (n *StorageNode) ReferencersForField(field string) []model.EntityDescriptor {
	bucket, ok := n.referencers[field]
	if !ok {
		return nil
	}
	snapshot := make([]model.EntityDescriptor, 0, len(bucket))
	for desc, existence := range bucket {
		if existence.Exists() {
			snapshot = append(snapshot, desc)
		}
	}
	return snapshot
}

// UpdateFields applies an incoming write to this node. If updateTime
// does not strictly exceed the node's current AddTime, or the update
// targets a different descriptor, the call is a silent no-op on the
// field map (spec.md §3 invariant 4) and returns an empty set.
// Otherwise it snapshots the descriptor-valued fields the node held
// before the update (so the caller can deref their reverse references),
// replaces the field map, and advances the liveness gate.
func (n *StorageNode) UpdateFields(updateTime model.EventID, update model.EventEntity) RemovedReferences {
	removed := RemovedReferences{}

	if updateTime > n.existence.AddTime && update.Descriptor == n.entity.Descriptor {
		for field, val := range n.entity.Node {
			if desc, ok := val.AsDescriptor(); ok {
				removed[field] = desc
			}
		}
		n.entity.Node = update.Node
		n.existence.Touch(updateTime)
	}

	return removed
}

// GetFields returns the node's live value map.
func (n *StorageNode) GetFields() model.ValueNode {
	return n.entity.Node
}

// AddTime returns the node's current liveness add-time, used by the
// view reader's read-after-write fence (spec.md §4.6 step 1).
func (n *StorageNode) AddTime() model.EventID {
	return n.existence.AddTime
}
