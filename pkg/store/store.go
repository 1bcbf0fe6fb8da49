// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import "github.com/arborian/entigraph/pkg/model"

// EntityStore is the id -> node map backing the whole engine. The
// store itself never creates stub nodes — that is the Publisher's job
// (pkg/publish), per spec.md §4.4's note.
type EntityStore struct {
	nodes map[model.EntityID]*StorageNode
}

// New returns an empty entity store.
func New() *EntityStore {
	return &EntityStore{nodes: map[model.EntityID]*StorageNode{}}
}

// Put installs or updates the node for entity.Descriptor.ID. If no node
// exists yet, one is created with AddTime == writeTime and an empty
// RemovedReferences set is returned. Otherwise the write is delegated
// to the existing node's UpdateFields, whose return value tells the
// Publisher which forward references to deref.
func (s *EntityStore) Put(writeTime model.EventID, entity model.EventEntity) RemovedReferences {
	node, ok := s.nodes[entity.Descriptor.ID]
	if !ok {
		s.nodes[entity.Descriptor.ID] = newNode(writeTime, entity)
		return RemovedReferences{}
	}
	return node.UpdateFields(writeTime, entity)
}

// Get returns the node for descriptor, but only if its stored type
// matches descriptor.Type — a type mismatch is treated as absent
// (spec.md §4.4).
func (s *EntityStore) Get(descriptor model.EntityDescriptor) (*StorageNode, bool) {
	node, ok := s.nodes[descriptor.ID]
	if !ok || node.Type() != descriptor.Type {
		return nil, false
	}
	return node, true
}

// Len returns the number of nodes currently tracked, live or stub. It
// reports a count only: the store offers no ordered/restartable
// iteration of its nodes (spec.md §1 non-goals).
func (s *EntityStore) Len() int {
	return len(s.nodes)
}
