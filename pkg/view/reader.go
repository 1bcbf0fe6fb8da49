// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package view implements the view-materialization algorithm: walking a
// ViewDescriptor's paths outward from a root entity through value,
// forward-reference, and reverse-reference steps to build a View,
// grounded on original_source/viewimpl.h and original_source/query.h.
//
// Reader is the direct analogue of the original's ViewReaderImpl (the
// store-reading half of the split between a dispatcher-facing
// ViewReader and its impl — pkg/engine.ViewReader is this module's
// blocking-façade counterpart to the original's ViewReader).
//
// The original walks a path with plain recursion. Here the walk is an
// explicit stack of frames instead: an adversarial caller can hand the
// dispatcher a ViewPath deep enough to exhaust the engine goroutine's
// stack, and the engine goroutine is a singleton that every other
// operation depends on, so it cannot be allowed to panic on untrusted
// input. MaxPathDepth bounds how many steps a single frame stack may
// carry before the walk abandons that path and logs a warning instead.
package view

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arborian/entigraph/logging"
	"github.com/arborian/entigraph/pkg/model"
	"github.com/arborian/entigraph/pkg/store"
)

// DefaultMaxPathDepth bounds the number of steps a ViewPath may take
// before the walk gives up on it (spec.md §9 bounded-recursion note).
const DefaultMaxPathDepth = 64

// defaultPathCacheSize bounds the pathCache's entry count.
const defaultPathCacheSize = 4096

// Reader materializes views against an EntityStore.
type Reader struct {
	store        *store.EntityStore
	log          logging.Logger
	maxPathDepth int
	pathCache    *lru.Cache[uint64, string]
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger attaches logger to the Reader.
func WithLogger(logger logging.Logger) Option {
	return func(r *Reader) { r.log = logger }
}

// WithMaxPathDepth overrides DefaultMaxPathDepth.
func WithMaxPathDepth(depth int) Option {
	return func(r *Reader) { r.maxPathDepth = depth }
}

// New returns a Reader over s.
func New(s *store.EntityStore, opts ...Option) *Reader {
	cache, _ := lru.New[uint64, string](defaultPathCacheSize)
	r := &Reader{
		store:        s,
		log:          logging.NewNoOpLogger(),
		maxPathDepth: DefaultMaxPathDepth,
		pathCache:    cache,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read materializes desc against the store. It returns false if the
// root entity is absent, or if desc carries an Expectation that the
// store has not yet caught up to (spec.md §4.6 step 1's
// read-after-write fence).
func (r *Reader) Read(desc model.ViewDescriptor) (model.View, bool) {
	if desc.Expectation != nil {
		target, ok := r.store.Get(desc.Expectation.Target)
		if !ok || target.AddTime() < desc.Expectation.EventID {
			return model.View{}, false
		}
	}

	root, ok := r.store.Get(desc.Root)
	if !ok {
		return model.View{}, false
	}

	builder := model.NewViewBuilder(desc.Root)
	for _, path := range desc.Paths {
		r.walk(path, root, builder)
	}
	return builder.Finish(), true
}

// frame is one pending step of an in-progress path walk: path is the
// full path being traversed, idx is the next step to process, and node
// is the entity currently reached.
type frame struct {
	path model.ViewPath
	idx  int
	node *store.StorageNode
}

// walk drives path from root using an explicit stack rather than
// recursion, dispatching each step by its kind. Reverse-reference steps
// can fan out to more than one continuation frame; value steps
// terminate a frame by recording a binding on builder.
func (r *Reader) walk(path model.ViewPath, root *store.StorageNode, builder *model.ViewBuilder) {
	stack := []frame{{path: path, idx: 0, node: root}}

	for len(stack) > 0 {
		n := len(stack) - 1
		f := stack[n]
		stack = stack[:n]

		if f.idx >= len(f.path) {
			continue
		}
		if f.idx >= r.maxPathDepth {
			r.log.Warn("view path exceeded max depth %d, abandoning: %s", r.maxPathDepth, r.pathString(f.path))
			continue
		}

		step := f.path[f.idx]
		switch {
		case step.IsValue():
			if val, ok := f.node.GetFields()[step.Name]; ok {
				builder.AddKeyed(r.pathString(f.path), val)
			}

		case step.IsForwardRef():
			val, ok := f.node.GetFields()[step.Name]
			if !ok {
				continue
			}
			desc, ok := val.AsDescriptor()
			if !ok || desc.Type != step.Type {
				continue
			}
			next, ok := r.store.Get(desc)
			if !ok {
				continue
			}
			stack = append(stack, frame{path: f.path, idx: f.idx + 1, node: next})

		case step.IsReverseRef():
			for _, referencer := range f.node.ReferencersForField(step.Name) {
				if referencer.Type != step.Type {
					continue
				}
				next, ok := r.store.Get(referencer)
				if !ok {
					continue
				}
				stack = append(stack, frame{path: f.path, idx: f.idx + 1, node: next})
			}
		}
	}
}

// pathString returns path's dot-joined string form, memoized in
// pathCache keyed by an xxhash digest of the path's steps so repeated
// traversals of structurally identical paths (common across many rows
// sharing one ViewDescriptor shape) skip the string-building and
// per-step formatting work.
func (r *Reader) pathString(path model.ViewPath) string {
	key := hashPath(path)
	if cached, ok := r.pathCache.Get(key); ok {
		return cached
	}
	s := path.String()
	r.pathCache.Add(key, s)
	return s
}

func hashPath(path model.ViewPath) uint64 {
	h := xxhash.New()
	for _, e := range path {
		_, _ = h.WriteString(e.Name)
		var buf [9]byte
		putUint64(buf[:8], e.Type)
		if e.Forward {
			buf[8] = 1
		}
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * (7 - i)))
	}
}
