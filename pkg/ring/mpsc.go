// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package ring implements a bounded, lock-free multi-producer/single-consumer
// ring buffer (spec.md §4.2), grounded on original_source/mpsc.h. The
// original is a C++ template over element type and a fixed buffer size;
// Go generics give the same "one ring, many element types" property
// without the template machinery, and the same type is exercised both
// by pkg/dispatch's Operation ring and directly in tests against plain
// payload types.
package ring

import (
	"runtime"
	"sync/atomic"
)

// MPSC is a bounded ring of capacity N with N-1 usable slots. The zero
// value is not usable; construct with New.
type MPSC[T any] struct {
	buf        []T
	writeIdx   atomic.Uint64
	readIdx    atomic.Uint64
	maxReadIdx atomic.Uint64
}

// New returns an empty ring with capacity N (usable slots: N-1). N must
// be at least 2.
func New[T any](n int) *MPSC[T] {
	if n < 2 {
		n = 2
	}
	return &MPSC[T]{buf: make([]T, n)}
}

func (r *MPSC[T]) position(count uint64) uint64 {
	return count % uint64(len(r.buf))
}

// Produce reserves a slot, stores elem, and publishes the reservation.
// It returns false if the ring is full. Safe for concurrent use by
// multiple producers.
func (r *MPSC[T]) Produce(elem T) bool {
	current := r.writeIdx.Load()
	for {
		if r.position(current+1) == r.position(r.readIdx.Load()) {
			return false
		}
		if r.writeIdx.CompareAndSwap(current, current+1) {
			break
		}
		current = r.writeIdx.Load()
	}

	r.buf[r.position(current)] = elem

	// Publish in strict reservation order: wait until maxReadIdx has
	// caught up to this reservation's predecessor before advancing it
	// past ours, so a consumer never observes a slot before its
	// producer has stored into it.
	expected := current
	for !r.maxReadIdx.CompareAndSwap(expected, current+1) {
		expected = current
		runtime.Gosched()
	}

	return true
}

// Consume removes and returns the oldest published element, or returns
// ok == false if none is available yet.
func (r *MPSC[T]) Consume() (elem T, ok bool) {
	for {
		currentRead := r.readIdx.Load()
		currentMaxRead := r.maxReadIdx.Load()

		if r.position(currentRead) == r.position(currentMaxRead) {
			var zero T
			return zero, false
		}

		candidate := r.buf[r.position(currentRead)]

		if r.readIdx.CompareAndSwap(currentRead, currentRead+1) {
			return candidate, true
		}
	}
}

// Cap returns the number of usable slots (N-1).
func (r *MPSC[T]) Cap() int {
	return len(r.buf) - 1
}

// Len returns a point-in-time estimate of the number of published,
// unconsumed elements. Under concurrent Produce/Consume calls this is
// only a snapshot, never an exact count; it exists for metrics
// reporting, not for control flow.
func (r *MPSC[T]) Len() int {
	n := int(r.maxReadIdx.Load() - r.readIdx.Load())
	if n < 0 {
		return 0
	}
	return n
}
