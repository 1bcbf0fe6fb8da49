// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ids

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Snowflake is a monotonic id generator for a single writer. Ids
// produced by a given Snowflake instance strictly increase; ids across
// writers are unique as long as each uses a distinct writer id (spec.md
// §4.1, §5).
//
// The (timestamp, sequence) pair is packed into a single atomic.Uint64
// cell so next() can CAS both fields together, the Go equivalent of the
// original's std::atomic<TimeAndOrder>.
type Snowflake struct {
	writerID uint32
	packer   Packer
	now      func() int64 // milliseconds since Epoch; overridable in tests
	state    atomic.Uint64
}

// NewSnowflake returns a provider for the given writer id. writerID
// must fit in 10 bits.
func NewSnowflake(writerID uint32) (*Snowflake, error) {
	if writerID > maxWriter {
		return nil, fmt.Errorf("ids: writer id %d exceeds %d-bit range", writerID, writerPrecision)
	}
	return &Snowflake{
		writerID: writerID,
		now:      nowMillis,
	}, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli() - Epoch
}

func packState(t uint64, seq uint32) uint64 {
	return (t << orderPrecision) | uint64(seq)
}

func unpackState(s uint64) (t uint64, seq uint32) {
	return s >> orderPrecision, uint32(s & uint64(maxOrder))
}

// Next returns the next id for this writer. It busy-retries within the
// same millisecond when the 12-bit sequence would overflow, and waits
// out backward clock jumps — but unlike the original, which sleeps
// unconditionally, it honors ctx so a canceled caller doesn't block
// forever on a misbehaving clock (spec.md §9 clock-rollback resolution).
func (s *Snowflake) Next(ctx context.Context) (uint64, error) {
	for {
		t := uint64(s.now())

		cur := s.state.Load()
		curT, curSeq := unpackState(cur)

		if curT > t {
			wait := time.Duration(curT-t) * time.Millisecond
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		var nextT uint64
		var nextSeq uint32
		if curT == t {
			if curSeq >= maxOrder {
				continue // spin within the same millisecond until it rolls over
			}
			nextT, nextSeq = t, curSeq+1
		} else {
			nextT, nextSeq = t, 0
		}

		next := packState(nextT, nextSeq)
		if s.state.CompareAndSwap(cur, next) {
			return s.packer.Pack(nextT, s.writerID, nextSeq), nil
		}
	}
}
