// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package ids implements the snowflake-style monotonic id generator
// used as both event timestamp and store ordering key (spec.md §4.1),
// grounded on original_source/snowflake.h.
package ids

const (
	orderPrecision     = 12
	timestampPrecision = 42
	writerPrecision    = 10

	maxTimestamp = (uint64(1) << timestampPrecision) - 1
	maxWriter    = (uint32(1) << writerPrecision) - 1
	maxOrder     = (uint32(1) << orderPrecision) - 1
)

// Epoch is the custom epoch snowflake timestamps are measured from:
// 2018-11-27T00:00:00Z, in milliseconds since the Unix epoch.
const Epoch int64 = 1543276800000

// Packer packs and unpacks the three components of a snowflake id:
// (timestamp_ms_since_epoch: 42 bits) || (writer_id: 10 bits) || (sequence: 12 bits).
// It is stateless and safe for concurrent use.
type Packer struct{}

// Pack combines timestamp, writer and order into a single 64-bit id.
// Inputs outside their bit width are masked, matching the original's
// unchecked bitwise pack.
func (Packer) Pack(timestamp uint64, writer, order uint32) uint64 {
	id := (timestamp & maxTimestamp) << (writerPrecision + orderPrecision)
	id |= uint64(writer&maxWriter) << orderPrecision
	id |= uint64(order & maxOrder)
	return id
}

// Unpack splits a packed id back into its timestamp, writer and order
// components.
func (Packer) Unpack(packed uint64) (timestamp uint64, writer uint32, order uint32) {
	timestamp = (packed >> (writerPrecision + orderPrecision)) & maxTimestamp
	writer = uint32((packed >> orderPrecision) & uint64(maxWriter))
	order = uint32(packed & uint64(maxOrder))
	return timestamp, writer, order
}
