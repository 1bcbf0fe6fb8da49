// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package model defines the data types shared by every layer of the
// entity graph engine: entity identity, tagged field values, events,
// and the view path language used to query the graph. It has no
// internal dependents and is the leaf package the rest of the engine
// builds on, mirroring how the teacher's storage.Path/Transaction types
// sit underneath storage/inmem.
package model

import (
	"math"
	"strings"
)

// EntityID identifies an entity within its type. Zero is reserved as
// the "assign next event id" sentinel (spec.md §3).
type EntityID = uint64

// EntityTypeID identifies an entity's type.
type EntityTypeID = uint64

// EventID is a monotonically increasing, globally unique (across
// writers) event identifier. It doubles as the "write time" used to
// order mutations to the same entity.
type EventID = uint64

// EntityDescriptor is the typed identity of an entity. Two descriptors
// are equal iff both components match; Go's struct equality gives this
// for free, so EntityDescriptor can be used directly as a map key
// without a custom hash function (unlike the C++ original, which
// specializes std::hash<EntityDescriptor>).
type EntityDescriptor struct {
	ID   EntityID
	Type EntityTypeID
}

// IsUnassigned reports whether this descriptor uses the "assign next
// event id" sentinel.
func (d EntityDescriptor) IsUnassigned() bool {
	return d.ID == 0
}

// Kind tags which alternative a PrimitiveFieldValue currently holds.
type Kind int

const (
	KindUint64 Kind = iota
	KindFloat64
	KindString
	KindBool
	KindDescriptor
)

// PrimitiveFieldValue is a tagged value carrying exactly one of an
// unsigned 64-bit integer, a 64-bit float, a string, a bool, or an
// EntityDescriptor (a reference to another entity). It stands in for
// the original's std::variant<uint64_t, double, string, bool,
// EntityDescriptor>.
type PrimitiveFieldValue struct {
	kind Kind
	u    uint64
	f    float64
	s    string
	b    bool
	d    EntityDescriptor
}

func NewUint64Value(v uint64) PrimitiveFieldValue {
	return PrimitiveFieldValue{kind: KindUint64, u: v}
}

func NewFloat64Value(v float64) PrimitiveFieldValue {
	return PrimitiveFieldValue{kind: KindFloat64, f: v}
}

func NewStringValue(v string) PrimitiveFieldValue {
	return PrimitiveFieldValue{kind: KindString, s: v}
}

func NewBoolValue(v bool) PrimitiveFieldValue {
	return PrimitiveFieldValue{kind: KindBool, b: v}
}

func NewDescriptorValue(v EntityDescriptor) PrimitiveFieldValue {
	return PrimitiveFieldValue{kind: KindDescriptor, d: v}
}

func (v PrimitiveFieldValue) Kind() Kind { return v.kind }

func (v PrimitiveFieldValue) IsUint64() bool     { return v.kind == KindUint64 }
func (v PrimitiveFieldValue) IsFloat64() bool    { return v.kind == KindFloat64 }
func (v PrimitiveFieldValue) IsString() bool     { return v.kind == KindString }
func (v PrimitiveFieldValue) IsBool() bool       { return v.kind == KindBool }
func (v PrimitiveFieldValue) IsDescriptor() bool { return v.kind == KindDescriptor }

// AsUint64 returns the underlying integer and whether the value held one.
func (v PrimitiveFieldValue) AsUint64() (uint64, bool) { return v.u, v.kind == KindUint64 }

// AsFloat64 returns the underlying float and whether the value held one.
// Equal compares float values bitwise; see spec.md §9's float
// equality open question.
func (v PrimitiveFieldValue) AsFloat64() (float64, bool) { return v.f, v.kind == KindFloat64 }

// AsString returns the underlying string and whether the value held one.
func (v PrimitiveFieldValue) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsBool returns the underlying bool and whether the value held one.
func (v PrimitiveFieldValue) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsDescriptor returns the underlying descriptor and whether the value
// held one.
func (v PrimitiveFieldValue) AsDescriptor() (EntityDescriptor, bool) {
	return v.d, v.kind == KindDescriptor
}

// Equal compares two values component-wise, matching the original's
// operator==(PrimitiveFieldValue, PrimitiveFieldValue) over the variant.
func (v PrimitiveFieldValue) Equal(other PrimitiveFieldValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindUint64:
		return v.u == other.u
	case KindFloat64:
		return math.Float64bits(v.f) == math.Float64bits(other.f)
	case KindString:
		return v.s == other.s
	case KindBool:
		return v.b == other.b
	case KindDescriptor:
		return v.d == other.d
	}
	return false
}

// ValueNode maps field name to value. Insertion order carries no
// meaning, so the plain Go map is a faithful analogue of the original's
// unordered_map<string, PrimitiveFieldValue>.
type ValueNode map[string]PrimitiveFieldValue

// EventEntity pairs an entity's identity with its current field map.
type EventEntity struct {
	Descriptor EntityDescriptor
	Node       ValueNode
}

// Event is a versioned replacement of an entity's field map, keyed by
// a monotonically increasing EventID.
type Event struct {
	ID     EventID
	Entity EventEntity
}

// PathElement is one step of a ViewPath. See spec.md §3 for the three
// step kinds (value / forward reference / reverse reference).
type PathElement struct {
	Name    string
	Type    EntityTypeID
	Forward bool
}

// IsValue reports whether this is a value step (Type == 0).
func (e PathElement) IsValue() bool { return e.Type == 0 }

// IsForwardRef reports whether this is a forward-reference step.
func (e PathElement) IsForwardRef() bool { return e.Type > 0 && e.Forward }

// IsReverseRef reports whether this is a reverse-reference step.
func (e PathElement) IsReverseRef() bool { return e.Type > 0 && !e.Forward }

// ViewPath is an ordered sequence of path steps: zero or more reference
// steps followed by exactly one value step.
type ViewPath []PathElement

// String joins the path's element names with ".", matching the
// original's path_to_string.
func (p ViewPath) String() string {
	names := make([]string, len(p))
	for i, e := range p {
		names[i] = e.Name
	}
	return strings.Join(names, ".")
}

// HasMultipleValues reports whether the path contains a reverse-reference
// step, which can fan out to more than one binding.
func (p ViewPath) HasMultipleValues() bool {
	for _, e := range p {
		if e.IsReverseRef() {
			return true
		}
	}
	return false
}

// Expectation is a read-after-write fence: the caller requires that
// Target has been updated at least as recently as EventID before the
// view is materialized.
type Expectation struct {
	Target  EntityDescriptor
	EventID EventID
}

// ViewDescriptor is a query: a root entity and a set of paths rooted at
// it, with an optional read-after-write fence.
type ViewDescriptor struct {
	Root        EntityDescriptor
	Paths       []ViewPath
	Expectation *Expectation
}

// View is the materialized result of a ViewDescriptor: the dot-joined
// path string maps to one or more bindings (more than one only for
// paths that pass through a reverse-reference step).
type View struct {
	Root   EntityDescriptor
	Values map[string][]PrimitiveFieldValue
}

// Get returns the single value bound to path, if any. Callers that
// expect a fan-out path should use GetAll instead.
func (v View) Get(path ViewPath) (PrimitiveFieldValue, bool) {
	vals, ok := v.Values[path.String()]
	if !ok || len(vals) == 0 {
		return PrimitiveFieldValue{}, false
	}
	return vals[0], true
}

// GetAll returns every value bound to path.
func (v View) GetAll(path ViewPath) []PrimitiveFieldValue {
	return v.Values[path.String()]
}

// ViewBuilder accumulates path/value bindings while a ViewPath is
// traversed, then hands back an immutable View. It is the Go analogue
// of the original's ViewBuilder, which wraps a View under construction
// so the multimap insertion logic isn't exposed on the finished value.
type ViewBuilder struct {
	root   EntityDescriptor
	values map[string][]PrimitiveFieldValue
}

// NewViewBuilder starts building a view rooted at root.
func NewViewBuilder(root EntityDescriptor) *ViewBuilder {
	return &ViewBuilder{root: root, values: map[string][]PrimitiveFieldValue{}}
}

// Add records one binding for path.
func (b *ViewBuilder) Add(path ViewPath, value PrimitiveFieldValue) {
	b.AddKeyed(path.String(), value)
}

// AddKeyed records one binding under an already-computed path key,
// letting callers that memoize ViewPath.String() (e.g. pkg/view's
// pathCache) skip recomputing it on every call.
func (b *ViewBuilder) AddKeyed(key string, value PrimitiveFieldValue) {
	b.values[key] = append(b.values[key], value)
}

// Finish returns the built View. The builder must not be reused after
// calling Finish.
func (b *ViewBuilder) Finish() View {
	return View{Root: b.root, Values: b.values}
}
