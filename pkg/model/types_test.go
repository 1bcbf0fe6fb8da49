// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package model

import "testing"

func TestPrimitiveFieldValueEqual(t *testing.T) {
	cases := []struct {
		note string
		a, b PrimitiveFieldValue
		want bool
	}{
		{"equal uint64", NewUint64Value(7), NewUint64Value(7), true},
		{"unequal uint64", NewUint64Value(7), NewUint64Value(8), false},
		{"equal string", NewStringValue("a"), NewStringValue("a"), true},
		{"equal descriptor", NewDescriptorValue(EntityDescriptor{ID: 1, Type: 2}), NewDescriptorValue(EntityDescriptor{ID: 1, Type: 2}), true},
		{"unequal descriptor type", NewDescriptorValue(EntityDescriptor{ID: 1, Type: 2}), NewDescriptorValue(EntityDescriptor{ID: 1, Type: 3}), false},
		{"different kinds never equal", NewUint64Value(1), NewFloat64Value(1), false},
	}
	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.want {
				t.Fatalf("Equal() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPrimitiveFieldValueAccessorsReportWrongKind(t *testing.T) {
	v := NewStringValue("hello")
	if _, ok := v.AsUint64(); ok {
		t.Fatalf("AsUint64 should report false for a string value")
	}
	if s, ok := v.AsString(); !ok || s != "hello" {
		t.Fatalf("AsString() = (%q, %v), want (\"hello\", true)", s, ok)
	}
	if !v.IsString() || v.IsUint64() || v.IsBool() || v.IsFloat64() || v.IsDescriptor() {
		t.Fatalf("expected only IsString to report true for %+v", v)
	}
}

func TestEntityDescriptorIsUnassigned(t *testing.T) {
	if !(EntityDescriptor{}).IsUnassigned() {
		t.Fatalf("zero-value descriptor should be unassigned")
	}
	if (EntityDescriptor{ID: 1}).IsUnassigned() {
		t.Fatalf("descriptor with a nonzero id should not be unassigned")
	}
}

func TestPathElementClassification(t *testing.T) {
	value := PathElement{Name: "name"}
	forward := PathElement{Name: "manager_id", Type: 23, Forward: true}
	reverse := PathElement{Name: "reports", Type: 21, Forward: false}

	if !value.IsValue() || value.IsForwardRef() || value.IsReverseRef() {
		t.Fatalf("expected %+v to classify as a value step only", value)
	}
	if !forward.IsForwardRef() || forward.IsValue() || forward.IsReverseRef() {
		t.Fatalf("expected %+v to classify as a forward-ref step only", forward)
	}
	if !reverse.IsReverseRef() || reverse.IsValue() || reverse.IsForwardRef() {
		t.Fatalf("expected %+v to classify as a reverse-ref step only", reverse)
	}
}

func TestViewPathStringJoinsNames(t *testing.T) {
	path := ViewPath{{Name: "manager_id", Type: 23, Forward: true}, {Name: "name"}}
	if got, want := path.String(), "manager_id.name"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestViewPathHasMultipleValues(t *testing.T) {
	noFanout := ViewPath{{Name: "manager_id", Type: 23, Forward: true}, {Name: "name"}}
	fanout := ViewPath{{Name: "reports", Type: 21, Forward: false}, {Name: "name"}}

	if noFanout.HasMultipleValues() {
		t.Fatalf("a path with only a forward ref should not report fan-out")
	}
	if !fanout.HasMultipleValues() {
		t.Fatalf("a path with a reverse ref should report fan-out")
	}
}

func TestViewBuilderAccumulatesBindingsInOrder(t *testing.T) {
	root := EntityDescriptor{ID: 1, Type: 10}
	path := ViewPath{{Name: "reports", Type: 21, Forward: false}, {Name: "name"}}

	b := NewViewBuilder(root)
	b.Add(path, NewStringValue("alice"))
	b.Add(path, NewStringValue("bob"))
	view := b.Finish()

	if view.Root != root {
		t.Fatalf("Finish() root = %+v, want %+v", view.Root, root)
	}
	all := view.GetAll(path)
	if len(all) != 2 {
		t.Fatalf("expected two bindings, got %d", len(all))
	}
	if s, _ := all[0].AsString(); s != "alice" {
		t.Fatalf("expected first binding alice, got %q", s)
	}
	if s, _ := all[1].AsString(); s != "bob" {
		t.Fatalf("expected second binding bob, got %q", s)
	}

	first, ok := view.Get(path)
	if !ok {
		t.Fatalf("Get() should find a binding for a populated path")
	}
	if s, _ := first.AsString(); s != "alice" {
		t.Fatalf("Get() should return the first binding, got %q", s)
	}
}

func TestViewGetMissingPathIsAbsent(t *testing.T) {
	view := NewViewBuilder(EntityDescriptor{ID: 1, Type: 10}).Finish()
	if _, ok := view.Get(ViewPath{{Name: "name"}}); ok {
		t.Fatalf("Get() on an empty view should report absent")
	}
}

func TestViewBuilderAddKeyedSharesStorageWithAdd(t *testing.T) {
	path := ViewPath{{Name: "name"}}
	b := NewViewBuilder(EntityDescriptor{ID: 1, Type: 10})
	b.AddKeyed(path.String(), NewStringValue("alice"))
	view := b.Finish()

	if _, ok := view.Get(path); !ok {
		t.Fatalf("a binding added via AddKeyed should be visible through Get(path)")
	}
}
