// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"testing"

	"github.com/arborian/entigraph/pkg/model"
)

func TestParseViewPathValueOnly(t *testing.T) {
	path, err := parseViewPath("name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(path) != 1 || !path[0].IsValue() {
		t.Fatalf("expected a single value step, got: %+v", path)
	}
}

func TestParseViewPathForwardThenValue(t *testing.T) {
	path, err := parseViewPath("manager_id>23.name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("expected two steps, got: %+v", path)
	}
	if !path[0].IsForwardRef() || path[0].Type != 23 || path[0].Name != "manager_id" {
		t.Fatalf("expected a forward ref step through manager_id to type 23, got: %+v", path[0])
	}
	if !path[1].IsValue() || path[1].Name != "name" {
		t.Fatalf("expected a trailing value step on name, got: %+v", path[1])
	}
}

func TestParseViewPathReverseStep(t *testing.T) {
	path, err := parseViewPath("reports<21.name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !path[0].IsReverseRef() || path[0].Type != 21 {
		t.Fatalf("expected a reverse ref step to type 21, got: %+v", path[0])
	}
}

func TestParseFieldsMixesPrimitivesAndRefs(t *testing.T) {
	node, err := parseFields([]string{"name=john", "age=41", "active=true", "rating=4.5"}, []string{"manager_id=1:23"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, _ := node["name"].AsString()
	if name != "john" {
		t.Fatalf("expected name == john, got: %v", name)
	}
	age, _ := node["age"].AsUint64()
	if age != 41 {
		t.Fatalf("expected age == 41, got: %v", age)
	}
	active, _ := node["active"].AsBool()
	if !active {
		t.Fatalf("expected active == true, got: %v", active)
	}
	rating, _ := node["rating"].AsFloat64()
	if rating != 4.5 {
		t.Fatalf("expected rating == 4.5, got: %v", rating)
	}
	manager, _ := node["manager_id"].AsDescriptor()
	if manager != (model.EntityDescriptor{ID: 1, Type: 23}) {
		t.Fatalf("expected manager_id to be a descriptor reference, got: %v", manager)
	}
}

func TestParseFieldsRejectsMalformedField(t *testing.T) {
	if _, err := parseFields([]string{"noequalssign"}, nil); err == nil {
		t.Fatalf("expected malformed --field to produce an error")
	}
}
