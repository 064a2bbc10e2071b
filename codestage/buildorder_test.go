package codestage

import (
	"errors"
	"testing"

	"cdist/object"
)

func TestBuildOrderRespectsRequire(t *testing.T) {
	a := object.ID{Type: "__file", ID: "a"}
	b := object.ID{Type: "__file", ID: "b"}

	requires := map[object.ID][]string{
		b: {a.FQ()},
	}
	lookup := func(obj object.ID) ([]string, error) { return requires[obj], nil }

	order, err := BuildOrder([]object.ID{b, a}, lookup)
	if err != nil {
		t.Fatalf("BuildOrder failed: %v", err)
	}
	if len(order) != 2 || order[0] != a || order[1] != b {
		t.Fatalf("order = %v, want [a b]", order)
	}
}

func TestBuildOrderDetectsCycle(t *testing.T) {
	a := object.ID{Type: "__file", ID: "a"}
	b := object.ID{Type: "__file", ID: "b"}

	requires := map[object.ID][]string{
		a: {b.FQ()},
		b: {a.FQ()},
	}
	lookup := func(obj object.ID) ([]string, error) { return requires[obj], nil }

	_, err := BuildOrder([]object.ID{a, b}, lookup)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestBuildOrderIgnoresUnknownDependencies(t *testing.T) {
	a := object.ID{Type: "__file", ID: "a"}
	requires := map[object.ID][]string{
		a: {"__file/outside-this-run"},
	}
	lookup := func(obj object.ID) ([]string, error) { return requires[obj], nil }

	order, err := BuildOrder([]object.ID{a}, lookup)
	if err != nil {
		t.Fatalf("BuildOrder failed: %v", err)
	}
	if len(order) != 1 || order[0] != a {
		t.Fatalf("order = %v, want [a]", order)
	}
}
