package expand_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cageshell/cageshell/expand"
)

func TestMapEnvironSetGetUnset(t *testing.T) {
	env := expand.MapEnviron{}
	want := expand.Variable{Kind: expand.String, Str: "bar", Attrs: expand.Attrs{Exported: true}}
	if err := env.Set("FOO", want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := env.Get("FOO")
	if !ok {
		t.Fatal("FOO not found after Set")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	if err := env.Unset("FOO"); err != nil {
		t.Fatalf("Unset: %v", err)
	}
	if _, ok := env.Get("FOO"); ok {
		t.Fatal("FOO still present after Unset")
	}
}

func TestMapEnvironEachVisitsAllBindings(t *testing.T) {
	env := expand.MapEnviron{
		"A": {Kind: expand.String, Str: "1"},
		"B": {Kind: expand.String, Str: "2"},
	}
	seen := map[string]string{}
	env.Each(func(name string, v expand.Variable) bool {
		seen[name] = v.Str
		return true
	})
	want := map[string]string{"A": "1", "B": "2"}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("Each mismatch (-want +got):\n%s", diff)
	}
}

func TestMapEnvironEachStopsOnFalse(t *testing.T) {
	env := expand.MapEnviron{
		"A": {Kind: expand.String, Str: "1"},
		"B": {Kind: expand.String, Str: "2"},
	}
	count := 0
	env.Each(func(name string, v expand.Variable) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("Each should stop after first false return, visited %d", count)
	}
}
