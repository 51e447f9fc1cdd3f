package server

import (
	"testing"
)

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry()
	factory := func() State { return &ExampleState{} }

	bad := []string{
		"",
		"unrooted.path",
		"world.",
		"world..states",
		"world.Bad-Chars",
		"core.states.No Spaces",
	}
	for _, path := range bad {
		if err := r.RegisterState(path, factory); err == nil {
			t.Errorf("RegisterState(%q) should fail", path)
		}
	}

	if err := r.RegisterState("world.states.test", factory); err != nil {
		t.Fatalf("RegisterState: %v", err)
	}
	if err := r.RegisterState("world.states.test", factory); err == nil {
		t.Error("duplicate registration should fail")
	}
	if err := r.RegisterState("world.states.other", nil); err == nil {
		t.Error("nil factory should fail")
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	registerBuiltins(r)

	f, err := r.ResolveObject("world.objects.red_button")
	if err != nil {
		t.Fatalf("ResolveObject: %v", err)
	}
	if f().Key() != "red_button" {
		t.Errorf("resolved factory key = %q", f().Key())
	}

	if _, err := r.ResolveObject("world.objects.missing"); err == nil {
		t.Error("unknown object path should fail")
	}
	if _, err := r.ResolveScript("world.objects.red_button"); err == nil {
		t.Error("object path must not resolve as a script")
	}
	if _, err := r.ResolveState("world.states.example"); err != nil {
		t.Errorf("ResolveState: %v", err)
	}
}

func TestQualifyPath(t *testing.T) {
	tests := []struct {
		path string
		base string
		want string
	}{
		{"red_button", "world.objects", "world.objects.red_button"},
		{"world.objects.red_button", "world.objects", "world.objects.red_button"},
		{"core.objects.base", "world.objects", "core.objects.base"},
		{"  blink  ", "world.scripts", "world.scripts.blink"},
		{"", "world.objects", ""},
	}
	for _, tc := range tests {
		if got := QualifyPath(tc.path, tc.base); got != tc.want {
			t.Errorf("QualifyPath(%q, %q) = %q, want %q", tc.path, tc.base, got, tc.want)
		}
	}
}

func TestBuiltinScriptsAttached(t *testing.T) {
	r := NewRegistry()
	registerBuiltins(r)

	f, err := r.ResolveObject("world.objects.red_button")
	if err != nil {
		t.Fatalf("ResolveObject: %v", err)
	}
	scripts := f().Scripts()
	if len(scripts) != 1 || scripts[0] != "world.scripts.blink" {
		t.Fatalf("red_button scripts = %v", scripts)
	}
	// Every attached script path must itself resolve.
	for _, path := range scripts {
		if _, err := r.ResolveScript(path); err != nil {
			t.Errorf("attached script %q does not resolve: %v", path, err)
		}
	}
}
