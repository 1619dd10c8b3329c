package hancho

import "testing"

func TestBuiltinJoinPath(t *testing.T) {
	v, err := fnJoinPath([]any{"/base", "rel.txt"})
	if err != nil {
		t.Fatalf("fnJoinPath: %v", err)
	}
	if v != "/base/rel.txt" {
		t.Fatalf("got %v, want /base/rel.txt", v)
	}
}

func TestBuiltinSwapExt(t *testing.T) {
	v, err := fnSwapExt([]any{"a.cpp", ".o"})
	if err != nil {
		t.Fatalf("fnSwapExt: %v", err)
	}
	if v != "a.o" {
		t.Fatalf("got %v, want a.o", v)
	}
}

func TestBuiltinLen(t *testing.T) {
	v, err := fnLen([]any{[]any{1, 2, 3}})
	if err != nil {
		t.Fatalf("fnLen: %v", err)
	}
	if v != float64(3) {
		t.Fatalf("got %v, want 3", v)
	}
}

func TestBuiltinFlatten(t *testing.T) {
	v, err := fnFlatten([]any{[]any{"a", []any{"b", "c"}}})
	if err != nil {
		t.Fatalf("fnFlatten: %v", err)
	}
	list, ok := v.([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("got %v, want 3-element list", v)
	}
}

func TestBuiltinColorReset(t *testing.T) {
	v, err := fnColor(nil)
	if err != nil {
		t.Fatalf("fnColor: %v", err)
	}
	if v != "\x1b[0m" {
		t.Fatalf("got %q, want reset escape", v)
	}
}

func TestBuiltinColorRGB(t *testing.T) {
	v, err := fnColor([]any{float64(255), float64(0), float64(0)})
	if err != nil {
		t.Fatalf("fnColor: %v", err)
	}
	if v != "\x1b[38;2;255;0;0m" {
		t.Fatalf("got %q", v)
	}
}

func TestBuiltinRunCmd(t *testing.T) {
	v, err := fnRunCmd([]any{"echo hi"})
	if err != nil {
		t.Fatalf("fnRunCmd: %v", err)
	}
	if v != "hi" {
		t.Fatalf("got %q, want hi", v)
	}
}
