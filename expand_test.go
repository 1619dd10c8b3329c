package hancho

import "testing"

func TestExpandStringSubstitutesIdent(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("name", "world")

	got, err := ExpandString(cfg, "hello {name}")
	if err != nil {
		t.Fatalf("ExpandString: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}

func TestExpandStringRecursivelyExpands(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("a", "{b}")
	cfg.Set("b", "c")

	got, err := ExpandString(cfg, "{a}")
	if err != nil {
		t.Fatalf("ExpandString: %v", err)
	}
	if got != "c" {
		t.Fatalf("got %q, want %q", got, "c")
	}
}

func TestExpandStringTEFINAE(t *testing.T) {
	cfg := NewConfig()
	got, err := ExpandString(cfg, "prefix {missing} suffix")
	if err != nil {
		t.Fatalf("ExpandString: %v", err)
	}
	if got != "prefix {missing} suffix" {
		t.Fatalf("got %q; TEFINAE should emit the span verbatim", got)
	}
}

func TestExpandStringRecursionLimit(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("a", "{a}")
	if _, err := ExpandString(cfg, "{a}"); err == nil {
		t.Fatal("expected ErrRecursion for a self-referential macro, got nil")
	}
}

func TestExpandStringTernary(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("release", true)
	got, err := ExpandString(cfg, "{'-O3' if release else '-O0'}")
	if err != nil {
		t.Fatalf("ExpandString: %v", err)
	}
	if got != "-O3" {
		t.Fatalf("got %q, want -O3", got)
	}
}

func TestExpandStringBuiltinCall(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("f", "src/main.cpp")
	got, err := ExpandString(cfg, "{swap_ext(f, '.o')}")
	if err != nil {
		t.Fatalf("ExpandString: %v", err)
	}
	if got != "src/main.o" {
		t.Fatalf("got %q, want src/main.o", got)
	}
}

func TestExpandStringNestedBraceInDictLiteral(t *testing.T) {
	cfg := NewConfig()
	got, err := ExpandString(cfg, "{len({'a': 1, 'b': 2})}")
	if err != nil {
		t.Fatalf("ExpandString: %v", err)
	}
	if got != "2" {
		t.Fatalf("got %q, want 2", got)
	}
}

func TestExpandStructuralList(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("x", "1")
	out, err := Expand(cfg, []any{"{x}", "literal"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	list, ok := out.([]any)
	if !ok || len(list) != 2 || list[0] != "1" || list[1] != "literal" {
		t.Fatalf("Expand list = %#v", out)
	}
}

func TestStringifyAwaitedFinishedTask(t *testing.T) {
	task := &Task{state: StateFinished, outFiles: []string{"out.o"}}
	s, err := stringifyAwaited(task)
	if err != nil {
		t.Fatalf("stringifyAwaited: %v", err)
	}
	if s != "out.o" {
		t.Fatalf("got %q, want out.o", s)
	}
}

func TestStringifyAwaitedUnfinishedTask(t *testing.T) {
	task := &Task{state: StateStarted}
	if _, err := stringifyAwaited(task); err == nil {
		t.Fatal("expected error stringifying an unfinished task")
	}
}
