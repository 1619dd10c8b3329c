package hancho

import (
	"os"
	"path/filepath"
	"testing"
)

func TestJoinPathAbsoluteRelIsReturnedAsIs(t *testing.T) {
	got := JoinPath("/base", "/abs/path")
	want := filepath.Clean("/abs/path")
	if got != want {
		t.Fatalf("JoinPath = %q; want %q", got, want)
	}
}

func TestJoinPathRelativeJoinsUnderBase(t *testing.T) {
	got := JoinPath("/base", "rel/path.txt")
	want := filepath.Clean("/base/rel/path.txt")
	if got != want {
		t.Fatalf("JoinPath = %q; want %q", got, want)
	}
}

func TestSwapExt(t *testing.T) {
	if got := SwapExt("src/main.cpp", ".o"); got != "src/main.o" {
		t.Fatalf("SwapExt = %q; want src/main.o", got)
	}
	if got := SwapExt("src/main.cpp", "o"); got != "src/main.o" {
		t.Fatalf("SwapExt (no dot) = %q; want src/main.o", got)
	}
}

func TestStem(t *testing.T) {
	if got := Stem("src/main.cpp"); got != "main" {
		t.Fatalf("Stem = %q; want main", got)
	}
}

func TestUnderDir(t *testing.T) {
	if !UnderDir("/root/build/out.o", "/root") {
		t.Fatal("expected /root/build/out.o to be under /root")
	}
	if UnderDir("/elsewhere/out.o", "/root") {
		t.Fatal("expected /elsewhere/out.o to not be under /root")
	}
}

func TestMTimeMissingFile(t *testing.T) {
	if m := MTime("/no/such/path"); m != -1 {
		t.Fatalf("MTime of missing path = %d; want -1", m)
	}
}

func TestMTimeCallsCounter(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "x")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ResetMTimeCalls()
	MTime(f)
	MTime(f)
	if got := MTimeCalls(); got != 2 {
		t.Fatalf("MTimeCalls() = %d; want 2", got)
	}
}

func TestFlattenNestedLists(t *testing.T) {
	in := []any{"a", []any{"b", "c"}, []string{"d"}}
	got := Flatten(in)
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("Flatten = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Flatten[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}
