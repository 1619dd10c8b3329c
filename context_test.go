package hancho

import (
	"context"
	"testing"
)

func TestContextFlagsDefaultFalse(t *testing.T) {
	ctx := context.Background()
	if Verbose(ctx) || Quiet(ctx) || DryRun(ctx) || Debug(ctx) || Force(ctx) || Shuffle(ctx) || TraceFlag(ctx) {
		t.Fatal("flags should default to false on a bare context")
	}
}

func TestContextFlagsRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithVerbose(ctx, true)
	ctx = WithForce(ctx, true)
	if !Verbose(ctx) {
		t.Fatal("WithVerbose(true) did not stick")
	}
	if !Force(ctx) {
		t.Fatal("WithForce(true) did not stick")
	}
	if Quiet(ctx) {
		t.Fatal("unrelated flag Quiet should remain false")
	}
}
