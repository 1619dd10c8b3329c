package hancho

import "context"

type (
	verboseKey   struct{}
	quietKey     struct{}
	dryRunKey    struct{}
	debugKey     struct{}
	forceKey     struct{}
	shuffleKey   struct{}
	traceKey     struct{}
)

func withFlag[K any](ctx context.Context, key K, v bool) context.Context {
	return context.WithValue(ctx, key, v)
}

func flagFrom[K any](ctx context.Context, key K) bool {
	v, _ := ctx.Value(key).(bool)
	return v
}

// WithVerbose/Verbose thread the -v flag (print per-task commands).
func WithVerbose(ctx context.Context, v bool) context.Context { return withFlag(ctx, verboseKey{}, v) }
func Verbose(ctx context.Context) bool                        { return flagFrom(ctx, verboseKey{}) }

// WithQuiet/Quiet thread the -q flag (suppress stdout).
func WithQuiet(ctx context.Context, v bool) context.Context { return withFlag(ctx, quietKey{}, v) }
func Quiet(ctx context.Context) bool                        { return flagFrom(ctx, quietKey{}) }

// WithDryRun/DryRun thread the -n flag (skip subprocess spawn and mkdirs).
func WithDryRun(ctx context.Context, v bool) context.Context { return withFlag(ctx, dryRunKey{}, v) }
func DryRun(ctx context.Context) bool                        { return flagFrom(ctx, dryRunKey{}) }

// WithDebug/Debug thread the -d flag (dump configs and state transitions).
func WithDebug(ctx context.Context, v bool) context.Context { return withFlag(ctx, debugKey{}, v) }
func Debug(ctx context.Context) bool                        { return flagFrom(ctx, debugKey{}) }

// WithForce/Force thread the --force flag (ignore staleness).
func WithForce(ctx context.Context, v bool) context.Context { return withFlag(ctx, forceKey{}, v) }
func Force(ctx context.Context) bool                        { return flagFrom(ctx, forceKey{}) }

// WithShuffle/Shuffle thread the -s flag (shuffle queued order each drain).
func WithShuffle(ctx context.Context, v bool) context.Context { return withFlag(ctx, shuffleKey{}, v) }
func Shuffle(ctx context.Context) bool                        { return flagFrom(ctx, shuffleKey{}) }

// WithTraceFlag/TraceFlag thread the --trace flag (trace macro expansion).
func WithTraceFlag(ctx context.Context, v bool) context.Context { return withFlag(ctx, traceKey{}, v) }
func TraceFlag(ctx context.Context) bool                        { return flagFrom(ctx, traceKey{}) }
