package hancho

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"syscall"
)

// RunMain is the CLI entry point: it parses flags, builds the root Config,
// loads the build script, runs the matching tasks through an App, and
// returns the process exit code.
//
// Grounded on pk/cli.go's RunMain (flag.NewFlagSet, signal.NotifyContext
// for graceful interrupt, context-threaded flags, registered-error exit
// path), generalized from pocket's fixed task-name dispatch to Hancho's
// positional target-name regex filter and free-form --key=val overrides
// (spec §7 CLI surface).
func RunMain(args []string, loadBuildGraph func(root *Config) (*App, error)) int {
	fs := flag.NewFlagSet("hancho", flag.ContinueOnError)
	buildFile := fs.String("f", "build.hancho", "root build file")
	chdir := fs.String("C", "", "change to directory before loading")
	jobs := fs.Int("j", runtime.NumCPU(), "maximum parallel jobs")
	verbose := fs.Bool("v", false, "print every command before running it")
	quiet := fs.Bool("q", false, "suppress non-error output")
	dryRun := fs.Bool("n", false, "print what would run without running it")
	debug := fs.Bool("d", false, "dump config and state transitions")
	force := fs.Bool("force", false, "ignore staleness, rerun every task")
	shuffle := fs.Bool("s", false, "shuffle queued task order")
	trace := fs.Bool("trace", false, "trace macro expansion")

	knownFlags := map[string]bool{
		"f": true, "C": true, "j": true, "v": true, "q": true, "n": true,
		"d": true, "force": true, "s": true, "trace": true, "h": true, "help": true,
	}
	recognized, overrides := splitOverrideArgs(args, knownFlags)

	if err := fs.Parse(recognized); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "hancho: %v\n", err)
		return -1
	}

	if *chdir != "" {
		if err := os.Chdir(*chdir); err != nil {
			fmt.Fprintf(os.Stderr, "hancho: %v\n", err)
			return -1
		}
	}

	repoDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hancho: %v\n", err)
		return -1
	}
	rootDir := repoDir
	buildDir := filepath.Join(rootDir, "build")

	root := NewConfig()
	root.Set("repo_dir", repoDir)
	root.Set("root_dir", rootDir)
	root.Set("build_dir", buildDir)
	root.Set("build_file", *buildFile)
	root.Set("jobs", *jobs)
	root.Set("host_os", HostOS())
	root.Set("host_arch", HostArch())
	for k, v := range overrides {
		root.Set(k, parseOverrideValue(v))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = WithVerbose(ctx, *verbose)
	ctx = WithQuiet(ctx, *quiet)
	ctx = WithDryRun(ctx, *dryRun)
	ctx = WithDebug(ctx, *debug)
	ctx = WithForce(ctx, *force)
	ctx = WithShuffle(ctx, *shuffle)
	ctx = WithTraceFlag(ctx, *trace)
	ctx = WithOutput(ctx, StdOutput())

	if *trace {
		SetTrace(func(span, result string) {
			fmt.Fprintf(os.Stderr, "trace: %q -> %q\n", span, result)
		})
	}

	app, err := loadBuildGraph(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hancho: %v\n", err)
		return -1
	}
	app.SetShuffle(*shuffle)

	var targetFilter *regexp.Regexp
	if pos := fs.Args(); len(pos) > 0 {
		targetFilter, err = regexp.Compile(pos[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "hancho: invalid target pattern %q: %v\n", pos[0], err)
			return -1
		}
	}
	if targetFilter != nil {
		filterTasks(app, targetFilter)
	}

	stats := app.Run(ctx)
	if !*quiet {
		printSummary(ctx, stats)
	}
	return stats.ExitCode()
}

func splitKeyVal(s string) (key, val string, ok bool) {
	for i, r := range s {
		if r == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// splitOverrideArgs separates recognized "--flag"/"-flag" tokens (destined
// for flag.FlagSet.Parse) from unrecognized "--key=val" tokens, which
// spec §7 treats as direct root Config field overrides rather than a
// closed CLI flag surface.
func splitOverrideArgs(args []string, known map[string]bool) (recognized []string, overrides map[string]string) {
	overrides = map[string]string{}
	for _, a := range args {
		if len(a) < 3 || a[0] != '-' || a[1] != '-' {
			recognized = append(recognized, a)
			continue
		}
		body := a[2:]
		key, val, hasVal := splitKeyVal(body)
		if !hasVal {
			key, val = body, "true"
		}
		if known[key] {
			recognized = append(recognized, a)
			continue
		}
		overrides[key] = val
	}
	return recognized, overrides
}

// parseOverrideValue coerces an unrecognized --key=val override the way
// original_source/hancho.py's CLI does: try int, then float, then bool,
// falling back to the raw string.
func parseOverrideValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return float64(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func filterTasks(app *App, pattern *regexp.Regexp) {
	app.mu.Lock()
	defer app.mu.Unlock()
	var kept []*Task
	for _, t := range app.queued {
		if pattern.MatchString(t.Name()) {
			kept = append(kept, t)
		}
	}
	app.queued = kept
}

func printSummary(ctx context.Context, s Stats) {
	Printf(ctx, "%d tasks: %d finished, %d skipped", s.Total, s.Finished, s.Skipped)
	if s.Cancelled+s.Failed+s.Broken > 0 {
		Printf(ctx, ", %d cancelled, %d failed, %d broken", s.Cancelled, s.Failed, s.Broken)
	}
	Printf(ctx, "\n")
}
