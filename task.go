package hancho

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// State is one of a Task's lifecycle states (spec §3, §4.3).
type State int

const (
	StateDeclared State = iota
	StateQueued
	StateStarted
	StateAwaitingInputs
	StateTaskInit
	StateAwaitingJobs
	StateRunningCommands
	StateFinished
	StateSkipped
	StateCancelled
	StateFailed
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateDeclared:
		return "DECLARED"
	case StateQueued:
		return "QUEUED"
	case StateStarted:
		return "STARTED"
	case StateAwaitingInputs:
		return "AWAITING_INPUTS"
	case StateTaskInit:
		return "TASK_INIT"
	case StateAwaitingJobs:
		return "AWAITING_JOBS"
	case StateRunningCommands:
		return "RUNNING_COMMANDS"
	case StateFinished:
		return "FINISHED"
	case StateSkipped:
		return "SKIPPED"
	case StateCancelled:
		return "CANCELLED"
	case StateFailed:
		return "FAILED"
	case StateBroken:
		return "BROKEN"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s is one of the states that never transitions
// further (spec §4.3 diagram).
func (s State) IsTerminal() bool {
	switch s {
	case StateFinished, StateSkipped, StateCancelled, StateFailed, StateBroken:
		return true
	}
	return false
}

// IsSuccess reports whether s is a terminal state that does not fail the
// overall build (spec §7: exit code reflects non-successful terminal states).
func (s State) IsSuccess() bool {
	return s == StateFinished || s == StateSkipped
}

// EngineSourceMTime returns the mtime used for staleness rule 6 ("If the
// engine's own source file has mtime >= min_out, return 'engine changed'").
// Defaults to the running binary's mtime; tests override it with a fixed
// sentinel so binary rebuilds during `go test` don't force spurious reruns.
var EngineSourceMTime = defaultEngineSourceMTime

func defaultEngineSourceMTime() int64 {
	exe, err := os.Executable()
	if err != nil {
		return -1
	}
	return MTime(exe)
}

// Task is a unit of work bound to inputs, outputs, and commands, running
// through the monotonic state machine of spec §4.3. Grounded on
// pk/task.go's effective-name header printing and flag-resolution style,
// generalized with the prototypal Config, mtime staleness, and depfile
// machinery pk's own Task (a CI-task dedup record) doesn't have.
type Task struct {
	name   string
	config *Config

	inFiles  []string
	outFiles []string

	loadedFiles []string // snapshot of loader-tracked script paths at creation time

	mu     sync.Mutex
	state  State
	reason string

	taskIndex int32 // assigned on entering RUNNING_COMMANDS; 0 until then

	stdout     string
	stderr     string
	returncode int

	once   sync.Once
	doneCh chan struct{}
	err    error

	app *App // the scheduler that owns this task, set by App.Register
}

// NewTask constructs a Task DECLAREd against parent, seeded with
// desc/command/task_dir/build_dir defaults and then merged with args
// (spec §3 Task.config: "seeded with defaults, then merged with user
// arguments"). The merge goes through Config.MergeValues, the same
// nil-on-the-right-preserves-left contract as Config.Merge, so an args
// entry that happens to be nil doesn't clobber a default or an inherited
// binding — only an explicit non-nil value does.
func NewTask(parent *Config, args map[string]any) *Task {
	cfg := parent.Fork(nil)
	cfg.Set("desc", "")
	cfg.Set("command", nil)
	cfg.Set("task_dir", "{repo_dir}")
	cfg.Set("build_dir", "{root_dir}/build")
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	// Deterministic application order for reproducible Config.order.
	sortStrings(keys)
	cfg.MergeValues(keys, args)
	t := &Task{
		config: cfg,
		state:  StateDeclared,
		doneCh: make(chan struct{}),
	}
	if name, _ := cfg.Get("name"); name != nil {
		if s, ok := name.(string); ok {
			t.name = s
		}
	}
	return t
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Name returns the Task's declared name, or its description if unnamed.
func (t *Task) Name() string {
	if t.name != "" {
		return t.name
	}
	return t.Description()
}

// Description returns config.desc, expanded, falling back to the first
// element of command when desc is empty (SPEC_FULL.md §5: default
// description behavior from original_source/hancho.py's print_status).
func (t *Task) Description() string {
	if desc, err := t.config.Get("desc"); err == nil {
		if s, ok := desc.(string); ok && s != "" {
			expanded, err := ExpandString(t.config, s)
			if err == nil {
				return expanded
			}
			return s
		}
	}
	if cmd, err := t.config.Get("command"); err == nil {
		if _, ok := cmd.(CommandFunc); ok {
			return "(callable command)"
		}
		flat := Flatten(cmd)
		if len(flat) > 0 {
			return flat[0]
		}
	}
	return "<task>"
}

// Config returns the Task's Config.
func (t *Task) Config() *Config { return t.config }

// State returns the Task's current state (safe for concurrent reads from
// progress-printing goroutines).
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Reason returns the human-readable rebuild reason (empty when skipped).
func (t *Task) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Index returns the task_index assigned on entering RUNNING_COMMANDS, or 0
// if it never ran commands.
func (t *Task) Index() int { return int(atomic.LoadInt32(&t.taskIndex)) }

// InFiles/OutFiles return the absolute paths computed during TASK_INIT.
func (t *Task) InFiles() []string  { return t.inFiles }
func (t *Task) OutFiles() []string { return t.outFiles }

// Stdout/Stderr/ReturnCode expose the last subprocess's captured result.
func (t *Task) Stdout() string   { return t.stdout }
func (t *Task) Stderr() string   { return t.stderr }
func (t *Task) ReturnCode() int  { return t.returncode }

// Promise is an awaitable handle selecting one or more resolved fields of a
// Task (spec §3). Awaiting it awaits the Task, then returns out_files (no
// fields named), a single field's value, or a list of field values.
type Promise struct {
	task   *Task
	fields []string
}

// NewPromise returns a Promise over task selecting the named config fields.
// No fields means "resolve to out_files".
func NewPromise(task *Task, fields ...string) *Promise {
	return &Promise{task: task, fields: fields}
}

// Resolve awaits the underlying Task and returns its selected value(s).
func (p *Promise) Resolve() (any, error) {
	if err := p.task.Wait(); err != nil {
		return nil, err
	}
	if len(p.fields) == 0 {
		return anySlice(p.task.OutFiles()), nil
	}
	if len(p.fields) == 1 {
		v, err := p.task.config.Get(p.fields[0])
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	out := make([]any, len(p.fields))
	for i, f := range p.fields {
		v, err := p.task.config.Get(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Wait blocks until the Task reaches a terminal state, then returns the
// error that ended it: one wrapping ErrCancelled for CANCELLED, the command
// error for FAILED, the TASK_INIT or job-pool error for BROKEN, and nil for
// FINISHED or SKIPPED.
func (t *Task) Wait() error {
	<-t.doneCh
	return t.err
}

// Start transitions DECLARED -> QUEUED -> STARTED and spawns the Task's
// cooperative execution goroutine exactly once (spec §4.3: "start()
// creates the cooperative execution handle exactly once").
func (t *Task) Start(ctx context.Context) {
	t.once.Do(func() {
		t.setState(StateQueued)
		t.setState(StateStarted)
		go t.run(ctx)
	})
}

// run drives the Task through its entire state machine. It is invoked
// exactly once, by Start, on its own goroutine — playing the role of a
// single "cooperative job" in spec §5's scheduling model. Goroutine
// scheduling (rather than Python-style single-threaded event-loop
// suspension points) is this module's Go-idiomatic stand-in for
// cooperative concurrency; shared state (Config reads, the out-file
// uniqueness set) is still only mutated at the synchronous points spec §5
// calls out (TASK_INIT, JobPool acquire/release).
func (t *Task) run(ctx context.Context) {
	defer close(t.doneCh)

	t.setState(StateAwaitingInputs)
	if err := t.awaitInputs(ctx); err != nil {
		t.setState(StateCancelled)
		t.reason = err.Error()
		t.err = fmt.Errorf("%w: %v", ErrCancelled, err)
		return
	}

	t.setState(StateTaskInit)
	if err := t.taskInit(ctx); err != nil {
		t.setState(StateBroken)
		t.reason = err.Error()
		t.err = err
		return
	}

	cmd, _ := t.config.Get("command")
	if cmd == nil {
		t.setState(StateFinished)
		return
	}

	reason := t.needsRerun(ctx)
	if reason == "" {
		t.setState(StateSkipped)
		return
	}
	t.reason = reason

	t.setState(StateAwaitingJobs)
	jobCount := 1
	if jc, err := t.config.Get("job_count"); err == nil {
		if n, err := toNumber(jc); err == nil {
			jobCount = int(n)
		}
	}
	pool := t.app.jobPool()
	if err := pool.Acquire(ctx, jobCount); err != nil {
		t.setState(StateBroken)
		t.err = err
		return
	}
	defer pool.Release(jobCount)

	t.setState(StateRunningCommands)
	t.taskIndex = t.app.nextTaskIndex()

	if err := t.runCommands(ctx); err != nil {
		t.setState(StateFailed)
		t.err = err
		return
	}
	t.setState(StateFinished)
}

// awaitInputs walks every value in config, awaiting Promises and Tasks and
// substituting their resolved values, recursing into lists and maps
// (spec §4.3 AWAITING_INPUTS). Independent branches are awaited
// concurrently via errgroup, grounded on pk/composition.go's parallel.run.
func (t *Task) awaitInputs(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	resolved := make(map[string]any, len(t.config.Keys()))
	var mu sync.Mutex
	for _, k := range t.config.Keys() {
		k := k
		v, _ := t.config.Get(k)
		g.Go(func() error {
			rv, err := awaitValue(v)
			if err != nil {
				return err
			}
			mu.Lock()
			resolved[k] = rv
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for k, v := range resolved {
		t.config.Set(k, v)
	}
	return nil
}

func awaitValue(v any) (any, error) {
	switch x := v.(type) {
	case *Promise:
		rv, err := x.Resolve()
		if err != nil {
			return nil, err
		}
		return awaitValue(rv)
	case *Task:
		if err := x.Wait(); err != nil {
			return nil, err
		}
		return anySlice(x.OutFiles()), nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			rv, err := awaitValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			rv, err := awaitValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

