package hancho

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
)

// App is the scheduler: it owns the JobPool, the registry of Tasks, and the
// FIFO drain loop that awaits STARTED tasks to completion (spec §5).
//
// Grounded on pk/composition.go's parallel.run (bounded-concurrency fan-out
// over a task list) and pk/app.go's top-level run/report-results split,
// generalized from "run every task concurrently and collect results" to
// Hancho's queued -> started -> finished FIFO with cancellation propagation.
type App struct {
	root *Config
	pool *JobPool

	mu       sync.Mutex
	queued   []*Task
	started  []*Task
	finished []*Task

	outOwners map[string]*Task // out_file path -> the command-bearing Task that owns it

	taskIndexCounter int32

	shuffle bool
}

// NewApp returns an App rooted at root with jobCount parallel slots.
func NewApp(root *Config, jobCount int) *App {
	return &App{
		root:      root,
		pool:      NewJobPool(jobCount),
		outOwners: map[string]*Task{},
	}
}

// SetShuffle enables shuffling the queued list before each drain pass
// (spec §5: "a shuffle flag randomizes queued order for schedule-
// independence testing").
func (a *App) SetShuffle(v bool) { a.shuffle = v }

func (a *App) jobPool() *JobPool { return a.pool }

func (a *App) nextTaskIndex() int32 {
	return atomic.AddInt32(&a.taskIndexCounter, 1)
}

// Register binds task to this App and appends it to the queued list. The
// task's state stays DECLARED until Run calls Start, which moves it through
// QUEUED to STARTED.
func (a *App) Register(task *Task) {
	task.app = a
	a.mu.Lock()
	a.queued = append(a.queued, task)
	a.mu.Unlock()
}

// reserveOutFiles claims task's out_files against the shared ownership map,
// returning ErrNameCollision if any is already claimed by a different
// command-bearing Task (spec §4.3 TASK_INIT: "no two command-bearing tasks
// may claim the same out_file").
func (a *App) reserveOutFiles(task *Task) error {
	if len(task.outFiles) == 0 {
		return nil
	}
	if cmd, _ := task.config.Get("command"); cmd == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range task.outFiles {
		if owner, ok := a.outOwners[f]; ok && owner != task {
			return fmt.Errorf("%w: out_file %q claimed by multiple tasks", ErrNameCollision, f)
		}
	}
	for _, f := range task.outFiles {
		a.outOwners[f] = task
	}
	return nil
}

// Run starts every queued task and drains the started list oldest-first
// until all tasks reach a terminal state, then returns aggregate Stats.
// Cancelling ctx propagates to every in-flight Task (via context
// cancellation reaching exec.CommandContext and JobPool.Acquire) without
// aborting the drain loop itself — already-finished tasks are still
// reported (spec §5: "cancellation must not corrupt bookkeeping of tasks
// that already finished").
func (a *App) Run(ctx context.Context) Stats {
	a.mu.Lock()
	if a.shuffle {
		rand.Shuffle(len(a.queued), func(i, j int) { a.queued[i], a.queued[j] = a.queued[j], a.queued[i] })
	}
	for _, t := range a.queued {
		t.Start(ctx)
		a.started = append(a.started, t)
	}
	a.queued = nil
	started := append([]*Task(nil), a.started...)
	a.mu.Unlock()

	quiet := Quiet(ctx)
	total := len(started)
	for i, t := range started {
		_ = t.Wait() // error is recorded on the Task itself; Stats reads its State.
		a.mu.Lock()
		a.finished = append(a.finished, t)
		a.mu.Unlock()
		if !quiet {
			PrintTaskLine(ctx, i+1, total, t)
		}
	}

	return a.Stats()
}

// Stats summarizes a completed Run.
type Stats struct {
	Total     int
	Finished  int
	Skipped   int
	Cancelled int
	Failed    int
	Broken    int
}

// ExitCode returns 0 when every task finished in a successful terminal
// state, -1 otherwise (spec §7).
func (s Stats) ExitCode() int {
	if s.Cancelled > 0 || s.Failed > 0 || s.Broken > 0 {
		return -1
	}
	return 0
}

// Stats computes the current tallies over every task this App has run.
func (a *App) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	var s Stats
	for _, t := range a.finished {
		s.Total++
		switch t.State() {
		case StateFinished:
			s.Finished++
		case StateSkipped:
			s.Skipped++
		case StateCancelled:
			s.Cancelled++
		case StateFailed:
			s.Failed++
		case StateBroken:
			s.Broken++
		}
	}
	return s
}

// Tasks returns every task registered with this App: the ones already
// started, in the order Run started them, followed by the ones still
// queued, in registration order.
func (a *App) Tasks() []*Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Task, 0, len(a.started)+len(a.queued))
	out = append(out, a.started...)
	out = append(out, a.queued...)
	return out
}
