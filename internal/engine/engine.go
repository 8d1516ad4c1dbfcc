// Package engine drives long-running tasks through their step state machine.
// Run returns immediately; every task is advanced by its own ticker goroutine,
// one transition per tick, and finishes with exactly one of the success or
// failure callbacks.
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/hydronote/groundwatch/internal/metrics"
	"github.com/hydronote/groundwatch/internal/repository"
	"github.com/hydronote/groundwatch/internal/store"
	"github.com/hydronote/groundwatch/internal/task"
)

// progressFloor is reported as soon as a task leaves queued so callers see
// movement before the first step completes.
const progressFloor = 5

const defaultTickInterval = 250 * time.Millisecond

// Options configures one run. OnSuccess and OnFail are mutually exclusive
// and fire exactly once. OnStep, when set, performs the work of the named
// step at the tick that completes it; an error or panic there drives the
// failure transition.
type Options struct {
	OnSuccess func(*task.Task)
	OnFail    func(*task.Task, string)
	OnStep    func(*task.Task, string) error
}

// Execution is the handle for one asynchronous run. Done is closed after the
// terminal callback has returned.
type Execution struct {
	TaskID string
	done   chan struct{}
}

func (e *Execution) Done() <-chan struct{} {
	return e.done
}

type Engine struct {
	store    *store.Store
	repo     repository.RunRepository
	interval time.Duration
}

// New creates an engine ticking at the given interval. The repository may be
// nil, in which case no run history is kept.
func New(st *store.Store, repo repository.RunRepository, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = defaultTickInterval
	}

	return &Engine{
		store:    st,
		repo:     repo,
		interval: interval,
	}
}

// Create allocates and persists a queued task with one step per name. The
// result seed is carried through to the terminal task unchanged.
func (e *Engine) Create(ctx context.Context, orgID string, kind task.Kind, stepNames []string, resultSeed map[string]any) (*task.Task, error) {
	t := task.New(orgID, kind, stepNames, resultSeed)
	if err := e.store.SaveTask(ctx, t); err != nil {
		return nil, fmt.Errorf("persist task: %w", err)
	}

	if e.repo != nil {
		if err := e.repo.SaveRun(ctx, t); err != nil {
			log.Printf("Failed to record run for task %s: %v", t.ID, err)
		}
	}

	metrics.RecordTaskCreated(string(kind))
	return t, nil
}

// Run starts driving the task to a terminal state and returns immediately.
// The task must exist; anything else about its state is resolved tick by
// tick (a task already terminal stops the driver without mutation).
func (e *Engine) Run(taskID string, opts Options) (*Execution, error) {
	if _, err := e.store.GetTaskByID(context.Background(), taskID); err != nil {
		return nil, err
	}

	exec := &Execution{
		TaskID: taskID,
		done:   make(chan struct{}),
	}
	go e.drive(exec, opts)

	return exec, nil
}

func (e *Engine) drive(exec *Execution, opts Options) {
	defer close(exec.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	ctx := context.Background()
	for range ticker.C {
		stop, err := e.tick(ctx, exec.TaskID, opts)
		if err != nil {
			e.fail(ctx, exec.TaskID, opts, err)
			return
		}
		if stop {
			return
		}
	}
}

// tick applies at most one state transition. It reports stop=true once the
// driver has nothing left to do.
func (e *Engine) tick(ctx context.Context, taskID string, opts Options) (bool, error) {
	t, err := e.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return false, err
	}

	switch t.Status {
	case task.StatusQueued:
		return false, e.start(ctx, taskID)
	case task.StatusRunning:
		return e.advance(ctx, t, opts)
	default:
		// Terminal state observed: idempotent shutdown, no mutation.
		return true, nil
	}
}

func (e *Engine) start(ctx context.Context, taskID string) error {
	_, err := e.store.UpdateTask(ctx, taskID, func(t *task.Task) error {
		now := time.Now().UTC()
		t.Status = task.StatusRunning
		t.StartedAt = &now
		if len(t.Steps) > 0 {
			t.Steps[0].Status = task.StatusRunning
		}
		t.AppendLog("started")
		t.Progress = progressFloor
		return nil
	})
	if err != nil {
		return err
	}

	if e.repo != nil {
		if err := e.repo.MarkRunning(ctx, taskID); err != nil {
			log.Printf("Failed to mark run %s running: %v", taskID, err)
		}
	}

	return nil
}

// advance completes the currently running step, doing its work first. The
// task finishes when no next step remains; a task with no running step is
// treated as done defensively.
func (e *Engine) advance(ctx context.Context, t *task.Task, opts Options) (bool, error) {
	idx := t.RunningStep()
	if idx >= 0 && opts.OnStep != nil {
		if err := runStep(opts.OnStep, t, t.Steps[idx].Name); err != nil {
			return false, err
		}
	}

	var finished bool
	updated, err := e.store.UpdateTask(ctx, t.ID, func(t *task.Task) error {
		if t.Terminal() {
			return nil
		}

		i := t.RunningStep()
		if i < 0 {
			complete(t)
			finished = true
			return nil
		}

		t.Steps[i].Status = task.StatusSuccess
		next := i + 1
		if next >= len(t.Steps) {
			complete(t)
			finished = true
			return nil
		}

		t.Steps[next].Status = task.StatusRunning
		t.AppendLog("step " + t.Steps[next].Name)
		t.Progress = stepProgress(next, len(t.Steps))
		return nil
	})
	if err != nil {
		return false, err
	}

	if idx >= 0 && e.repo != nil {
		if err := e.repo.LogEvent(ctx, t.ID, t.Steps[idx].Name, string(task.StatusSuccess), "step completed"); err != nil {
			log.Printf("Failed to log step event for task %s: %v", t.ID, err)
		}
	}

	if finished {
		if e.repo != nil {
			if err := e.repo.CompleteRun(ctx, t.ID, int(updated.Duration().Milliseconds())); err != nil {
				log.Printf("Failed to record completion for task %s: %v", t.ID, err)
			}
		}
		metrics.RecordTaskSucceeded(string(updated.Kind), updated.Duration())
		log.Printf("Task %s completed successfully", t.ID)

		if opts.OnSuccess != nil {
			opts.OnSuccess(updated)
		}
		return true, nil
	}

	return false, nil
}

// fail applies the terminal failure transition and fires OnFail once. A task
// already terminal is left untouched.
func (e *Engine) fail(ctx context.Context, taskID string, opts Options, cause error) {
	message := cause.Error()
	updated, err := e.store.UpdateTask(ctx, taskID, func(t *task.Task) error {
		if t.Terminal() {
			return nil
		}

		now := time.Now().UTC()
		t.Status = task.StatusFailed
		t.Error = message
		t.FinishedAt = &now
		t.AppendLog("failed")
		return nil
	})
	if err != nil {
		log.Printf("Failed to mark task %s failed: %v", taskID, err)
		if opts.OnFail != nil {
			opts.OnFail(nil, message)
		}
		return
	}

	if e.repo != nil {
		if err := e.repo.FailRun(ctx, taskID, message, int(updated.Duration().Milliseconds())); err != nil {
			log.Printf("Failed to record failure for task %s: %v", taskID, err)
		}
	}
	metrics.RecordTaskFailed(string(updated.Kind), updated.Duration())
	log.Printf("Task %s failed: %s", taskID, message)

	if opts.OnFail != nil {
		opts.OnFail(updated, message)
	}
}

func complete(t *task.Task) {
	now := time.Now().UTC()
	t.Status = task.StatusSuccess
	t.Progress = 100
	t.FinishedAt = &now
	t.AppendLog("completed")
}

// stepProgress keeps visible progress slightly ahead of the step that just
// started without ever reaching 100 early.
func stepProgress(nextIndex, stepCount int) int {
	return int(math.Round(100 * (float64(nextIndex) + 0.1) / float64(stepCount)))
}

func runStep(fn func(*task.Task, string) error, t *task.Task, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", name, r)
		}
	}()

	return fn(t, name)
}
