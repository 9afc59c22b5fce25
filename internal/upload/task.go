// Package upload runs file transfers to the backend: single files and
// concurrency-bounded batches with per-file outcome isolation.
package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimbusdrive/nimbus-cli/internal/constants"
)

// TaskState represents the current state of an upload task.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskActive    TaskState = "active"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// Task tracks one file's journey through the pipeline. Progress is coarse:
// the transport gives no byte-level events, so tasks advance through fixed
// milestones instead. Thread-safe via the provided methods.
type Task struct {
	ID         string
	Name       string
	Source     string // local path
	Dest       string // remote folder path
	Size       int64
	BatchID    string
	BatchLabel string

	State    TaskState
	Progress int // 0-100, milestone-stepped
	Error    error

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTask creates a queued task.
func NewTask(name, source, dest string, size int64) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		ID:        generateTaskID(),
		Name:      name,
		Source:    source,
		Dest:      dest,
		Size:      size,
		State:     TaskQueued,
		Progress:  constants.ProgressQueued,
		CreatedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// GetState returns the current state.
func (t *Task) GetState() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.State
}

// SetState updates the task state, stamping start and completion times.
func (t *Task) SetState(state TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.State = state
	if state == TaskActive && t.StartedAt.IsZero() {
		t.StartedAt = time.Now()
	}
	if state == TaskCompleted || state == TaskFailed || state == TaskCancelled {
		t.CompletedAt = time.Now()
	}
}

// GetProgress returns the current milestone.
func (t *Task) GetProgress() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Progress
}

// SetProgress advances the milestone. Progress never moves backwards.
func (t *Task) SetProgress(progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if progress > t.Progress {
		t.Progress = progress
	}
}

// SetError records the failure and moves the task to TaskFailed.
func (t *Task) SetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Error = err
	t.State = TaskFailed
	t.CompletedAt = time.Now()
}

// GetError returns the recorded failure, if any.
func (t *Task) GetError() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Error
}

// Cancel aborts a task that has not finished.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	if t.State == TaskQueued || t.State == TaskActive {
		t.State = TaskCancelled
		t.CompletedAt = time.Now()
	}
}

// Context returns the task's cancellation context.
func (t *Task) Context() context.Context {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ctx
}

// IsTerminal reports whether the task finished, one way or another.
func (t *Task) IsTerminal() bool {
	state := t.GetState()
	return state == TaskCompleted || state == TaskFailed || state == TaskCancelled
}

var (
	taskCounter uint64
	taskMu      sync.Mutex
)

func generateTaskID() string {
	taskMu.Lock()
	defer taskMu.Unlock()
	taskCounter++
	return fmt.Sprintf("task-%d-%d", time.Now().UnixNano(), taskCounter)
}
