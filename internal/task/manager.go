// Package task runs independent units of work on a fixed worker pool and
// hands completed units back to a single draining goroutine.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
)

// Task captures its own outcome; the manager only schedules it.
type Task interface {
	Run(ctx context.Context)
}

// Failer is implemented by tasks that want a panic recorded as a failure.
type Failer interface {
	Fail(err error)
}

var (
	ErrTimeout = errors.New("task: wait timed out")
	ErrDrained = errors.New("task: sealed and drained")
	ErrClosed  = errors.New("task: manager sealed")
)

// Manager is a worker pool with an unbounded completion queue. Any number
// of goroutines may Queue; exactly one goroutine should Wait.
type Manager struct {
	workers int
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	pending chan Task
	sendMu  sync.RWMutex // held for reading while sending on pending
	wg      sync.WaitGroup

	mu        sync.Mutex
	completed []Task
	queued    int
	finished  int
	sealed    bool
	signal    chan struct{}
}

// New starts workers goroutines. With workers <= 1 no goroutine is
// started and Queue runs the task before returning.
func New(workers int, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		workers: max(workers, 1),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		signal:  make(chan struct{}, 1),
	}
	if m.workers > 1 {
		m.pending = make(chan Task, m.workers*4)
		m.wg.Add(m.workers)
		for range m.workers {
			go m.work()
		}
	}
	return m
}

func (m *Manager) Workers() int { return m.workers }

func (m *Manager) work() {
	defer m.wg.Done()
	for t := range m.pending {
		m.run(t)
	}
}

func (m *Manager) run(t Task) {
	observability.TaskStarted()
	defer observability.TaskFinished()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("task panicked", "panic", r)
			if f, ok := t.(Failer); ok {
				f.Fail(fmt.Errorf("task panicked: %v", r))
			}
		}
		m.complete(t)
	}()
	t.Run(m.ctx)
}

func (m *Manager) complete(t Task) {
	m.mu.Lock()
	m.completed = append(m.completed, t)
	m.finished++
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Queue schedules t. It blocks only while the pending buffer is full.
func (m *Manager) Queue(t Task) error {
	m.sendMu.RLock()
	defer m.sendMu.RUnlock()

	m.mu.Lock()
	if m.sealed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queued++
	m.mu.Unlock()

	if m.pending == nil {
		m.run(t)
		return nil
	}
	m.pending <- t
	return nil
}

// Seal declares that no more tasks will be queued. Once every queued task
// has been returned by Wait, Wait reports ErrDrained.
func (m *Manager) Seal() {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	if m.sealed {
		m.mu.Unlock()
		return
	}
	m.sealed = true
	m.mu.Unlock()
	if m.pending != nil {
		close(m.pending)
	}
	m.notify()
}

// Wait returns the next completed task, blocking up to timeout. A
// non-positive timeout waits indefinitely.
func (m *Manager) Wait(ctx context.Context, timeout time.Duration) (Task, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	for {
		m.mu.Lock()
		if len(m.completed) > 0 {
			t := m.completed[0]
			m.completed[0] = nil
			m.completed = m.completed[1:]
			m.mu.Unlock()
			return t, nil
		}
		drained := m.sealed && m.finished == m.queued
		m.mu.Unlock()
		if drained {
			return nil, ErrDrained
		}

		select {
		case <-m.signal:
		case <-timer:
			return nil, ErrTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Stats reports queued and finished counts.
func (m *Manager) Stats() (queued, finished int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queued, m.finished
}

// Close seals the manager, cancels the context handed to running tasks
// and waits for the workers to exit.
func (m *Manager) Close() {
	m.Seal()
	m.cancel()
	m.wg.Wait()
}
