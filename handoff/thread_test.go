package handoff_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"

	"github.com/devblok/framewire/handoff"
	"github.com/devblok/framewire/wire"
)

// gatedExecutor executes a frame only once the test lets it
type gatedExecutor struct {
	mutex     sync.Mutex
	gate      chan struct{}
	executed  []*wire.Buffer
	presented int
	destroyed int
	failOn    int
}

func newGated() *gatedExecutor {
	return &gatedExecutor{gate: make(chan struct{}, 16)}
}

func (e *gatedExecutor) Execute(buf *wire.Buffer) error {
	<-e.gate
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.executed = append(e.executed, buf)
	if e.failOn == len(e.executed) {
		return errors.New("boom")
	}
	return nil
}

func (e *gatedExecutor) Present() error {
	e.mutex.Lock()
	e.presented++
	e.mutex.Unlock()
	return nil
}

func (e *gatedExecutor) Destroy() {
	e.mutex.Lock()
	e.destroyed++
	e.mutex.Unlock()
}

func (e *gatedExecutor) snapshot() ([]*wire.Buffer, int, int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return append([]*wire.Buffer(nil), e.executed...), e.presented, e.destroyed
}

func start(c *qt.C, exec handoff.Executor) *handoff.Thread {
	thread, err := handoff.Start(func() (handoff.Executor, error) { return exec, nil }, nil)
	c.Assert(err, qt.IsNil)
	return thread
}

func TestInitErrorIsReturned(t *testing.T) {
	c := qt.New(t)
	_, err := handoff.Start(func() (handoff.Executor, error) {
		return nil, errors.New("no display")
	}, nil)
	c.Assert(err, qt.ErrorMatches, "no display")
}

func TestAlternation(t *testing.T) {
	c := qt.New(t)
	exec := newGated()
	thread := start(c, exec)
	a, b := wire.NewBuffer(8), wire.NewBuffer(8)

	ctx := context.Background()
	c.Assert(thread.WaitAndExecute(ctx, a), qt.IsNil)

	// a is still executing, b has to wait
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	c.Assert(thread.WaitAndExecute(short, b), qt.Equals, context.DeadlineExceeded)

	exec.gate <- struct{}{}
	c.Assert(thread.WaitAndExecute(ctx, b), qt.IsNil)
	exec.gate <- struct{}{}
	c.Assert(thread.WaitAndExecute(ctx, a), qt.IsNil)
	exec.gate <- struct{}{}
	c.Assert(thread.Shutdown(), qt.IsNil)

	executed, presented, destroyed := exec.snapshot()
	c.Assert(executed, qt.CmpEquals(cmp.Comparer(func(x, y *wire.Buffer) bool { return x == y })), []*wire.Buffer{a, b, a})
	c.Assert(presented, qt.Equals, 3)
	c.Assert(destroyed, qt.Equals, 1)
	c.Assert(thread.Frames(), qt.Equals, uint64(3))
}

func TestShutdownIsIdempotent(t *testing.T) {
	c := qt.New(t)
	exec := newGated()
	thread := start(c, exec)
	c.Assert(thread.Shutdown(), qt.IsNil)
	c.Assert(thread.Shutdown(), qt.IsNil)
	_, _, destroyed := exec.snapshot()
	c.Assert(destroyed, qt.Equals, 1)
	c.Assert(thread.WaitAndExecute(context.Background(), wire.NewBuffer(8)), qt.Equals, handoff.ErrStopped)
}

func TestExecutorErrorStopsThread(t *testing.T) {
	c := qt.New(t)
	exec := newGated()
	exec.failOn = 2
	thread := start(c, exec)
	ctx := context.Background()

	exec.gate <- struct{}{}
	exec.gate <- struct{}{}
	c.Assert(thread.WaitAndExecute(ctx, wire.NewBuffer(8)), qt.IsNil)
	c.Assert(thread.WaitAndExecute(ctx, wire.NewBuffer(8)), qt.IsNil)

	<-thread.Done()
	c.Assert(thread.Err(), qt.ErrorMatches, "boom")
	c.Assert(thread.WaitAndExecute(ctx, wire.NewBuffer(8)), qt.ErrorMatches, "boom")
	c.Assert(thread.Shutdown(), qt.ErrorMatches, "boom")

	_, presented, destroyed := exec.snapshot()
	c.Assert(presented, qt.Equals, 1)
	c.Assert(destroyed, qt.Equals, 1)
	c.Assert(thread.Frames(), qt.Equals, uint64(1))
}

func TestShutdownWaitsForFrameInFlight(t *testing.T) {
	c := qt.New(t)
	exec := newGated()
	thread := start(c, exec)
	c.Assert(thread.WaitAndExecute(context.Background(), wire.NewBuffer(8)), qt.IsNil)

	done := make(chan error)
	go func() { done <- thread.Shutdown() }()
	select {
	case <-done:
		c.Fatal("shutdown returned while a frame was executing")
	case <-time.After(20 * time.Millisecond):
	}
	exec.gate <- struct{}{}
	c.Assert(<-done, qt.IsNil)
	c.Assert(thread.Frames(), qt.Equals, uint64(1))
}
