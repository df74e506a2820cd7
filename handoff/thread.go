// Package handoff runs frame execution on a dedicated OS thread.
//
// The producer hands one finished buffer at a time to the thread and
// waits for the thread to go idle before handing the next. A ready token
// and a start slot, both of capacity one, keep the two sides in strict
// alternation: the producer never writes a buffer the thread is reading.
package handoff

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/framewire/wire"
)

// ErrStopped is returned after the thread has been shut down
var ErrStopped = errors.New("handoff: render thread stopped")

// Executor runs the commands of a finished buffer
type Executor interface {
	Execute(buf *wire.Buffer) error
}

// Presenter is an executor that shows each executed frame
type Presenter interface {
	Present() error
}

// Destroyer is an executor holding resources that must be released on
// the render thread
type Destroyer interface {
	Destroy()
}

// Thread is the render thread. WaitAndExecute and Shutdown are meant to
// be called from a single producer goroutine.
type Thread struct {
	log log.FieldLogger

	ready   chan struct{}
	start   chan *wire.Buffer
	stopped chan struct{}

	// err is written before stopped is closed
	err    error
	frames uint64

	shutdown sync.Once
}

// Start spawns the render thread and runs init on it. The executor init
// returns is owned by the thread from then on. Start returns once init
// has finished, with its error.
func Start(init func() (Executor, error), logger log.FieldLogger) (*Thread, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	t := &Thread{
		log:     logger.WithField("thread", "render"),
		ready:   make(chan struct{}, 1),
		start:   make(chan *wire.Buffer, 1),
		stopped: make(chan struct{}),
	}

	// device state is bound to one OS thread, init result comes back
	// through a channel
	initErr := make(chan error)
	go t.run(init, initErr)
	if err := <-initErr; err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Thread) run(init func() (Executor, error), initErr chan<- error) {
	defer close(t.stopped)
	runtime.LockOSThread()
	// not unlocked, the thread dies with the goroutine

	exec, err := init()
	if err != nil {
		initErr <- err
		return
	}
	if d, ok := exec.(Destroyer); ok {
		defer d.Destroy()
	}
	initErr <- nil
	t.log.Info("render thread started")

	t.ready <- struct{}{}
	for buf := range t.start {
		if err := exec.Execute(buf); err != nil {
			t.err = err
			t.log.WithField("frame", atomic.LoadUint64(&t.frames)+1).Errorf("render thread stopping: %s", err)
			return
		}
		if p, ok := exec.(Presenter); ok {
			if err := p.Present(); err != nil {
				t.log.Errorf("present: %s", err)
			}
		}
		atomic.AddUint64(&t.frames, 1)
		t.ready <- struct{}{}
	}
	t.log.WithField("frames", atomic.LoadUint64(&t.frames)).Info("render thread stopped")
}

// WaitAndExecute waits until the thread is idle and hands it buf. It
// returns without waiting for buf to be executed; buf must not be
// touched until the next WaitAndExecute or Shutdown returns.
//
// If the thread stopped on an executor error, that error is returned.
func (t *Thread) WaitAndExecute(ctx context.Context, buf *wire.Buffer) error {
	select {
	case <-t.ready:
	case <-t.stopped:
		return t.stopErr()
	case <-ctx.Done():
		return ctx.Err()
	}
	t.start <- buf
	return nil
}

// Shutdown waits for the frame in flight, stops the thread and releases
// the executor on it. Later calls return the same result.
func (t *Thread) Shutdown() error {
	t.shutdown.Do(func() {
		select {
		case <-t.ready:
			close(t.start)
			<-t.stopped
		case <-t.stopped:
		}
	})
	return t.err
}

// Done is closed once the thread has stopped
func (t *Thread) Done() <-chan struct{} {
	return t.stopped
}

// Err is the error the thread stopped on, if it stopped
func (t *Thread) Err() error {
	select {
	case <-t.stopped:
		return t.err
	default:
		return nil
	}
}

// Frames is the number of frames executed
func (t *Thread) Frames() uint64 {
	return atomic.LoadUint64(&t.frames)
}

func (t *Thread) stopErr() error {
	if t.err != nil {
		return t.err
	}
	return ErrStopped
}
