package hw

import (
	"errors"
	"io"
	"sync/atomic"
)

// ErrGPIOUnsupported is returned by the GPIO constructors on platforms without
// a GPIO character device.
var ErrGPIOUnsupported = errors.New("hw: gpio is not supported on this platform")

// InputPin is a level-sensitive digital input.
type InputPin interface {
	Get() bool
}

// EdgeWatcher registers a callback fired on every falling edge of a line. The
// callback runs on the platform's event context, not on the caller's goroutine.
type EdgeWatcher interface {
	WatchFalling(handler func()) (io.Closer, error)
}

// StaticPin is an input with a fixed level, used when no GPIO is configured.
type StaticPin struct {
	level atomic.Bool
}

func NewStaticPin(level bool) *StaticPin {
	p := &StaticPin{}
	p.level.Store(level)
	return p
}

func (p *StaticPin) Get() bool { return p.level.Load() }

// Set changes the reported level.
func (p *StaticPin) Set(level bool) { p.level.Store(level) }

// ManualEdge is an EdgeWatcher fired by hand.
type ManualEdge struct {
	handler atomic.Pointer[func()]
}

func (e *ManualEdge) WatchFalling(handler func()) (io.Closer, error) {
	e.handler.Store(&handler)
	return closerFunc(func() error {
		e.handler.Store(nil)
		return nil
	}), nil
}

// Fire invokes the registered handler, if any.
func (e *ManualEdge) Fire() {
	if h := e.handler.Load(); h != nil {
		(*h)()
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
