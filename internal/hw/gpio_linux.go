//go:build linux

package hw

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

// LinePin reads a GPIO line through the Linux character device.
type LinePin struct {
	line       *gpiocdev.Line
	activeHigh bool
	last       atomic.Bool
}

// OpenInput requests chip/offset as an input with a pull-down bias. With
// activeHigh the pin reports true while the line is high.
func OpenInput(chip string, offset int, activeHigh bool) (*LinePin, error) {
	l, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, fmt.Errorf("request input %s:%d: %w", chip, offset, err)
	}
	p := &LinePin{line: l, activeHigh: activeHigh}
	p.last.Store(true)
	return p, nil
}

// Get returns the logical level. A failed read reports the last good level.
func (p *LinePin) Get() bool {
	v, err := p.line.Value()
	if err != nil {
		return p.last.Load()
	}
	level := (v == 1) == p.activeHigh
	p.last.Store(level)
	return level
}

func (p *LinePin) Close() error { return p.line.Close() }

// EdgeLine watches a GPIO line for falling edges.
type EdgeLine struct {
	chip   string
	offset int
}

func NewEdgeLine(chip string, offset int) *EdgeLine {
	return &EdgeLine{chip: chip, offset: offset}
}

// WatchFalling requests the line with a pull-up bias and falling edge
// detection. The handler runs on the gpiocdev event goroutine.
func (e *EdgeLine) WatchFalling(handler func()) (io.Closer, error) {
	l, err := gpiocdev.RequestLine(e.chip, e.offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { handler() }),
	)
	if err != nil {
		return nil, fmt.Errorf("request edge %s:%d: %w", e.chip, e.offset, err)
	}
	return l, nil
}
