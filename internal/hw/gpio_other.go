//go:build !linux

package hw

import "io"

type LinePin struct{}

func OpenInput(chip string, offset int, activeHigh bool) (*LinePin, error) {
	return nil, ErrGPIOUnsupported
}

func (p *LinePin) Get() bool { return true }

func (p *LinePin) Close() error { return nil }

type EdgeLine struct{}

func NewEdgeLine(chip string, offset int) *EdgeLine { return &EdgeLine{} }

func (e *EdgeLine) WatchFalling(handler func()) (io.Closer, error) {
	return nil, ErrGPIOUnsupported
}
