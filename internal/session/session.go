// Package session keeps the control connection to the printer alive and routes
// what it receives.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"filament-monitor-backend/internal/hw"
	"filament-monitor-backend/internal/sdcp"
)

// ErrNotConnected is returned by Send while there is no open connection.
var ErrNotConnected = errors.New("session: not connected")

// State is the connection state. It cycles forever; there is no terminal state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is one open text-frame connection. ReadMessage returns text frames only.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteText(frame []byte) error
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// StatusSink receives status documents. printer.Store implements it.
type StatusSink interface {
	ApplyStatus(doc sdcp.Document) bool
}

// Ticker is run on every loop iteration with the current clock value.
type Ticker interface {
	Tick(nowMs int64)
}

// Config holds the session timings.
type Config struct {
	URL            string
	StatusInterval time.Duration
	KeepAlive      time.Duration
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	LoopInterval   time.Duration
}

const pongFrame = "pong"

type eventKind int

const (
	evDialed eventKind = iota
	evFrame
	evClosed
)

type event struct {
	kind  eventKind
	gen   uint64
	conn  Conn
	frame []byte
	err   error
}

// Session owns the printer connection. Dialing and reading happen on helper
// goroutines that only post events; everything else runs on the Run loop.
type Session struct {
	cfg    Config
	clock  hw.Clock
	codec  *sdcp.Codec
	dialer Dialer
	sink   StatusSink
	log    *zap.Logger
	onAck  func(sdcp.Ack)

	events  chan event
	state   atomic.Int32
	dialing sync.WaitGroup

	lastStatus atomic.Int64

	// Loop only.
	lastPing int64
	nextDial int64

	mu   sync.Mutex // serializes writes and guards conn/gen
	conn Conn
	gen  uint64
}

// New creates a disconnected session. Zero durations fall back to defaults.
func New(cfg Config, clock hw.Clock, dialer Dialer, sink StatusSink, logger *zap.Logger) *Session {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 3 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 50 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = 20 * time.Millisecond
	}
	return &Session{
		cfg:    cfg,
		clock:  clock,
		codec:  sdcp.NewCodec(clock),
		dialer: dialer,
		sink:   sink,
		log:    logger,
		events: make(chan event, 64),
	}
}

// OnAck registers an observer for command acknowledgments. Call before Run.
func (s *Session) OnAck(fn func(sdcp.Ack)) { s.onAck = fn }

// State reports the current connection state.
func (s *Session) State() State { return State(s.state.Load()) }

// Connected reports whether a connection is open.
func (s *Session) Connected() bool { return s.State() == Connected }

// Run drives the session until ctx is done. Each ticker runs on every loop
// iteration and after every status update.
func (s *Session) Run(ctx context.Context, tickers ...Ticker) {
	s.log.Info("Starting printer session", zap.String("url", s.cfg.URL))

	loop := time.NewTicker(s.cfg.LoopInterval)
	defer loop.Stop()
	defer s.shutdown()

	s.service(ctx, s.clock.NowMs())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Printer session shutting down.")
			return
		case ev := <-s.events:
			if s.handle(ctx, ev) {
				now := s.clock.NowMs()
				for _, t := range tickers {
					t.Tick(now)
				}
			}
		case <-loop.C:
			now := s.clock.NowMs()
			s.service(ctx, now)
			for _, t := range tickers {
				t.Tick(now)
			}
		}
	}
}

// service runs the polled timers: dial when due, poll status, keep alive.
func (s *Session) service(ctx context.Context, now int64) {
	switch s.State() {
	case Disconnected:
		if now < s.nextDial {
			return
		}
		s.state.Store(int32(Connecting))
		s.dialing.Add(1)
		go func() {
			defer s.dialing.Done()
			s.dial(ctx)
		}()
	case Connected:
		if now-s.lastStatus.Load() >= s.cfg.StatusInterval.Milliseconds() {
			if err := s.RequestStatus(); err != nil {
				s.log.Debug("Status request failed", zap.Error(err))
			}
		}
		if now-s.lastPing >= s.cfg.KeepAlive.Milliseconds() {
			if err := s.sendRaw([]byte(sdcp.KeepAliveFrame)); err != nil {
				s.log.Debug("Keep-alive failed", zap.Error(err))
				return
			}
			s.lastPing = now
		}
	}
}

func (s *Session) dial(ctx context.Context) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()
	conn, err := s.dialer.Dial(dctx, s.cfg.URL)
	s.post(ctx, event{kind: evDialed, conn: conn, err: err})
}

func (s *Session) read(ctx context.Context, conn Conn, gen uint64) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			s.post(ctx, event{kind: evClosed, gen: gen, err: err})
			return
		}
		if !s.post(ctx, event{kind: evFrame, gen: gen, frame: frame}) {
			return
		}
	}
}

func (s *Session) post(ctx context.Context, ev event) bool {
	if ev.conn != nil && ctx.Err() != nil {
		_ = ev.conn.Close()
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return false
	}
}

// handle applies one event on the loop. It reports whether a status
// document was applied.
func (s *Session) handle(ctx context.Context, ev event) bool {
	switch ev.kind {
	case evDialed:
		if ev.err != nil {
			s.log.Warn("Printer connection failed",
				zap.String("url", s.cfg.URL),
				zap.Duration("retry_in", s.cfg.ReconnectDelay),
				zap.Error(ev.err),
			)
			s.scheduleReconnect()
			return false
		}
		s.mu.Lock()
		s.conn = ev.conn
		s.gen++
		gen := s.gen
		s.mu.Unlock()
		s.state.Store(int32(Connected))
		s.log.Info("Connected to printer", zap.String("url", s.cfg.URL))

		go s.read(ctx, ev.conn, gen)
		if err := s.RequestStatus(); err != nil {
			s.log.Warn("Initial status request failed", zap.Error(err))
		}
		return false

	case evFrame:
		if !s.current(ev.gen) {
			return false
		}
		return s.route(ev.frame)

	case evClosed:
		if !s.current(ev.gen) {
			return false
		}
		s.log.Warn("Printer disconnected",
			zap.Duration("retry_in", s.cfg.ReconnectDelay),
			zap.Error(ev.err),
		)
		s.drop()
		s.scheduleReconnect()
	}
	return false
}

// shutdown runs when Run returns. It closes the live connection, waits for an
// in-flight dial and closes any connection still queued behind it.
func (s *Session) shutdown() {
	s.drop()
	s.dialing.Wait()
	for {
		select {
		case ev := <-s.events:
			if ev.conn != nil {
				_ = ev.conn.Close()
			}
		default:
			return
		}
	}
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && gen == s.gen
}

func (s *Session) scheduleReconnect() {
	s.nextDial = s.clock.NowMs() + s.cfg.ReconnectDelay.Milliseconds()
	s.state.Store(int32(Disconnected))
}

func (s *Session) drop() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// route decodes one inbound frame and hands it to its consumer.
func (s *Session) route(frame []byte) bool {
	if string(bytes.TrimSpace(frame)) == pongFrame {
		return false
	}
	doc, err := sdcp.Decode(frame)
	if err != nil {
		s.log.Warn("Discarding malformed frame", zap.Int("bytes", len(frame)), zap.Error(err))
		return false
	}

	switch sdcp.Classify(doc) {
	case sdcp.KindStatus:
		return s.sink.ApplyStatus(doc)
	case sdcp.KindAck:
		ack, _ := sdcp.ParseAck(doc)
		s.log.Info("Command acknowledged",
			zap.Int("cmd", ack.Cmd),
			zap.Int("ack", ack.Code),
			zap.String("result", sdcp.AckText(ack.Code)),
		)
		if s.onAck != nil {
			s.onAck(ack)
		}
	default:
		s.log.Debug("Dropping unrecognized frame", zap.Int("bytes", len(frame)))
	}
	return false
}

// RequestStatus sends opcode 0 and restarts the status poll timer.
// Safe for concurrent use.
func (s *Session) RequestStatus() error {
	if err := s.Send(sdcp.CmdStatus, nil); err != nil {
		return err
	}
	s.lastStatus.Store(s.clock.NowMs())
	return nil
}

// Send encodes and writes one command. It is fire-and-forget and safe for
// concurrent use.
func (s *Session) Send(opcode int, payload map[string]any) error {
	frame, err := s.codec.Encode(opcode, payload)
	if err != nil {
		return err
	}
	if err := s.sendRaw(frame); err != nil {
		return fmt.Errorf("send command %d: %w", opcode, err)
	}
	if opcode != sdcp.CmdStatus {
		s.log.Info("Command sent", zap.Int("cmd", opcode))
	}
	return nil
}

// sendRaw writes one frame. A failed write closes the connection; the reader
// then reports the disconnect to the loop.
func (s *Session) sendRaw(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.WriteText(frame); err != nil {
		_ = s.conn.Close()
		return err
	}
	return nil
}
