package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"filament-monitor-backend/internal/control"
	"filament-monitor-backend/internal/db"
	"filament-monitor-backend/internal/filament"
	"filament-monitor-backend/internal/hw"
	"filament-monitor-backend/internal/notification"
	"filament-monitor-backend/internal/printer"
	"filament-monitor-backend/internal/session"
	"filament-monitor-backend/internal/store"
)

type receivedCommand struct {
	Data struct {
		Cmd  int            `json:"Cmd"`
		Data map[string]any `json:"Data"`
	} `json:"Data"`
}

// fakePrinter is a websocket endpoint that records commands and pushes
// whatever frames the test queues.
type fakePrinter struct {
	server   *httptest.Server
	commands chan receivedCommand
	outbound chan string
	kick     chan struct{}
}

func newFakePrinter(t *testing.T) *fakePrinter {
	p := &fakePrinter{
		commands: make(chan receivedCommand, 64),
		outbound: make(chan string, 16),
		kick:     make(chan struct{}, 1),
	}
	upgrader := websocket.Upgrader{}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if string(msg) == "ping" {
					continue
				}
				var cmd receivedCommand
				if json.Unmarshal(msg, &cmd) == nil {
					p.commands <- cmd
				}
			}
		}()

		for {
			select {
			case frame := <-p.outbound:
				if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
			case <-p.kick:
				return
			case <-done:
				return
			}
		}
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePrinter) url() string {
	return "ws" + strings.TrimPrefix(p.server.URL, "http")
}

func (p *fakePrinter) expect(t *testing.T, opcode int) receivedCommand {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case cmd := <-p.commands:
			if cmd.Data.Cmd == opcode {
				return cmd
			}
		case <-deadline:
			t.Fatalf("command %d never arrived", opcode)
			return receivedCommand{}
		}
	}
}

func statusFrame(code int, coord string) string {
	return `{"Status":{"CurrenCoord":"` + coord + `","PrintInfo":{"Status":` +
		strconv.Itoa(code) + `,"Filename":"benchy.gcode","TotalLayer":240}}}`
}

type monitor struct {
	state    *printer.Store
	sess     *session.Session
	detector *filament.Detector
	control  *control.Dispatcher
	store    store.Store
	presence *hw.StaticPin
}

func startMonitor(t *testing.T, url string) *monitor {
	t.Helper()
	logger := zap.NewNop()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "monitor.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	appStore := store.NewGormStore(gdb)

	clock := hw.NewMonotonicClock()
	state := printer.NewStore()
	presence := hw.NewStaticPin(true)
	detector := filament.NewDetector(filament.Config{DisableMotion: true}, clock, presence, state, appStore, logger)

	sess := session.New(session.Config{
		URL:            url,
		StatusInterval: time.Minute,
		ReconnectDelay: 50 * time.Millisecond,
		LoopInterval:   5 * time.Millisecond,
	}, clock, session.WebsocketDialer{}, state, logger)

	dispatcher := control.NewDispatcher(sess, state, detector, logger)
	detector.AttachPauser(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	pool := notification.NewWorkerPool(1, 10, appStore, nil, nil, logger)
	pool.Start(ctx)

	tracker := printer.NewTracker(clock)
	tracker.OnStart = func(printer.State) { detector.Reset() }
	tracker.OnComplete = func(st printer.State, elapsed time.Duration) {
		pool.Dispatch(notification.CompletedEvent(st, elapsed, time.Now()))
	}
	state.Observe(tracker.Observe)
	detector.OnFault(func(f filament.Fault) {
		pool.Dispatch(notification.FaultEvent(f, time.Now()))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Run(ctx, detector)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &monitor{
		state:    state,
		sess:     sess,
		detector: detector,
		control:  dispatcher,
		store:    appStore,
		presence: presence,
	}
}

func TestMonitor_StatusAndCommands(t *testing.T) {
	fp := newFakePrinter(t)
	m := startMonitor(t, fp.url())

	fp.expect(t, 0)
	assert.Eventually(t, m.sess.Connected, 2*time.Second, 10*time.Millisecond)

	fp.outbound <- statusFrame(printer.StatusPrinting, "1.00,2.00,3.00")
	assert.Eventually(t, func() bool {
		return m.state.Snapshot().Phase() == printer.PhasePrinting
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "benchy.gcode", m.state.Snapshot().Filename)

	require.NoError(t, m.control.PausePrint())
	fp.expect(t, 129)

	msg, err := m.control.Execute(control.Request{Action: control.ActionStart, Filename: "cube.gcode"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg)
	start := fp.expect(t, 128)
	assert.Equal(t, "/local/cube.gcode", start.Data.Data["Filename"])
}

func TestMonitor_RunoutPausesAndRecords(t *testing.T) {
	fp := newFakePrinter(t)
	m := startMonitor(t, fp.url())
	fp.expect(t, 0)

	fp.outbound <- statusFrame(printer.StatusPrinting, "1.00,2.00,3.00")
	assert.Eventually(t, func() bool {
		return m.state.Snapshot().Phase() == printer.PhasePrinting
	}, 2*time.Second, 10*time.Millisecond)

	m.presence.Set(false)
	fp.expect(t, 129)
	assert.Equal(t, filament.StatusRunout, m.detector.Status())

	assert.Eventually(t, func() bool {
		faults, err := m.store.RecentFaults(context.Background(), 10)
		return err == nil && len(faults) == 1 && faults[0].Status == "RUNOUT" && faults[0].AutoPaused
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMonitor_CompletedPrintIsRecorded(t *testing.T) {
	fp := newFakePrinter(t)
	m := startMonitor(t, fp.url())
	fp.expect(t, 0)

	fp.outbound <- statusFrame(printer.StatusPrinting, "1.00,2.00,3.00")
	assert.Eventually(t, func() bool {
		return m.state.Snapshot().Phase() == printer.PhasePrinting
	}, 2*time.Second, 10*time.Millisecond)

	fp.outbound <- statusFrame(printer.StatusIdle, "1.00,2.00,3.00")
	assert.Eventually(t, func() bool {
		jobs, err := m.store.RecentPrints(context.Background(), 10)
		return err == nil && len(jobs) == 1 && jobs[0].Filename == "benchy.gcode" && jobs[0].TotalLayers == 240
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMonitor_ReconnectsAfterPrinterRestart(t *testing.T) {
	fp := newFakePrinter(t)
	m := startMonitor(t, fp.url())
	fp.expect(t, 0)

	fp.kick <- struct{}{}
	fp.expect(t, 0)
	assert.Eventually(t, m.sess.Connected, 2*time.Second, 10*time.Millisecond)
}

func TestMonitor_NoMotionSourceKeepsHealthyPrintRunning(t *testing.T) {
	fp := newFakePrinter(t)
	m := startMonitor(t, fp.url())
	fp.expect(t, 0)

	deadline := time.Now().Add(4500 * time.Millisecond)
	for i := 0; time.Now().Before(deadline); i++ {
		fp.outbound <- statusFrame(printer.StatusPrintingAlt, strconv.Itoa(i)+".00,2.00,3.00")
		time.Sleep(200 * time.Millisecond)
	}

	assert.Equal(t, filament.StatusOK, m.detector.Status())
	assert.False(t, m.detector.ErrorDetected())
	faults, err := m.store.RecentFaults(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, faults)
	for len(fp.commands) > 0 {
		assert.NotEqual(t, 129, (<-fp.commands).Data.Cmd)
	}
}
