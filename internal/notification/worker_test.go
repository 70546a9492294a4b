package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"filament-monitor-backend/internal/model"
	"filament-monitor-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

type mockChat struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (m *mockChat) SendText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return m.err
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "notify.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PrintJob{}, &model.FilamentFault{}, &model.PushSubscription{}))
	return store.NewGormStore(db)
}

func response(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_DispatchNeverBlocks(t *testing.T) {
	wp := NewWorkerPool(1, 2, nil, nil, nil, zap.NewNop())

	assert.True(t, wp.Dispatch(Event{Kind: EventPrintStarted}))
	assert.True(t, wp.Dispatch(Event{Kind: EventPrintStarted}))

	done := make(chan bool)
	go func() { done <- wp.Dispatch(Event{Kind: EventFilamentJam}) }()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, EventPrintStarted, job.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_PushesToAllSubscribers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/a", P256DH: "k", Auth: "a"}))
	require.NoError(t, st.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/b", P256DH: "k", Auth: "a"}))

	chat := &mockChat{}
	wp := NewWorkerPool(1, 4, st, &webpush.Options{}, chat, zap.NewNop())

	var mu sync.Mutex
	var got []pushPayload
	var endpoints []string
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
			var p pushPayload
			assert.NoError(t, json.Unmarshal(payload, &p))
			mu.Lock()
			got = append(got, p)
			endpoints = append(endpoints, sub.Endpoint)
			mu.Unlock()
			return response(http.StatusCreated), nil
		},
	}

	wp.process(ctx, Event{Kind: EventPrintCompleted, Filename: "benchy.gcode", Duration: 95 * time.Minute})

	require.Len(t, got, 2)
	assert.ElementsMatch(t, []string{"https://push.example/a", "https://push.example/b"}, endpoints)
	assert.Equal(t, EventPrintCompleted, got[0].Kind)
	assert.Equal(t, "Print complete", got[0].Title)
	assert.Equal(t, "Finished benchy.gcode in 1h 35m.", got[0].Body)
	assert.Equal(t, []string{"Print complete: Finished benchy.gcode in 1h 35m."}, chat.messages)
}

func TestWorkerPool_DeletesExpiredSubscription(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/expired", P256DH: "k", Auth: "a"}))

	wp := NewWorkerPool(1, 1, st, &webpush.Options{}, nil, zap.NewNop())
	wp.sender = &mockSender{
		SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
			return response(http.StatusGone), nil
		},
	}

	wp.process(ctx, Event{Kind: EventFilamentRunout})

	subs, err := st.Subscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestWorkerPool_PersistsHistory(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	chat := &mockChat{err: errors.New("telegram down")}
	wp := NewWorkerPool(1, 1, st, nil, chat, zap.NewNop())

	now := time.Date(2025, 10, 22, 9, 0, 0, 0, time.UTC)
	fault := &model.FilamentFault{Status: "JAM", ObservedAt: now, AutoPaused: true}
	wp.process(ctx, Event{Kind: EventFilamentJam, Filename: "vase.gcode", Fault: fault})
	wp.process(ctx, Event{Kind: EventPrintCompleted, Job: &model.PrintJob{Filename: "vase.gcode", StartedAt: now, FinishedAt: now.Add(time.Hour), DurationSec: 3600}})

	faults, err := st.RecentFaults(ctx, 5)
	require.NoError(t, err)
	require.Len(t, faults, 1)
	assert.Equal(t, "JAM", faults[0].Status)

	prints, err := st.RecentPrints(ctx, 5)
	require.NoError(t, err)
	require.Len(t, prints, 1)
	assert.Equal(t, int64(3600), prints[0].DurationSec)

	assert.Equal(t, "Filament jam: Filament stopped moving while printing vase.gcode. The print was paused.", chat.messages[0])
}

func TestWorkerPool_StartProcessesQueue(t *testing.T) {
	chat := &mockChat{}
	wp := NewWorkerPool(2, 4, nil, nil, chat, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Dispatch(Event{Kind: EventPrintStarted, Filename: "cube.gcode"})

	assert.Eventually(t, func() bool {
		chat.mu.Lock()
		defer chat.mu.Unlock()
		return len(chat.messages) == 1 && chat.messages[0] == "Print started: Started printing cube.gcode."
	}, time.Second, 10*time.Millisecond)
}

func TestEvent_Body(t *testing.T) {
	assert.Equal(t, "Filament ran out while printing unknown file.", Event{Kind: EventFilamentRunout}.Body())
	assert.Equal(t, "Finished a in 2m 05s.", Event{Kind: EventPrintCompleted, Filename: "a", Duration: 125 * time.Second}.Body())
}
