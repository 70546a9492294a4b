package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"filament-monitor-backend/internal/model"
	"filament-monitor-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// pushPayload is what the browser's service worker receives.
type pushPayload struct {
	Kind  EventKind `json:"kind"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
}

// WorkerPool persists events and fans them out to push subscribers and the
// chat. Dispatch never blocks the caller.
type WorkerPool struct {
	size    int
	jobs    chan Event
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	chat    ChatSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool. A nil webpushOptions disables push
// and a nil chat disables chat messages.
func NewWorkerPool(size, queueSize int, st store.Store, webpushOptions *webpush.Options, chat ChatSender, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, queueSize),
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		chat:    chat,
		log:     logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("Worker started", zap.Int("worker", id))
	for {
		select {
		case ev := <-wp.jobs:
			wp.log.Debug("Worker processing event", zap.Int("worker", id), zap.String("kind", string(ev.Kind)))
			wp.process(ctx, ev)
		case <-ctx.Done():
			wp.log.Debug("Worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues an event. It is called from the session loop, so a full
// queue drops the event instead of waiting.
func (wp *WorkerPool) Dispatch(ev Event) bool {
	select {
	case wp.jobs <- ev:
		return true
	default:
		wp.log.Warn("Notification queue full, dropping event", zap.String("kind", string(ev.Kind)))
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Event {
	return wp.jobs
}

func (wp *WorkerPool) process(ctx context.Context, ev Event) {
	if ev.Job != nil {
		if err := wp.store.RecordPrint(ctx, ev.Job); err != nil {
			wp.log.Error("Failed to record print", zap.Error(err))
		}
	}
	if ev.Fault != nil {
		if err := wp.store.RecordFault(ctx, ev.Fault); err != nil {
			wp.log.Error("Failed to record fault", zap.Error(err))
		}
	}

	if wp.webpush != nil {
		wp.pushAll(ctx, ev)
	}
	if wp.chat != nil {
		if err := wp.chat.SendText(ev.Title() + ": " + ev.Body()); err != nil {
			wp.log.Error("Failed to send chat message", zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
	}
}

func (wp *WorkerPool) pushAll(ctx context.Context, ev Event) {
	subscriptions, err := wp.store.Subscriptions(ctx)
	if err != nil {
		wp.log.Error("Error fetching subscriptions", zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{Kind: ev.Kind, Title: ev.Title(), Body: ev.Body()})
	if err != nil {
		wp.log.Error("Error encoding push payload", zap.Error(err))
		return
	}

	wp.log.Info("Sending push notifications", zap.Int("subscriptions", len(subscriptions)), zap.String("kind", string(ev.Kind)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("Error sending notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("Subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("Failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
