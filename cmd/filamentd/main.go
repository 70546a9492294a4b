package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"filament-monitor-backend/config"
	"filament-monitor-backend/internal/api"
	"filament-monitor-backend/internal/control"
	"filament-monitor-backend/internal/db"
	"filament-monitor-backend/internal/filament"
	"filament-monitor-backend/internal/hw"
	"filament-monitor-backend/internal/logging"
	"filament-monitor-backend/internal/notification"
	"filament-monitor-backend/internal/printer"
	"filament-monitor-backend/internal/publish"
	"filament-monitor-backend/internal/sdcp"
	"filament-monitor-backend/internal/session"
	"filament-monitor-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("Configuration loaded", zap.String("path", configPath))

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := hw.NewMonotonicClock()
	printerState := printer.NewStore()

	presence, motion, closePins := openSensor(cfg.Sensor, logger)
	defer closePins()

	detector := filament.NewDetector(detectorConfig(cfg.Sensor, motion), clock, presence, printerState, appStore, logger)
	if err := detector.LoadSettings(ctx); err != nil {
		logger.Warn("Failed to load sensor settings, using defaults", zap.Error(err))
	}
	if motion != nil {
		watch, err := motion.WatchFalling(detector.RecordPulse)
		if err != nil {
			logger.Fatal("Failed to watch motion line", zap.Error(err))
		}
		defer watch.Close()
	}

	sess := session.New(session.Config{
		URL:            cfg.Printer.URL(),
		StatusInterval: cfg.Printer.StatusInterval,
		KeepAlive:      cfg.Printer.KeepAlive,
		ReconnectDelay: cfg.Printer.ReconnectDelay,
		DialTimeout:    cfg.Printer.DialTimeout,
		LoopInterval:   cfg.Printer.LoopInterval,
	}, clock, session.WebsocketDialer{WriteTimeout: cfg.Printer.WriteTimeout}, printerState, logger)
	sess.OnAck(func(ack sdcp.Ack) {
		logger.Debug("Command acknowledged", zap.Int("cmd", ack.Cmd), zap.Int("code", ack.Code))
	})

	dispatcher := control.NewDispatcher(sess, printerState, detector, logger)
	detector.AttachPauser(dispatcher)

	// Notifications
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Warn("VAPID keys not configured, web push disabled")
	}
	var chat notification.ChatSender
	if cfg.Telegram.Enabled() {
		bot, err := notification.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Error("Failed to start Telegram bot, chat alerts disabled", zap.Error(err))
		} else {
			chat = bot
		}
	}
	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, webpushOptions, chat, logger)
	pool.Start(ctx)

	tracker := printer.NewTracker(clock)
	tracker.OnStart = func(st printer.State) {
		detector.Reset()
		pool.Dispatch(notification.StartedEvent(st, time.Now()))
	}
	tracker.OnComplete = func(st printer.State, elapsed time.Duration) {
		pool.Dispatch(notification.CompletedEvent(st, elapsed, time.Now()))
	}
	printerState.Observe(tracker.Observe)

	tickers := []session.Ticker{detector}

	var publisher *publish.Publisher
	if cfg.MQTT.Broker != "" {
		client, err := publish.Dial(cfg.MQTT, logger)
		if err != nil {
			logger.Error("MQTT bridge disabled", zap.Error(err))
		} else {
			publisher = publish.New(client, cfg.MQTT, printerState, detector, logger)
			publisher.Announce()
			if err := publisher.SubscribeCommands(dispatcher); err != nil {
				logger.Error("Failed to subscribe to MQTT commands", zap.Error(err))
			}
			tickers = append(tickers, publisher)
		}
	}

	detector.OnFault(func(f filament.Fault) {
		pool.Dispatch(notification.FaultEvent(f, time.Now()))
		if publisher != nil {
			publisher.PublishFault(f)
		}
	})

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		sess.Run(ctx, tickers...)
	}()

	// Initialize router
	router := api.NewRouter(api.Deps{
		Store:   appStore,
		WebPush: webpushOptions,
		Printer: printerState,
		Sensor:  detector,
		Control: dispatcher,
		Link:    sess,
	}, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port), zap.String("printer", cfg.Printer.URL()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}

	cancel()
	<-loopDone
	if publisher != nil {
		publisher.Close()
	}

	logger.Info("Server gracefully stopped")
}

// detectorConfig disables jam detection when there is no motion source, since
// without pulses every moving print would look jammed.
func detectorConfig(cfg config.SensorConfig, motion hw.EdgeWatcher) filament.Config {
	return filament.Config{
		MotionCheckIntervalMs:   int64(cfg.MotionCheckIntervalMs),
		PositionCheckIntervalMs: int64(cfg.PositionCheckIntervalMs),
		DisableMotion:           motion == nil,
	}
}

// openSensor returns the presence input and the motion edge source. Without
// GPIO the presence input always reads present and there is no motion source.
func openSensor(cfg config.SensorConfig, logger *zap.Logger) (hw.InputPin, hw.EdgeWatcher, func()) {
	if !cfg.GPIOEnabled {
		logger.Warn("GPIO disabled, filament sensor inputs are simulated")
		return hw.NewStaticPin(true), nil, func() {}
	}

	pin, err := hw.OpenInput(cfg.Chip, cfg.PresenceLine, !cfg.PresenceActiveLow)
	if err != nil {
		logger.Fatal("Failed to open presence line", zap.Error(err))
	}
	logger.Info("Filament sensor opened",
		zap.String("chip", cfg.Chip),
		zap.Int("presence_line", cfg.PresenceLine),
		zap.Int("motion_line", cfg.MotionLine))
	return pin, hw.NewEdgeLine(cfg.Chip, cfg.MotionLine), func() { pin.Close() }
}
