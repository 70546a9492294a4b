// Package publish bridges printer and sensor state to an MQTT broker and
// accepts control actions from it.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"filament-monitor-backend/config"
	"filament-monitor-backend/internal/control"
	"filament-monitor-backend/internal/filament"
	"filament-monitor-backend/internal/printer"
)

const (
	publishTimeout = 5 * time.Second
	connectTimeout = 15 * time.Second
)

// Client is the subset of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// Commander runs control actions. control.Dispatcher implements it.
type Commander interface {
	Execute(req control.Request) (string, error)
}

type StateSource interface {
	Snapshot() printer.State
}

type SensorSource interface {
	Snapshot() filament.Snapshot
}

// StatePayload is the retained document on <prefix>/state.
type StatePayload struct {
	Phase      printer.Phase     `json:"phase"`
	StatusText string            `json:"statusText"`
	Printer    printer.State     `json:"printer"`
	Sensor     filament.Snapshot `json:"sensor"`
}

// CommandResult is published on <prefix>/command/result for every command.
type CommandResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Publisher publishes state on a fixed interval from the session loop and
// faults as they happen.
type Publisher struct {
	client     Client
	prefix     string
	qos        byte
	intervalMs int64
	state      StateSource
	sensor     SensorSource
	log        *zap.Logger

	lastPublish int64
	published   bool
}

// Dial connects to the broker. The session is persistent so the command
// subscription survives reconnects.
func Dial(cfg config.MQTTConfig, logger *zap.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(false)
	opts.SetResumeSubs(true)
	opts.SetOrderMatters(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(availabilityTopic(cfg.TopicPrefix), "offline", 1, true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.New("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return client, nil
}

func New(client Client, cfg config.MQTTConfig, state StateSource, sensor SensorSource, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:     client,
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		intervalMs: int64(cfg.PublishIntervalMs),
		state:      state,
		sensor:     sensor,
		log:        logger,
	}
}

func availabilityTopic(prefix string) string { return prefix + "/availability" }

func (p *Publisher) topic(name string) string { return p.prefix + "/" + name }

// Announce marks the service online.
func (p *Publisher) Announce() {
	p.send(availabilityTopic(p.prefix), true, []byte("online"))
}

// Tick publishes the state when the interval has elapsed. It runs on the
// session loop and never waits for the broker.
func (p *Publisher) Tick(nowMs int64) {
	if p.published && nowMs-p.lastPublish < p.intervalMs {
		return
	}
	p.lastPublish = nowMs
	p.published = true
	p.PublishState()
}

func (p *Publisher) PublishState() {
	st := p.state.Snapshot()
	p.publishJSON(p.topic("state"), true, StatePayload{
		Phase:      st.Phase(),
		StatusText: printer.StatusText(st.PrintStatus),
		Printer:    st,
		Sensor:     p.sensor.Snapshot(),
	})
}

// PublishFault announces one filament fault.
func (p *Publisher) PublishFault(f filament.Fault) {
	p.publishJSON(p.topic("fault"), false, f)
}

// SubscribeCommands routes JSON control requests on <prefix>/command to cmd.
func (p *Publisher) SubscribeCommands(cmd Commander) error {
	token := p.client.Subscribe(p.topic("command"), p.qos, func(_ mqtt.Client, msg mqtt.Message) {
		p.handleCommand(cmd, msg)
	})
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("mqtt subscribe timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe: %w", err)
	}
	p.log.Info("Subscribed to MQTT commands", zap.String("topic", p.topic("command")))
	return nil
}

func (p *Publisher) handleCommand(cmd Commander, msg mqtt.Message) {
	var req control.Request
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		p.log.Warn("Ignoring malformed MQTT command", zap.String("topic", msg.Topic()), zap.Error(err))
		p.publishJSON(p.topic("command/result"), false, CommandResult{Success: false, Message: "Invalid JSON"})
		return
	}

	result := CommandResult{Action: req.Action, Success: true}
	message, err := cmd.Execute(req)
	if err != nil {
		p.log.Warn("MQTT command failed", zap.String("action", req.Action), zap.Error(err))
		result.Success = false
		result.Message = err.Error()
	} else {
		result.Message = message
	}
	p.publishJSON(p.topic("command/result"), false, result)
}

func (p *Publisher) publishJSON(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Error("Failed to encode MQTT payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	p.send(topic, retained, payload)
}

func (p *Publisher) send(topic string, retained bool, payload []byte) {
	token := p.client.Publish(topic, p.qos, retained, payload)
	go func() {
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			p.log.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}()
}

// Close marks the service offline and disconnects.
func (p *Publisher) Close() {
	token := p.client.Publish(availabilityTopic(p.prefix), p.qos, true, []byte("offline"))
	token.WaitTimeout(publishTimeout)
	p.client.Disconnect(250)
}
