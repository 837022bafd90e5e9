package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"pack2mqtt/internal/config"
	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
)

var (
	ErrNotConnected = errors.New("MQTT session not connected")
	ErrTimedOut     = errors.New("MQTT operation timed out")
)

// MQTTSession maps the remote store onto MQTT topics rooted at
// <base>/<deviceKey>. Status and command acknowledgements are retained so the
// remote side always sees the latest document; history and alerts are
// append-style publishes.
type MQTTSession struct {
	client    mqtt.Client
	cfg       config.MQTTConfig
	deviceKey string
	logger    *zap.Logger

	cb port.RemoteCallbacks
}

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("pack2mqtt_%s_%d", cfg.Device.Key, rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = deviceStateTopic(cfg.MQTT.BaseTopic, cfg.Device.Key)
	opts.WillQos = 0
	// reconnects are owned by the sync state machine
	opts.AutoReconnect = false

	return opts
}

func NewMQTTSession(cfg *config.Config, opts *mqtt.ClientOptions, logger *zap.Logger) *MQTTSession {
	s := &MQTTSession{
		cfg:       cfg.MQTT,
		deviceKey: cfg.Device.Key,
		logger:    logger,
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		if s.cb.OnConnectionLost != nil {
			s.cb.OnConnectionLost(err)
		}
	}
	s.client = mqtt.NewClient(opts)
	return s
}

func (s *MQTTSession) stateTopic() string {
	return deviceStateTopic(s.cfg.BaseTopic, s.deviceKey)
}

func (s *MQTTSession) statusTopic() string {
	return fmt.Sprintf("%s/%s/status", s.cfg.BaseTopic, s.deviceKey)
}

func (s *MQTTSession) historyTopic() string {
	return fmt.Sprintf("%s/%s/history", s.cfg.BaseTopic, s.deviceKey)
}

func (s *MQTTSession) alertTopic() string {
	return fmt.Sprintf("%s/%s/alerts", s.cfg.BaseTopic, s.deviceKey)
}

func (s *MQTTSession) configTopic() string {
	return fmt.Sprintf("%s/%s/config", s.cfg.BaseTopic, s.deviceKey)
}

func (s *MQTTSession) commandsTopic() string {
	return fmt.Sprintf("%s/%s/commands", s.cfg.BaseTopic, s.deviceKey)
}

func (s *MQTTSession) commandStatusTopic(id string) string {
	return fmt.Sprintf("%s/%s/commands/%s/status", s.cfg.BaseTopic, s.deviceKey, id)
}

func deviceStateTopic(baseTopic, deviceKey string) string {
	return fmt.Sprintf("%s/%s/state", baseTopic, deviceKey)
}

func waitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrTimedOut
	}
	return token.Error()
}

// Init connects, subscribes to the retained config and command documents and
// marks the device online.
func (s *MQTTSession) Init(cb port.RemoteCallbacks, timeout time.Duration) (string, error) {
	s.cb = cb

	if err := waitToken(s.client.Connect(), timeout); err != nil {
		return "", fmt.Errorf("MQTT connect: %w", err)
	}
	if err := waitToken(s.client.Subscribe(s.configTopic(), 1, s.handleConfigMessage), timeout); err != nil {
		s.client.Disconnect(uint(timeout.Milliseconds()))
		return "", fmt.Errorf("MQTT subscribe config: %w", err)
	}
	if err := waitToken(s.client.Subscribe(s.commandsTopic(), 1, s.handleCommandsMessage), timeout); err != nil {
		s.client.Disconnect(uint(timeout.Milliseconds()))
		return "", fmt.Errorf("MQTT subscribe commands: %w", err)
	}
	if err := waitToken(s.client.Publish(s.stateTopic(), 0, true, MQTT_PAYLOAD_ONLINE), timeout); err != nil {
		s.client.Disconnect(uint(timeout.Milliseconds()))
		return "", fmt.Errorf("MQTT publish online: %w", err)
	}

	s.logger.Info("remote session established", zap.String("deviceKey", s.deviceKey))
	return s.deviceKey, nil
}

// Deinit marks the device offline and closes the connection. Best effort.
func (s *MQTTSession) Deinit(timeout time.Duration) {
	if s.client.IsConnectionOpen() {
		_ = waitToken(s.client.Publish(s.stateTopic(), 0, true, MQTT_PAYLOAD_OFFLINE), timeout)
	}
	s.client.Disconnect(uint(timeout.Milliseconds()))
	s.logger.Info("remote session closed")
}

// MaintainAuth republishes the online marker so a broker-side retained-state
// wipe heals itself, and reports a dead connection as an error.
func (s *MQTTSession) MaintainAuth(timeout time.Duration) error {
	if !s.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return waitToken(s.client.Publish(s.stateTopic(), 0, true, MQTT_PAYLOAD_ONLINE), timeout)
}

func (s *MQTTSession) publishJSON(topic string, value any, retain bool, timeout time.Duration) error {
	if !s.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return waitToken(s.client.Publish(topic, 1, retain, payload), timeout)
}

func (s *MQTTSession) PublishStatus(p domain.StatusPayload, timeout time.Duration) error {
	return s.publishJSON(s.statusTopic(), p, true, timeout)
}

func (s *MQTTSession) PushHistory(r domain.HistoryRecord, timeout time.Duration) error {
	return s.publishJSON(s.historyTopic(), r, false, timeout)
}

func (s *MQTTSession) SetCommandStatus(id string, u domain.CommandStatusUpdate, timeout time.Duration) error {
	return s.publishJSON(s.commandStatusTopic(id), u, true, timeout)
}

func (s *MQTTSession) PublishAlert(message string, critical bool, ts int64, timeout time.Duration) error {
	return s.publishJSON(s.alertTopic(), alertPayload{
		Message:   message,
		Critical:  critical,
		Timestamp: ts,
	}, false, timeout)
}

type alertPayload struct {
	Message   string `json:"message"`
	Critical  bool   `json:"critical"`
	Timestamp int64  `json:"timestamp"`
}

func (s *MQTTSession) handleConfigMessage(_ mqtt.Client, msg mqtt.Message) {
	payload, err := ParseConfigPayload(msg.Payload())
	if err != nil {
		s.logger.Warn("discarding malformed config document", zap.Error(err))
		return
	}
	if s.cb.OnConfig != nil {
		s.cb.OnConfig(payload)
	}
}

func (s *MQTTSession) handleCommandsMessage(_ mqtt.Client, msg mqtt.Message) {
	commands, err := ParseCommandSet(msg.Payload())
	if err != nil {
		s.logger.Warn("discarding malformed command document", zap.Error(err))
		return
	}
	if s.cb.OnCommands != nil {
		s.cb.OnCommands(commands)
	}
}

// ParseConfigPayload decodes a remote config document. An empty retained
// payload clears the document and yields an empty map.
func ParseConfigPayload(payload []byte) (domain.ConfigPayload, error) {
	if len(payload) == 0 {
		return domain.ConfigPayload{}, nil
	}
	var doc domain.ConfigPayload
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseCommandSet decodes the remote command document keyed by command id.
func ParseCommandSet(payload []byte) (map[string]domain.CommandEntry, error) {
	if len(payload) == 0 {
		return map[string]domain.CommandEntry{}, nil
	}
	var doc map[string]domain.CommandEntry
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	for id, entry := range doc {
		entry.ID = id
		doc[id] = entry
	}
	return doc, nil
}

var _ port.RemoteSession = (*MQTTSession)(nil)
