package mqtt

import (
	"errors"
	"sync"
	"time"

	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
)

// TestRemoteSession is an in-memory RemoteSession double for actor tests.
// Individual operations can be scripted to fail.
type TestRemoteSession struct {
	mu sync.Mutex

	DeviceKey string

	FailInit         bool
	FailMaintainAuth bool
	FailPublish      bool

	InitCalls     int
	DeinitCalls   int
	AuthCalls     int
	StatusPubs    []domain.StatusPayload
	HistoryPushes []domain.HistoryRecord
	CommandAcks   map[string][]domain.CommandStatusUpdate
	Alerts        []string

	callbacks port.RemoteCallbacks
}

func NewTestRemoteSession(deviceKey string) *TestRemoteSession {
	return &TestRemoteSession{
		DeviceKey:   deviceKey,
		CommandAcks: map[string][]domain.CommandStatusUpdate{},
	}
}

func (s *TestRemoteSession) Init(cb port.RemoteCallbacks, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InitCalls++
	if s.FailInit {
		return "", errors.New("init failed")
	}
	s.callbacks = cb
	return s.DeviceKey, nil
}

func (s *TestRemoteSession) Deinit(_ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeinitCalls++
	s.callbacks = port.RemoteCallbacks{}
}

func (s *TestRemoteSession) MaintainAuth(_ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AuthCalls++
	if s.FailMaintainAuth {
		return errors.New("auth refresh failed")
	}
	return nil
}

func (s *TestRemoteSession) PublishStatus(p domain.StatusPayload, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPublish {
		return errors.New("publish failed")
	}
	s.StatusPubs = append(s.StatusPubs, p)
	return nil
}

func (s *TestRemoteSession) PushHistory(r domain.HistoryRecord, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPublish {
		return errors.New("publish failed")
	}
	s.HistoryPushes = append(s.HistoryPushes, r)
	return nil
}

func (s *TestRemoteSession) SetCommandStatus(id string, u domain.CommandStatusUpdate, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPublish {
		return errors.New("publish failed")
	}
	s.CommandAcks[id] = append(s.CommandAcks[id], u)
	return nil
}

func (s *TestRemoteSession) PublishAlert(message string, _ bool, _ int64, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPublish {
		return errors.New("publish failed")
	}
	s.Alerts = append(s.Alerts, message)
	return nil
}

// DeliverConfig injects a remote config change as if it arrived on the wire.
func (s *TestRemoteSession) DeliverConfig(payload domain.ConfigPayload) {
	s.mu.Lock()
	cb := s.callbacks.OnConfig
	s.mu.Unlock()
	if cb != nil {
		cb(payload)
	}
}

// DeliverCommands injects a remote command set change.
func (s *TestRemoteSession) DeliverCommands(commands map[string]domain.CommandEntry) {
	s.mu.Lock()
	cb := s.callbacks.OnCommands
	s.mu.Unlock()
	if cb != nil {
		cb(commands)
	}
}

// DropConnection simulates a broker-side disconnect.
func (s *TestRemoteSession) DropConnection(err error) {
	s.mu.Lock()
	cb := s.callbacks.OnConnectionLost
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// StatusCount returns the number of published status documents.
func (s *TestRemoteSession) StatusCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.StatusPubs)
}

var _ port.RemoteSession = (*TestRemoteSession)(nil)
