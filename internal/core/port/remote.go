package port

import (
	"time"

	"pack2mqtt/internal/core/domain"
)

// RemoteCallbacks deliver inbound remote events with typed payloads.
type RemoteCallbacks struct {
	OnConfig         func(domain.ConfigPayload)
	OnCommands       func(map[string]domain.CommandEntry)
	OnConnectionLost func(error)
}

// RemoteSession is the connection to the remote real-time store. All calls
// are synchronous and may fail transiently; every call is bounded by the
// given timeout.
type RemoteSession interface {
	// Init connects, authenticates and registers the config and command
	// subscriptions. It returns the device key assigned to this session.
	Init(cb RemoteCallbacks, timeout time.Duration) (string, error)
	Deinit(timeout time.Duration)
	// MaintainAuth performs periodic session upkeep (token refresh or
	// connection liveness check).
	MaintainAuth(timeout time.Duration) error

	PublishStatus(p domain.StatusPayload, timeout time.Duration) error
	PushHistory(r domain.HistoryRecord, timeout time.Duration) error
	SetCommandStatus(id string, u domain.CommandStatusUpdate, timeout time.Duration) error
	PublishAlert(message string, critical bool, ts int64, timeout time.Duration) error
}
