package port

import "pack2mqtt/internal/core/domain"

// ProcessController restarts the agent process. Irreversible; only invoked
// after the triggering command has been acknowledged as completed.
type ProcessController interface {
	Restart()
}

// ConnectivityMonitor exposes the network association state maintained by an
// external component. The core only reads it.
type ConnectivityMonitor interface {
	IsConnected() bool
}

// DeviceControl is the narrow surface the reconciler uses to act on the
// battery engine.
type DeviceControl interface {
	SetPower(on bool) error
	SetBalancing(start bool) error
}

// CommandSink records command status transitions in the remote store.
type CommandSink interface {
	SetCommandStatus(id string, u domain.CommandStatusUpdate) error
}
