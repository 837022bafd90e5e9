package netmon

import (
	"sync/atomic"

	"pack2mqtt/internal/core/port"
)

// AlwaysConnected assumes the host network is up. Used when the agent runs on
// a wired host where association tracking does not apply.
type AlwaysConnected struct{}

func (AlwaysConnected) IsConnected() bool {
	return true
}

// Flag is a settable connectivity monitor driven by an external watcher (or a
// test).
type Flag struct {
	connected atomic.Bool
}

func NewFlag(connected bool) *Flag {
	f := &Flag{}
	f.connected.Store(connected)
	return f
}

func (f *Flag) Set(connected bool) {
	f.connected.Store(connected)
}

func (f *Flag) IsConnected() bool {
	return f.connected.Load()
}

var (
	_ port.ConnectivityMonitor = AlwaysConnected{}
	_ port.ConnectivityMonitor = (*Flag)(nil)
)
