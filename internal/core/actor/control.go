package actor

import (
	"time"

	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
)

// batteryDeviceControl satisfies the reconciler's control port with bounded
// request/response calls into the battery actor. Safe to call from any
// goroutine except the battery actor's own.
type batteryDeviceControl struct {
	root    *actor.RootContext
	battery *actor.PID
	timeout time.Duration
}

func newBatteryDeviceControl(root *actor.RootContext, battery *actor.PID, timeout time.Duration) *batteryDeviceControl {
	return &batteryDeviceControl{
		root:    root,
		battery: battery,
		timeout: timeout,
	}
}

func (c *batteryDeviceControl) SetPower(on bool) error {
	result, err := c.root.RequestFuture(c.battery, domain.SetPowerRequest{On: on}, c.timeout).Result()
	if err != nil {
		return err
	}
	if resp, ok := result.(domain.SetPowerResponse); ok && resp.HasResponseError() {
		return resp.GetResponseError()
	}
	return nil
}

func (c *batteryDeviceControl) SetBalancing(start bool) error {
	result, err := c.root.RequestFuture(c.battery, domain.SetBalancingRequest{Start: start}, c.timeout).Result()
	if err != nil {
		return err
	}
	if resp, ok := result.(domain.SetBalancingResponse); ok && resp.HasResponseError() {
		return resp.GetResponseError()
	}
	return nil
}

var _ port.DeviceControl = (*batteryDeviceControl)(nil)

// remoteCommandSink records command acknowledgements through the remote
// adapter actor.
type remoteCommandSink struct {
	root    *actor.RootContext
	remote  *actor.PID
	timeout time.Duration
}

func newRemoteCommandSink(root *actor.RootContext, remote *actor.PID, timeout time.Duration) *remoteCommandSink {
	return &remoteCommandSink{
		root:    root,
		remote:  remote,
		timeout: timeout,
	}
}

func (s *remoteCommandSink) SetCommandStatus(id string, u domain.CommandStatusUpdate) error {
	result, err := s.root.RequestFuture(s.remote, domain.SetCommandStatusRequest{
		ID:     id,
		Update: u,
	}, s.timeout).Result()
	if err != nil {
		return err
	}
	if resp, ok := result.(domain.SetCommandStatusResponse); ok && resp.HasResponseError() {
		return resp.GetResponseError()
	}
	return nil
}

var _ port.CommandSink = (*remoteCommandSink)(nil)
