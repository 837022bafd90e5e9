package actor

import (
	"fmt"
	"time"

	"pack2mqtt/internal/config"
	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/events"
	"pack2mqtt/internal/core/port"
	"pack2mqtt/internal/core/service"
	"pack2mqtt/internal/params"
	. "pack2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	syncTickInterval         = 1 * time.Second
	defaultTelemetryInterval = 5 * time.Second
	historyPushInterval      = 1 * time.Hour
	paramsRefreshInterval    = 10 * time.Second
	defaultAuthCheckInterval = 60 * time.Second

	maxConsecutiveAuthFailures = 3

	snapshotRequestTimeout = 2 * time.Second
	initRequestTimeout     = 15 * time.Second
	publishRequestTimeout  = 45 * time.Second
	controlRequestTimeout  = 2 * time.Second
	commandAckTimeout      = 15 * time.Second
)

// syncCadence tracks when each periodic duty last ran. Every duty is checked
// against the shared one second tick instead of owning its own timer.
type syncCadence struct {
	telemetryEvery time.Duration
	historyEvery   time.Duration
	paramsEvery    time.Duration
	authEvery      time.Duration

	lastTelemetry time.Time
	lastHistory   time.Time
	lastParams    time.Time
	lastAuth      time.Time
}

func (c *syncCadence) dueTelemetry(now time.Time) bool {
	if now.Sub(c.lastTelemetry) >= c.telemetryEvery {
		c.lastTelemetry = now
		return true
	}
	return false
}

func (c *syncCadence) dueHistory(now time.Time) bool {
	if now.Sub(c.lastHistory) >= c.historyEvery {
		c.lastHistory = now
		return true
	}
	return false
}

func (c *syncCadence) dueParams(now time.Time) bool {
	if now.Sub(c.lastParams) >= c.paramsEvery {
		c.lastParams = now
		return true
	}
	return false
}

func (c *syncCadence) dueAuth(now time.Time) bool {
	if now.Sub(c.lastAuth) >= c.authEvery {
		c.lastAuth = now
		return true
	}
	return false
}

func (c *syncCadence) reset(now time.Time) {
	c.lastTelemetry = now
	c.lastHistory = now
	c.lastParams = now
	c.lastAuth = now
}

// SyncActor owns the remote session lifecycle. It connects when the network
// is up, pushes telemetry and history on their cadences, keeps the session
// authenticated and reconciles inbound config and command documents.
type SyncActor struct {
	ActorWithStates
	scheduler    *scheduler.TimerScheduler
	stash        *Stash
	config       *config.Config
	params       *params.Handle
	connectivity port.ConnectivityMonitor
	process      port.ProcessController
	batteryActor *actor.PID
	remoteActor  *actor.PID
	eventStream  *eventstream.EventStream
	reconciler   *service.Reconciler

	deviceKey    string
	authFailures int
	cadence      syncCadence
	eventSub     *eventstream.Subscription

	logger *zap.Logger
}

type syncTick struct {
}

func NewSyncActor(cfg *config.Config, handle *params.Handle, connectivity port.ConnectivityMonitor,
	process port.ProcessController, batteryActor, remoteActor *actor.PID,
	eventStream *eventstream.EventStream, logger *zap.Logger) *SyncActor {
	act := &SyncActor{
		config:       cfg,
		params:       handle,
		connectivity: connectivity,
		process:      process,
		batteryActor: batteryActor,
		remoteActor:  remoteActor,
		eventStream:  eventStream,
		stash:        &Stash{},
		logger:       ActorLogger(domain.ACTOR_ID_SYNC, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(SyncStartingState{
		actor: act,
	})
	return act
}

func (state *SyncActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type SyncStartingState struct {
	ActorState
	actor *SyncActor
}

func (state SyncStartingState) Name() string {
	return "starting"
}

func (state SyncStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("sync@starting started")

		root := ctx.ActorSystem().Root
		state.actor.reconciler = service.NewReconciler(
			state.actor.params,
			newBatteryDeviceControl(root, state.actor.batteryActor, controlRequestTimeout),
			state.actor.process,
			newRemoteCommandSink(root, state.actor.remoteActor, commandAckTimeout),
			state.actor.logger,
		)

		state.actor.cadence = syncCadence{
			telemetryEvery: state.actor.telemetryInterval(),
			historyEvery:   historyPushInterval,
			paramsEvery:    paramsRefreshInterval,
			authEvery:      state.actor.authCheckInterval(),
		}

		// pack events are published from the battery actor goroutine,
		// route them through the mailbox
		self := ctx.Self()
		state.actor.eventSub = state.actor.eventStream.Subscribe(func(evt any) {
			switch evt.(type) {
			case *domain.AlertRaisedEvent, *domain.BalancingRecommendedEvent, *domain.PackStatusChangedEvent:
				root.Send(self, evt)
			}
		})

		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.scheduler.SendRepeatedly(syncTickInterval, syncTickInterval, ctx.Self(), syncTick{})

		state.actor.Become(SyncDisconnectedState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.actor.unsubscribe()
	default:
		state.actor.logger.Debug("sync@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Disconnected state

type SyncDisconnectedState struct {
	ActorState
	actor *SyncActor
}

func (state SyncDisconnectedState) Name() string {
	return "disconnected"
}

func (state SyncDisconnectedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case syncTick:
		connected := state.actor.connectivity.IsConnected()
		state.actor.trackWifiState(connected)
		if connected {
			state.actor.Become(SyncConnectingState{
				actor: state.actor,
			}.OnEnterAction(ctx))
		}
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("sync@disconnected: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SYNC,
			Healthy: true,
			State:   state.Name(),
		})
	case *domain.AlertRaisedEvent:
		// nothing to deliver them to while offline
		state.actor.logger.Debug("sync@disconnected: dropping alert", zap.String("message", msg.Message))
	case *actor.Restarting:
		state.actor.unsubscribe()
	case *actor.Stopping:
		state.actor.unsubscribe()
	case domain.DeinitSessionResponse:
	default:
		state.actor.logger.Debug("sync@disconnected: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Connecting state

type SyncConnectingState struct {
	ActorState
	actor *SyncActor
}

func (state SyncConnectingState) Name() string {
	return "connecting"
}

func (state SyncConnectingState) OnEnterAction(ctx actor.Context) SyncConnectingState {
	state.actor.logger.Info("sync@connecting: initializing remote session")
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.remoteActor, domain.InitSessionRequest{}, initRequestTimeout),
		func(err error) any {
			return domain.InitSessionResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	return state
}

func (state SyncConnectingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.InitSessionResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("sync@connecting: session init failed", zap.Error(msg.GetResponseError()))
			state.actor.params.IncrementCounter(params.CounterConnectFail)
			state.actor.params.SetLastError(msg.GetResponseError().Error())
			state.actor.Become(SyncDisconnectedState{
				actor: state.actor,
			})
		} else {
			state.actor.logger.Info("sync@connecting: session established", zap.String("deviceKey", msg.DeviceKey))
			state.actor.deviceKey = msg.DeviceKey
			state.actor.authFailures = 0
			state.actor.params.IncrementCounter(params.CounterConnect)
			state.actor.trackRemoteState(true)
			state.actor.cadence.reset(time.Now())
			state.actor.Become(SyncConnectedState{
				actor: state.actor,
			})
		}
		state.actor.stash.UnstashAll(ctx)
	case syncTick:
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SYNC,
			Healthy: true,
			State:   state.Name(),
		})
	case *actor.Restarting:
		state.actor.unsubscribe()
	case *actor.Stopping:
		state.actor.unsubscribe()
	default:
		state.actor.logger.Debug("sync@connecting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Connected state

type SyncConnectedState struct {
	ActorState
	actor *SyncActor
}

func (state SyncConnectedState) Name() string {
	return "connected"
}

func (state SyncConnectedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case syncTick:
		state.onTick(ctx)
	case domain.GetPackSnapshotResponse:
		state.onSnapshot(ctx, msg)
	case domain.PublishStatusResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("sync@connected: status publish failed", zap.Error(msg.GetResponseError()))
			state.actor.params.SetLastError(msg.GetResponseError().Error())
		} else {
			state.actor.params.IncrementCounter(params.CounterDataPoint)
		}
	case domain.PushHistoryResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("sync@connected: history push failed", zap.Error(msg.GetResponseError()))
		}
	case domain.MaintainAuthResponse:
		state.onAuthResult(ctx, msg)
	case domain.ReconfigurePackResponse:
		state.onReconfigureResult(msg)
	case domain.RemoteConfigChangedEvent:
		state.actor.logger.Info("sync@connected: remote config changed")
		if changed, err := state.actor.reconciler.ApplyConfig(msg.Payload); err == nil && changed {
			// a new cell count is picked up by the periodic params check;
			// only the telemetry cadence follows immediately
			state.actor.cadence.telemetryEvery = state.actor.telemetryInterval()
		}
	case domain.RemoteCommandsChangedEvent:
		state.actor.logger.Info("sync@connected: remote commands changed", zap.Int("count", len(msg.Commands)))
		state.actor.reconciler.ApplyCommands(msg.Commands)
	case domain.RemoteSessionLostEvent:
		state.actor.logger.Warn("sync@connected: remote session lost", zap.Error(msg.Error))
		state.actor.trackRemoteState(false)
		state.actor.Become(SyncDisconnectedState{
			actor: state.actor,
		})
	case *domain.AlertRaisedEvent:
		ctx.Request(state.actor.remoteActor, domain.PublishAlertRequest{
			Message:   msg.Message,
			Critical:  msg.Critical,
			Timestamp: msg.Timestamp,
		})
	case domain.PublishAlertResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("sync@connected: alert publish failed", zap.Error(msg.GetResponseError()))
		}
	case *domain.BalancingRecommendedEvent:
		state.actor.logger.Info("sync@connected: starting balancing cycle",
			zap.Float64("spread", msg.Spread), zap.Float64("threshold", msg.Threshold))
		ctx.Request(state.actor.batteryActor, domain.SetBalancingRequest{Start: true})
	case domain.SetBalancingResponse:
	case *domain.PackStatusChangedEvent:
		state.actor.logger.Debug("sync@connected: pack status changed",
			zap.String("previous", msg.Previous), zap.String("current", msg.Current))
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("sync@connected: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SYNC,
			Healthy: true,
			State:   state.Name(),
		})
	case *actor.Restarting:
		state.actor.unsubscribe()
	case *actor.Stopping:
		state.actor.unsubscribe()
	default:
		state.actor.logger.Debug("sync@connected: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state SyncConnectedState) onTick(ctx actor.Context) {
	connected := state.actor.connectivity.IsConnected()
	state.actor.trackWifiState(connected)
	if !connected {
		state.actor.logger.Warn("sync@connected: network down, closing remote session")
		state.disconnect(ctx)
		return
	}

	now := time.Now()
	if state.actor.cadence.dueParams(now) {
		state.actor.applyParams(ctx)
	}
	if state.actor.cadence.dueAuth(now) {
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.remoteActor, domain.MaintainAuthRequest{}, initRequestTimeout),
			func(err error) any {
				return domain.MaintainAuthResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
	}
	if state.actor.cadence.dueTelemetry(now) {
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.batteryActor, domain.GetPackSnapshotRequest{}, snapshotRequestTimeout),
			func(err error) any {
				return domain.GetPackSnapshotResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
	}
}

func (state SyncConnectedState) onSnapshot(ctx actor.Context, msg domain.GetPackSnapshotResponse) {
	if msg.HasResponseError() {
		state.actor.logger.Error("sync@connected: snapshot request failed", zap.Error(msg.GetResponseError()))
		return
	}
	now := time.Now()
	deviceParams := state.actor.params.Params()

	payload := events.SnapshotToStatusPayload(msg.Snapshot, deviceParams, now)
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.remoteActor,
		domain.PublishStatusRequest{Payload: payload}, publishRequestTimeout),
		func(err error) any {
			return domain.PublishStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})

	if state.actor.cadence.dueHistory(now) {
		record := events.SnapshotToHistoryRecord(msg.Snapshot, now)
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.remoteActor,
			domain.PushHistoryRequest{Record: record}, publishRequestTimeout),
			func(err error) any {
				return domain.PushHistoryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
	}
}

func (state SyncConnectedState) onAuthResult(ctx actor.Context, msg domain.MaintainAuthResponse) {
	if !msg.HasResponseError() {
		state.actor.authFailures = 0
		return
	}
	state.actor.authFailures++
	state.actor.logger.Warn("sync@connected: auth maintenance failed",
		zap.Error(msg.GetResponseError()), zap.Int("consecutive", state.actor.authFailures))
	if state.actor.authFailures >= maxConsecutiveAuthFailures {
		state.actor.logger.Error("sync@connected: too many auth failures, forcing reconnect")
		state.actor.params.SetLastError(msg.GetResponseError().Error())
		state.disconnect(ctx)
	}
}

func (state SyncConnectedState) onReconfigureResult(msg domain.ReconfigurePackResponse) {
	if !msg.HasResponseError() {
		return
	}
	state.actor.logger.Error("sync@connected: pack reconfigure rejected, reverting stored cell count",
		zap.Error(msg.GetResponseError()), zap.Uint16("actual", msg.CellCount))
	if _, err := state.actor.params.UpdateParams(func(p *domain.DeviceParams) {
		p.CellCount = msg.CellCount
	}); err != nil {
		state.actor.logger.Error("sync@connected: could not revert cell count", zap.Error(err))
	}
}

func (state SyncConnectedState) disconnect(ctx actor.Context) {
	state.actor.authFailures = 0
	state.actor.trackRemoteState(false)
	ctx.Request(state.actor.remoteActor, domain.DeinitSessionRequest{})
	state.actor.Become(SyncDisconnectedState{
		actor: state.actor,
	})
}

// Helpers on the actor

// applyParams folds the current device params into the running cadence and
// asks the battery actor to match the configured cell count.
func (a *SyncActor) applyParams(ctx actor.Context) {
	deviceParams := a.params.Params()
	a.cadence.telemetryEvery = a.telemetryInterval()

	PipeToSelfWithRecover(ctx, ctx.RequestFuture(a.batteryActor,
		domain.ReconfigurePackRequest{CellCount: deviceParams.CellCount}, controlRequestTimeout),
		func(err error) any {
			return domain.ReconfigurePackResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
				CellCount: deviceParams.CellCount,
			}
		})
}

func (a *SyncActor) telemetryInterval() time.Duration {
	seconds := a.params.Params().SampleIntervalSeconds
	if seconds < 1 {
		return defaultTelemetryInterval
	}
	return time.Duration(seconds) * time.Second
}

func (a *SyncActor) authCheckInterval() time.Duration {
	if a.config.Sync.AuthCheckSeconds < 1 {
		return defaultAuthCheckInterval
	}
	return time.Duration(a.config.Sync.AuthCheckSeconds) * time.Second
}

func (a *SyncActor) trackWifiState(connected bool) {
	if err := a.params.UpdateState(func(s *domain.DeviceState) {
		s.WifiConnected = connected
	}); err != nil {
		a.logger.Error("sync: could not persist state", zap.Error(err))
	}
}

func (a *SyncActor) trackRemoteState(connected bool) {
	if err := a.params.UpdateState(func(s *domain.DeviceState) {
		s.RemoteConnected = connected
	}); err != nil {
		a.logger.Error("sync: could not persist state", zap.Error(err))
	}
}

func (a *SyncActor) unsubscribe() {
	if a.eventSub != nil {
		a.eventStream.Unsubscribe(a.eventSub)
		a.eventSub = nil
	}
}
