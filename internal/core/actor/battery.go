package actor

import (
	"fmt"
	"math/rand/v2"
	"time"

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

const batterySimTickInterval = 1 * time.Second

// BatteryActor owns the pack engine. It ticks the simulation, evaluates
// alerts and publishes pack events on the event stream.
type BatteryActor struct {
	ActorWithStates
	scheduler   *scheduler.TimerScheduler
	stash       *Stash
	params      *params.Handle
	sampler     port.CellSampler
	rng         *rand.Rand
	eventStream *eventstream.EventStream
	evaluator   *service.AlertEvaluator
	balancing   *service.BalancingPolicy

	pack       *service.Pack
	powered    bool
	lastStatus string

	logger *zap.Logger
}

type batterySimTick struct {
}

func NewBatteryActor(handle *params.Handle, sampler port.CellSampler, rng *rand.Rand,
	eventStream *eventstream.EventStream, logger *zap.Logger) *BatteryActor {
	act := &BatteryActor{
		params:      handle,
		sampler:     sampler,
		rng:         rng,
		eventStream: eventStream,
		evaluator:   service.NewAlertEvaluator(logger),
		balancing:   &service.BalancingPolicy{Logger: logger},
		stash:       &Stash{},
		powered:     true,
		logger:      ActorLogger(domain.ACTOR_ID_BATTERY, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(BatteryStartingState{
		actor: act,
	})
	return act
}

func (state *BatteryActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type BatteryStartingState struct {
	ActorState
	actor *BatteryActor
}

func (state BatteryStartingState) Name() string {
	return "starting"
}

func (state BatteryStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("battery@starting started")

		cellCount := state.actor.params.Params().CellCount
		pack, err := service.NewPack(state.actor.sampler, state.actor.rng, cellCount)
		if err != nil {
			state.actor.logger.Error("battery@starting pack init error", zap.Error(err))
			panic(err)
		}
		state.actor.pack = pack
		state.actor.lastStatus = pack.Snapshot().Pack.Status

		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.scheduler.SendRepeatedly(batterySimTickInterval, batterySimTickInterval, ctx.Self(), batterySimTick{})

		state.actor.Become(BatteryRunningState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("battery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type BatteryRunningState struct {
	ActorState
	actor *BatteryActor
}

func (state BatteryRunningState) Name() string {
	return "running"
}

func (state BatteryRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case batterySimTick:
		if !state.actor.powered {
			return
		}
		state.actor.pack.Update()
		state.actor.afterTick()
	case domain.GetPackSnapshotRequest:
		state.actor.logger.Debug("battery@running: GetPackSnapshotRequest")
		ctx.Respond(domain.GetPackSnapshotResponse{
			Snapshot: state.actor.pack.Snapshot(),
			Powered:  state.actor.powered,
		})
	case domain.ReconfigurePackRequest:
		state.actor.logger.Debug("battery@running: ReconfigurePackRequest", zap.Uint16("cellCount", msg.CellCount))
		err := state.actor.pack.Reconfigure(msg.CellCount)
		ctx.Respond(domain.ReconfigurePackResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
			CellCount: state.actor.pack.CellCount(),
		})
	case domain.SetPowerRequest:
		state.actor.logger.Info("battery@running: SetPowerRequest", zap.Bool("on", msg.On))
		state.actor.powered = msg.On
		if !msg.On {
			state.actor.pack.ForceStatus(domain.PackStatusIdle)
		}
		ctx.Respond(domain.SetPowerResponse{})
	case domain.SetBalancingRequest:
		state.actor.logger.Info("battery@running: SetBalancingRequest", zap.Bool("start", msg.Start))
		if msg.Start {
			state.actor.pack.ForceStatus(domain.PackStatusBalancing)
		} else {
			state.actor.pack.ForceStatus(domain.PackStatusIdle)
		}
		ctx.Respond(domain.SetBalancingResponse{})
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("battery@running: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BATTERY,
			Healthy: true,
			State:   state.Name(),
		})
	default:
		state.actor.logger.Debug("battery@running: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// afterTick publishes derived events for the snapshot produced by the last
// update.
func (state *BatteryActor) afterTick() {
	snap := state.pack.Snapshot()
	deviceParams := state.params.Params()

	if snap.Pack.Status != state.lastStatus {
		state.eventStream.Publish(&domain.PackStatusChangedEvent{
			Previous: state.lastStatus,
			Current:  snap.Pack.Status,
		})
		state.lastStatus = snap.Pack.Status
	}

	report := state.evaluator.Evaluate(snap, deviceParams)
	if report.Evaluated && len(report.Alerts) > 0 {
		// every check records its message, the last one sticks as lastError
		state.params.RecordAlert(report.Alerts[len(report.Alerts)-1])
		now := time.Now()
		for _, alert := range report.Alerts {
			state.eventStream.Publish(events.NewAlertRaisedEvent(alert, report.ShutdownIntent, now))
		}
	}

	if start, spread := state.balancing.ShouldStart(snap, deviceParams); start && snap.Pack.Status != domain.PackStatusBalancing.String() {
		state.eventStream.Publish(&domain.BalancingRecommendedEvent{
			Spread:    spread,
			Threshold: deviceParams.BalancingThreshold,
		})
	}
}
