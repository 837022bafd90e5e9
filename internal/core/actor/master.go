package actor

import (
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	adactor "pack2mqtt/internal/adapter/actor"
	"pack2mqtt/internal/config"
	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
	"pack2mqtt/internal/params"
	. "pack2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type RemoteActorProvider func() *adactor.RemoteActor

type SamplerProvider func() port.CellSampler

// MasterActor supervises the battery, sync and remote children and routes
// remote events and snapshot requests between them.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	params       *params.Handle
	connectivity port.ConnectivityMonitor
	process      port.ProcessController

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	batteryActor       *actor.PID
	syncActor          *actor.PID
	remoteActor        *actor.PID

	remoteActorProvider RemoteActorProvider
	samplerProvider     SamplerProvider

	logger *zap.Logger
}

type healthCheckResult struct {
	batteryActorHealthy bool
	syncActorHealthy    bool
	remoteActorHealthy  bool
	checksReceived      int
	respondTo           *actor.PID
}

func NewMasterActor(cfg config.Config, handle *params.Handle, connectivity port.ConnectivityMonitor,
	process port.ProcessController, remoteActorProvider RemoteActorProvider,
	samplerProvider SamplerProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:              cfg,
		params:              handle,
		connectivity:        connectivity,
		process:             process,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         &eventstream.EventStream{},
		remoteActorProvider: remoteActorProvider,
		samplerProvider:     samplerProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) EventStream() *eventstream.EventStream {
	return state.eventStream
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		remoteActorPID, err := state.startRemoteActor(ctx)
		if err != nil {
			panic(err)
		}
		state.remoteActor = remoteActorPID

		batteryActorPID, err := state.startBatteryActor(ctx)
		if err != nil {
			panic(err)
		}
		state.batteryActor = batteryActorPID

		syncActorPID, err := state.startSyncActor(ctx)
		if err != nil {
			panic(err)
		}
		state.syncActor = syncActorPID

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.batteryActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_BATTERY,
				Healthy: false,
			}
		})
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.syncActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_SYNC,
				Healthy: false,
			}
		})
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.remoteActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_REMOTE,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.GetPackSnapshotRequest:
		// external surface (HTTP) asks the master, the battery answers
		state.logger.Debug("master@default GetPackSnapshotRequest")
		ctx.Forward(state.batteryActor)
	case domain.RemoteConfigChangedEvent:
		ctx.Send(state.syncActor, msg)
	case domain.RemoteCommandsChangedEvent:
		ctx.Send(state.syncActor, msg)
	case domain.RemoteSessionLostEvent:
		ctx.Send(state.syncActor, msg)
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// a child that does not answer counts as unhealthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_BATTERY:
				state.currentHealthCheck.batteryActorHealthy = true
			case domain.ACTOR_ID_SYNC:
				state.currentHealthCheck.syncActorHealthy = true
			case domain.ACTOR_ID_REMOTE:
				state.currentHealthCheck.remoteActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) startRemoteActor(ctx actor.Context) (*actor.PID, error) {
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	remoteProps := actor.PropsFromProducer(func() actor.Actor {
		return state.remoteActorProvider()
	}, actor.WithSupervisor(supervisor))
	remoteActorPID, err := ctx.SpawnNamed(remoteProps, domain.ACTOR_ID_REMOTE)
	if err != nil {
		return nil, err
	}

	return remoteActorPID, nil
}

func (state *MasterActor) startBatteryActor(ctx actor.Context) (*actor.PID, error) {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	seed := state.config.Battery.SimulationSeed
	if seed == 0 {
		seed = rand.Uint64()
	}
	batteryProps := actor.PropsFromProducer(func() actor.Actor {
		return NewBatteryActor(state.params, state.samplerProvider(),
			rand.New(rand.NewPCG(seed, seed^0x6a09e667f3bcc908)), state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	batteryActorPID, err := ctx.SpawnNamed(batteryProps, domain.ACTOR_ID_BATTERY)
	if err != nil {
		return nil, err
	}

	return batteryActorPID, nil
}

func (state *MasterActor) startSyncActor(ctx actor.Context) (*actor.PID, error) {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	syncProps := actor.PropsFromProducer(func() actor.Actor {
		return NewSyncActor(&state.config, state.params, state.connectivity, state.process,
			state.batteryActor, state.remoteActor, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	syncActorPID, err := ctx.SpawnNamed(syncProps, domain.ACTOR_ID_SYNC)
	if err != nil {
		return nil, err
	}

	return syncActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.batteryActorHealthy = false
	state.syncActorHealthy = false
	state.remoteActorHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 3
}

func (state *healthCheckResult) allHealthy() bool {
	return state.batteryActorHealthy && state.syncActorHealthy && state.remoteActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
