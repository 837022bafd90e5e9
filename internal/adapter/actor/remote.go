package actor

import (
	"fmt"
	"time"

	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
	"pack2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	remoteOpTimeout    = 10 * time.Second
	remotePushAttempts = 3
	remotePushBackoff  = 1 * time.Second
)

// RemoteActor executes remote session operations off the actor goroutine and
// turns session callbacks into typed events for its parent. Session lifetime
// (init and deinit) is driven by the sync actor, not by this actor's own
// lifecycle.
type RemoteActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	session  port.RemoteSession
	logger   *zap.Logger

	sessionUp bool
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewRemoteActor(session port.RemoteSession, logger *zap.Logger) *RemoteActor {
	act := &RemoteActor{
		session:  session,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_REMOTE, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *RemoteActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *RemoteActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("remote@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_REMOTE,
			Healthy: true,
			State:   state.stateName(),
		})
	case domain.InitSessionRequest:
		state.logger.Debug("remote@default: InitSessionRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		callbacks := state.sessionCallbacks(ctx)

		actorutil.NewBackgroundTask(ctx, func() (*backgroundTaskResult, error) {
			deviceKey, err := state.session.Init(callbacks, remoteOpTimeout)
			return &backgroundTaskResult{
				message: domain.InitSessionResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					DeviceKey: deviceKey,
				},
				replyTo: sender,
			}, nil
		}).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.InitSessionResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(remoteOpTimeout + time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingSession)
	case domain.DeinitSessionRequest:
		state.logger.Debug("remote@default: DeinitSessionRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.NewBackgroundTask(ctx, func() (*backgroundTaskResult, error) {
			state.session.Deinit(remoteOpTimeout)
			return &backgroundTaskResult{
				message: domain.DeinitSessionResponse{},
				replyTo: sender,
			}, nil
		}).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.DeinitSessionResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(remoteOpTimeout + time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingSession)
	case domain.MaintainAuthRequest:
		state.logger.Debug("remote@default: MaintainAuthRequest")
		state.runSessionTask(ctx, msg, func() error {
			return state.session.MaintainAuth(remoteOpTimeout)
		}, func(err error) any {
			return domain.MaintainAuthResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case domain.PublishStatusRequest:
		state.logger.Debug("remote@default: PublishStatusRequest")
		state.runSessionTask(ctx, msg, func() error {
			return actorutil.Retry(remotePushAttempts, remotePushBackoff, func() error {
				return state.session.PublishStatus(msg.Payload, remoteOpTimeout)
			})
		}, func(err error) any {
			return domain.PublishStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case domain.PushHistoryRequest:
		state.logger.Debug("remote@default: PushHistoryRequest")
		state.runSessionTask(ctx, msg, func() error {
			return actorutil.Retry(remotePushAttempts, remotePushBackoff, func() error {
				return state.session.PushHistory(msg.Record, remoteOpTimeout)
			})
		}, func(err error) any {
			return domain.PushHistoryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case domain.SetCommandStatusRequest:
		state.logger.Debug("remote@default: SetCommandStatusRequest", zap.String("id", msg.ID))
		state.runSessionTask(ctx, msg, func() error {
			return state.session.SetCommandStatus(msg.ID, msg.Update, remoteOpTimeout)
		}, func(err error) any {
			return domain.SetCommandStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case domain.PublishAlertRequest:
		state.logger.Debug("remote@default: PublishAlertRequest")
		state.runSessionTask(ctx, msg, func() error {
			return state.session.PublishAlert(msg.Message, msg.Critical, msg.Timestamp, remoteOpTimeout)
		}, func(err error) any {
			return domain.PublishAlertResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case *actor.Restarting:
		state.closeSession()
	case *actor.Stopping:
		state.closeSession()
	default:
		state.logger.Debug("remote@default: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// WaitingSession serializes session operations: one background call at a
// time, everything else queues.
func (state *RemoteActor) WaitingSession(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("remote@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		state.trackSession(msg.message)
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.closeSession()
	default:
		state.logger.Debug("remote@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// runSessionTask runs a fire-style session call in the background and pipes
// the mapped response back to the requester.
func (state *RemoteActor) runSessionTask(ctx actor.Context, msg domain.ActorRequest, call func() error, toResponse func(error) any) {
	sender := actorutil.ForRequest(msg).ReplyTo(ctx)

	actorutil.NewBackgroundTask(ctx, func() (*backgroundTaskResult, error) {
		err := call()
		return &backgroundTaskResult{
			message: toResponse(err),
			replyTo: sender,
		}, nil
	}).Recover(func(err error) backgroundTaskResult {
		return backgroundTaskResult{
			message: toResponse(err),
			replyTo: sender,
		}
	}).WithTimeout(remoteOpTimeout + remotePushAttempts*(remoteOpTimeout+remotePushBackoff)).PipeTo(ctx.Self())
	state.behavior.BecomeStacked(state.WaitingSession)
}

func (state *RemoteActor) sessionCallbacks(ctx actor.Context) port.RemoteCallbacks {
	// callbacks fire on transport goroutines; deliver through the root
	// context to keep the actor mailbox as the only entry point
	root := ctx.ActorSystem().Root
	parent := ctx.Parent()
	return port.RemoteCallbacks{
		OnConfig: func(payload domain.ConfigPayload) {
			root.Send(parent, domain.RemoteConfigChangedEvent{Payload: payload})
		},
		OnCommands: func(commands map[string]domain.CommandEntry) {
			root.Send(parent, domain.RemoteCommandsChangedEvent{Commands: commands})
		},
		OnConnectionLost: func(err error) {
			root.Send(parent, domain.RemoteSessionLostEvent{Error: err})
		},
	}
}

func (state *RemoteActor) trackSession(message any) {
	switch msg := message.(type) {
	case domain.InitSessionResponse:
		state.sessionUp = !msg.HasResponseError()
	case domain.DeinitSessionResponse:
		state.sessionUp = false
	}
}

func (state *RemoteActor) stateName() string {
	if state.sessionUp {
		return "sessionUp"
	}
	return "sessionDown"
}

func (state *RemoteActor) closeSession() {
	if state.sessionUp {
		state.logger.Debug("remote: deinit session")
		state.session.Deinit(2 * time.Second)
		state.sessionUp = false
	}
}
