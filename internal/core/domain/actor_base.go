package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorRef aliases the runtime PID so message types stay free of a direct
// protoactor dependency at their use sites.
type ActorRef actor.PID

// ActorRequestMixIn carries an optional explicit reply target. When unset,
// responders fall back to the context sender.
type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

// ActorResponseMixIn folds an error into a response message so request and
// failure travel on the same channel.
type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}
