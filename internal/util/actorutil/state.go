package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorState is one named behavior of a state-machine actor. The battery and
// sync actors implement their lifecycle phases as ActorState values.
type ActorState interface {
	Name() string
	Receive(actor.Context)
}

// ActorWithStates adapts named states onto a protoactor Behavior stack. Embed
// it and call Become with the next state value.
type ActorWithStates struct {
	Behavior actor.Behavior
}

func (s *ActorWithStates) Become(state ActorState) {
	s.Behavior.Become(state.Receive)
}

func (s *ActorWithStates) BecomeStacked(state ActorState) {
	s.Behavior.BecomeStacked(state.Receive)
}

func (s *ActorWithStates) UnbecomeStacked() {
	s.Behavior.UnbecomeStacked()
}
