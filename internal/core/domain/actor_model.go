package domain

const (
	ACTOR_ID_MASTER  = "master"
	ACTOR_ID_BATTERY = "battery"
	ACTOR_ID_SYNC    = "sync"
	ACTOR_ID_REMOTE  = "remote"
)

// Battery actor messages

type GetPackSnapshotRequest struct {
	ActorRequestMixIn
}

type GetPackSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot PackSnapshot
	Powered  bool
}

type ReconfigurePackRequest struct {
	ActorRequestMixIn
	CellCount uint16
}

type ReconfigurePackResponse struct {
	ActorResponseMixIn
	CellCount uint16
}

type SetPowerRequest struct {
	ActorRequestMixIn
	On bool
}

type SetPowerResponse struct {
	ActorResponseMixIn
}

type SetBalancingRequest struct {
	ActorRequestMixIn
	Start bool
}

type SetBalancingResponse struct {
	ActorResponseMixIn
}

// Remote adapter messages

type InitSessionRequest struct {
	ActorRequestMixIn
}

type InitSessionResponse struct {
	ActorResponseMixIn
	DeviceKey string
}

type DeinitSessionRequest struct {
	ActorRequestMixIn
}

type DeinitSessionResponse struct {
	ActorResponseMixIn
}

type MaintainAuthRequest struct {
	ActorRequestMixIn
}

type MaintainAuthResponse struct {
	ActorResponseMixIn
}

type PublishStatusRequest struct {
	ActorRequestMixIn
	Payload StatusPayload
}

type PublishStatusResponse struct {
	ActorResponseMixIn
}

type PushHistoryRequest struct {
	ActorRequestMixIn
	Record HistoryRecord
}

type PushHistoryResponse struct {
	ActorResponseMixIn
}

type SetCommandStatusRequest struct {
	ActorRequestMixIn
	ID     string
	Update CommandStatusUpdate
}

type SetCommandStatusResponse struct {
	ActorResponseMixIn
}

type PublishAlertRequest struct {
	ActorRequestMixIn
	Message   string
	Critical  bool
	Timestamp int64
}

type PublishAlertResponse struct {
	ActorResponseMixIn
}

// Inbound remote events, typed instead of the tag-dispatched callbacks the
// session layer speaks natively.

type RemoteConfigChangedEvent struct {
	Payload ConfigPayload
}

type RemoteCommandsChangedEvent struct {
	Commands map[string]CommandEntry
}

type RemoteSessionLostEvent struct {
	Error error
}

// Health check

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
