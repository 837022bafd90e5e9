package domain

type CommandStatus string

const (
	CommandStatusPending   CommandStatus = "pending"
	CommandStatusReceived  CommandStatus = "received"
	CommandStatusCompleted CommandStatus = "completed"
	CommandStatusFailed    CommandStatus = "failed"
)

const (
	CommandTypePower     = "power"
	CommandTypeBalancing = "balancing"
	CommandTypeRestart   = "restart"
)

// CommandEntry is one remote-assigned command. The key in the remote command
// set is carried in ID and is not part of the wire value.
type CommandEntry struct {
	ID     string        `json:"-"`
	Type   string        `json:"type"`
	Value  string        `json:"value,omitempty"`
	Status CommandStatus `json:"status"`
	Result string        `json:"result,omitempty"`
}

// CommandStatusUpdate is written back to the remote store keyed by command id.
type CommandStatusUpdate struct {
	Status      CommandStatus `json:"status"`
	ReceivedAt  int64         `json:"receivedAt,omitempty"`
	CompletedAt int64         `json:"completedAt,omitempty"`
	Result      string        `json:"result,omitempty"`
}

// ConfigPayload is an already-parsed remote config document. JSON numbers
// arrive as float64.
type ConfigPayload map[string]any
