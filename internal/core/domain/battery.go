package domain

type PackStatus int

const (
	PackStatusIdle PackStatus = iota
	PackStatusCharging
	PackStatusDischarging
	PackStatusError
	PackStatusBalancing
)

const PackStatusCount = 5

func (s PackStatus) String() string {
	switch s {
	case PackStatusIdle:
		return "Idle"
	case PackStatusCharging:
		return "Charging"
	case PackStatusDischarging:
		return "Discharging"
	case PackStatusError:
		return "Error"
	case PackStatusBalancing:
		return "Balancing"
	default:
		// unreachable for values produced by the pack engine
		return "Unknown"
	}
}

type CellReading struct {
	ID          uint16  `json:"id"`
	Voltage     float64 `json:"voltage"`
	Temperature float64 `json:"temperature"`
	SOC         uint8   `json:"soc"`
	SOH         uint8   `json:"soh"`
}

type PackMetrics struct {
	TotalVoltage float64 `json:"totalVoltage"`
	Current      float64 `json:"current"`
	Power        float64 `json:"power"`
	Status       string  `json:"status"`
	Uptime       uint32  `json:"uptime"`
}

// PackSnapshot is the serializable view handed to the remote sink. The field
// set round-trips through the remote store's JSON representation.
type PackSnapshot struct {
	Cells []CellReading `json:"cells"`
	Pack  PackMetrics   `json:"pack"`
}

type DeviceInfo struct {
	Name            string `json:"name"`
	Model           string `json:"model"`
	Key             string `json:"key,omitempty"`
	FirmwareVersion string `json:"fw,omitempty"`
}

type StatusPayload struct {
	Device    DeviceInfo    `json:"device"`
	Cells     []CellReading `json:"cells"`
	Pack      PackMetrics   `json:"pack"`
	Timestamp int64         `json:"timestamp"`
}

// HistoryRecord is appended (never overwritten) to the history collection.
type HistoryRecord struct {
	Cells     []CellReading `json:"cells"`
	Pack      PackMetrics   `json:"pack"`
	Timestamp int64         `json:"timestamp"`
}
