package domain

// DeviceParams holds the remotely tunable thresholds and intervals. They are
// persisted by the param store on each change.
type DeviceParams struct {
	DeviceName  string `json:"deviceName"`
	DeviceModel string `json:"deviceModel"`
	DeviceKey   string `json:"deviceKey"`

	CellCount             uint16 `json:"cellCount"`
	SampleIntervalSeconds uint32 `json:"sampleInterval"`

	AlertHighTemp    float64 `json:"alertHighTemp"`
	AlertLowTemp     float64 `json:"alertLowTemp"`
	AlertHighVoltage float64 `json:"alertHighVoltage"`
	AlertLowVoltage  float64 `json:"alertLowVoltage"`
	MaxCurrent       float64 `json:"maxCurrent"`
	ShutdownVoltage  float64 `json:"shutdownVoltage"`

	BalancingEnabled   bool    `json:"balancingEnabled"`
	BalancingThreshold float64 `json:"balancingThreshold"`
	DeepSleepEnabled   bool    `json:"deepSleepEnabled"`
}

// DeviceState is the volatile device status mirrored to the param store so an
// external observer can poll it.
type DeviceState struct {
	WifiConnected   bool   `json:"wifiConnected"`
	RemoteConnected bool   `json:"remoteConnected"`
	LastError       string `json:"lastError"`
}

type DeviceCounters struct {
	BootCount        uint32 `json:"bootCount"`
	DataPointCount   uint32 `json:"dataPointCount"`
	ErrorCount       uint32 `json:"errorCount"`
	ConnectCount     uint32 `json:"connectCount"`
	ConnectFailCount uint32 `json:"connectFailCount"`
}
