package domain

// Events published on the in-process event stream by the battery actor.

type AlertRaisedEvent struct {
	Message   string
	Critical  bool
	Timestamp int64
}

type BalancingRecommendedEvent struct {
	Spread    float64
	Threshold float64
}

type PackStatusChangedEvent struct {
	Previous string
	Current  string
}
