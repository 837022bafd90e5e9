package port

import "pack2mqtt/internal/core/domain"

// ParamStore is the durable key-value backend for device params, state and
// counters. A failed save leaves the stored copy untouched; it never
// partially applies.
type ParamStore interface {
	LoadParams() (domain.DeviceParams, bool, error)
	SaveParams(domain.DeviceParams) error
	LoadState() (domain.DeviceState, bool, error)
	SaveState(domain.DeviceState) error
	LoadCounters() (domain.DeviceCounters, bool, error)
	SaveCounters(domain.DeviceCounters) error
}
