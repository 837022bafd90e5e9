package params

import (
	"sync"

	"go.uber.org/zap"

	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
)

// Counter names accepted by IncrementCounter.
const (
	CounterBoot        = "bootCount"
	CounterDataPoint   = "dataPointCount"
	CounterError       = "errorCount"
	CounterConnect     = "connectCount"
	CounterConnectFail = "connectFailCount"
)

// Handle is the single in-process owner of device params, state and counters.
// All mutations go through it so the in-memory copy and the durable store
// never diverge: a mutation is persisted first and only committed to memory
// when the store accepted it.
type Handle struct {
	mu     sync.RWMutex
	store  port.ParamStore
	logger *zap.Logger

	params   domain.DeviceParams
	state    domain.DeviceState
	counters domain.DeviceCounters
}

// Open loads the persisted documents, seeding params with defaults on first
// boot. State always starts disconnected regardless of what was persisted.
func Open(store port.ParamStore, defaults domain.DeviceParams, logger *zap.Logger) (*Handle, error) {
	h := &Handle{
		store:  store,
		logger: logger,
	}

	params, found, err := store.LoadParams()
	if err != nil {
		return nil, err
	}
	if !found {
		params = defaults
		if err := store.SaveParams(params); err != nil {
			return nil, err
		}
		logger.Info("no stored params, seeded defaults")
	}
	h.params = params

	counters, found, err := store.LoadCounters()
	if err != nil {
		return nil, err
	}
	if found {
		h.counters = counters
	}

	h.state = domain.DeviceState{}
	if err := store.SaveState(h.state); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *Handle) Params() domain.DeviceParams {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.params
}

func (h *Handle) State() domain.DeviceState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *Handle) Counters() domain.DeviceCounters {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.counters
}

// UpdateParams applies mutate to a working copy and persists the result. On a
// store failure the in-memory params are left untouched and the error is
// returned. A mutation that changes nothing skips the store entirely.
func (h *Handle) UpdateParams(mutate func(*domain.DeviceParams)) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.params
	mutate(&next)
	if next == h.params {
		return false, nil
	}
	if err := h.store.SaveParams(next); err != nil {
		return false, err
	}
	h.params = next
	return true, nil
}

// UpdateState persists the new state, keeping memory and store in step.
func (h *Handle) UpdateState(mutate func(*domain.DeviceState)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.state
	mutate(&next)
	if next == h.state {
		return nil
	}
	if err := h.store.SaveState(next); err != nil {
		return err
	}
	h.state = next
	return nil
}

// IncrementCounter bumps the named counter and persists the counter set. The
// in-memory bump survives a store failure; counters are best effort.
func (h *Handle) IncrementCounter(name string) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	var value *uint32
	switch name {
	case CounterBoot:
		value = &h.counters.BootCount
	case CounterDataPoint:
		value = &h.counters.DataPointCount
	case CounterError:
		value = &h.counters.ErrorCount
	case CounterConnect:
		value = &h.counters.ConnectCount
	case CounterConnectFail:
		value = &h.counters.ConnectFailCount
	default:
		h.logger.Warn("unknown counter", zap.String("name", name))
		return 0
	}
	*value++

	if err := h.store.SaveCounters(h.counters); err != nil {
		h.logger.Error("could not persist counters", zap.Error(err))
	}
	return *value
}

// RecordAlert notes the most recent alert message and bumps the error counter.
func (h *Handle) RecordAlert(message string) {
	if err := h.UpdateState(func(s *domain.DeviceState) {
		s.LastError = message
	}); err != nil {
		h.logger.Error("could not persist state", zap.Error(err))
	}
	h.IncrementCounter(CounterError)
}

// SetLastError overwrites the last error field without touching counters.
func (h *Handle) SetLastError(message string) {
	if err := h.UpdateState(func(s *domain.DeviceState) {
		s.LastError = message
	}); err != nil {
		h.logger.Error("could not persist state", zap.Error(err))
	}
}
