package params

import (
	"errors"
	"sync"

	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
)

// MemoryStore is an in-process ParamStore used in tests and for running the
// agent without redis. Save failures can be injected per document.
type MemoryStore struct {
	mu sync.Mutex

	params      domain.DeviceParams
	hasParams   bool
	state       domain.DeviceState
	hasState    bool
	counters    domain.DeviceCounters
	hasCounters bool

	SaveParamsCalls   int
	SaveStateCalls    int
	SaveCountersCalls int

	FailSaveParams   bool
	FailSaveState    bool
	FailSaveCounters bool
}

var errSaveRejected = errors.New("save rejected")

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) LoadParams() (domain.DeviceParams, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params, m.hasParams, nil
}

func (m *MemoryStore) SaveParams(p domain.DeviceParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveParamsCalls++
	if m.FailSaveParams {
		return errSaveRejected
	}
	m.params = p
	m.hasParams = true
	return nil
}

func (m *MemoryStore) LoadState() (domain.DeviceState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.hasState, nil
}

func (m *MemoryStore) SaveState(st domain.DeviceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveStateCalls++
	if m.FailSaveState {
		return errSaveRejected
	}
	m.state = st
	m.hasState = true
	return nil
}

func (m *MemoryStore) LoadCounters() (domain.DeviceCounters, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters, m.hasCounters, nil
}

func (m *MemoryStore) SaveCounters(c domain.DeviceCounters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCountersCalls++
	if m.FailSaveCounters {
		return errSaveRejected
	}
	m.counters = c
	m.hasCounters = true
	return nil
}

var _ port.ParamStore = (*MemoryStore)(nil)
