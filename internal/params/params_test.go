package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pack2mqtt/internal/core/domain"
)

func testDefaults() domain.DeviceParams {
	return domain.DeviceParams{
		DeviceName:            "bench pack",
		DeviceKey:             "pack-01",
		CellCount:             4,
		SampleIntervalSeconds: 5,
		ShutdownVoltage:       3.2,
	}
}

func TestOpenSeedsDefaultsOnFirstBoot(t *testing.T) {
	store := NewMemoryStore()

	h, err := Open(store, testDefaults(), zap.NewNop())
	assert.NoError(t, err)
	assert.Equal(t, testDefaults(), h.Params())
	assert.Equal(t, 1, store.SaveParamsCalls)

	// state is reset to disconnected on every boot
	st, found, err := store.LoadState()
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.DeviceState{}, st)
}

func TestOpenLoadsStoredParams(t *testing.T) {
	store := NewMemoryStore()
	stored := testDefaults()
	stored.DeviceName = "installed pack"
	assert.NoError(t, store.SaveParams(stored))

	h, err := Open(store, testDefaults(), zap.NewNop())
	assert.NoError(t, err)
	assert.Equal(t, "installed pack", h.Params().DeviceName)
}

func TestUpdateParamsPersistsBeforeCommit(t *testing.T) {
	store := NewMemoryStore()
	h, err := Open(store, testDefaults(), zap.NewNop())
	assert.NoError(t, err)

	changed, err := h.UpdateParams(func(p *domain.DeviceParams) {
		p.SampleIntervalSeconds = 10
	})
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint32(10), h.Params().SampleIntervalSeconds)

	stored, _, _ := store.LoadParams()
	assert.Equal(t, uint32(10), stored.SampleIntervalSeconds)
}

func TestUpdateParamsRevertsOnStoreFailure(t *testing.T) {
	store := NewMemoryStore()
	h, err := Open(store, testDefaults(), zap.NewNop())
	assert.NoError(t, err)

	store.FailSaveParams = true
	changed, err := h.UpdateParams(func(p *domain.DeviceParams) {
		p.SampleIntervalSeconds = 60
	})
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, uint32(5), h.Params().SampleIntervalSeconds)
}

func TestUpdateParamsNoopSkipsStore(t *testing.T) {
	store := NewMemoryStore()
	h, err := Open(store, testDefaults(), zap.NewNop())
	assert.NoError(t, err)

	savesBefore := store.SaveParamsCalls
	changed, err := h.UpdateParams(func(p *domain.DeviceParams) {})
	assert.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, savesBefore, store.SaveParamsCalls)
}

func TestIncrementCounter(t *testing.T) {
	store := NewMemoryStore()
	h, err := Open(store, testDefaults(), zap.NewNop())
	assert.NoError(t, err)

	assert.Equal(t, uint32(1), h.IncrementCounter(CounterBoot))
	assert.Equal(t, uint32(2), h.IncrementCounter(CounterBoot))
	assert.Equal(t, uint32(1), h.IncrementCounter(CounterConnect))

	stored, _, _ := store.LoadCounters()
	assert.Equal(t, uint32(2), stored.BootCount)
	assert.Equal(t, uint32(1), stored.ConnectCount)
}

func TestIncrementCounterSurvivesStoreFailure(t *testing.T) {
	store := NewMemoryStore()
	h, err := Open(store, testDefaults(), zap.NewNop())
	assert.NoError(t, err)

	store.FailSaveCounters = true
	assert.Equal(t, uint32(1), h.IncrementCounter(CounterDataPoint))
	assert.Equal(t, uint32(2), h.IncrementCounter(CounterDataPoint))
	assert.Equal(t, uint32(2), h.Counters().DataPointCount)
}

func TestIncrementCounterUnknownName(t *testing.T) {
	store := NewMemoryStore()
	h, err := Open(store, testDefaults(), zap.NewNop())
	assert.NoError(t, err)

	assert.Zero(t, h.IncrementCounter("nope"))
	assert.Equal(t, domain.DeviceCounters{}, h.Counters())
}

func TestRecordAlert(t *testing.T) {
	store := NewMemoryStore()
	h, err := Open(store, testDefaults(), zap.NewNop())
	assert.NoError(t, err)

	h.RecordAlert("cell 2 temperature high")
	assert.Equal(t, "cell 2 temperature high", h.State().LastError)
	assert.Equal(t, uint32(1), h.Counters().ErrorCount)
}
