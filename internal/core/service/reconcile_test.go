package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/params"
)

type stubControl struct {
	powerCalls     []bool
	balancingCalls []bool
	err            error
}

func (c *stubControl) SetPower(on bool) error {
	c.powerCalls = append(c.powerCalls, on)
	return c.err
}

func (c *stubControl) SetBalancing(start bool) error {
	c.balancingCalls = append(c.balancingCalls, start)
	return c.err
}

type stubProcess struct {
	restarts int
}

func (p *stubProcess) Restart() {
	p.restarts++
}

type sinkCall struct {
	id     string
	update domain.CommandStatusUpdate
}

type recordingSink struct {
	calls []sinkCall
	err   error
}

func (s *recordingSink) SetCommandStatus(id string, u domain.CommandStatusUpdate) error {
	s.calls = append(s.calls, sinkCall{id: id, update: u})
	return s.err
}

func defaultTestParams() domain.DeviceParams {
	return domain.DeviceParams{
		DeviceName:            "bench pack",
		DeviceModel:           "pack2mqtt-sim",
		DeviceKey:             "pack-01",
		CellCount:             4,
		SampleIntervalSeconds: 5,
		AlertHighTemp:         40,
		AlertLowTemp:          12,
		AlertHighVoltage:      4.15,
		AlertLowVoltage:       3.1,
		MaxCurrent:            8.0,
		ShutdownVoltage:       3.2,
		BalancingThreshold:    0.1,
	}
}

func newTestReconciler(t *testing.T) (*Reconciler, *params.MemoryStore, *stubControl, *stubProcess, *recordingSink) {
	t.Helper()
	store := params.NewMemoryStore()
	handle, err := params.Open(store, defaultTestParams(), zap.NewNop())
	assert.NoError(t, err)

	control := &stubControl{}
	process := &stubProcess{}
	sink := &recordingSink{}

	r := NewReconciler(handle, control, process, sink, zap.NewNop())
	r.Clock = func() time.Time { return time.Unix(1700000000, 0) }
	r.RestartDelay = 0
	return r, store, control, process, sink
}

func TestApplyConfigUpdatesParams(t *testing.T) {
	r, store, _, _, _ := newTestReconciler(t)
	savesBefore := store.SaveParamsCalls

	changed, err := r.ApplyConfig(domain.ConfigPayload{
		"name":               "garage pack",
		"sample_interval_ms": float64(2500),
		"alert_high_temp":    float64(42),
		"balancing_enabled":  true,
	})
	assert.NoError(t, err)
	assert.True(t, changed)

	p := r.Params.Params()
	assert.Equal(t, "garage pack", p.DeviceName)
	assert.Equal(t, uint32(2), p.SampleIntervalSeconds)
	assert.Equal(t, float64(42), p.AlertHighTemp)
	assert.True(t, p.BalancingEnabled)

	// the whole document lands in one persisted write
	assert.Equal(t, savesBefore+1, store.SaveParamsCalls)
}

func TestApplyConfigSampleIntervalFloor(t *testing.T) {
	r, _, _, _, _ := newTestReconciler(t)

	changed, err := r.ApplyConfig(domain.ConfigPayload{"sample_interval_ms": float64(200)})
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint32(1), r.Params.Params().SampleIntervalSeconds)
}

func TestApplyConfigIgnoresMalformedValues(t *testing.T) {
	r, store, _, _, _ := newTestReconciler(t)
	savesBefore := store.SaveParamsCalls
	before := r.Params.Params()

	changed, err := r.ApplyConfig(domain.ConfigPayload{
		"name":               42,
		"cell_count":         "four",
		"sample_interval_ms": float64(-100),
		"shutdown_voltage":   false,
		"unknown_key":        "x",
	})
	assert.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, r.Params.Params())
	assert.Equal(t, savesBefore, store.SaveParamsCalls)
}

func TestApplyConfigPersistFailureKeepsParams(t *testing.T) {
	r, store, _, _, _ := newTestReconciler(t)
	before := r.Params.Params()
	store.FailSaveParams = true

	changed, err := r.ApplyConfig(domain.ConfigPayload{"name": "new name"})
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, r.Params.Params())
}

func TestApplyCommandsPower(t *testing.T) {
	r, _, control, _, sink := newTestReconciler(t)

	r.ApplyCommands(map[string]domain.CommandEntry{
		"cmd1": {Type: domain.CommandTypePower, Value: "on", Status: domain.CommandStatusPending},
	})

	assert.Equal(t, []bool{true}, control.powerCalls)
	assert.Len(t, sink.calls, 2)
	assert.Equal(t, domain.CommandStatusReceived, sink.calls[0].update.Status)
	assert.Equal(t, domain.CommandStatusCompleted, sink.calls[1].update.Status)
	assert.Equal(t, "power set to on", sink.calls[1].update.Result)
}

func TestApplyCommandsBalancingFailure(t *testing.T) {
	r, _, control, _, sink := newTestReconciler(t)
	control.err = errors.New("engine rejected")

	r.ApplyCommands(map[string]domain.CommandEntry{
		"cmd1": {Type: domain.CommandTypeBalancing, Value: "start", Status: domain.CommandStatusPending},
	})

	assert.Equal(t, []bool{true}, control.balancingCalls)
	assert.Equal(t, domain.CommandStatusFailed, sink.calls[1].update.Status)
	assert.Contains(t, sink.calls[1].update.Result, "engine rejected")
}

func TestApplyCommandsRestartOrdering(t *testing.T) {
	r, _, _, process, sink := newTestReconciler(t)

	r.ApplyCommands(map[string]domain.CommandEntry{
		"cmd1": {Type: domain.CommandTypeRestart, Status: domain.CommandStatusPending},
	})

	// completion is acknowledged before the process goes down
	assert.Len(t, sink.calls, 2)
	assert.Equal(t, domain.CommandStatusCompleted, sink.calls[1].update.Status)
	assert.Equal(t, "restarting", sink.calls[1].update.Result)
	assert.Equal(t, 1, process.restarts)
}

func TestApplyCommandsSkipsNonPending(t *testing.T) {
	r, _, control, process, sink := newTestReconciler(t)

	r.ApplyCommands(map[string]domain.CommandEntry{
		"cmd1": {Type: domain.CommandTypePower, Value: "on", Status: domain.CommandStatusCompleted},
		"cmd2": {Type: domain.CommandTypeRestart, Status: domain.CommandStatusReceived},
	})

	assert.Empty(t, control.powerCalls)
	assert.Zero(t, process.restarts)
	assert.Empty(t, sink.calls)
}

func TestApplyCommandsSkipsMalformed(t *testing.T) {
	r, _, control, _, sink := newTestReconciler(t)

	r.ApplyCommands(map[string]domain.CommandEntry{
		"cmd1": {Status: domain.CommandStatusPending},
		"cmd2": {Type: domain.CommandTypePower, Status: domain.CommandStatusPending},
		"cmd3": {Type: domain.CommandTypeBalancing, Status: domain.CommandStatusPending},
	})

	assert.Empty(t, control.powerCalls)
	assert.Empty(t, control.balancingCalls)
	assert.Empty(t, sink.calls)
}

func TestApplyCommandsUnknownTypeFails(t *testing.T) {
	r, _, _, _, sink := newTestReconciler(t)

	r.ApplyCommands(map[string]domain.CommandEntry{
		"cmd1": {Type: "selfdestruct", Status: domain.CommandStatusPending},
	})

	assert.Len(t, sink.calls, 2)
	assert.Equal(t, domain.CommandStatusFailed, sink.calls[1].update.Status)
}

func TestApplyCommandsDeterministicOrder(t *testing.T) {
	r, _, control, _, _ := newTestReconciler(t)

	r.ApplyCommands(map[string]domain.CommandEntry{
		"b": {Type: domain.CommandTypePower, Value: "off", Status: domain.CommandStatusPending},
		"a": {Type: domain.CommandTypePower, Value: "on", Status: domain.CommandStatusPending},
	})

	assert.Equal(t, []bool{true, false}, control.powerCalls)
}

func TestApplyCommandsAckFailureAborts(t *testing.T) {
	r, _, control, _, sink := newTestReconciler(t)
	sink.err = errors.New("remote unavailable")

	r.ApplyCommands(map[string]domain.CommandEntry{
		"cmd1": {Type: domain.CommandTypePower, Value: "on", Status: domain.CommandStatusPending},
	})

	// the command is not executed when the ack cannot be recorded
	assert.Empty(t, control.powerCalls)
	assert.Len(t, sink.calls, 1)
}
