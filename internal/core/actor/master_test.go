package actor

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	adactor "pack2mqtt/internal/adapter/actor"
	"pack2mqtt/internal/adapter/netmon"
	"pack2mqtt/internal/config"
	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
	"pack2mqtt/internal/core/service"
	"pack2mqtt/internal/mqtt"
	"pack2mqtt/internal/params"
	"pack2mqtt/internal/util"
)

type stubProcessController struct {
	restarts atomic.Int32
}

func (s *stubProcessController) Restart() {
	s.restarts.Add(1)
}

type masterHarness struct {
	system  *actor.ActorSystem
	context *actor.RootContext
	pid     *actor.PID
	handle  *params.Handle
	session *mqtt.TestRemoteSession
	flag    *netmon.Flag
	process *stubProcessController
}

func spawnTestMasterActor(t *testing.T, cfg config.Config, deviceParams domain.DeviceParams, connected bool) *masterHarness {
	t.Helper()

	as := actor.NewActorSystem()
	context := as.Root

	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	handle, err := params.Open(params.NewMemoryStore(), deviceParams, logger)
	assert.NoError(t, err)

	session := mqtt.NewTestRemoteSession(cfg.Device.Key)
	flag := netmon.NewFlag(connected)
	process := &stubProcessController{}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, handle, flag, process, func() *adactor.RemoteActor {
			return adactor.NewRemoteActor(session, logger)
		}, func() port.CellSampler {
			return service.NewSimulatedSampler(cfg.Battery.SimulationSeed)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Fatal(err)
	}

	return &masterHarness{
		system:  as,
		context: context,
		pid:     pid,
		handle:  handle,
		session: session,
		flag:    flag,
		process: process,
	}
}

func (h *masterHarness) stop() {
	h.context.Stop(h.pid)
	h.system.Shutdown()
}

func TestMasterActor(t *testing.T) {
	cfg := util.LoadTestConfig()
	h := spawnTestMasterActor(t, cfg, testDeviceParams(), false)
	defer h.stop()

	time.Sleep(2 * time.Second)

	res, err := h.context.RequestFuture(h.pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, healthResp.Healthy, "healthy is true")
}

func TestMasterActorConnectsAndPublishes(t *testing.T) {
	cfg := util.LoadTestConfig()
	h := spawnTestMasterActor(t, cfg, testDeviceParams(), true)
	defer h.stop()

	// first tick connects, telemetry runs every second after that
	time.Sleep(3500 * time.Millisecond)

	assert.GreaterOrEqual(t, h.session.InitCalls, 1)
	assert.GreaterOrEqual(t, h.session.StatusCount(), 1)

	state := h.handle.State()
	assert.True(t, state.WifiConnected)
	assert.True(t, state.RemoteConnected)

	counters := h.handle.Counters()
	assert.GreaterOrEqual(t, counters.ConnectCount, uint32(1))
	assert.GreaterOrEqual(t, counters.DataPointCount, uint32(1))

	// snapshot requests are forwarded to the battery child
	res, err := h.context.RequestFuture(h.pid, domain.GetPackSnapshotRequest{}, 2*time.Second).Result()
	assert.NoError(t, err)
	snapResp, ok := res.(domain.GetPackSnapshotResponse)
	assert.True(t, ok)
	assert.Len(t, snapResp.Snapshot.Cells, int(testDeviceParams().CellCount))
}

func TestMasterActorAppliesRemoteConfig(t *testing.T) {
	cfg := util.LoadTestConfig()
	h := spawnTestMasterActor(t, cfg, testDeviceParams(), true)
	defer h.stop()

	time.Sleep(2 * time.Second)
	assert.GreaterOrEqual(t, h.session.InitCalls, 1)

	h.session.DeliverConfig(domain.ConfigPayload{
		"sample_interval_ms": float64(2000),
		"cell_count":         float64(6),
	})
	time.Sleep(1 * time.Second)

	deviceParams := h.handle.Params()
	assert.Equal(t, uint32(2), deviceParams.SampleIntervalSeconds)
	assert.Equal(t, uint16(6), deviceParams.CellCount)

	// the pack is not resized by the config event itself; the periodic
	// params check applies the new cell count
	res, err := h.context.RequestFuture(h.pid, domain.GetPackSnapshotRequest{}, 2*time.Second).Result()
	assert.NoError(t, err)
	assert.Len(t, res.(domain.GetPackSnapshotResponse).Snapshot.Cells, 4)

	time.Sleep(11 * time.Second)

	res, err = h.context.RequestFuture(h.pid, domain.GetPackSnapshotRequest{}, 2*time.Second).Result()
	assert.NoError(t, err)
	assert.Len(t, res.(domain.GetPackSnapshotResponse).Snapshot.Cells, 6)
}

func TestMasterActorExecutesRemoteCommands(t *testing.T) {
	cfg := util.LoadTestConfig()
	h := spawnTestMasterActor(t, cfg, testDeviceParams(), true)
	defer h.stop()

	time.Sleep(2 * time.Second)
	assert.GreaterOrEqual(t, h.session.InitCalls, 1)

	h.session.DeliverCommands(map[string]domain.CommandEntry{
		"cmd-1": {ID: "cmd-1", Type: domain.CommandTypePower, Value: "off", Status: domain.CommandStatusPending},
	})
	time.Sleep(1 * time.Second)

	acks := h.session.CommandAcks["cmd-1"]
	if assert.Len(t, acks, 2) {
		assert.Equal(t, domain.CommandStatusReceived, acks[0].Status)
		assert.Equal(t, domain.CommandStatusCompleted, acks[1].Status)
		assert.Equal(t, "power set to off", acks[1].Result)
	}

	res, err := h.context.RequestFuture(h.pid, domain.GetPackSnapshotRequest{}, 2*time.Second).Result()
	assert.NoError(t, err)
	assert.False(t, res.(domain.GetPackSnapshotResponse).Powered)
}

func TestMasterActorDisconnectsWhenNetworkDrops(t *testing.T) {
	cfg := util.LoadTestConfig()
	h := spawnTestMasterActor(t, cfg, testDeviceParams(), true)
	defer h.stop()

	time.Sleep(2 * time.Second)
	assert.GreaterOrEqual(t, h.session.InitCalls, 1)

	h.flag.Set(false)
	time.Sleep(2 * time.Second)

	assert.GreaterOrEqual(t, h.session.DeinitCalls, 1)
	state := h.handle.State()
	assert.False(t, state.WifiConnected)
	assert.False(t, state.RemoteConnected)
}

func TestMasterActorReconnectsAfterSessionLoss(t *testing.T) {
	cfg := util.LoadTestConfig()
	h := spawnTestMasterActor(t, cfg, testDeviceParams(), true)
	defer h.stop()

	time.Sleep(2 * time.Second)
	initsBefore := h.session.InitCalls
	assert.GreaterOrEqual(t, initsBefore, 1)

	h.session.DropConnection(errors.New("broker went away"))
	time.Sleep(2500 * time.Millisecond)

	assert.Greater(t, h.session.InitCalls, initsBefore)
}

func TestMasterActorForcesReconnectAfterAuthFailures(t *testing.T) {
	cfg := util.LoadTestConfig()
	cfg.Sync.AuthCheckSeconds = 1
	h := spawnTestMasterActor(t, cfg, testDeviceParams(), true)
	defer h.stop()

	time.Sleep(2 * time.Second)
	assert.GreaterOrEqual(t, h.session.InitCalls, 1)

	h.session.FailMaintainAuth = true
	// three consecutive auth failures tear the session down
	time.Sleep(5 * time.Second)

	assert.GreaterOrEqual(t, h.session.DeinitCalls, 1)
}
