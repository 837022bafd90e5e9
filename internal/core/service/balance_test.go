package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pack2mqtt/internal/core/domain"
)

func spreadSnapshot(voltages ...float64) domain.PackSnapshot {
	cells := make([]domain.CellReading, len(voltages))
	for i, v := range voltages {
		cells[i] = domain.CellReading{ID: uint16(i + 1), Voltage: v}
	}
	return domain.PackSnapshot{Cells: cells}
}

func TestBalancingSpread(t *testing.T) {
	bp := &BalancingPolicy{Logger: zap.NewNop()}

	assert.InDelta(t, 0.22, bp.Spread(spreadSnapshot(3.60, 3.82, 3.70)), 1e-9)
	assert.Zero(t, bp.Spread(spreadSnapshot()))
	assert.Zero(t, bp.Spread(spreadSnapshot(3.7)))
}

func TestBalancingShouldStart(t *testing.T) {
	bp := &BalancingPolicy{Logger: zap.NewNop()}
	snap := spreadSnapshot(3.60, 3.82, 3.70, 3.75)

	params := domain.DeviceParams{BalancingEnabled: true, BalancingThreshold: 0.1}
	start, spread := bp.ShouldStart(snap, params)
	assert.True(t, start)
	assert.InDelta(t, 0.22, spread, 1e-9)

	params.BalancingThreshold = 0.3
	start, _ = bp.ShouldStart(snap, params)
	assert.False(t, start)
}

func TestBalancingDisabled(t *testing.T) {
	bp := &BalancingPolicy{Logger: zap.NewNop()}
	snap := spreadSnapshot(3.60, 3.82)

	params := domain.DeviceParams{BalancingEnabled: false, BalancingThreshold: 0.1}
	start, _ := bp.ShouldStart(snap, params)
	assert.False(t, start)
}

func TestBalancingNeedsTwoCells(t *testing.T) {
	bp := &BalancingPolicy{Logger: zap.NewNop()}

	params := domain.DeviceParams{BalancingEnabled: true, BalancingThreshold: 0.1}
	start, _ := bp.ShouldStart(spreadSnapshot(3.7), params)
	assert.False(t, start)
}
