package service

import (
	"go.uber.org/zap"

	"pack2mqtt/internal/core/domain"
)

// BalancingPolicy decides whether cell voltage spread justifies starting a
// balancing cycle.
type BalancingPolicy struct {
	Logger *zap.Logger
}

// Spread returns the difference between the highest and lowest cell voltage.
func (bp *BalancingPolicy) Spread(snap domain.PackSnapshot) float64 {
	if len(snap.Cells) == 0 {
		return 0
	}
	min := snap.Cells[0].Voltage
	max := snap.Cells[0].Voltage
	for _, cell := range snap.Cells[1:] {
		if cell.Voltage < min {
			min = cell.Voltage
		}
		if cell.Voltage > max {
			max = cell.Voltage
		}
	}
	return max - min
}

// ShouldStart reports whether balancing is enabled and the spread exceeds the
// configured threshold. Packs with fewer than two cells never balance.
func (bp *BalancingPolicy) ShouldStart(snap domain.PackSnapshot, params domain.DeviceParams) (bool, float64) {
	if !params.BalancingEnabled || len(snap.Cells) < 2 {
		return false, 0
	}
	spread := bp.Spread(snap)
	if spread > params.BalancingThreshold {
		if bp.Logger != nil {
			bp.Logger.Info("cell spread above balancing threshold",
				zap.Float64("spread", spread),
				zap.Float64("threshold", params.BalancingThreshold))
		}
		return true, spread
	}
	return false, spread
}
