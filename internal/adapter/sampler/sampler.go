package sampler

import (
	"github.com/reugn/go-quartz/logger"

	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
	"pack2mqtt/pkg/cellbus"
)

// ModbusCellSampler bridges a cell-bank AFE reader onto the sampler port.
// Cell ids are 1-based while the AFE register file is 0-indexed.
type ModbusCellSampler struct {
	reader cellbus.CellBankReader

	minVoltage     float64
	maxVoltage     float64
	minTemperature float64
	maxTemperature float64
}

func NewModbusCellSampler(reader cellbus.CellBankReader,
	minVoltage, maxVoltage, minTemperature, maxTemperature float64) *ModbusCellSampler {
	return &ModbusCellSampler{
		reader:         reader,
		minVoltage:     minVoltage,
		maxVoltage:     maxVoltage,
		minTemperature: minTemperature,
		maxTemperature: maxTemperature,
	}
}

func (s *ModbusCellSampler) InitialReading(id uint16) domain.CellReading {
	measure, err := s.reader.ReadCell(id - 1)
	if err != nil {
		logger.Error(err)
		// the first tick will retry; start from a neutral reading
		return domain.CellReading{
			ID:          id,
			Voltage:     s.minVoltage,
			Temperature: s.minTemperature,
		}
	}
	return s.toReading(id, measure)
}

func (s *ModbusCellSampler) NextReading(prev domain.CellReading) domain.CellReading {
	measure, err := s.reader.ReadCell(prev.ID - 1)
	if err != nil {
		logger.Error(err)
		return prev
	}
	return s.toReading(prev.ID, measure)
}

func (s *ModbusCellSampler) toReading(id uint16, m *cellbus.CellMeasure) domain.CellReading {
	return domain.CellReading{
		ID:          id,
		Voltage:     clamp(m.Voltage(), s.minVoltage, s.maxVoltage),
		Temperature: clamp(m.Temperature(), s.minTemperature, s.maxTemperature),
		SOC:         m.SOC,
		SOH:         m.SOH,
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

var _ port.CellSampler = (*ModbusCellSampler)(nil)
