package port

import "pack2mqtt/internal/core/domain"

// CellSampler produces per-cell readings, either simulated or read from a
// cell-monitor AFE. Implementations must clamp voltage and temperature to the
// hardware limits before returning.
type CellSampler interface {
	// InitialReading returns a plausible starting state for a new cell.
	InitialReading(id uint16) domain.CellReading
	// NextReading advances one simulation tick (or performs one hardware
	// read) starting from the previous state. Implementations that can fail
	// transiently return the previous reading unchanged.
	NextReading(prev domain.CellReading) domain.CellReading
}
