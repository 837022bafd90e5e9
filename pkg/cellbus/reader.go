// Package cellbus reads per-cell measurements from a battery cell-monitor
// AFE exposed over Modbus TCP.
package cellbus

type CellBankInfo struct {
	Manufacturer string
	Model        string
	Serial       string
}

// CellMeasure is one raw cell reading as stored in the AFE register file.
type CellMeasure struct {
	Index            uint16
	VoltageMilliV    uint16
	TemperatureDeciC int16
	SOC              uint8
	SOH              uint8
}

func (m CellMeasure) Voltage() float64 {
	return float64(m.VoltageMilliV) / 1000.0
}

func (m CellMeasure) Temperature() float64 {
	return float64(m.TemperatureDeciC) / 10.0
}

type CellBankReader interface {
	Open() error
	Close() error
	// Validate checks the register file identifies a supported AFE.
	Validate() error
	GetInfo() (*CellBankInfo, error)
	GetCellCount() (uint16, error)
	// ReadCell reads one cell by zero-based index.
	ReadCell(index uint16) (*CellMeasure, error)
	ReadAllCells() ([]CellMeasure, error)
}
