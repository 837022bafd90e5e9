package cellbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCellRegisters(t *testing.T) {
	m, err := decodeCellRegisters(2, []uint16{3712, 0xFFF6, 81, 97})
	assert.NoError(t, err)
	assert.Equal(t, uint16(2), m.Index)
	assert.Equal(t, uint16(3712), m.VoltageMilliV)
	// negative temperatures arrive as two's complement
	assert.Equal(t, int16(-10), m.TemperatureDeciC)
	assert.Equal(t, uint8(81), m.SOC)
	assert.Equal(t, uint8(97), m.SOH)
}

func TestDecodeCellRegistersShortBlock(t *testing.T) {
	_, err := decodeCellRegisters(0, []uint16{3712, 250})
	assert.Error(t, err)
}

func TestCellMeasureConversions(t *testing.T) {
	m := CellMeasure{VoltageMilliV: 3712, TemperatureDeciC: 253}
	assert.InDelta(t, 3.712, m.Voltage(), 1e-9)
	assert.InDelta(t, 25.3, m.Temperature(), 1e-9)
}

func TestTestReaderReadAllCells(t *testing.T) {
	reader, err := CreateTestCellBankReader(4)
	assert.NoError(t, err)

	count, err := reader.GetCellCount()
	assert.NoError(t, err)
	assert.Equal(t, uint16(4), count)

	measures, err := reader.ReadAllCells()
	assert.NoError(t, err)
	assert.Len(t, measures, 4)
	assert.Equal(t, uint16(3700), measures[0].VoltageMilliV)
	assert.Equal(t, uint16(3730), measures[3].VoltageMilliV)
}
