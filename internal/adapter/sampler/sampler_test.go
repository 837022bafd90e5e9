package sampler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"pack2mqtt/pkg/cellbus"
)

func newTestSampler(reader cellbus.CellBankReader) *ModbusCellSampler {
	return NewModbusCellSampler(reader, 3.0, 4.2, 10, 45)
}

func TestModbusSamplerReadsCell(t *testing.T) {
	reader := &cellbus.TestCellBankReader{CellCount: 4}
	s := newTestSampler(reader)

	reading := s.InitialReading(1)
	assert.Equal(t, uint16(1), reading.ID)
	assert.InDelta(t, 3.7, reading.Voltage, 1e-9)
	assert.InDelta(t, 25.0, reading.Temperature, 1e-9)
	assert.Equal(t, uint8(80), reading.SOC)
	assert.Equal(t, uint8(98), reading.SOH)
}

func TestModbusSamplerKeepsPreviousOnError(t *testing.T) {
	reader := &cellbus.TestCellBankReader{CellCount: 4}
	s := newTestSampler(reader)

	prev := s.InitialReading(2)
	reader.ReadErr = errors.New("read timeout")

	next := s.NextReading(prev)
	assert.Equal(t, prev, next)
}

func TestModbusSamplerClampsOutOfRange(t *testing.T) {
	reader := &cellbus.TestCellBankReader{CellCount: 1}
	s := NewModbusCellSampler(reader, 3.0, 3.5, 10, 20)

	reading := s.InitialReading(1)
	assert.Equal(t, 3.5, reading.Voltage)
	assert.Equal(t, 20.0, reading.Temperature)
}
