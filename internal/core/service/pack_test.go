package service

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"pack2mqtt/internal/core/domain"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestSOCFromVoltage(t *testing.T) {
	assert.Equal(t, uint8(0), SOCFromVoltage(MinCellVoltage))
	assert.Equal(t, uint8(100), SOCFromVoltage(MaxCellVoltage))
	assert.Equal(t, uint8(50), SOCFromVoltage(3.6))
	// out of range inputs clamp
	assert.Equal(t, uint8(0), SOCFromVoltage(2.5))
	assert.Equal(t, uint8(100), SOCFromVoltage(5.0))
}

func TestSimulatedSamplerStaysWithinLimits(t *testing.T) {
	sampler := NewSimulatedSampler(42)
	reading := sampler.InitialReading(1)

	for i := 0; i < 2000; i++ {
		reading = sampler.NextReading(reading)
		assert.GreaterOrEqual(t, reading.Voltage, MinCellVoltage)
		assert.LessOrEqual(t, reading.Voltage, MaxCellVoltage)
		assert.GreaterOrEqual(t, reading.Temperature, MinCellTemperature)
		assert.LessOrEqual(t, reading.Temperature, MaxCellTemperature)
	}
}

func TestSimulatedSamplerSOHNeverRecovers(t *testing.T) {
	sampler := NewSimulatedSampler(7)
	reading := sampler.InitialReading(1)
	previousSOH := reading.SOH

	for i := 0; i < 5000; i++ {
		reading = sampler.NextReading(reading)
		assert.LessOrEqual(t, reading.SOH, previousSOH)
		assert.GreaterOrEqual(t, reading.SOH, uint8(minCellSOH))
		previousSOH = reading.SOH
	}
}

func TestSimulatedSamplerDeterministicForSeed(t *testing.T) {
	a := NewSimulatedSampler(99)
	b := NewSimulatedSampler(99)

	ra := a.InitialReading(1)
	rb := b.InitialReading(1)
	assert.Equal(t, ra, rb)

	for i := 0; i < 100; i++ {
		ra = a.NextReading(ra)
		rb = b.NextReading(rb)
		assert.Equal(t, ra, rb)
	}
}

func TestNewPackRejectsZeroCells(t *testing.T) {
	_, err := NewPack(NewSimulatedSampler(1), testRand(1), 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestPackTotalVoltageIsCellSum(t *testing.T) {
	pack, err := NewPack(NewSimulatedSampler(3), testRand(3), 8)
	assert.NoError(t, err)

	for i := 0; i < 50; i++ {
		pack.Update()
		snap := pack.Snapshot()

		var sum float64
		for _, cell := range snap.Cells {
			sum += cell.Voltage
		}
		assert.InDelta(t, sum, snap.Pack.TotalVoltage, 1e-9)
		assert.InDelta(t, snap.Pack.TotalVoltage*snap.Pack.Current, snap.Pack.Power, 1e-9)
	}
}

func TestPackCurrentMatchesStatus(t *testing.T) {
	pack, err := NewPack(NewSimulatedSampler(11), testRand(11), 4)
	assert.NoError(t, err)

	for i := 0; i < 500; i++ {
		pack.Update()
		snap := pack.Snapshot()

		switch snap.Pack.Status {
		case "Idle":
			assert.LessOrEqual(t, snap.Pack.Current, 0.1)
			assert.GreaterOrEqual(t, snap.Pack.Current, -0.1)
		case "Charging":
			assert.GreaterOrEqual(t, snap.Pack.Current, 1.0)
			assert.LessOrEqual(t, snap.Pack.Current, MaxChargeCurrent)
		case "Discharging":
			assert.LessOrEqual(t, snap.Pack.Current, -1.0)
			assert.GreaterOrEqual(t, snap.Pack.Current, -MaxDischargeAmps)
		case "Error":
			assert.Zero(t, snap.Pack.Current)
		case "Balancing":
			assert.LessOrEqual(t, snap.Pack.Current, 0.5)
			assert.GreaterOrEqual(t, snap.Pack.Current, -0.5)
		default:
			t.Fatalf("unexpected status %q", snap.Pack.Status)
		}
	}
}

func TestPackUptimeIncrements(t *testing.T) {
	pack, err := NewPack(NewSimulatedSampler(5), testRand(5), 2)
	assert.NoError(t, err)

	before := pack.Snapshot().Pack.Uptime
	pack.Update()
	pack.Update()
	assert.Equal(t, before+2, pack.Snapshot().Pack.Uptime)
}

func TestPackReconfigureGrow(t *testing.T) {
	pack, err := NewPack(NewSimulatedSampler(13), testRand(13), 4)
	assert.NoError(t, err)

	before := pack.Snapshot()
	assert.NoError(t, pack.Reconfigure(6))
	snap := pack.Snapshot()
	assert.Len(t, snap.Cells, 6)
	for i, cell := range snap.Cells {
		assert.Equal(t, uint16(i+1), cell.ID)
	}

	// survivors are untouched, only a tick advances them
	for i, cell := range before.Cells {
		assert.Equal(t, cell, snap.Cells[i])
	}
	assert.Equal(t, before.Pack.Status, snap.Pack.Status)
	assert.Equal(t, before.Pack.Current, snap.Pack.Current)
	assert.Equal(t, before.Pack.Uptime, snap.Pack.Uptime)

	var sum float64
	for _, cell := range snap.Cells {
		sum += cell.Voltage
	}
	assert.InDelta(t, sum, snap.Pack.TotalVoltage, 1e-9)
	assert.InDelta(t, snap.Pack.TotalVoltage*snap.Pack.Current, snap.Pack.Power, 1e-9)
}

func TestPackReconfigureShrink(t *testing.T) {
	pack, err := NewPack(NewSimulatedSampler(13), testRand(13), 6)
	assert.NoError(t, err)

	before := pack.Snapshot()
	assert.NoError(t, pack.Reconfigure(2))
	snap := pack.Snapshot()
	assert.Len(t, snap.Cells, 2)
	assert.Equal(t, before.Cells[0], snap.Cells[0])
	assert.Equal(t, before.Cells[1], snap.Cells[1])
	assert.Equal(t, before.Pack.Uptime, snap.Pack.Uptime)
	assert.InDelta(t, snap.Cells[0].Voltage+snap.Cells[1].Voltage, snap.Pack.TotalVoltage, 1e-9)
}

func TestPackReconfigureNoopKeepsState(t *testing.T) {
	pack, err := NewPack(NewSimulatedSampler(13), testRand(13), 4)
	assert.NoError(t, err)

	before := pack.Snapshot()
	assert.NoError(t, pack.Reconfigure(4))
	assert.Equal(t, before, pack.Snapshot())
}

func TestPackReconfigureRejectsZero(t *testing.T) {
	pack, err := NewPack(NewSimulatedSampler(13), testRand(13), 4)
	assert.NoError(t, err)

	assert.ErrorIs(t, pack.Reconfigure(0), ErrInvalidConfiguration)
	assert.Equal(t, uint16(4), pack.CellCount())
}

func TestPackForceStatus(t *testing.T) {
	pack, err := NewPack(NewSimulatedSampler(17), testRand(17), 4)
	assert.NoError(t, err)

	pack.ForceStatus(domain.PackStatusBalancing)
	assert.Equal(t, "Balancing", pack.Snapshot().Pack.Status)
}
