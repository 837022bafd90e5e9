package service

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"

	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
)

// Hardware limits of the simulated cells.
const (
	MinCellVoltage     = 3.0
	MaxCellVoltage     = 4.2
	NominalCellVoltage = 3.7
	MinCellTemperature = 10.0
	MaxCellTemperature = 45.0
	MaxChargeCurrent   = 5.0
	MaxDischargeAmps   = 10.0

	minCellSOH = 80
)

var ErrInvalidConfiguration = errors.New("invalid pack configuration: cell count must be > 0")

// SOCFromVoltage maps cell voltage linearly onto the 0-100% charge range.
func SOCFromVoltage(voltage float64) uint8 {
	soc := (voltage - MinCellVoltage) / (MaxCellVoltage - MinCellVoltage) * 100.0
	return uint8(math.Max(0, math.Min(100, soc)))
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// SimulatedSampler drives each cell with a bounded symmetric random walk.
// Deterministic for a given seed.
type SimulatedSampler struct {
	rng *rand.Rand
}

func NewSimulatedSampler(seed uint64) *SimulatedSampler {
	return &SimulatedSampler{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *SimulatedSampler) randomFloat(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}

func (s *SimulatedSampler) InitialReading(id uint16) domain.CellReading {
	return domain.CellReading{
		ID:          id,
		Voltage:     s.randomFloat(NominalCellVoltage-0.2, NominalCellVoltage+0.2),
		Temperature: s.randomFloat(20.0, 30.0),
		SOC:         uint8(s.randomFloat(70, 90)),
		SOH:         uint8(s.randomFloat(90, 100)),
	}
}

func (s *SimulatedSampler) NextReading(prev domain.CellReading) domain.CellReading {
	next := prev
	next.Voltage = clampFloat(prev.Voltage+s.randomFloat(-0.05, 0.05), MinCellVoltage, MaxCellVoltage)
	next.Temperature = clampFloat(prev.Temperature+s.randomFloat(-0.5, 0.5), MinCellTemperature, MaxCellTemperature)
	next.SOC = SOCFromVoltage(next.Voltage)
	// health degrades very slowly, never below the floor
	if s.rng.IntN(100) == 0 && next.SOH > minCellSOH {
		next.SOH--
	}
	return next
}

var _ port.CellSampler = (*SimulatedSampler)(nil)

// Pack owns the ordered cell set and the derived pack-level metrics. Update
// and Reconfigure are mutually exclusive: the simulation tick and the sync
// task share this object.
type Pack struct {
	mu      sync.Mutex
	sampler port.CellSampler
	rng     *rand.Rand

	cells        []domain.CellReading
	totalVoltage float64
	current      float64
	power        float64
	status       domain.PackStatus
	uptime       uint32
}

// NewPack allocates cellCount cells with ids 1..cellCount and performs one
// update to populate the derived fields.
func NewPack(sampler port.CellSampler, rng *rand.Rand, cellCount uint16) (*Pack, error) {
	if cellCount == 0 {
		return nil, ErrInvalidConfiguration
	}
	p := &Pack{
		sampler: sampler,
		rng:     rng,
		status:  domain.PackStatusIdle,
	}
	p.cells = make([]domain.CellReading, 0, cellCount)
	for i := uint16(0); i < cellCount; i++ {
		p.cells = append(p.cells, sampler.InitialReading(i+1))
	}
	p.update()
	return p, nil
}

// Reconfigure grows or truncates the cell set to newCount. Surviving cells
// keep their state; only the next Update advances them. A no-op when newCount
// equals the current count.
func (p *Pack) Reconfigure(newCount uint16) error {
	if newCount == 0 {
		return ErrInvalidConfiguration
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	current := uint16(len(p.cells))
	if newCount == current {
		return nil
	}
	if newCount < current {
		p.cells = p.cells[:newCount]
	} else {
		for i := current; i < newCount; i++ {
			p.cells = append(p.cells, p.sampler.InitialReading(i+1))
		}
	}
	p.refreshAggregates()
	return nil
}

// Update advances every cell one tick and recomputes the aggregates.
func (p *Pack) Update() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.update()
}

func (p *Pack) update() {
	p.totalVoltage = 0
	for i := range p.cells {
		p.cells[i] = p.sampler.NextReading(p.cells[i])
		p.totalVoltage += p.cells[i].Voltage
	}

	// occasional random status transition
	if p.rng.IntN(10) == 0 {
		p.status = domain.PackStatus(p.rng.IntN(domain.PackStatusCount))
	}

	switch p.status {
	case domain.PackStatusIdle:
		p.current = p.randomFloat(-0.1, 0.1)
	case domain.PackStatusCharging:
		p.current = p.randomFloat(1.0, MaxChargeCurrent)
	case domain.PackStatusDischarging:
		p.current = p.randomFloat(-MaxDischargeAmps, -1.0)
	case domain.PackStatusError:
		p.current = 0
	case domain.PackStatusBalancing:
		p.current = p.randomFloat(-0.5, 0.5)
	}

	p.power = p.totalVoltage * p.current
	p.uptime++
}

// refreshAggregates recomputes the voltage-derived fields from the cells as
// they are, without a simulation step. Status, current and uptime keep their
// values.
func (p *Pack) refreshAggregates() {
	p.totalVoltage = 0
	for i := range p.cells {
		p.totalVoltage += p.cells[i].Voltage
	}
	p.power = p.totalVoltage * p.current
}

func (p *Pack) randomFloat(min, max float64) float64 {
	return min + p.rng.Float64()*(max-min)
}

// ForceStatus overrides the stochastic status, used by remote balancing
// commands. The next ticks may transition away again.
func (p *Pack) ForceStatus(status domain.PackStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

func (p *Pack) CellCount() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint16(len(p.cells))
}

// Snapshot returns a serializable copy of the pack and cell state.
func (p *Pack) Snapshot() domain.PackSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	cells := make([]domain.CellReading, len(p.cells))
	copy(cells, p.cells)

	return domain.PackSnapshot{
		Cells: cells,
		Pack: domain.PackMetrics{
			TotalVoltage: p.totalVoltage,
			Current:      p.current,
			Power:        p.power,
			Status:       p.status.String(),
			Uptime:       p.uptime,
		},
	}
}
