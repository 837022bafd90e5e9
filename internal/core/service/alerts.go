package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"pack2mqtt/internal/core/domain"
)

// DefaultAlertInterval is the minimum spacing between two evaluation passes.
const DefaultAlertInterval = 30 * time.Second

// AlertReport is the outcome of one evaluation pass. Evaluated is false when
// the pass was skipped because of the rate limit.
type AlertReport struct {
	Alerts         []string
	ShutdownIntent bool
	Evaluated      bool
}

// AlertEvaluator checks a pack snapshot against the configured thresholds.
// Passes are rate limited so a persistent fault does not flood the remote
// alert channel.
type AlertEvaluator struct {
	MinPassInterval time.Duration
	Now             func() time.Time
	Logger          *zap.Logger

	lastPass time.Time
}

func NewAlertEvaluator(logger *zap.Logger) *AlertEvaluator {
	return &AlertEvaluator{
		MinPassInterval: DefaultAlertInterval,
		Now:             time.Now,
		Logger:          logger,
	}
}

// Evaluate runs every threshold check against the snapshot. All checks run on
// every pass, a tripped check never masks the others.
func (e *AlertEvaluator) Evaluate(snap domain.PackSnapshot, params domain.DeviceParams) AlertReport {
	now := e.Now()
	if !e.lastPass.IsZero() && now.Sub(e.lastPass) < e.MinPassInterval {
		return AlertReport{}
	}
	e.lastPass = now

	report := AlertReport{Evaluated: true}

	for _, cell := range snap.Cells {
		if cell.Temperature > params.AlertHighTemp {
			report.Alerts = append(report.Alerts,
				fmt.Sprintf("cell %d temperature high: %.1f C (limit %.1f C)", cell.ID, cell.Temperature, params.AlertHighTemp))
		}
		if cell.Temperature < params.AlertLowTemp {
			report.Alerts = append(report.Alerts,
				fmt.Sprintf("cell %d temperature low: %.1f C (limit %.1f C)", cell.ID, cell.Temperature, params.AlertLowTemp))
		}
		if cell.Voltage > params.AlertHighVoltage {
			report.Alerts = append(report.Alerts,
				fmt.Sprintf("cell %d voltage high: %.3f V (limit %.3f V)", cell.ID, cell.Voltage, params.AlertHighVoltage))
		}
		if cell.Voltage < params.AlertLowVoltage {
			report.Alerts = append(report.Alerts,
				fmt.Sprintf("cell %d voltage low: %.3f V (limit %.3f V)", cell.ID, cell.Voltage, params.AlertLowVoltage))
		}
	}

	current := snap.Pack.Current
	if current < 0 {
		current = -current
	}
	if current > params.MaxCurrent {
		report.Alerts = append(report.Alerts,
			fmt.Sprintf("pack current high: %.2f A (limit %.2f A)", snap.Pack.Current, params.MaxCurrent))
	}

	shutdownLimit := params.ShutdownVoltage * float64(len(snap.Cells))
	if len(snap.Cells) > 0 && snap.Pack.TotalVoltage < shutdownLimit {
		report.Alerts = append(report.Alerts,
			fmt.Sprintf("pack voltage critical: %.2f V (shutdown limit %.2f V)", snap.Pack.TotalVoltage, shutdownLimit))
		if params.DeepSleepEnabled {
			report.ShutdownIntent = true
		}
	}

	if len(report.Alerts) > 0 && e.Logger != nil {
		e.Logger.Warn("alerts raised", zap.Int("count", len(report.Alerts)), zap.Strings("alerts", report.Alerts))
	}

	return report
}
