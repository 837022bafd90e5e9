package service

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
	"pack2mqtt/internal/params"
)

// Remote config document keys.
const (
	cfgKeyName               = "name"
	cfgKeyModel              = "model"
	cfgKeyCellCount          = "cell_count"
	cfgKeySampleIntervalMs   = "sample_interval_ms"
	cfgKeyDeepSleepEnabled   = "deep_sleep_enabled"
	cfgKeyShutdownVoltage    = "shutdown_voltage"
	cfgKeyMaxCurrent         = "max_current"
	cfgKeyAlertHighTemp      = "alert_high_temp"
	cfgKeyAlertLowTemp       = "alert_low_temp"
	cfgKeyAlertHighVoltage   = "alert_high_voltage"
	cfgKeyAlertLowVoltage    = "alert_low_voltage"
	cfgKeyBalancingEnabled   = "balancing_enabled"
	cfgKeyBalancingThreshold = "balancing_threshold"
)

const DefaultRestartDelay = 2 * time.Second

// Reconciler applies remote config documents and remote command sets to the
// local device. Config changes end in a single persisted param update;
// commands are acknowledged back to the remote store as they execute.
type Reconciler struct {
	Params       *params.Handle
	Control      port.DeviceControl
	Process      port.ProcessController
	Commands     port.CommandSink
	Clock        func() time.Time
	RestartDelay time.Duration
	Logger       *zap.Logger
}

func NewReconciler(handle *params.Handle, control port.DeviceControl, process port.ProcessController,
	commands port.CommandSink, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		Params:       handle,
		Control:      control,
		Process:      process,
		Commands:     commands,
		Clock:        time.Now,
		RestartDelay: DefaultRestartDelay,
		Logger:       logger,
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// ApplyConfig folds every recognized key of the payload into the device
// params. Unknown keys and values of the wrong type are skipped, the rest
// still applies. Returns whether anything changed.
func (r *Reconciler) ApplyConfig(payload domain.ConfigPayload) (bool, error) {
	changed, err := r.Params.UpdateParams(func(p *domain.DeviceParams) {
		for key, raw := range payload {
			switch key {
			case cfgKeyName:
				if s, ok := asString(raw); ok {
					p.DeviceName = s
				}
			case cfgKeyModel:
				if s, ok := asString(raw); ok {
					p.DeviceModel = s
				}
			case cfgKeyCellCount:
				if n, ok := asFloat(raw); ok && n >= 1 && n <= 65535 {
					p.CellCount = uint16(n)
				}
			case cfgKeySampleIntervalMs:
				if n, ok := asFloat(raw); ok && n > 0 {
					seconds := uint32(n / 1000)
					if seconds < 1 {
						seconds = 1
					}
					p.SampleIntervalSeconds = seconds
				}
			case cfgKeyDeepSleepEnabled:
				if b, ok := asBool(raw); ok {
					p.DeepSleepEnabled = b
				}
			case cfgKeyShutdownVoltage:
				if n, ok := asFloat(raw); ok && n > 0 {
					p.ShutdownVoltage = n
				}
			case cfgKeyMaxCurrent:
				if n, ok := asFloat(raw); ok && n > 0 {
					p.MaxCurrent = n
				}
			case cfgKeyAlertHighTemp:
				if n, ok := asFloat(raw); ok {
					p.AlertHighTemp = n
				}
			case cfgKeyAlertLowTemp:
				if n, ok := asFloat(raw); ok {
					p.AlertLowTemp = n
				}
			case cfgKeyAlertHighVoltage:
				if n, ok := asFloat(raw); ok && n > 0 {
					p.AlertHighVoltage = n
				}
			case cfgKeyAlertLowVoltage:
				if n, ok := asFloat(raw); ok && n > 0 {
					p.AlertLowVoltage = n
				}
			case cfgKeyBalancingEnabled:
				if b, ok := asBool(raw); ok {
					p.BalancingEnabled = b
				}
			case cfgKeyBalancingThreshold:
				if n, ok := asFloat(raw); ok && n > 0 {
					p.BalancingThreshold = n
				}
			default:
				r.Logger.Debug("ignoring unknown config key", zap.String("key", key))
			}
		}
	})
	if err != nil {
		r.Logger.Error("could not persist remote config", zap.Error(err))
		return false, err
	}
	if changed {
		r.Logger.Info("remote config applied")
	}
	return changed, nil
}

// ApplyCommands walks the remote command set in id order and executes every
// pending entry. Entries with no type or a missing required value are left
// untouched so a later corrected write can still pick them up.
func (r *Reconciler) ApplyCommands(commands map[string]domain.CommandEntry) {
	ids := make([]string, 0, len(commands))
	for id := range commands {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		cmd := commands[id]
		cmd.ID = id
		if cmd.Status != domain.CommandStatusPending {
			continue
		}
		if cmd.Type == "" {
			r.Logger.Warn("skipping command without type", zap.String("id", id))
			continue
		}
		if (cmd.Type == domain.CommandTypePower || cmd.Type == domain.CommandTypeBalancing) && cmd.Value == "" {
			r.Logger.Warn("skipping command without value",
				zap.String("id", id), zap.String("type", cmd.Type))
			continue
		}
		r.executeCommand(cmd)
	}
}

func (r *Reconciler) executeCommand(cmd domain.CommandEntry) {
	now := r.Clock()
	if err := r.Commands.SetCommandStatus(cmd.ID, domain.CommandStatusUpdate{
		Status:     domain.CommandStatusReceived,
		ReceivedAt: now.Unix(),
	}); err != nil {
		r.Logger.Error("could not acknowledge command",
			zap.String("id", cmd.ID), zap.Error(err))
		return
	}

	switch cmd.Type {
	case domain.CommandTypePower:
		r.finishCommand(cmd.ID, r.Control.SetPower(cmd.Value == "on"), "power set to "+cmd.Value)
	case domain.CommandTypeBalancing:
		r.finishCommand(cmd.ID, r.Control.SetBalancing(cmd.Value == "start"), "balancing "+cmd.Value)
	case domain.CommandTypeRestart:
		r.finishCommand(cmd.ID, nil, "restarting")
		r.Logger.Info("restart command accepted", zap.String("id", cmd.ID),
			zap.Duration("delay", r.RestartDelay))
		time.Sleep(r.RestartDelay)
		r.Process.Restart()
	default:
		r.finishCommand(cmd.ID, fmt.Errorf("unknown command type %q", cmd.Type), "")
	}
}

func (r *Reconciler) finishCommand(id string, execErr error, okResult string) {
	update := domain.CommandStatusUpdate{
		Status:      domain.CommandStatusCompleted,
		CompletedAt: r.Clock().Unix(),
		Result:      okResult,
	}
	if execErr != nil {
		update.Status = domain.CommandStatusFailed
		update.Result = execErr.Error()
		r.Logger.Warn("command failed", zap.String("id", id), zap.Error(execErr))
	}
	if err := r.Commands.SetCommandStatus(id, update); err != nil {
		r.Logger.Error("could not record command result",
			zap.String("id", id), zap.Error(err))
	}
}
