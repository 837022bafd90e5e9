package events

import (
	"time"

	"github.com/carlmjohnson/versioninfo"

	"pack2mqtt/internal/core/domain"
)

// SnapshotToStatusPayload wraps a pack snapshot with the device identity for
// the retained status document.
func SnapshotToStatusPayload(snap domain.PackSnapshot, params domain.DeviceParams, at time.Time) domain.StatusPayload {
	return domain.StatusPayload{
		Device: domain.DeviceInfo{
			Name:            params.DeviceName,
			Model:           params.DeviceModel,
			Key:             params.DeviceKey,
			FirmwareVersion: versioninfo.Short(),
		},
		Cells:     snap.Cells,
		Pack:      snap.Pack,
		Timestamp: at.UnixMilli(),
	}
}

// SnapshotToHistoryRecord strips the identity, history documents live under
// the device key already.
func SnapshotToHistoryRecord(snap domain.PackSnapshot, at time.Time) domain.HistoryRecord {
	return domain.HistoryRecord{
		Cells:     snap.Cells,
		Pack:      snap.Pack,
		Timestamp: at.UnixMilli(),
	}
}

func NewAlertRaisedEvent(message string, critical bool, at time.Time) *domain.AlertRaisedEvent {
	return &domain.AlertRaisedEvent{
		Message:   message,
		Critical:  critical,
		Timestamp: at.UnixMilli(),
	}
}
