package main

import (
	"log/slog"

	"github.com/fieldrobotics/grapple-can-gateway/internal/can"
	"github.com/fieldrobotics/grapple-can-gateway/internal/canid"
	"github.com/fieldrobotics/grapple-can-gateway/internal/grapplebus"
	"github.com/fieldrobotics/grapple-can-gateway/internal/hub"
)

// wireDecodeLog attaches a grapplebus.Bus to h.Sniff so every frame crossing
// the hub is opportunistically decoded and logged at debug level. It never
// touches the broadcast path itself: a decode failure is logged at debug
// level, and a frame absorbed into an in-progress fragment set logs nothing
// (grapplebus counts codec errors and completed or expired fragment sets in
// the protocol metrics).
func wireDecodeLog(h *hub.Hub, cfg *appConfig, l *slog.Logger) {
	if !cfg.decodeLog {
		return
	}
	bus := grapplebus.New(cfg.protocolAgeOff, cfg.protocolMaxSets)
	var tick int64
	h.Sniff = func(fr can.Frame) {
		tick++
		msg, ok, err := bus.Receive(tick, fr.CANID&canid.IDMask, fr.Data[:fr.Len])
		if err != nil {
			l.Debug("decode_log_error", "err", err)
			return
		}
		if !ok {
			return
		}
		l.Debug("decoded_frame", "device_type", msg.ID.DeviceType, "device_id", msg.ID.DeviceID, "payload", msg.Payload)
	}
}
