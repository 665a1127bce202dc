package signaling

import (
	"log/slog"

	"github.com/wojtas-j/cam-relay/internal/metrics"
)

// RosterBroadcaster pushes the current username list to every open session
// whenever registry membership changes. Per-recipient write failures are
// logged and skipped; the broadcast never fails as a whole.
type RosterBroadcaster struct {
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewRosterBroadcaster(log *slog.Logger, m *metrics.Metrics) *RosterBroadcaster {
	return &RosterBroadcaster{log: log, metrics: m}
}

// Broadcast sends {"type":"user-list","payload":[...]} to each recipient.
// Shaped to plug directly into Registry's onChange hook.
func (b *RosterBroadcaster) Broadcast(roster []string, recipients []Handle) {
	data, err := encodeUserList(roster)
	if err != nil {
		b.log.Error("encode user-list", "err", err)
		return
	}

	for _, h := range recipients {
		if !h.Open() {
			continue
		}
		if err := h.WriteText(data); err != nil {
			b.log.Warn("broadcast user-list", "err", err)
			b.metrics.ForwardErrors.Inc()
		}
	}
	b.metrics.RosterBroadcasts.Inc()
}
