package signaling

import (
	"log/slog"

	"github.com/wojtas-j/cam-relay/internal/metrics"
)

// Router forwards signaling messages between registered sessions. Delivery is
// best effort: an unknown or closed recipient and a failed write all end the
// same way, with the frame dropped and the sender none the wiser.
type Router struct {
	log      *slog.Logger
	registry *Registry
	metrics  *metrics.Metrics
}

func NewRouter(log *slog.Logger, registry *Registry, m *metrics.Metrics) *Router {
	return &Router{log: log, registry: registry, metrics: m}
}

// Route delivers msg to the session registered under msg.To. Exactly one send
// attempt; no retries, no buffering.
func (rt *Router) Route(msg message) {
	h, ok := rt.registry.Lookup(msg.To)
	if !ok {
		rt.log.Debug("dropping message for unknown recipient",
			"type", msg.Type, "from", msg.From, "to", msg.To)
		rt.metrics.MessagesDropped.WithLabelValues(metrics.DropMissingTarget).Inc()
		return
	}
	if !h.Open() {
		rt.log.Debug("dropping message for closed recipient",
			"type", msg.Type, "from", msg.From, "to", msg.To)
		rt.metrics.MessagesDropped.WithLabelValues(metrics.DropClosedTarget).Inc()
		return
	}

	data, err := encodeMessage(msg)
	if err != nil {
		rt.log.Error("encode signaling message", "err", err)
		rt.metrics.MessagesDropped.WithLabelValues(metrics.DropSendError).Inc()
		return
	}

	if err := h.WriteText(data); err != nil {
		rt.log.Warn("forward signaling message",
			"type", msg.Type, "from", msg.From, "to", msg.To, "err", err)
		rt.metrics.MessagesDropped.WithLabelValues(metrics.DropSendError).Inc()
		rt.metrics.ForwardErrors.Inc()
		return
	}
	rt.metrics.MessagesRouted.WithLabelValues(string(msg.Type)).Inc()
}
