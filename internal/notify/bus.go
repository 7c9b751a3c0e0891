package notify

import (
	"encoding/json"
	"log/slog"

	"github.com/phonescreen-labs/phonescreen-core/internal/bus"
	"github.com/phonescreen-labs/phonescreen-core/internal/protocol"
)

// BusNotifier publishes interview progress on the bus. Delivery is
// best-effort: publish failures are logged and dropped, never surfaced to the
// call flow.
type BusNotifier struct {
	bus *bus.Client
	log *slog.Logger
}

func NewBusNotifier(busClient *bus.Client, log *slog.Logger) *BusNotifier {
	return &BusNotifier{
		bus: busClient,
		log: log.With(slog.String("component", "notifier")),
	}
}

func (n *BusNotifier) InterviewUpdate(update protocol.InterviewUpdate) {
	n.publish(protocol.SubjectInterviewUpdate, update)
}

func (n *BusNotifier) InterviewEnded(ev protocol.InterviewLifecycle) {
	n.publish(protocol.SubjectInterviewEnded, ev)
}

func (n *BusNotifier) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.log.Warn("failed to encode notification", slog.String("error", err.Error()))
		return
	}
	if err := n.bus.Conn().Publish(subject, data); err != nil {
		n.log.Warn("failed to publish notification",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}
