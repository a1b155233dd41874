package ledger

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafenet",
			Subsystem: "ledger",
			Name:      "commands_total",
			Help:      "Ledger commands by command and outcome (ok, rejected, error).",
		},
		[]string{"command", "outcome"},
	)

	undoTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafenet",
			Subsystem: "ledger",
			Name:      "undo_total",
			Help:      "Undone actions by kind.",
		},
		[]string{"kind"},
	)
)

func observeCommand(command string, err error) {
	commandsTotal.WithLabelValues(command, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrStorage):
		return "error"
	default:
		return "rejected"
	}
}
