// Package notify shows desktop notifications.
package notify

import (
	"io"
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Desktop sends notifications through the OS notification center. A
// disabled Desktop only logs.
type Desktop struct {
	enabled bool
	send    func(title, message string) error
	logger  *slog.Logger
}

func NewDesktop(enabled bool, logger *slog.Logger) *Desktop {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Desktop{
		enabled: enabled,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		logger: logger,
	}
}

func (d *Desktop) Notify(title, message string) error {
	d.logger.Debug("notification", "title", title, "message", message)
	if !d.enabled {
		return nil
	}
	return d.send(title, message)
}
