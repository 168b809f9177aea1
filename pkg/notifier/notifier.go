// Package notifier sends desktop notifications when long operations finish
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/devenvgo/devenv/pkg/logger"
)

// SendFunc delivers one notification
type SendFunc func(title, message string) error

// Notifier reports finished operations. A disabled Notifier does nothing.
type Notifier struct {
	enabled bool
	send    SendFunc
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
	// Send overrides the desktop delivery
	Send SendFunc
}

// New creates a notifier
func New(config Config, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	send := config.Send
	if send == nil {
		send = func(title, message string) error {
			return beeep.Notify(title, message, "")
		}
	}
	return &Notifier{
		enabled: config.Enabled,
		send:    send,
		logger:  log,
	}
}

// NotifySuccess reports that an operation finished
func (n *Notifier) NotifySuccess(operation string, duration time.Duration) {
	if n == nil || !n.enabled {
		return
	}
	n.deliver("✅ devenv", fmt.Sprintf("%s finished in %s", operation, formatDuration(duration)))
}

// NotifyFailure reports that an operation failed
func (n *Notifier) NotifyFailure(operation string, err error) {
	if n == nil || !n.enabled {
		return
	}
	n.deliver("❌ devenv", fmt.Sprintf("%s failed: %v", operation, err))
}

func (n *Notifier) deliver(title, message string) {
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
