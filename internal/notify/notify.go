// Package notify provides cross-platform desktop notifications.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/nimbusdrive/nimbus-cli/internal/logging"
)

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	mu      sync.RWMutex
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if notifications are sent at all.
	Enabled bool

	// ShowNewItems announces items appearing on the drive.
	ShowNewItems bool

	// ShowUploadComplete announces finished batch uploads.
	ShowUploadComplete bool

	// ShowHealth announces backend health flips.
	ShowHealth bool
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:            true,
		ShowNewItems:       true,
		ShowUploadComplete: true,
		ShowHealth:         false, // Disabled by default to avoid spam
	}
}

// NewNotifier creates a new notifier with the given configuration.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Notifier{
		logger:  logger,
		enabled: cfg.Enabled,
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// NewItems announces items that appeared on the drive since the last poll.
func (n *Notifier) NewItems(count int) {
	if !n.IsEnabled() || count == 0 {
		return
	}

	title := "NimbusDrive"
	message := fmt.Sprintf("%d new item(s) appeared on your drive.", count)

	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send new items notification")
	}
}

// UploadComplete announces a finished batch upload.
func (n *Notifier) UploadComplete(batchName string, successful, failed int) {
	if !n.IsEnabled() {
		return
	}

	title := "Upload Complete"
	message := fmt.Sprintf("Batch %q: %d uploaded.", truncate(batchName, 40), successful)
	if failed > 0 {
		title = "Upload Finished With Errors"
		message = fmt.Sprintf("Batch %q: %d uploaded, %d failed.", truncate(batchName, 40), successful, failed)
	}

	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Str("batch", batchName).Msg("Failed to send upload notification")
	}
}

// BackendHealth announces a backend health flip.
func (n *Notifier) BackendHealth(healthy bool) {
	if !n.IsEnabled() {
		return
	}

	title := "NimbusDrive"
	message := "Connection to NimbusDrive restored."
	if !healthy {
		message = "NimbusDrive is unreachable. Changes will sync when it recovers."
	}

	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send health notification")
	}
}

// send delivers the notification through the platform's native channel:
// toast on Windows, NSUserNotificationCenter on macOS, D-Bus on Linux.
func (n *Notifier) send(title, message string) error {
	return beeep.Notify(title, message, "")
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
