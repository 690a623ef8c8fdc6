// Package alert sends operator notifications for conditions that need
// manual intervention.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"github.com/wadash/wadash/internal/config"
)

// Notifier posts operator alerts to Slack. The zero-value (or a notifier
// built from a disabled config) is a no-op.
type Notifier struct {
	client  *slack.Client
	channel string
}

// NewNotifier builds a notifier from config. Returns a no-op notifier when
// Slack alerts are disabled or unconfigured.
func NewNotifier(cfg config.SlackConfig) *Notifier {
	if !cfg.Enabled || cfg.Token == "" || cfg.Channel == "" {
		return &Notifier{}
	}
	return &Notifier{
		client:  slack.New(cfg.Token),
		channel: cfg.Channel,
	}
}

// Enabled reports whether alerts will actually be delivered.
func (n *Notifier) Enabled() bool {
	return n != nil && n.client != nil
}

// ReconnectsExhausted alerts that a tenant's bot gave up reconnecting and
// stays disconnected until an operator restarts it. Fire-and-forget: the
// connection state machine must never block on Slack.
func (n *Notifier) ReconnectsExhausted(tenantID string, attempts int) {
	n.post(fmt.Sprintf(":rotating_light: bot for tenant `%s` exhausted %d reconnect attempts and stays disconnected until restarted", tenantID, attempts))
}

// LoggedOut alerts that a tenant's session was remotely logged out and
// needs fresh pairing.
func (n *Notifier) LoggedOut(tenantID string) {
	n.post(fmt.Sprintf(":warning: bot for tenant `%s` was logged out; a new pairing is required", tenantID))
}

func (n *Notifier) post(text string) {
	if !n.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _, err := n.client.PostMessageContext(ctx, n.channel,
			slack.MsgOptionText(text, false))
		if err != nil {
			slog.Warn("slack alert failed", "error", err)
		}
	}()
}
