package alert

import (
	"testing"

	"github.com/wadash/wadash/internal/config"
)

func TestNewNotifier_DisabledConfigsAreNoops(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SlackConfig
	}{
		{"disabled", config.SlackConfig{Enabled: false, Token: "xoxb-1", Channel: "#ops"}},
		{"missing token", config.SlackConfig{Enabled: true, Channel: "#ops"}},
		{"missing channel", config.SlackConfig{Enabled: true, Token: "xoxb-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNotifier(tt.cfg)
			if n.Enabled() {
				t.Error("notifier should be a no-op")
			}
			// No-op delivery must not panic or touch the network.
			n.ReconnectsExhausted("owner@example.com", 5)
			n.LoggedOut("owner@example.com")
		})
	}
}

func TestNewNotifier_EnabledWithFullConfig(t *testing.T) {
	n := NewNotifier(config.SlackConfig{Enabled: true, Token: "xoxb-1", Channel: "#ops"})
	if !n.Enabled() {
		t.Error("notifier should be enabled")
	}
}

func TestNotifier_ZeroValueIsSafe(t *testing.T) {
	var n Notifier
	if n.Enabled() {
		t.Error("zero value should be disabled")
	}
	n.LoggedOut("owner@example.com")
}
