package command

import (
	"context"
	"fmt"
	"time"
)

// pingCommand is the liveness check.
func pingCommand() *Registration {
	return &Registration{
		Names: []string{"ping"},
		Tags:  []string{"main"},
		Help:  []string{"check whether the bot responds"},
		Run: func(ctx context.Context, m *Message, dc *Context) error {
			start := time.Now()
			return dc.Reply(ctx, fmt.Sprintf("🏓 Pong! %s", time.Since(start).Round(time.Microsecond)))
		},
	}
}

// ownerCommand shares the owner's contact number.
func ownerCommand() *Registration {
	return &Registration{
		Names: []string{"owner"},
		Tags:  []string{"main"},
		Help:  []string{"show the bot owner's contact"},
		Run: func(ctx context.Context, m *Message, dc *Context) error {
			if dc.Settings.OwnerNumber == "" {
				return dc.Reply(ctx, "ℹ️ No owner number is configured for this bot.")
			}
			return dc.Reply(ctx, fmt.Sprintf("👤 *Owner*\n\nwa.me/%s", extractDigits(dc.Settings.OwnerNumber)))
		},
	}
}

// profileCommand shows the sender's (or a target's) record.
func profileCommand() *Registration {
	return &Registration{
		Names: []string{"profile", "me"},
		Tags:  []string{"main"},
		Help:  []string{"show your profile"},
		Run: func(ctx context.Context, m *Message, dc *Context) error {
			target, ok := ResolveTarget(m, dc.Text)
			if !ok {
				target = m.SenderJID
			}
			rec, err := dc.Users.GetUser(target)
			if err != nil {
				return err
			}
			name := rec.Name
			if name == "" {
				name = BareNumber(target)
			}
			premium := "no"
			if rec.Premium {
				premium = "yes"
			}
			return dc.Reply(ctx, fmt.Sprintf(
				"📇 *Profile*\n\nName: %s\nPremium: %s\nLimit: %d\nJoined: %s",
				name, premium, rec.Limit, rec.JoinedAt.Format("2006-01-02")))
		},
	}
}
