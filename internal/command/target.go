package command

import (
	"strings"
)

// UserServer is the JID domain for individual WhatsApp accounts.
const UserServer = "s.whatsapp.net"

// ResolveTarget resolves the identity a command is aimed at. Precedence:
// quoted message sender, then the first @mention, then bare digits in the
// argument text, then nothing. Handlers that allow self-targeting fall back
// to m.SenderJID themselves.
func ResolveTarget(m *Message, text string) (string, bool) {
	if m.QuotedSender != "" {
		return m.QuotedSender, true
	}
	if len(m.Mentions) > 0 {
		return m.Mentions[0], true
	}
	if digits := extractDigits(text); digits != "" {
		return digits + "@" + UserServer, true
	}
	return "", false
}

// extractDigits strips mention/phone punctuation and returns the digit run,
// or "" when the text is not a number at all.
func extractDigits(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '@', '+', '-':
			return -1
		}
		return r
	}, strings.TrimSpace(text))
	if cleaned == "" {
		return ""
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return cleaned
}

// BareNumber returns the user part of a JID (digits before the @).
func BareNumber(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		return jid[:i]
	}
	return jid
}
