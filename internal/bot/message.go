package bot

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
)

// extractText pulls the user-visible text out of the supported message
// shapes: plain conversation, extended text, and media captions.
func extractText(v *events.Message) string {
	msg := v.Message
	if t := msg.GetConversation(); t != "" {
		return t
	}
	if t := msg.GetExtendedTextMessage().GetText(); t != "" {
		return t
	}
	if t := msg.GetImageMessage().GetCaption(); t != "" {
		return t
	}
	if t := msg.GetVideoMessage().GetCaption(); t != "" {
		return t
	}
	return ""
}

// extractContext returns the quoted-message sender and the mentioned JIDs,
// whichever message shape carries the context info.
func extractContext(v *events.Message) (quotedSender string, mentions []string) {
	ci := contextInfo(v)
	if ci == nil {
		return "", nil
	}
	return ci.GetParticipant(), ci.GetMentionedJID()
}

func contextInfo(v *events.Message) *waE2E.ContextInfo {
	msg := v.Message
	if ext := msg.GetExtendedTextMessage(); ext != nil && ext.ContextInfo != nil {
		return ext.ContextInfo
	}
	if img := msg.GetImageMessage(); img != nil && img.ContextInfo != nil {
		return img.ContextInfo
	}
	if vid := msg.GetVideoMessage(); vid != nil && vid.ContextInfo != nil {
		return vid.ContextInfo
	}
	return nil
}
