package bot

import (
	"testing"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestExtractText_Shapes(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{
			name: "conversation",
			msg:  &waE2E.Message{Conversation: proto.String("hello")},
			want: "hello",
		},
		{
			name: "extended text",
			msg: &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text: proto.String("extended"),
			}},
			want: "extended",
		},
		{
			name: "image caption",
			msg: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
				Caption: proto.String("look at this"),
			}},
			want: "look at this",
		},
		{
			name: "video caption",
			msg: &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
				Caption: proto.String("watch this"),
			}},
			want: "watch this",
		},
		{
			name: "no text",
			msg:  &waE2E.Message{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText(&events.Message{Message: tt.msg}); got != tt.want {
				t.Errorf("extractText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractContext_QuotedAndMentions(t *testing.T) {
	evt := &events.Message{Message: &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String("!profile @628002"),
			ContextInfo: &waE2E.ContextInfo{
				Participant:  proto.String("628001@s.whatsapp.net"),
				MentionedJID: []string{"628002@s.whatsapp.net"},
			},
		},
	}}

	quoted, mentions := extractContext(evt)
	if quoted != "628001@s.whatsapp.net" {
		t.Errorf("quoted = %q", quoted)
	}
	if len(mentions) != 1 || mentions[0] != "628002@s.whatsapp.net" {
		t.Errorf("mentions = %v", mentions)
	}
}

func TestExtractContext_PlainMessageHasNone(t *testing.T) {
	evt := &events.Message{Message: &waE2E.Message{Conversation: proto.String("hi")}}

	quoted, mentions := extractContext(evt)
	if quoted != "" || mentions != nil {
		t.Errorf("unexpected context (%q, %v)", quoted, mentions)
	}
}
