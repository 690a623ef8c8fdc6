package command

import (
	"context"
	"fmt"

	"github.com/wadash/wadash/internal/store"
)

// The relationship commands maintain the per-tenant partner field on user
// records. A one-sided partner entry is a pending proposal; a mutual pair
// is a relationship. All of them resolve their target through
// ResolveTarget so mentions, digits, and quoted messages behave the same
// everywhere.

func setPartner(users UserStore, jid, partner string) error {
	return users.UpdateUser(jid, store.UserPatch{Partner: &partner})
}

// isMutual reports whether a and b point at each other.
func isMutual(all map[string]store.UserRecord, a, b string) bool {
	ra, okA := all[a]
	rb, okB := all[b]
	return okA && okB && ra.Partner == b && rb.Partner == a
}

func proposeCommand() *Registration {
	return &Registration{
		Names: []string{"propose", "tembak"},
		Tags:  []string{"fun"},
		Help:  []string{"propose to someone"},
		Run: func(ctx context.Context, m *Message, dc *Context) error {
			target, ok := ResolveTarget(m, dc.Text)
			if !ok {
				return dc.Reply(ctx, fmt.Sprintf("❌ Usage: %s%s @user", dc.UsedPrefix, dc.Command))
			}
			if target == m.SenderJID {
				return dc.Reply(ctx, "❌ You can't date yourself!")
			}

			sender, err := dc.Users.GetUser(m.SenderJID)
			if err != nil {
				return err
			}
			targetRec, err := dc.Users.GetUser(target)
			if err != nil {
				return err
			}
			all, err := dc.Users.AllUsers()
			if err != nil {
				return err
			}

			// Already faithfully paired with someone else.
			if sender.Partner != "" && sender.Partner != target && isMutual(all, m.SenderJID, sender.Partner) {
				return dc.Reply(ctx, fmt.Sprintf(
					"❌ You're already with @%s. Break up first with %sbreakup. 💔",
					BareNumber(sender.Partner), dc.UsedPrefix))
			}

			// Target is taken.
			if targetRec.Partner != "" && targetRec.Partner != m.SenderJID && isMutual(all, target, targetRec.Partner) {
				return dc.Reply(ctx, fmt.Sprintf(
					"❌ @%s is already with @%s. Find someone else! 💔",
					BareNumber(target), BareNumber(targetRec.Partner)))
			}

			// Proposing to your own partner again.
			if sender.Partner == target && targetRec.Partner == m.SenderJID {
				return dc.Reply(ctx, fmt.Sprintf("❤️ You're already together with @%s. Stay loyal! 💕", BareNumber(target)))
			}

			// They already asked us; proposing back completes the pair.
			if targetRec.Partner == m.SenderJID {
				if err := setPartner(dc.Users, m.SenderJID, target); err != nil {
					return err
				}
				return dc.Reply(ctx, fmt.Sprintf(
					"🎉 Congratulations! You and @%s are now officially a couple! 💕", BareNumber(target)))
			}

			// Plain proposal.
			if err := setPartner(dc.Users, m.SenderJID, target); err != nil {
				return err
			}
			return dc.Reply(ctx, fmt.Sprintf(
				"💌 You just proposed to @%s.\n\nThey can answer with %saccept @%s or %sreject @%s",
				BareNumber(target), dc.UsedPrefix, BareNumber(m.SenderJID), dc.UsedPrefix, BareNumber(m.SenderJID)))
		},
	}
}

func acceptCommand() *Registration {
	return &Registration{
		Names: []string{"accept", "terima"},
		Tags:  []string{"fun"},
		Help:  []string{"accept a proposal"},
		Run: func(ctx context.Context, m *Message, dc *Context) error {
			target, ok := ResolveTarget(m, dc.Text)
			if !ok {
				return dc.Reply(ctx, fmt.Sprintf("❌ Usage: %s%s @user", dc.UsedPrefix, dc.Command))
			}

			targetRec, err := dc.Users.GetUser(target)
			if err != nil {
				return err
			}
			if targetRec.Partner != m.SenderJID {
				return dc.Reply(ctx, fmt.Sprintf("❌ @%s hasn't proposed to you. Nothing to accept.", BareNumber(target)))
			}

			sender, err := dc.Users.GetUser(m.SenderJID)
			if err != nil {
				return err
			}
			all, err := dc.Users.AllUsers()
			if err != nil {
				return err
			}
			if sender.Partner != "" && sender.Partner != target && isMutual(all, m.SenderJID, sender.Partner) {
				return dc.Reply(ctx, fmt.Sprintf(
					"❌ You're already with @%s. Break up first before accepting someone else! 💔",
					BareNumber(sender.Partner)))
			}

			if err := setPartner(dc.Users, m.SenderJID, target); err != nil {
				return err
			}
			return dc.Reply(ctx, fmt.Sprintf(
				"🎉 @%s accepted @%s. You're officially a couple! 💑", BareNumber(m.SenderJID), BareNumber(target)))
		},
	}
}

func rejectCommand() *Registration {
	return &Registration{
		Names: []string{"reject", "tolak"},
		Tags:  []string{"fun"},
		Help:  []string{"reject a proposal"},
		Run: func(ctx context.Context, m *Message, dc *Context) error {
			target, ok := ResolveTarget(m, dc.Text)
			if !ok {
				return dc.Reply(ctx, fmt.Sprintf("❌ Usage: %s%s @user", dc.UsedPrefix, dc.Command))
			}

			targetRec, err := dc.Users.GetUser(target)
			if err != nil {
				return err
			}
			if targetRec.Partner != m.SenderJID {
				return dc.Reply(ctx, fmt.Sprintf("❌ @%s hasn't proposed to you. Nothing to reject.", BareNumber(target)))
			}

			if err := setPartner(dc.Users, target, ""); err != nil {
				return err
			}
			return dc.Reply(ctx, fmt.Sprintf("💔 @%s rejected @%s. Better luck next time!", BareNumber(m.SenderJID), BareNumber(target)))
		},
	}
}

func breakupCommand() *Registration {
	return &Registration{
		Names: []string{"breakup", "putus"},
		Tags:  []string{"fun"},
		Help:  []string{"end your relationship"},
		Run: func(ctx context.Context, m *Message, dc *Context) error {
			sender, err := dc.Users.GetUser(m.SenderJID)
			if err != nil {
				return err
			}
			if sender.Partner == "" {
				return dc.Reply(ctx, "❌ You don't have a partner. Nothing to break up.")
			}

			partner := sender.Partner
			all, err := dc.Users.AllUsers()
			if err != nil {
				return err
			}
			mutual := isMutual(all, m.SenderJID, partner)

			if err := setPartner(dc.Users, m.SenderJID, ""); err != nil {
				return err
			}
			if mutual {
				if err := setPartner(dc.Users, partner, ""); err != nil {
					return err
				}
				return dc.Reply(ctx, fmt.Sprintf("💔 You and @%s broke up. Time heals everything.", BareNumber(partner)))
			}
			return dc.Reply(ctx, fmt.Sprintf("💔 Proposal to @%s withdrawn.", BareNumber(partner)))
		},
	}
}

func coupleCommand() *Registration {
	return &Registration{
		Names: []string{"couple", "cekpacar", "cekpasangan"},
		Tags:  []string{"fun"},
		Help:  []string{"check a relationship status"},
		Run: func(ctx context.Context, m *Message, dc *Context) error {
			target, ok := ResolveTarget(m, dc.Text)
			who := "You"
			if !ok {
				target = m.SenderJID
			} else if target != m.SenderJID {
				who = "@" + BareNumber(target)
			}

			rec, err := dc.Users.GetUser(target)
			if err != nil {
				return err
			}
			if rec.Partner == "" {
				return dc.Reply(ctx, fmt.Sprintf(
					"💔 *%s* single and not proposing to anyone.\n\nTry %spropose @user", who, dc.UsedPrefix))
			}

			all, err := dc.Users.AllUsers()
			if err != nil {
				return err
			}
			if !isMutual(all, target, rec.Partner) {
				return dc.Reply(ctx, fmt.Sprintf(
					"💭 *%s* waiting for an answer from @%s.\n\nStatus: proposal pending 🤞", who, BareNumber(rec.Partner)))
			}
			return dc.Reply(ctx, fmt.Sprintf(
				"💑 *%s* in a relationship with @%s 💕\n\nStatus: together 🥳", who, BareNumber(rec.Partner)))
		},
	}
}
