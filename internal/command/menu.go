package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// menuCommand lists every registered command grouped by tag.
func menuCommand() *Registration {
	return &Registration{
		Names: []string{"menu", "help", "m"},
		Tags:  []string{"main"},
		Help:  []string{"show the command menu"},
		Run: func(ctx context.Context, m *Message, dc *Context) error {
			byTag := map[string][]*Registration{}
			for _, reg := range dc.Registry.All() {
				tag := "main"
				if len(reg.Tags) > 0 {
					tag = reg.Tags[0]
				}
				byTag[tag] = append(byTag[tag], reg)
			}

			tags := make([]string, 0, len(byTag))
			for tag := range byTag {
				tags = append(tags, tag)
			}
			sort.Strings(tags)

			var b strings.Builder
			fmt.Fprintf(&b, "🤖 *%s MENU* 🤖\n\n", strings.ToUpper(dc.Settings.BotName))
			for _, tag := range tags {
				fmt.Fprintf(&b, "*%s*\n", strings.ToUpper(tag))
				for _, reg := range byTag[tag] {
					desc := reg.Names[0]
					if len(reg.Help) > 0 {
						desc = reg.Help[0]
					}
					fmt.Fprintf(&b, "➤ %s%s - %s\n", dc.UsedPrefix, reg.Names[0], desc)
				}
				b.WriteString("\n")
			}
			return dc.Reply(ctx, b.String())
		},
	}
}
