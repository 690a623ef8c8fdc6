// Package command implements the prefix router, the static plugin registry,
// and the tenant-scoped dispatch context handed to command handlers.
package command

import (
	"context"

	"github.com/wadash/wadash/internal/store"
)

// Message is one inbound chat message as seen by the router. Transient;
// never persisted.
type Message struct {
	TenantID     string
	ChatJID      string
	SenderJID    string
	MessageID    string
	PushName     string
	Text         string
	IsFromMe     bool
	IsGroup      bool
	QuotedSender string
	Mentions     []string
}

// Responder sends replies back into the originating chat. The connection
// instance implements it; tests use fakes.
type Responder interface {
	Reply(ctx context.Context, chatJID, text string) error
}

// UserStore is the tenant-scoped slice of the record store a handler may
// touch. All methods operate only on the tenant the context was built for.
type UserStore interface {
	GetUser(jid string) (store.UserRecord, error)
	UpdateUser(jid string, patch store.UserPatch) error
	AllUsers() (map[string]store.UserRecord, error)
}

// Context is the per-invocation dispatch context. Never shared across
// invocations.
type Context struct {
	TenantID     string
	Command      string
	Text         string
	UsedPrefix   string
	InvocationID string
	Settings     store.Settings
	Users        UserStore
	Registry     *Registry

	responder Responder
	chatJID   string
}

// Reply sends text back to the chat the command came from.
func (c *Context) Reply(ctx context.Context, text string) error {
	return c.responder.Reply(ctx, c.chatJID, text)
}

// Handler is the contract every command plugin implements.
type Handler func(ctx context.Context, m *Message, dc *Context) error

// Registration describes one plugin: its aliases, metadata, and handler.
type Registration struct {
	Names []string
	Tags  []string
	Help  []string
	Run   Handler
}
