package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wadash/wadash/internal/store"
)

// LogFunc receives tenant-visible log entries emitted by the router.
type LogFunc func(tenantID, typ, message string, data map[string]any)

// Router parses inbound messages and invokes registered command handlers.
// Dispatch never returns an error: non-commands, unknown commands, and
// handler failures are all absorbed so a single bad message can never take
// down the connection.
type Router struct {
	registry       *Registry
	store          *store.Service
	logf           LogFunc
	handlerTimeout time.Duration

	mu     sync.Mutex
	queues map[string]chan job
}

type job struct {
	ctx      context.Context
	reg      *Registration
	msg      *Message
	dispatch *Context
}

// NewRouter creates a router over a frozen registry.
func NewRouter(reg *Registry, st *store.Service, logf LogFunc) *Router {
	if logf == nil {
		logf = func(string, string, string, map[string]any) {}
	}
	return &Router{
		registry:       reg,
		store:          st,
		logf:           logf,
		handlerTimeout: 90 * time.Second,
		queues:         make(map[string]chan job),
	}
}

// Dispatch routes one inbound message. The prefix gate, the privacy gate,
// and unknown commands are silent no-ops. Matched handlers run on the
// tenant's dispatch queue, serialized per tenant in delivery order.
func (r *Router) Dispatch(ctx context.Context, m *Message, set store.Settings, rsp Responder) {
	if m.TenantID == "" {
		slog.Error("dispatch called without tenant id")
		return
	}

	r.syncUserName(m)

	text := strings.TrimSpace(m.Text)
	usedPrefix := matchPrefix(text, set)
	if usedPrefix == "" {
		return
	}

	if !set.PublicMode && !isOwner(m, set) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(text, usedPrefix))
	if len(fields) == 0 {
		return
	}
	name := fields[0]
	argText := strings.Join(fields[1:], " ")

	reg, ok := r.registry.Lookup(name)
	if !ok {
		return
	}

	dc := &Context{
		TenantID:     m.TenantID,
		Command:      name,
		Text:         argText,
		UsedPrefix:   usedPrefix,
		InvocationID: uuid.NewString(),
		Settings:     set,
		Users:        &tenantUsers{store: r.store, tenantID: m.TenantID},
		Registry:     r.registry,
		responder:    rsp,
		chatJID:      m.ChatJID,
	}

	r.enqueue(m.TenantID, job{ctx: ctx, reg: reg, msg: m, dispatch: dc})
}

// enqueue hands the job to the tenant's worker, starting it on first use.
// Per-tenant FIFO preserves network-delivery order for one tenant while
// tenants run independently.
func (r *Router) enqueue(tenantID string, j job) {
	r.mu.Lock()
	q, ok := r.queues[tenantID]
	if !ok {
		q = make(chan job, 64)
		r.queues[tenantID] = q
		go r.worker(q)
	}
	r.mu.Unlock()

	select {
	case q <- j:
	default:
		r.logf(tenantID, "error", "command queue full, dropping "+j.dispatch.Command, nil)
	}
}

func (r *Router) worker(q chan job) {
	for j := range q {
		r.run(j)
	}
}

func (r *Router) run(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, r.handlerTimeout)
	defer cancel()

	err := r.invoke(ctx, j)
	if err == nil {
		return
	}

	r.logf(j.msg.TenantID, "error", fmt.Sprintf("command %s failed: %v", j.dispatch.Command, err),
		map[string]any{"invocation": j.dispatch.InvocationID})
	if replyErr := j.dispatch.Reply(ctx, fmt.Sprintf("❌ Error: %v", err)); replyErr != nil {
		slog.Warn("failed to deliver command error reply",
			"tenant", j.msg.TenantID, "command", j.dispatch.Command, "error", replyErr)
	}
}

// invoke runs the handler, converting panics into errors so one broken
// plugin cannot crash the tenant worker.
func (r *Router) invoke(ctx context.Context, j job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return j.reg.Run(ctx, j.msg, j.dispatch)
}

// syncUserName makes sure a record exists for the sender and keeps the
// display name current. Best effort; a store hiccup must not stop routing.
func (r *Router) syncUserName(m *Message) {
	rec, err := r.store.GetUser(m.TenantID, m.SenderJID)
	if err != nil {
		slog.Warn("user record sync failed", "tenant", m.TenantID, "error", err)
		return
	}
	if m.PushName != "" && rec.Name != m.PushName {
		name := m.PushName
		if err := r.store.UpdateUser(m.TenantID, m.SenderJID, store.UserPatch{Name: &name}); err != nil {
			slog.Warn("user name update failed", "tenant", m.TenantID, "error", err)
		}
	}
}

// matchPrefix returns the prefix the message starts with, or "".
// With multiPrefix enabled the tenant prefix and the common "!", ".", "#"
// are all accepted.
func matchPrefix(text string, set store.Settings) string {
	prefix := set.Prefix
	if prefix == "" {
		prefix = "!"
	}
	candidates := []string{prefix}
	if set.MultiPrefix {
		for _, p := range []string{"!", ".", "#"} {
			if p != prefix {
				candidates = append(candidates, p)
			}
		}
	}
	for _, p := range candidates {
		if strings.HasPrefix(text, p) {
			return p
		}
	}
	return ""
}

// isOwner reports whether the message comes from the tenant owner: either
// self-originated or sent by the configured owner number.
func isOwner(m *Message, set store.Settings) bool {
	if m.IsFromMe {
		return true
	}
	owner := extractDigits(set.OwnerNumber)
	if owner == "" {
		return false
	}
	return BareNumber(m.SenderJID) == owner
}

// tenantUsers binds the record store to one tenant so handlers can never
// reach another tenant's records.
type tenantUsers struct {
	store    *store.Service
	tenantID string
}

func (t *tenantUsers) GetUser(jid string) (store.UserRecord, error) {
	return t.store.GetUser(t.tenantID, jid)
}

func (t *tenantUsers) UpdateUser(jid string, patch store.UserPatch) error {
	return t.store.UpdateUser(t.tenantID, jid, patch)
}

func (t *tenantUsers) AllUsers() (map[string]store.UserRecord, error) {
	return t.store.AllUsers(t.tenantID)
}
