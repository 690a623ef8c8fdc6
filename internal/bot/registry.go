package bot

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wadash/wadash/internal/alert"
	"github.com/wadash/wadash/internal/botlog"
	"github.com/wadash/wadash/internal/command"
	"github.com/wadash/wadash/internal/store"
)

// Registry is the process-wide map from tenant id to its connection
// instance. It is the single entry point for start/stop/status/delete and
// the only structure shared across tenant workers.
type Registry struct {
	sessionRoot string
	store       *store.Service
	broadcaster *botlog.Broadcaster
	router      *command.Router
	alerts      *alert.Notifier
	factory     SessionFactory
	// delayFn computes reconnect backoff; tests shrink it.
	delayFn func(attempt int) time.Duration

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewRegistry creates a registry using the production whatsmeow session
// factory.
func NewRegistry(sessionRoot string, st *store.Service, bc *botlog.Broadcaster, router *command.Router, alerts *alert.Notifier) *Registry {
	return NewRegistryWithFactory(sessionRoot, st, bc, router, alerts, NewWhatsmeowFactory())
}

// NewRegistryWithFactory creates a registry with a custom session factory;
// tests use this to substitute fake sessions.
func NewRegistryWithFactory(sessionRoot string, st *store.Service, bc *botlog.Broadcaster, router *command.Router, alerts *alert.Notifier, factory SessionFactory) *Registry {
	if alerts == nil {
		alerts = &alert.Notifier{}
	}
	return &Registry{
		sessionRoot: sessionRoot,
		store:       st,
		broadcaster: bc,
		router:      router,
		alerts:      alerts,
		factory:     factory,
		delayFn:     ReconnectDelay,
		instances:   make(map[string]*Instance),
	}
}

// sessionDir returns the tenant's private session directory. Tenant ids are
// opaque strings (often emails), so the path component is base64.
func (r *Registry) sessionDir(tenantID string) string {
	safe := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(tenantID))
	return filepath.Join(r.sessionRoot, safe)
}

// Start returns the tenant's instance, creating and starting one if none
// exists. Idempotent: a second Start returns the existing instance without
// opening a duplicate connection.
func (r *Registry) Start(ctx context.Context, tenantID string) (*Instance, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	r.mu.Lock()
	inst, ok := r.instances[tenantID]
	if !ok {
		inst = newInstance(tenantID, r.sessionDir(tenantID), r)
		r.instances[tenantID] = inst
	}
	r.mu.Unlock()

	if err := inst.Start(ctx); err != nil {
		return inst, err
	}
	return inst, nil
}

// Stop tears down the tenant's instance. No-op when none exists. The
// registry slot is kept (marked disconnected) so the log buffer survives
// for status().
func (r *Registry) Stop(tenantID string) {
	r.mu.Lock()
	inst := r.instances[tenantID]
	r.mu.Unlock()

	if inst != nil {
		inst.Stop()
	}
}

// Get returns the live instance for a tenant, if any.
func (r *Registry) Get(tenantID string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[tenantID]
	return inst, ok
}

// Status returns the tenant's snapshot. Without an in-memory instance it
// falls back to durable session metadata so a dashboard can distinguish
// "never connected" from "previously connected, now idle".
func (r *Registry) Status(tenantID string) Snapshot {
	r.mu.Lock()
	inst := r.instances[tenantID]
	r.mu.Unlock()

	if inst != nil {
		return inst.Status()
	}

	return Snapshot{
		Status:  StatusDisconnected,
		Logs:    []botlog.Entry{},
		Session: r.sessionInfo(tenantID, r.sessionDir(tenantID)),
	}
}

// sessionInfo inspects durable credential material for a tenant.
func (r *Registry) sessionInfo(tenantID, dir string) SessionInfo {
	info := SessionInfo{FileCount: countFiles(dir)}
	info.Exists = info.FileCount > 0

	if sess, err := r.store.BotSession(tenantID); err == nil {
		info.PhoneNumber = sess.PhoneNumber
	}
	return info
}

// DeleteSession stops the tenant's instance, then irreversibly erases its
// credential material and resets the durable status. Storage errors
// propagate; this operation is never retried automatically.
func (r *Registry) DeleteSession(tenantID string) error {
	r.Stop(tenantID)

	dir := r.sessionDir(tenantID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete session data for %s: %w", tenantID, err)
	}

	if err := r.store.ClearBotSession(tenantID); err != nil {
		return fmt.Errorf("reset session status for %s: %w", tenantID, err)
	}
	return nil
}

// InstanceInfo is a summary row for operator listings.
type InstanceInfo struct {
	TenantID    string     `json:"tenantId"`
	Status      string     `json:"status"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
}

// Instances returns a summary of every registered instance.
func (r *Registry) Instances() []InstanceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]InstanceInfo, 0, len(r.instances))
	for tenantID, inst := range r.instances {
		inst.mu.Lock()
		out = append(out, InstanceInfo{
			TenantID:    tenantID,
			Status:      inst.status,
			PhoneNumber: inst.phoneNumber,
			ConnectedAt: inst.connectedAt,
		})
		inst.mu.Unlock()
	}
	return out
}
