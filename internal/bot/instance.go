// Package bot owns the per-tenant connection lifecycle: the instance state
// machine, the reconnection policy, and the process-wide registry.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/wadash/wadash/internal/botlog"
	"github.com/wadash/wadash/internal/command"
	"github.com/wadash/wadash/internal/store"
)

// Connection statuses as surfaced to dashboards. scan_qr is the historical
// wire name for the awaiting-scan state.
const (
	StatusDisconnected = "disconnected"
	StatusInitializing = "initializing"
	StatusAwaitingScan = "scan_qr"
	StatusConnected    = "connected"
)

// MaxReconnectAttempts bounds automatic recovery for one outage. After the
// last attempt the instance stays disconnected until an operator restarts
// it.
const MaxReconnectAttempts = 5

// ReconnectDelay returns the backoff before the given attempt (1-based):
// 1s, 2s, 4s, 8s, 10s.
func ReconnectDelay(attempt int) time.Duration {
	d := time.Duration(1000*(1<<uint(attempt-1))) * time.Millisecond
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// SessionInfo describes the durable credential material for a tenant.
type SessionInfo struct {
	Exists      bool   `json:"exists"`
	FileCount   int    `json:"fileCount"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Snapshot is the status() result shape.
type Snapshot struct {
	Status      string         `json:"status"`
	QR          string         `json:"qr,omitempty"`
	ConnectedAt *time.Time     `json:"connectedAt,omitempty"`
	Logs        []botlog.Entry `json:"logs"`
	Session     SessionInfo    `json:"session"`
}

// Instance is one tenant's connection state machine. All mutable state is
// guarded by mu; the session handle is exclusively owned by the instance
// while connected.
type Instance struct {
	tenantID string
	dir      string
	reg      *Registry

	mu                sync.Mutex
	session           Session
	handlerID         uint32
	status            string
	qr                string
	connectedAt       *time.Time
	phoneNumber       string
	reconnectAttempts int
	reconnectTimer    *time.Timer
	// generation invalidates callbacks from a previous session after Stop;
	// a stale event or timer must never resurrect a stopped instance.
	generation uint64

	logs *botlog.Ring
}

func newInstance(tenantID, dir string, reg *Registry) *Instance {
	return &Instance{
		tenantID: tenantID,
		dir:      dir,
		reg:      reg,
		status:   StatusDisconnected,
		logs:     botlog.NewRing(),
	}
}

// TenantID returns the owning tenant.
func (i *Instance) TenantID() string { return i.tenantID }

// emitLog appends to the bounded ring and broadcasts to the tenant's room.
func (i *Instance) emitLog(typ, message string, data map[string]any) {
	entry := botlog.NewEntry(typ, message, data)
	i.logs.Append(entry)
	i.reg.broadcaster.Publish(i.tenantID, entry)
	slog.Info("bot log", "tenant", i.tenantID, "type", typ, "message", message)
}

func (i *Instance) gen() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.generation
}

// Start provisions the session and begins connecting. Idempotent: a second
// Start on a running instance is a no-op. Errors are limited to
// provisioning failures (credential store, socket dial).
func (i *Instance) Start(ctx context.Context) error {
	i.mu.Lock()
	if i.session != nil {
		i.mu.Unlock()
		i.emitLog("system", "Bot already running", nil)
		return nil
	}
	i.status = StatusInitializing
	gen := i.generation
	i.mu.Unlock()

	i.emitLog("system", "Starting bot...", nil)

	sess, err := i.reg.factory(ctx, i.tenantID, i.dir)
	if err != nil {
		i.mu.Lock()
		i.status = StatusDisconnected
		i.mu.Unlock()
		i.emitLog("error", "Failed to provision session: "+err.Error(), nil)
		return fmt.Errorf("provision session for %s: %w", i.tenantID, err)
	}

	i.mu.Lock()
	if i.generation != gen {
		// Stopped while provisioning.
		i.mu.Unlock()
		sess.Close()
		return nil
	}
	i.session = sess
	i.handlerID = sess.AddEventHandler(func(evt any) { i.handleEvent(gen, evt) })
	needsPairing := sess.NeedsPairing()
	i.mu.Unlock()

	if needsPairing {
		qrCh, err := sess.QRChannel(ctx)
		if err != nil {
			slog.Warn("qr channel unavailable", "tenant", i.tenantID, "error", err)
		} else {
			go i.watchQR(gen, qrCh)
		}
	}

	if err := sess.Connect(); err != nil {
		i.teardown(gen)
		i.emitLog("error", "Failed to connect: "+err.Error(), nil)
		return fmt.Errorf("connect for %s: %w", i.tenantID, err)
	}
	return nil
}

// watchQR surfaces pairing codes: status flips to scan_qr, the code is kept
// for status() and rendered as a PNG next to the credential store.
func (i *Instance) watchQR(gen uint64, ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		if i.gen() != gen {
			return
		}
		if item.Event != "code" {
			continue
		}
		i.mu.Lock()
		i.qr = item.Code
		i.status = StatusAwaitingScan
		i.mu.Unlock()

		if err := qrcode.WriteFile(item.Code, qrcode.Medium, 512, filepath.Join(i.dir, "qr.png")); err != nil {
			slog.Warn("qr render failed", "tenant", i.tenantID, "error", err)
		}
		i.persistSession(StatusAwaitingScan, "", nil)
		i.emitLog("qr", "QR Code generated, please scan", nil)
	}
}

// handleEvent is the single entry point for network-layer events. Events
// from a superseded generation are dropped.
func (i *Instance) handleEvent(gen uint64, evt any) {
	if i.gen() != gen {
		return
	}
	switch v := evt.(type) {
	case *events.Connected:
		i.onConnected(gen)
	case *events.LoggedOut:
		i.onClosed(gen, true, "logged out from phone")
	case *events.Disconnected:
		i.onClosed(gen, false, "connection closed")
	case *events.StreamReplaced:
		i.onClosed(gen, false, "stream replaced by another client")
	case *events.ConnectFailure:
		i.onClosed(gen, false, fmt.Sprintf("connect failure: %v", v.Reason))
	case *events.Message:
		i.onMessage(v)
	case *events.CallOffer:
		i.onCallOffer(v)
	}
}

func (i *Instance) onConnected(gen uint64) {
	now := time.Now()

	i.mu.Lock()
	if i.generation != gen {
		i.mu.Unlock()
		return
	}
	i.status = StatusConnected
	i.qr = ""
	i.connectedAt = &now
	i.reconnectAttempts = 0
	if i.session != nil {
		i.phoneNumber = i.session.PairedID()
	}
	phone := i.phoneNumber
	i.mu.Unlock()

	i.persistSession(StatusConnected, phone, &now)
	if phone != "" {
		i.emitLog("success", "Bot connected successfully as "+phone, nil)
	} else {
		i.emitLog("success", "Bot connected successfully", nil)
	}
}

// onClosed handles transport closes. An explicit logout is terminal; any
// other reason schedules a bounded-backoff reconnect.
func (i *Instance) onClosed(gen uint64, terminal bool, reason string) {
	i.mu.Lock()
	if i.generation != gen || i.session == nil {
		// Stopped, or a concurrent close event already handled teardown.
		i.mu.Unlock()
		return
	}
	sess := i.session
	hid := i.handlerID
	i.session = nil
	i.status = StatusDisconnected
	i.qr = ""
	i.connectedAt = nil
	i.phoneNumber = ""
	i.mu.Unlock()

	sess.RemoveEventHandler(hid)
	sess.Close()
	i.persistSession(StatusDisconnected, "", nil)
	i.emitLog("error", "Connection closed: "+reason, map[string]any{"shouldReconnect": !terminal})

	if terminal {
		i.emitLog("error", "Session logged out. A new pairing is required.", nil)
		i.reg.alerts.LoggedOut(i.tenantID)
		return
	}

	i.mu.Lock()
	if i.generation != gen {
		i.mu.Unlock()
		return
	}
	if i.reconnectAttempts >= MaxReconnectAttempts {
		attempts := i.reconnectAttempts
		i.mu.Unlock()
		i.emitLog("error", "Max reconnection attempts reached. Please restart manually.", nil)
		i.reg.alerts.ReconnectsExhausted(i.tenantID, attempts)
		return
	}
	i.reconnectAttempts++
	attempt := i.reconnectAttempts
	delay := i.reg.delayFn(attempt)
	if i.reconnectTimer != nil {
		i.reconnectTimer.Stop()
	}
	i.reconnectTimer = time.AfterFunc(delay, func() {
		if i.gen() != gen {
			return
		}
		if err := i.Start(context.Background()); err != nil {
			slog.Warn("reconnect attempt failed", "tenant", i.tenantID, "attempt", attempt, "error", err)
		}
	})
	i.mu.Unlock()

	i.emitLog("system", fmt.Sprintf("Reconnecting in %gs... (attempt %d/%d)",
		delay.Seconds(), attempt, MaxReconnectAttempts), nil)
}

// onMessage converts an inbound network message and hands it to the router.
func (i *Instance) onMessage(v *events.Message) {
	if v.Message == nil {
		return
	}

	settings, err := i.reg.store.Settings(i.tenantID)
	if err != nil {
		slog.Warn("settings load failed", "tenant", i.tenantID, "error", err)
		settings = store.DefaultSettings()
	}

	if settings.AutoRead {
		i.mu.Lock()
		sess := i.session
		i.mu.Unlock()
		if sess != nil {
			if err := sess.MarkRead(v.Info.Chat, v.Info.Sender, []string{v.Info.ID}); err != nil {
				slog.Warn("mark read failed", "tenant", i.tenantID, "error", err)
			}
		}
	}

	text := extractText(v)
	if text != "" {
		i.emitLog("message", "Message from "+v.Info.Sender.User,
			map[string]any{"text": truncate(text, 50)})
	}

	quoted, mentions := extractContext(v)
	msg := &command.Message{
		TenantID:     i.tenantID,
		ChatJID:      v.Info.Chat.String(),
		SenderJID:    v.Info.Sender.ToNonAD().String(),
		MessageID:    v.Info.ID,
		PushName:     v.Info.PushName,
		Text:         text,
		IsFromMe:     v.Info.IsFromMe,
		IsGroup:      v.Info.IsGroup,
		QuotedSender: quoted,
		Mentions:     mentions,
	}
	i.reg.router.Dispatch(context.Background(), msg, settings, i)
}

// onCallOffer rejects inbound calls when the tenant asked for it.
// Independent of the main state machine.
func (i *Instance) onCallOffer(v *events.CallOffer) {
	settings, err := i.reg.store.Settings(i.tenantID)
	if err != nil || !settings.BlockCall {
		return
	}
	i.mu.Lock()
	sess := i.session
	i.mu.Unlock()
	if sess == nil {
		return
	}
	i.emitLog("system", "Rejecting call from "+v.CallCreator.User, nil)
	if err := sess.RejectCall(v.CallCreator, v.CallID); err != nil {
		slog.Warn("call rejection failed", "tenant", i.tenantID, "error", err)
	}
}

// Reply implements command.Responder. A stopped instance has no session and
// refuses to send, so an in-flight handler cannot resurrect it.
func (i *Instance) Reply(ctx context.Context, chatJID, text string) error {
	i.mu.Lock()
	sess := i.session
	i.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("bot for %s is not running", i.tenantID)
	}
	return sess.SendText(ctx, chatJID, text)
}

// Stop tears the instance down: pending reconnects are cancelled, listeners
// detached, the session released, and the disconnected status persisted
// before Stop returns.
func (i *Instance) Stop() {
	i.mu.Lock()
	i.generation++
	if i.reconnectTimer != nil {
		i.reconnectTimer.Stop()
		i.reconnectTimer = nil
	}
	sess := i.session
	hid := i.handlerID
	i.session = nil
	i.status = StatusDisconnected
	i.qr = ""
	i.connectedAt = nil
	i.phoneNumber = ""
	i.reconnectAttempts = 0
	i.mu.Unlock()

	if sess == nil {
		return
	}
	sess.RemoveEventHandler(hid)
	sess.Disconnect()
	sess.Close()
	i.persistSession(StatusDisconnected, "", nil)
	i.emitLog("system", "Bot stopped manually", nil)
}

// teardown releases a session that failed during Start, without the
// stop log entry.
func (i *Instance) teardown(gen uint64) {
	i.mu.Lock()
	if i.generation != gen {
		i.mu.Unlock()
		return
	}
	sess := i.session
	hid := i.handlerID
	i.session = nil
	i.status = StatusDisconnected
	i.mu.Unlock()

	if sess != nil {
		sess.RemoveEventHandler(hid)
		sess.Close()
	}
}

// Status returns a consistent snapshot of the instance plus durable session
// info.
func (i *Instance) Status() Snapshot {
	i.mu.Lock()
	snap := Snapshot{
		Status:      i.status,
		QR:          i.qr,
		ConnectedAt: i.connectedAt,
	}
	phone := i.phoneNumber
	i.mu.Unlock()

	snap.Logs = i.logs.Snapshot()
	snap.Session = i.reg.sessionInfo(i.tenantID, i.dir)
	if phone != "" {
		snap.Session.PhoneNumber = phone
	}
	return snap
}

func (i *Instance) persistSession(status, phone string, connectedAt *time.Time) {
	err := i.reg.store.SaveBotSession(store.BotSession{
		TenantID:    i.tenantID,
		Status:      status,
		PhoneNumber: phone,
		ConnectedAt: connectedAt,
	})
	if err != nil {
		slog.Warn("bot session persist failed", "tenant", i.tenantID, "error", err)
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	return len(entries)
}
