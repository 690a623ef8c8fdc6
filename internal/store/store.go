// Package store persists tenant settings, per-tenant WhatsApp user records,
// and durable bot-session metadata in sqlite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Settings are the per-tenant behavior flags consumed by the bot core.
type Settings struct {
	Prefix         string `json:"prefix"`
	BotName        string `json:"botName"`
	AutoRead       bool   `json:"autoRead"`
	PublicMode     bool   `json:"publicMode"`
	BlockCall      bool   `json:"blockCall"`
	WelcomeMessage bool   `json:"welcomeMessage"`
	MultiPrefix    bool   `json:"multiPrefix"`
	OwnerNumber    string `json:"ownerNumber"`
}

// DefaultSettings returns the documented defaults applied to tenants that
// have never saved settings.
func DefaultSettings() Settings {
	return Settings{
		Prefix:         "!",
		BotName:        "WADASH Bot",
		AutoRead:       false,
		PublicMode:     true,
		BlockCall:      false,
		WelcomeMessage: true,
		MultiPrefix:    false,
		OwnerNumber:    "",
	}
}

// UserRecord is one WhatsApp contact's record, scoped to a tenant.
type UserRecord struct {
	JID      string    `json:"jid"`
	Name     string    `json:"name"`
	Premium  bool      `json:"premium"`
	Limit    int       `json:"limit"`
	Partner  string    `json:"partner"`
	JoinedAt time.Time `json:"joinedAt"`
}

// UserPatch is a partial update; nil fields are left untouched.
type UserPatch struct {
	Name    *string
	Premium *bool
	Limit   *int
	Partner *string
}

// BotSession is the durable mirror of a tenant's connection state. It
// survives process restarts so status() can distinguish "never connected"
// from "previously connected, now idle".
type BotSession struct {
	TenantID    string     `json:"tenantId"`
	Status      string     `json:"status"`
	PhoneNumber string     `json:"phoneNumber"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
}

// Service wraps the sqlite database.
type Service struct {
	db *sql.DB
}

// New opens (or creates) the store database and applies the schema.
func New(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}

// Settings returns the tenant's settings, falling back to defaults when the
// tenant has never saved any. A missing row is not an error.
func (s *Service) Settings(tenantID string) (Settings, error) {
	out := DefaultSettings()
	row := s.db.QueryRow(`
		SELECT prefix, bot_name, auto_read, public_mode, block_call,
		       welcome_message, multi_prefix, owner_number
		FROM tenant_settings WHERE tenant_id = ?`, tenantID)
	err := row.Scan(&out.Prefix, &out.BotName, &out.AutoRead, &out.PublicMode,
		&out.BlockCall, &out.WelcomeMessage, &out.MultiPrefix, &out.OwnerNumber)
	if err == sql.ErrNoRows {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("load settings for %s: %w", tenantID, err)
	}
	return out, nil
}

// UpdateSettings upserts the tenant's settings row.
func (s *Service) UpdateSettings(tenantID string, set Settings) error {
	_, err := s.db.Exec(`
		INSERT INTO tenant_settings
			(tenant_id, prefix, bot_name, auto_read, public_mode, block_call,
			 welcome_message, multi_prefix, owner_number, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tenant_id) DO UPDATE SET
			prefix = excluded.prefix,
			bot_name = excluded.bot_name,
			auto_read = excluded.auto_read,
			public_mode = excluded.public_mode,
			block_call = excluded.block_call,
			welcome_message = excluded.welcome_message,
			multi_prefix = excluded.multi_prefix,
			owner_number = excluded.owner_number,
			updated_at = CURRENT_TIMESTAMP`,
		tenantID, set.Prefix, set.BotName, set.AutoRead, set.PublicMode,
		set.BlockCall, set.WelcomeMessage, set.MultiPrefix, set.OwnerNumber)
	if err != nil {
		return fmt.Errorf("save settings for %s: %w", tenantID, err)
	}
	return nil
}

// GetUser returns the tenant-scoped record for jid, creating a default
// record on first access.
func (s *Service) GetUser(tenantID, jid string) (UserRecord, error) {
	rec := UserRecord{JID: jid, Limit: 100}
	row := s.db.QueryRow(`
		SELECT jid, name, premium, usage_limit, partner, joined_at
		FROM wa_users WHERE tenant_id = ? AND jid = ?`, tenantID, jid)
	err := row.Scan(&rec.JID, &rec.Name, &rec.Premium, &rec.Limit, &rec.Partner, &rec.JoinedAt)
	if err == sql.ErrNoRows {
		rec.JoinedAt = time.Now().UTC()
		_, err = s.db.Exec(`
			INSERT INTO wa_users (tenant_id, jid, joined_at) VALUES (?, ?, ?)
			ON CONFLICT(tenant_id, jid) DO NOTHING`,
			tenantID, jid, rec.JoinedAt)
		if err != nil {
			return rec, fmt.Errorf("create user %s/%s: %w", tenantID, jid, err)
		}
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("load user %s/%s: %w", tenantID, jid, err)
	}
	return rec, nil
}

// UpdateUser applies a partial update to an existing record. Unknown jids
// are created first so a patch never silently disappears.
func (s *Service) UpdateUser(tenantID, jid string, patch UserPatch) error {
	if _, err := s.GetUser(tenantID, jid); err != nil {
		return err
	}
	if patch.Name != nil {
		if _, err := s.db.Exec(`UPDATE wa_users SET name = ? WHERE tenant_id = ? AND jid = ?`, *patch.Name, tenantID, jid); err != nil {
			return fmt.Errorf("update user %s/%s: %w", tenantID, jid, err)
		}
	}
	if patch.Premium != nil {
		if _, err := s.db.Exec(`UPDATE wa_users SET premium = ? WHERE tenant_id = ? AND jid = ?`, *patch.Premium, tenantID, jid); err != nil {
			return fmt.Errorf("update user %s/%s: %w", tenantID, jid, err)
		}
	}
	if patch.Limit != nil {
		if _, err := s.db.Exec(`UPDATE wa_users SET usage_limit = ? WHERE tenant_id = ? AND jid = ?`, *patch.Limit, tenantID, jid); err != nil {
			return fmt.Errorf("update user %s/%s: %w", tenantID, jid, err)
		}
	}
	if patch.Partner != nil {
		if _, err := s.db.Exec(`UPDATE wa_users SET partner = ? WHERE tenant_id = ? AND jid = ?`, *patch.Partner, tenantID, jid); err != nil {
			return fmt.Errorf("update user %s/%s: %w", tenantID, jid, err)
		}
	}
	return nil
}

// AllUsers returns every record for the tenant keyed by jid.
func (s *Service) AllUsers(tenantID string) (map[string]UserRecord, error) {
	rows, err := s.db.Query(`
		SELECT jid, name, premium, usage_limit, partner, joined_at
		FROM wa_users WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list users for %s: %w", tenantID, err)
	}
	defer rows.Close()

	out := make(map[string]UserRecord)
	for rows.Next() {
		var rec UserRecord
		if err := rows.Scan(&rec.JID, &rec.Name, &rec.Premium, &rec.Limit, &rec.Partner, &rec.JoinedAt); err != nil {
			return nil, err
		}
		out[rec.JID] = rec
	}
	return out, rows.Err()
}

// SaveBotSession upserts the durable session mirror for a tenant.
func (s *Service) SaveBotSession(sess BotSession) error {
	var connectedAt any
	if sess.ConnectedAt != nil {
		connectedAt = sess.ConnectedAt.UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO bot_sessions (tenant_id, status, phone_number, connected_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tenant_id) DO UPDATE SET
			status = excluded.status,
			phone_number = excluded.phone_number,
			connected_at = excluded.connected_at,
			updated_at = CURRENT_TIMESTAMP`,
		sess.TenantID, sess.Status, sess.PhoneNumber, connectedAt)
	if err != nil {
		return fmt.Errorf("save bot session for %s: %w", sess.TenantID, err)
	}
	return nil
}

// BotSession returns the durable session mirror, defaulting to disconnected
// when the tenant has never connected.
func (s *Service) BotSession(tenantID string) (BotSession, error) {
	sess := BotSession{TenantID: tenantID, Status: "disconnected"}
	var connectedAt sql.NullTime
	row := s.db.QueryRow(`
		SELECT status, phone_number, connected_at
		FROM bot_sessions WHERE tenant_id = ?`, tenantID)
	err := row.Scan(&sess.Status, &sess.PhoneNumber, &connectedAt)
	if err == sql.ErrNoRows {
		return sess, nil
	}
	if err != nil {
		return sess, fmt.Errorf("load bot session for %s: %w", tenantID, err)
	}
	if connectedAt.Valid {
		t := connectedAt.Time
		sess.ConnectedAt = &t
	}
	return sess, nil
}

// ClearBotSession resets the mirror to disconnected with no identity.
func (s *Service) ClearBotSession(tenantID string) error {
	return s.SaveBotSession(BotSession{TenantID: tenantID, Status: "disconnected"})
}
