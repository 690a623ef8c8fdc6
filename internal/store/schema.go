package store

// Schema is the sqlite schema for tenant settings, per-tenant WhatsApp user
// records, and the durable bot-session mirror.
const Schema = `
CREATE TABLE IF NOT EXISTS tenant_settings (
	tenant_id TEXT PRIMARY KEY,
	prefix TEXT NOT NULL DEFAULT '!',
	bot_name TEXT NOT NULL DEFAULT 'WADASH Bot',
	auto_read BOOLEAN NOT NULL DEFAULT 0,
	public_mode BOOLEAN NOT NULL DEFAULT 1,
	block_call BOOLEAN NOT NULL DEFAULT 0,
	welcome_message BOOLEAN NOT NULL DEFAULT 1,
	multi_prefix BOOLEAN NOT NULL DEFAULT 0,
	owner_number TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS wa_users (
	tenant_id TEXT NOT NULL,
	jid TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	premium BOOLEAN NOT NULL DEFAULT 0,
	usage_limit INTEGER NOT NULL DEFAULT 100,
	partner TEXT NOT NULL DEFAULT '',
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (tenant_id, jid)
);

CREATE INDEX IF NOT EXISTS idx_wa_users_tenant ON wa_users(tenant_id);

CREATE TABLE IF NOT EXISTS bot_sessions (
	tenant_id TEXT PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'disconnected',
	phone_number TEXT NOT NULL DEFAULT '',
	connected_at DATETIME,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
