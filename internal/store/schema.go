package store

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_configs (
	organization_id TEXT PRIMARY KEY,
	agent_name TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT 'openai',
	model TEXT NOT NULL DEFAULT '',
	business_type TEXT NOT NULL DEFAULT '',
	qualification_fields TEXT NOT NULL DEFAULT '[]',
	transfer_keywords TEXT NOT NULL DEFAULT '[]',
	webhook_secret TEXT NOT NULL DEFAULT '',
	quota_period TEXT NOT NULL DEFAULT 'month',
	quota_limit INTEGER NOT NULL DEFAULT 0,
	quota_reply_text TEXT NOT NULL DEFAULT '',
	fallback_reply_text TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (organization_id) REFERENCES organizations(id)
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	channel_identity TEXT NOT NULL,
	push_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	last_activity_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (organization_id) REFERENCES organizations(id)
);

-- One active (open or transferred) conversation per lead identity. The
-- upsert in ResolveOrCreateConversation targets this index, which also
-- guarantees at most one open conversation per identity.
CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_active
	ON conversations(organization_id, channel_identity) WHERE status != 'closed';

CREATE INDEX IF NOT EXISTS idx_conversations_org_activity
	ON conversations(organization_id, last_activity_at);

CREATE TABLE IF NOT EXISTS messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL,
	organization_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	tool_name TEXT NOT NULL DEFAULT '',
	tool_args TEXT NOT NULL DEFAULT '',
	tool_result TEXT NOT NULL DEFAULT '',
	entity_id TEXT NOT NULL DEFAULT '',
	provider_message_id TEXT NOT NULL DEFAULT '',
	delivery_error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);

-- Inbound dedup under at-least-once webhook delivery.
CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_inbound_dedup
	ON messages(organization_id, provider_message_id)
	WHERE provider_message_id != '' AND direction = 'inbound';

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, created_at, seq);

CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	qualification TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (organization_id) REFERENCES organizations(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_org_phone
	ON contacts(organization_id, phone) WHERE phone != '';

CREATE TABLE IF NOT EXISTS boards (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name TEXT NOT NULL,
	FOREIGN KEY (organization_id) REFERENCES organizations(id)
);

CREATE TABLE IF NOT EXISTS board_stages (
	id TEXT PRIMARY KEY,
	board_id TEXT NOT NULL,
	name TEXT NOT NULL,
	position INTEGER NOT NULL,
	FOREIGN KEY (board_id) REFERENCES boards(id)
);

CREATE TABLE IF NOT EXISTS deals (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	contact_id TEXT NOT NULL,
	board_id TEXT NOT NULL,
	stage_id TEXT NOT NULL,
	title TEXT NOT NULL,
	amount INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'open',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (organization_id) REFERENCES organizations(id),
	FOREIGN KEY (contact_id) REFERENCES contacts(id)
);

CREATE INDEX IF NOT EXISTS idx_deals_org_contact ON deals(organization_id, contact_id);

CREATE TABLE IF NOT EXISTS agenda_slots (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	starts_at DATETIME NOT NULL,
	ends_at DATETIME NOT NULL,
	booked INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (organization_id) REFERENCES organizations(id)
);

CREATE INDEX IF NOT EXISTS idx_agenda_org_start ON agenda_slots(organization_id, starts_at);

CREATE TABLE IF NOT EXISTS properties (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	title TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT '',
	neighborhood TEXT NOT NULL DEFAULT '',
	bedrooms INTEGER NOT NULL DEFAULT 0,
	price INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (organization_id) REFERENCES organizations(id)
);

CREATE TABLE IF NOT EXISTS usage_records (
	organization_id TEXT NOT NULL,
	period_type TEXT NOT NULL,
	period_start DATETIME NOT NULL,
	requests_used INTEGER NOT NULL DEFAULT 0,
	tokens_in INTEGER NOT NULL DEFAULT 0,
	tokens_out INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (organization_id, period_type, period_start)
);
`

func initSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
