package storage

// SchemaVersion is bumped whenever CoreSchema or FTSSchema changes shape.
const SchemaVersion = 1

// CoreSchema defines every row table the memory core needs: banks, memory
// units, entities, the memory-entity junction, links, mental models,
// directives, documents/chunks, async operations, and visual memories. The
// vectors table is defined separately, in VectorSchema below.
const CoreSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS banks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT,
	config TEXT NOT NULL DEFAULT '{}',
	disposition_skepticism INTEGER NOT NULL DEFAULT 3 CHECK(disposition_skepticism BETWEEN 1 AND 5),
	disposition_literalism INTEGER NOT NULL DEFAULT 3 CHECK(disposition_literalism BETWEEN 1 AND 5),
	disposition_empathy INTEGER NOT NULL DEFAULT 3 CHECK(disposition_empathy BETWEEN 1 AND 5),
	mission TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	title TEXT,
	source TEXT,
	metadata TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_bank ON documents(bank_id);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	content TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

CREATE TABLE IF NOT EXISTS memory_units (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	fact_type TEXT NOT NULL CHECK(fact_type IN ('experience','world','observation','opinion')),
	confidence REAL NOT NULL DEFAULT 1.0 CHECK(confidence BETWEEN 0 AND 1),
	valid_from INTEGER,
	valid_to INTEGER,
	mentioned_at INTEGER,
	occurred_start INTEGER,
	occurred_end INTEGER,
	event_date INTEGER,
	document_id TEXT REFERENCES documents(id) ON DELETE SET NULL,
	chunk_id TEXT REFERENCES chunks(id) ON DELETE SET NULL,
	source_text TEXT,
	tags TEXT NOT NULL DEFAULT '[]',
	proof_count INTEGER NOT NULL DEFAULT 1 CHECK(proof_count >= 1),
	source_memory_ids TEXT NOT NULL DEFAULT '[]',
	history TEXT NOT NULL DEFAULT '[]',
	consolidated_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_units_bank ON memory_units(bank_id);
CREATE INDEX IF NOT EXISTS idx_memory_units_bank_fact_type ON memory_units(bank_id, fact_type);
CREATE INDEX IF NOT EXISTS idx_memory_units_bank_consolidated ON memory_units(bank_id, consolidated_at);
CREATE INDEX IF NOT EXISTS idx_memory_units_bank_created ON memory_units(bank_id, created_at);
CREATE INDEX IF NOT EXISTS idx_memory_units_valid_range ON memory_units(bank_id, valid_from, valid_to);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	entity_type TEXT NOT NULL DEFAULT 'unknown',
	description TEXT,
	mention_count INTEGER NOT NULL DEFAULT 1,
	first_seen INTEGER NOT NULL,
	last_updated INTEGER NOT NULL,
	metadata TEXT,
	UNIQUE(bank_id, name COLLATE NOCASE)
);
CREATE INDEX IF NOT EXISTS idx_entities_bank ON entities(bank_id);

CREATE TABLE IF NOT EXISTS memory_entities (
	memory_id TEXT NOT NULL REFERENCES memory_units(id) ON DELETE CASCADE,
	entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	PRIMARY KEY (memory_id, entity_id)
);
CREATE INDEX IF NOT EXISTS idx_memory_entities_entity ON memory_entities(entity_id);

CREATE TABLE IF NOT EXISTS memory_links (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	source_id TEXT NOT NULL REFERENCES memory_units(id) ON DELETE CASCADE,
	target_id TEXT NOT NULL REFERENCES memory_units(id) ON DELETE CASCADE,
	link_type TEXT NOT NULL CHECK(link_type IN ('entity','semantic','temporal','causal')),
	weight REAL NOT NULL CHECK(weight > 0 AND weight <= 1),
	metadata TEXT,
	created_at INTEGER NOT NULL,
	CHECK(source_id != target_id)
);
CREATE INDEX IF NOT EXISTS idx_memory_links_source ON memory_links(source_id, link_type);
CREATE INDEX IF NOT EXISTS idx_memory_links_target ON memory_links(target_id, link_type);
CREATE INDEX IF NOT EXISTS idx_memory_links_bank ON memory_links(bank_id);

CREATE TABLE IF NOT EXISTS mental_models (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	source_query TEXT NOT NULL,
	content TEXT,
	source_memory_ids TEXT NOT NULL DEFAULT '[]',
	tags TEXT NOT NULL DEFAULT '[]',
	auto_refresh INTEGER NOT NULL DEFAULT 1,
	last_refreshed_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mental_models_bank ON mental_models(bank_id);

CREATE TABLE IF NOT EXISTS directives (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	body TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	active INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_directives_bank ON directives(bank_id, active);

CREATE TABLE IF NOT EXISTS async_operations (
	operation_id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	operation_type TEXT NOT NULL CHECK(operation_type IN ('retain','consolidation','refresh_mental_model')),
	status TEXT NOT NULL CHECK(status IN ('pending','processing','completed','failed')),
	metadata TEXT,
	result_metadata TEXT,
	error_message TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_async_operations_bank ON async_operations(bank_id, created_at);
CREATE INDEX IF NOT EXISTS idx_async_operations_bank_type_status ON async_operations(bank_id, operation_type, status);

CREATE TABLE IF NOT EXISTS visual_memories (
	id TEXT PRIMARY KEY,
	bank_id TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
	source_id TEXT,
	description TEXT NOT NULL,
	scope_profile TEXT,
	scope_project TEXT,
	scope_session TEXT,
	created_at INTEGER NOT NULL,
	last_accessed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_visual_memories_bank ON visual_memories(bank_id);
`

// FTSSchema defines the standalone memory_units_fts virtual table (not
// external-content, following the teacher's reasoning: sync triggers are
// simpler to reason about than an external-content table with rowid
// aliasing) plus the three triggers keeping it in step with memory_units.
const FTSSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS memory_units_fts USING fts5(
	id UNINDEXED,
	bank_id UNINDEXED,
	content,
	tokenize = 'porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS memory_units_fts_insert AFTER INSERT ON memory_units BEGIN
	INSERT INTO memory_units_fts(id, bank_id, content) VALUES (new.id, new.bank_id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS memory_units_fts_delete AFTER DELETE ON memory_units BEGIN
	DELETE FROM memory_units_fts WHERE id = old.id;
END;

CREATE TRIGGER IF NOT EXISTS memory_units_fts_update AFTER UPDATE ON memory_units BEGIN
	DELETE FROM memory_units_fts WHERE id = old.id;
	INSERT INTO memory_units_fts(id, bank_id, content) VALUES (new.id, new.bank_id, new.content);
END;
`

// VectorSchema defines the embedded vector tables, one per namespace. Each
// row stores a float32 vector serialized as a little-endian BLOB; the
// vector package computes cosine similarity in Go rather than relying on a
// vec0-style extension, since mattn/go-sqlite3 does not ship one.
const VectorSchema = `
CREATE TABLE IF NOT EXISTS vectors (
	namespace TEXT NOT NULL,
	id TEXT NOT NULL,
	bank_id TEXT NOT NULL,
	embedding BLOB NOT NULL,
	dim INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, id)
);
CREATE INDEX IF NOT EXISTS idx_vectors_namespace_bank ON vectors(namespace, bank_id);
`

// FactTypes enumerates the valid memory_units.fact_type values.
var FactTypes = []string{"experience", "world", "observation", "opinion"}

// LinkTypes enumerates the valid memory_links.link_type values.
var LinkTypes = []string{"entity", "semantic", "temporal", "causal"}

// IsValidFactType reports whether ft is one of FactTypes.
func IsValidFactType(ft string) bool {
	for _, v := range FactTypes {
		if v == ft {
			return true
		}
	}
	return false
}

// IsValidLinkType reports whether lt is one of LinkTypes.
func IsValidLinkType(lt string) bool {
	for _, v := range LinkTypes {
		if v == lt {
			return true
		}
	}
	return false
}
