package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/memoryengine/memoryengine/internal/errs"
	"github.com/memoryengine/memoryengine/internal/vector"
)

// MemoryUnitFilter narrows ListMemoryUnitsByBank. Zero values mean "no filter" for
// that field.
type MemoryUnitFilter struct {
	FactType            string
	FactTypes           []string // alternative to FactType: matches any of these; ignored if empty
	ExcludeConsolidated bool
	Limit               int
	Offset              int
}

// InsertMemoryUnit writes the row, its FTS shadow (via trigger), its
// embedding, and the memory-entity junction rows, all inside one
// transaction, grounded on SPEC_FULL.md §4.2's row+FTS+vector atomicity
// requirement. vec may be nil when the embedding store has no embedder
// configured for this call (e.g. dry-run extraction); in that case no
// vector row is written and semantic recall simply will not find m until a
// later re-embed.
func (d *DB) InsertMemoryUnit(m *MemoryUnit, vs *vector.Store, vec []float32, entityIDs []string) error {
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}
	sourceIDsJSON, err := json.Marshal(m.SourceMemoryIDs)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}
	historyJSON, err := json.Marshal(m.History)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}

	return d.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO memory_units (
				id, bank_id, content, fact_type, confidence,
				valid_from, valid_to, mentioned_at, occurred_start, occurred_end, event_date,
				document_id, chunk_id, source_text, tags, proof_count,
				source_memory_ids, history, consolidated_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.BankID, m.Content, m.FactType, m.Confidence,
			m.ValidFrom, m.ValidTo, m.MentionedAt, m.OccurredStart, m.OccurredEnd, m.EventDate,
			m.DocumentID, m.ChunkID, m.SourceText, string(tagsJSON), m.ProofCount,
			string(sourceIDsJSON), string(historyJSON), m.ConsolidatedAt, m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert memory unit: %w", err)
		}

		for _, eid := range entityIDs {
			if _, err := tx.Exec(
				`INSERT OR IGNORE INTO memory_entities (memory_id, entity_id) VALUES (?, ?)`,
				m.ID, eid,
			); err != nil {
				return fmt.Errorf("insert memory_entities junction: %w", err)
			}
		}

		if vs != nil && vec != nil {
			if err := vs.UpsertTx(tx, m.ID, m.BankID, vec); err != nil {
				return err
			}
		}

		return nil
	})
}

// UpdateContentAndMeta rewrites content, confidence, tags and appends a
// history entry, used by the consolidation engine's update action
// (SPEC_FULL.md §4.7). The caller supplies the recomputed embedding when
// content changed; pass nil vec to leave the existing vector untouched.
func (d *DB) UpdateContentAndMeta(id, bankID, content string, confidence float64, tags []string, history []HistoryEntry, updatedAt int64, vs *vector.Store, vec []float32) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}

	return d.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`UPDATE memory_units SET content = ?, confidence = ?, tags = ?, history = ?, updated_at = ?
			 WHERE id = ?`,
			content, confidence, string(tagsJSON), string(historyJSON), updatedAt, id,
		)
		if err != nil {
			return fmt.Errorf("update memory unit: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.New(errs.NotFound, "memory unit %s not found", id)
		}

		if vs != nil && vec != nil {
			if err := vs.UpsertTx(tx, id, bankID, vec); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkConsolidated sets consolidated_at, used when a raw fact is folded
// into an observation and should no longer surface as an independent
// unconsolidated row (SPEC_FULL.md §4.7).
func (d *DB) MarkConsolidated(id string, consolidatedAt int64) error {
	_, err := d.Exec(`UPDATE memory_units SET consolidated_at = ?, updated_at = ? WHERE id = ?`, consolidatedAt, consolidatedAt, id)
	if err != nil {
		return fmt.Errorf("mark consolidated: %w", err)
	}
	return nil
}

// DeleteMemoryUnitByID removes the row (cascading to memory_entities and
// memory_links via FK, and to memory_units_fts via trigger) and its vector
// row, inside one transaction.
func (d *DB) DeleteMemoryUnitByID(id string, vs *vector.Store) error {
	return d.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM memory_units WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete memory unit: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.New(errs.NotFound, "memory unit %s not found", id)
		}

		if vs != nil {
			if err := vs.DeleteTx(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMemoryUnitByID loads one row by id, or errs.NotFound.
func (d *DB) GetMemoryUnitByID(id string) (*MemoryUnit, error) {
	row := d.QueryRow(
		`SELECT id, bank_id, content, fact_type, confidence,
			valid_from, valid_to, mentioned_at, occurred_start, occurred_end, event_date,
			document_id, chunk_id, source_text, tags, proof_count,
			source_memory_ids, history, consolidated_at, created_at, updated_at
		 FROM memory_units WHERE id = ?`, id,
	)
	m, err := scanMemoryUnit(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "memory unit %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory unit: %w", err)
	}
	return m, nil
}

// ListMemoryUnitsByBank returns rows for bankID matching filter, newest
// first.
func (d *DB) ListMemoryUnitsByBank(bankID string, filter MemoryUnitFilter) ([]*MemoryUnit, error) {
	query := `SELECT id, bank_id, content, fact_type, confidence,
			valid_from, valid_to, mentioned_at, occurred_start, occurred_end, event_date,
			document_id, chunk_id, source_text, tags, proof_count,
			source_memory_ids, history, consolidated_at, created_at, updated_at
		 FROM memory_units WHERE bank_id = ?`
	args := []any{bankID}

	if filter.FactType != "" {
		query += ` AND fact_type = ?`
		args = append(args, filter.FactType)
	}
	if len(filter.FactTypes) > 0 {
		placeholders := make([]byte, 0, len(filter.FactTypes)*2)
		for i, ft := range filter.FactTypes {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args = append(args, ft)
		}
		query += ` AND fact_type IN (` + string(placeholders) + `)`
	}
	if filter.ExcludeConsolidated {
		query += ` AND consolidated_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := d.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memory units: %w", err)
	}
	defer rows.Close()

	var out []*MemoryUnit
	for rows.Next() {
		m, err := scanMemoryUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory unit: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// EntityIDsForMemory returns the entity ids linked to memoryID via the
// junction table, used by recall's graph retriever.
func (d *DB) EntityIDsForMemory(memoryID string) ([]string, error) {
	rows, err := d.Query(`SELECT entity_id FROM memory_entities WHERE memory_id = ?`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("entity ids for memory: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EntityNamesForMemories batches the entity-name lookup recall needs when
// rendering results, avoiding one query per hit (SPEC_FULL.md §4.6).
func (d *DB) EntityNamesForMemories(memoryIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(memoryIDs))
	if len(memoryIDs) == 0 {
		return out, nil
	}

	placeholders := make([]byte, 0, len(memoryIDs)*2)
	args := make([]any, 0, len(memoryIDs))
	for i, id := range memoryIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT me.memory_id, e.name FROM memory_entities me
		 JOIN entities e ON e.id = me.entity_id
		 WHERE me.memory_id IN (%s)`, string(placeholders),
	)
	rows, err := d.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("entity names for memories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var memID, name string
		if err := rows.Scan(&memID, &name); err != nil {
			return nil, err
		}
		out[memID] = append(out[memID], name)
	}
	return out, rows.Err()
}

// SearchFTS runs a full-text match against memory_units_fts, scoped to
// bankID, returning ids ordered by bm25 rank (SPEC_FULL.md §4.6's fulltext
// retriever).
func (d *DB) SearchFTS(bankID, query string, limit int) ([]string, error) {
	rows, err := d.Query(
		`SELECT id FROM memory_units_fts WHERE memory_units_fts MATCH ? AND bank_id = ? ORDER BY bm25(memory_units_fts) LIMIT ?`,
		query, bankID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemoryUnit(row rowScanner) (*MemoryUnit, error) {
	var m MemoryUnit
	var tagsJSON, sourceIDsJSON, historyJSON string

	err := row.Scan(
		&m.ID, &m.BankID, &m.Content, &m.FactType, &m.Confidence,
		&m.ValidFrom, &m.ValidTo, &m.MentionedAt, &m.OccurredStart, &m.OccurredEnd, &m.EventDate,
		&m.DocumentID, &m.ChunkID, &m.SourceText, &tagsJSON, &m.ProofCount,
		&sourceIDsJSON, &historyJSON, &m.ConsolidatedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(sourceIDsJSON), &m.SourceMemoryIDs); err != nil {
		return nil, fmt.Errorf("decode source_memory_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &m.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	return &m, nil
}
