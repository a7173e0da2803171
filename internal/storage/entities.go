package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/memoryengine/memoryengine/internal/errs"
)

// InsertEntity creates a new entity row.
func (d *DB) InsertEntity(e *Entity) error {
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}

	_, err = d.Exec(
		`INSERT INTO entities (id, bank_id, name, entity_type, description, mention_count, first_seen, last_updated, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BankID, e.Name, e.EntityType, e.Description, e.MentionCount, e.FirstSeen, e.LastUpdated, string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

// GetEntityByID loads one entity by id, or errs.NotFound.
func (d *DB) GetEntityByID(id string) (*Entity, error) {
	row := d.QueryRow(
		`SELECT id, bank_id, name, entity_type, description, mention_count, first_seen, last_updated, metadata
		 FROM entities WHERE id = ?`, id,
	)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "entity %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

// FindEntityByExactName looks up an entity by case-insensitive exact name
// match within a bank, the fast path the entity resolver tries before
// falling back to fuzzy matching (SPEC_FULL.md §4.3).
func (d *DB) FindEntityByExactName(bankID, name string) (*Entity, error) {
	row := d.QueryRow(
		`SELECT id, bank_id, name, entity_type, description, mention_count, first_seen, last_updated, metadata
		 FROM entities WHERE bank_id = ? AND name = ? COLLATE NOCASE`, bankID, name,
	)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entity by exact name: %w", err)
	}
	return e, nil
}

// ListEntitiesByBank returns every entity for a bank, used by the resolver
// as the fuzzy-match candidate pool.
func (d *DB) ListEntitiesByBank(bankID string) ([]*Entity, error) {
	rows, err := d.Query(
		`SELECT id, bank_id, name, entity_type, description, mention_count, first_seen, last_updated, metadata
		 FROM entities WHERE bank_id = ?`, bankID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TouchEntity bumps mention_count and last_updated, called whenever a new
// memory unit resolves to an existing entity.
func (d *DB) TouchEntity(id string, lastUpdated int64) error {
	res, err := d.Exec(
		`UPDATE entities SET mention_count = mention_count + 1, last_updated = ? WHERE id = ?`,
		lastUpdated, id,
	)
	if err != nil {
		return fmt.Errorf("touch entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.NotFound, "entity %s not found", id)
	}
	return nil
}

// MemoryIDsForEntity returns the memory units linked to an entity, newest
// first, used by the graph retriever and by co-occurrence scoring.
func (d *DB) MemoryIDsForEntity(entityID string) ([]string, error) {
	rows, err := d.Query(
		`SELECT me.memory_id FROM memory_entities me
		 JOIN memory_units m ON m.id = me.memory_id
		 WHERE me.entity_id = ? ORDER BY m.created_at DESC`, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("memory ids for entity: %w", err)
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

func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var metaJSON sql.NullString
	var description sql.NullString

	err := row.Scan(
		&e.ID, &e.BankID, &e.Name, &e.EntityType, &description, &e.MentionCount, &e.FirstSeen, &e.LastUpdated, &metaJSON,
	)
	if err != nil {
		return nil, err
	}
	e.Description = description.String

	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode entity metadata: %w", err)
		}
	}
	return &e, nil
}
