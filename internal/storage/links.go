package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/memoryengine/memoryengine/internal/errs"
)

// InsertLink creates a memory_links row. The source_id != target_id check
// is enforced by the schema CHECK constraint, but callers should reject a
// self-loop before reaching here so the error is a validation error, not an
// opaque SQLite constraint failure.
func (d *DB) InsertLink(l *MemoryLink) error {
	if l.SourceID == l.TargetID {
		return errs.New(errs.Validation, "link source and target must differ: %s", l.SourceID)
	}
	if !IsValidLinkType(l.LinkType) {
		return errs.New(errs.Validation, "invalid link type %q", l.LinkType)
	}

	metaJSON, err := json.Marshal(l.Metadata)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}

	_, err = d.Exec(
		`INSERT INTO memory_links (id, bank_id, source_id, target_id, link_type, weight, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.BankID, l.SourceID, l.TargetID, l.LinkType, l.Weight, string(metaJSON), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert memory link: %w", err)
	}
	return nil
}

// LinksFrom returns outgoing links from memoryID, optionally filtered to
// one link type ("" means any), used by the graph retriever's BFS
// expansion (SPEC_FULL.md §4.6).
func (d *DB) LinksFrom(memoryID, linkType string) ([]*MemoryLink, error) {
	query := `SELECT id, bank_id, source_id, target_id, link_type, weight, metadata, created_at
		FROM memory_links WHERE source_id = ?`
	args := []any{memoryID}
	if linkType != "" {
		query += ` AND link_type = ?`
		args = append(args, linkType)
	}

	rows, err := d.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("links from: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

// LinksTo returns incoming links to memoryID, the reverse direction BFS
// expansion also needs since memory_links is directed.
func (d *DB) LinksTo(memoryID, linkType string) ([]*MemoryLink, error) {
	query := `SELECT id, bank_id, source_id, target_id, link_type, weight, metadata, created_at
		FROM memory_links WHERE target_id = ?`
	args := []any{memoryID}
	if linkType != "" {
		query += ` AND link_type = ?`
		args = append(args, linkType)
	}

	rows, err := d.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("links to: %w", err)
	}
	defer rows.Close()

	return scanLinks(rows)
}

// LinkExists reports whether a link already connects source and target
// with linkType, used to avoid duplicate entity/semantic links during
// retain (SPEC_FULL.md §4.5).
func (d *DB) LinkExists(sourceID, targetID, linkType string) (bool, error) {
	var count int
	err := d.QueryRow(
		`SELECT COUNT(*) FROM memory_links WHERE source_id = ? AND target_id = ? AND link_type = ?`,
		sourceID, targetID, linkType,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("link exists: %w", err)
	}
	return count > 0, nil
}

// DeleteLinksForMemory removes every link that has memoryID as its source or
// target. No link is moved to another memory unit.
func (d *DB) DeleteLinksForMemory(memoryID string) error {
	_, err := d.Exec(`DELETE FROM memory_links WHERE source_id = ? OR target_id = ?`, memoryID, memoryID)
	if err != nil {
		return fmt.Errorf("delete links for memory: %w", err)
	}
	return nil
}

func scanLinks(rows *sql.Rows) ([]*MemoryLink, error) {
	var out []*MemoryLink
	for rows.Next() {
		var l MemoryLink
		var metaJSON sql.NullString
		if err := rows.Scan(&l.ID, &l.BankID, &l.SourceID, &l.TargetID, &l.LinkType, &l.Weight, &metaJSON, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory link: %w", err)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &l.Metadata); err != nil {
				return nil, fmt.Errorf("decode link metadata: %w", err)
			}
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
