package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/memoryengine/memoryengine/internal/errs"
)

// InsertDocument creates a document row, the optional origin metadata a
// retain call may attach its memory units to (SPEC_FULL.md §3).
func (d *DB) InsertDocument(doc *Document) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}

	_, err = d.Exec(
		`INSERT INTO documents (id, bank_id, title, source, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.BankID, doc.Title, doc.Source, string(metaJSON), doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocumentByID loads one document, or errs.NotFound.
func (d *DB) GetDocumentByID(id string) (*Document, error) {
	row := d.QueryRow(
		`SELECT id, bank_id, title, source, metadata, created_at FROM documents WHERE id = ?`, id,
	)
	var doc Document
	var metaJSON sql.NullString
	var title, source sql.NullString

	err := row.Scan(&doc.ID, &doc.BankID, &title, &source, &metaJSON, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "document %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.Title = title.String
	doc.Source = source.String
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode document metadata: %w", err)
		}
	}
	return &doc, nil
}

// InsertChunk creates a chunk row belonging to a document.
func (d *DB) InsertChunk(c *Chunk) error {
	_, err := d.Exec(
		`INSERT INTO chunks (id, document_id, chunk_index, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.DocumentID, c.Index, c.Content, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// ListChunksByDocument returns chunks in index order.
func (d *DB) ListChunksByDocument(documentID string) ([]*Chunk, error) {
	rows, err := d.Query(
		`SELECT id, document_id, chunk_index, content, created_at FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
