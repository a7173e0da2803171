package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/memoryengine/memoryengine/internal/errs"
)

// InsertMentalModel creates a new mental model row.
func (d *DB) InsertMentalModel(m *MentalModel) error {
	sourceIDsJSON, err := json.Marshal(m.SourceMemoryIDs)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}

	_, err = d.Exec(
		`INSERT INTO mental_models (id, bank_id, name, source_query, content, source_memory_ids, tags, auto_refresh, last_refreshed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.BankID, m.Name, m.SourceQuery, m.Content, string(sourceIDsJSON), string(tagsJSON), m.AutoRefresh, m.LastRefreshedAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert mental model: %w", err)
	}
	return nil
}

// GetMentalModelByID loads one mental model by id, or errs.NotFound.
func (d *DB) GetMentalModelByID(id string) (*MentalModel, error) {
	row := d.QueryRow(
		`SELECT id, bank_id, name, source_query, content, source_memory_ids, tags, auto_refresh, last_refreshed_at, created_at, updated_at
		 FROM mental_models WHERE id = ?`, id,
	)
	m, err := scanMentalModel(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "mental model %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get mental model: %w", err)
	}
	return m, nil
}

// ListMentalModelsByBank returns every mental model for a bank.
func (d *DB) ListMentalModelsByBank(bankID string) ([]*MentalModel, error) {
	rows, err := d.Query(
		`SELECT id, bank_id, name, source_query, content, source_memory_ids, tags, auto_refresh, last_refreshed_at, created_at, updated_at
		 FROM mental_models WHERE bank_id = ? ORDER BY updated_at DESC`, bankID,
	)
	if err != nil {
		return nil, fmt.Errorf("list mental models: %w", err)
	}
	defer rows.Close()

	var out []*MentalModel
	for rows.Next() {
		m, err := scanMentalModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mental model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RefreshMentalModel rewrites content and source_memory_ids and bumps
// last_refreshed_at, the write the refresh routine performs after
// replaying SourceQuery (SPEC_FULL.md §4.8).
func (d *DB) RefreshMentalModel(id, content string, sourceMemoryIDs []string, refreshedAt int64) error {
	sourceIDsJSON, err := json.Marshal(sourceMemoryIDs)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}

	res, err := d.Exec(
		`UPDATE mental_models SET content = ?, source_memory_ids = ?, last_refreshed_at = ?, updated_at = ? WHERE id = ?`,
		content, string(sourceIDsJSON), refreshedAt, refreshedAt, id,
	)
	if err != nil {
		return fmt.Errorf("refresh mental model: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.NotFound, "mental model %s not found", id)
	}
	return nil
}

// DeleteMentalModelByID removes a mental model.
func (d *DB) DeleteMentalModelByID(id string) error {
	res, err := d.Exec(`DELETE FROM mental_models WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mental model: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.NotFound, "mental model %s not found", id)
	}
	return nil
}

func scanMentalModel(row rowScanner) (*MentalModel, error) {
	var m MentalModel
	var sourceIDsJSON, tagsJSON string
	var content sql.NullString

	err := row.Scan(
		&m.ID, &m.BankID, &m.Name, &m.SourceQuery, &content, &sourceIDsJSON, &tagsJSON,
		&m.AutoRefresh, &m.LastRefreshedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if content.Valid {
		m.Content = &content.String
	}

	if err := json.Unmarshal([]byte(sourceIDsJSON), &m.SourceMemoryIDs); err != nil {
		return nil, fmt.Errorf("decode source_memory_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return &m, nil
}
