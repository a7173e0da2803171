package storage

import (
	"encoding/json"
	"fmt"

	"github.com/memoryengine/memoryengine/internal/errs"
)

// InsertDirective creates a new directive row.
func (d *DB) InsertDirective(dir *Directive) error {
	tagsJSON, err := json.Marshal(dir.Tags)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}

	_, err = d.Exec(
		`INSERT INTO directives (id, bank_id, name, body, tags, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dir.ID, dir.BankID, dir.Name, dir.Body, string(tagsJSON), dir.Active, dir.CreatedAt, dir.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert directive: %w", err)
	}
	return nil
}

// ListActiveDirectivesByBank returns every active directive for a bank, the
// set injected into reflect prompts (SPEC_FULL.md §4.11).
func (d *DB) ListActiveDirectivesByBank(bankID string) ([]*Directive, error) {
	rows, err := d.Query(
		`SELECT id, bank_id, name, body, tags, active, created_at, updated_at
		 FROM directives WHERE bank_id = ? AND active = 1 ORDER BY created_at`, bankID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active directives: %w", err)
	}
	defer rows.Close()

	var out []*Directive
	for rows.Next() {
		dr, err := scanDirective(rows)
		if err != nil {
			return nil, fmt.Errorf("scan directive: %w", err)
		}
		out = append(out, dr)
	}
	return out, rows.Err()
}

// SetDirectiveActive toggles a directive on or off without deleting it.
func (d *DB) SetDirectiveActive(id string, active bool, updatedAt int64) error {
	res, err := d.Exec(`UPDATE directives SET active = ?, updated_at = ? WHERE id = ?`, active, updatedAt, id)
	if err != nil {
		return fmt.Errorf("set directive active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.NotFound, "directive %s not found", id)
	}
	return nil
}

// DeleteDirectiveByID removes a directive.
func (d *DB) DeleteDirectiveByID(id string) error {
	res, err := d.Exec(`DELETE FROM directives WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete directive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.NotFound, "directive %s not found", id)
	}
	return nil
}

func scanDirective(row rowScanner) (*Directive, error) {
	var dr Directive
	var tagsJSON string

	err := row.Scan(&dr.ID, &dr.BankID, &dr.Name, &dr.Body, &tagsJSON, &dr.Active, &dr.CreatedAt, &dr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &dr.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return &dr, nil
}
