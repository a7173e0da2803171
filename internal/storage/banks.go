package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/memoryengine/memoryengine/internal/errs"
)

// InsertBank creates a new bank row. Disposition fields must already be
// clamped to [1,5] by the caller; the CHECK constraints in schema.go are a
// backstop, not the primary validation point.
func (d *DB) InsertBank(b *Bank) error {
	configJSON, err := json.Marshal(b.Config)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}

	_, err = d.Exec(
		`INSERT INTO banks (
			id, name, description, config,
			disposition_skepticism, disposition_literalism, disposition_empathy,
			mission, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Description, string(configJSON),
		b.Disposition.Skepticism, b.Disposition.Literalism, b.Disposition.Empathy,
		b.Mission, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bank: %w", err)
	}
	return nil
}

// GetBankByID loads one bank, or errs.NotFound.
func (d *DB) GetBankByID(id string) (*Bank, error) {
	row := d.QueryRow(
		`SELECT id, name, description, config,
			disposition_skepticism, disposition_literalism, disposition_empathy,
			mission, created_at, updated_at
		 FROM banks WHERE id = ?`, id,
	)
	b, err := scanBank(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "bank %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get bank: %w", err)
	}
	return b, nil
}

// GetBankByName loads one bank by its unique name, or errs.NotFound.
func (d *DB) GetBankByName(name string) (*Bank, error) {
	row := d.QueryRow(
		`SELECT id, name, description, config,
			disposition_skepticism, disposition_literalism, disposition_empathy,
			mission, created_at, updated_at
		 FROM banks WHERE name = ?`, name,
	)
	b, err := scanBank(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "bank %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get bank by name: %w", err)
	}
	return b, nil
}

// ListBanks returns every bank, ordered by name.
func (d *DB) ListBanks() ([]*Bank, error) {
	rows, err := d.Query(
		`SELECT id, name, description, config,
			disposition_skepticism, disposition_literalism, disposition_empathy,
			mission, created_at, updated_at
		 FROM banks ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	defer rows.Close()

	var out []*Bank
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bank: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBank rewrites the mutable fields of an existing bank.
func (d *DB) UpdateBank(b *Bank) error {
	configJSON, err := json.Marshal(b.Config)
	if err != nil {
		return errs.Wrap(errs.Validation, err)
	}

	res, err := d.Exec(
		`UPDATE banks SET description = ?, config = ?,
			disposition_skepticism = ?, disposition_literalism = ?, disposition_empathy = ?,
			mission = ?, updated_at = ?
		 WHERE id = ?`,
		b.Description, string(configJSON),
		b.Disposition.Skepticism, b.Disposition.Literalism, b.Disposition.Empathy,
		b.Mission, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update bank: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.NotFound, "bank %s not found", b.ID)
	}
	return nil
}

// DeleteBankByID removes a bank and, via FK cascade, every memory unit,
// entity, link, mental model, directive, document and async operation that
// belongs to it (SPEC_FULL.md §3: bank is the isolation boundary). Vector
// rows are not foreign-keyed (the vectors table is namespace-generic) so
// callers must also delete vectors scoped to bankID across every Store
// namespace they use; see DeleteVectorsForBank.
func (d *DB) DeleteBankByID(id string) error {
	res, err := d.Exec(`DELETE FROM banks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bank: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.NotFound, "bank %s not found", id)
	}
	return nil
}

// DeleteVectorsForBank removes every vector row for bankID in namespace,
// the cleanup step DeleteBankByID's doc comment calls out.
func (d *DB) DeleteVectorsForBank(namespace, bankID string) error {
	_, err := d.Exec(`DELETE FROM vectors WHERE namespace = ? AND bank_id = ?`, namespace, bankID)
	if err != nil {
		return fmt.Errorf("delete vectors for bank: %w", err)
	}
	return nil
}

func scanBank(row rowScanner) (*Bank, error) {
	var b Bank
	var configJSON string
	var description, mission sql.NullString

	err := row.Scan(
		&b.ID, &b.Name, &description, &configJSON,
		&b.Disposition.Skepticism, &b.Disposition.Literalism, &b.Disposition.Empathy,
		&mission, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Description = description.String
	b.Mission = mission.String

	if err := json.Unmarshal([]byte(configJSON), &b.Config); err != nil {
		return nil, fmt.Errorf("decode bank config: %w", err)
	}
	return &b, nil
}
