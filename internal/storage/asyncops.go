package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/memoryengine/memoryengine/internal/errs"
)

// InsertAsyncOperation records a new job row in "pending" status, the
// durable half of the async registry (the in-process half lives in
// internal/asyncop; this table survives a process restart, the registry's
// in-memory map does not).
func (d *DB) InsertAsyncOperation(op *AsyncOperation) error {
	var metaJSON sql.NullString
	if op.Metadata != nil {
		b, err := json.Marshal(op.Metadata)
		if err != nil {
			return errs.Wrap(errs.Validation, err)
		}
		metaJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := d.Exec(
		`INSERT INTO async_operations (operation_id, bank_id, operation_type, status, metadata, result_metadata, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.OperationID, op.BankID, op.OperationType, op.Status, metaJSON, nil, op.ErrorMessage, op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert async operation: %w", err)
	}
	return nil
}

// UpdateAsyncOperationStatus transitions status and optionally records
// result metadata or an error message (SPEC_FULL.md §4.9's state machine:
// pending -> processing -> completed|failed).
func (d *DB) UpdateAsyncOperationStatus(operationID, status string, resultMetadata map[string]any, errorMessage string, updatedAt int64) error {
	var metaJSON sql.NullString
	if resultMetadata != nil {
		b, err := json.Marshal(resultMetadata)
		if err != nil {
			return errs.Wrap(errs.Validation, err)
		}
		metaJSON = sql.NullString{String: string(b), Valid: true}
	}

	res, err := d.Exec(
		`UPDATE async_operations SET status = ?, result_metadata = ?, error_message = ?, updated_at = ? WHERE operation_id = ?`,
		status, metaJSON, errorMessage, updatedAt, operationID,
	)
	if err != nil {
		return fmt.Errorf("update async operation status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.NotFound, "async operation %s not found", operationID)
	}
	return nil
}

// DeleteAsyncOperation removes the durable row for operationID, used by
// cancel(id) (SPEC_FULL.md §4.9: cancellation deletes the operation rather
// than merely marking it cancelled).
func (d *DB) DeleteAsyncOperation(operationID string) error {
	res, err := d.Exec(`DELETE FROM async_operations WHERE operation_id = ?`, operationID)
	if err != nil {
		return fmt.Errorf("delete async operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.New(errs.NotFound, "async operation %s not found", operationID)
	}
	return nil
}

// GetAsyncOperationByID loads one job row, or errs.NotFound.
func (d *DB) GetAsyncOperationByID(operationID string) (*AsyncOperation, error) {
	row := d.QueryRow(
		`SELECT operation_id, bank_id, operation_type, status, metadata, result_metadata, error_message, created_at, updated_at
		 FROM async_operations WHERE operation_id = ?`, operationID,
	)
	op, err := scanAsyncOperation(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "async operation %s not found", operationID)
	}
	if err != nil {
		return nil, fmt.Errorf("get async operation: %w", err)
	}
	return op, nil
}

// AsyncOperationListFilter narrows ListAsyncOperationsByBank. Zero values
// mean "no filter" for that field (SPEC_FULL.md §4.9's
// list(bank_id, {status, limit, offset})).
type AsyncOperationListFilter struct {
	OperationType string
	Status        string
	Limit         int
	Offset        int
}

// ListAsyncOperationsByBank returns jobs for a bank, newest first, narrowed
// by filter.
func (d *DB) ListAsyncOperationsByBank(bankID string, filter AsyncOperationListFilter) ([]*AsyncOperation, error) {
	var b strings.Builder
	b.WriteString(`SELECT operation_id, bank_id, operation_type, status, metadata, result_metadata, error_message, created_at, updated_at
		FROM async_operations WHERE bank_id = ?`)
	args := []any{bankID}

	if filter.OperationType != "" {
		b.WriteString(` AND operation_type = ?`)
		args = append(args, filter.OperationType)
	}
	if filter.Status != "" {
		b.WriteString(` AND status = ?`)
		args = append(args, filter.Status)
	}
	b.WriteString(` ORDER BY created_at DESC`)
	if filter.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			b.WriteString(` OFFSET ?`)
			args = append(args, filter.Offset)
		}
	}

	rows, err := d.Query(b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list async operations: %w", err)
	}
	defer rows.Close()

	var out []*AsyncOperation
	for rows.Next() {
		op, err := scanAsyncOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan async operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// FindPendingOrProcessingByBankAndType supports the registry's opt-in
// dedupe-by-bank rule: a new submission for a bank/type that already has
// one in flight can be pointed back at the existing operation id instead of
// starting a second one (SPEC_FULL.md §4.9).
func (d *DB) FindPendingOrProcessingByBankAndType(bankID, operationType string) (*AsyncOperation, error) {
	row := d.QueryRow(
		`SELECT operation_id, bank_id, operation_type, status, metadata, result_metadata, error_message, created_at, updated_at
		 FROM async_operations
		 WHERE bank_id = ? AND operation_type = ? AND status IN ('pending', 'processing')
		 ORDER BY created_at DESC LIMIT 1`, bankID, operationType,
	)
	op, err := scanAsyncOperation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find in-flight async operation: %w", err)
	}
	return op, nil
}

func scanAsyncOperation(row rowScanner) (*AsyncOperation, error) {
	var op AsyncOperation
	var metaJSON, resultJSON, errMsg sql.NullString

	err := row.Scan(&op.OperationID, &op.BankID, &op.OperationType, &op.Status, &metaJSON, &resultJSON, &errMsg, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}
	op.ErrorMessage = errMsg.String
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &op.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if resultJSON.Valid && resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &op.ResultMetadata); err != nil {
			return nil, fmt.Errorf("decode result_metadata: %w", err)
		}
	}
	return &op, nil
}
