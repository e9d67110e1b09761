package migrations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upBackfillTransactionIDs, downBackfillTransactionIDs)
}

// upBackfillTransactionIDs assigns 1-based identifiers to the transactions
// of statements persisted before identifiers existed. Statements whose first
// transaction already carries an id are left untouched, which makes the
// migration idempotent.
func upBackfillTransactionIDs(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, transactions
		FROM statements
		WHERE NOT (transactions->0 ? 'id')`)
	if err != nil {
		return fmt.Errorf("failed to select statements without transaction ids: %w", err)
	}

	updates, err := collectTransactionRows(rows)
	if err != nil {
		return err
	}

	for _, u := range updates {
		var transactions []map[string]any
		if err := json.Unmarshal(u.raw, &transactions); err != nil {
			return fmt.Errorf("failed to decode transactions of statement %d: %w", u.id, err)
		}
		assignTransactionIDs(transactions)
		if err := updateTransactions(ctx, tx, u.id, transactions); err != nil {
			return err
		}
	}
	return nil
}

// downBackfillTransactionIDs strips the id field from every transaction of
// every statement.
func downBackfillTransactionIDs(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, transactions FROM statements`)
	if err != nil {
		return fmt.Errorf("failed to select statements: %w", err)
	}

	updates, err := collectTransactionRows(rows)
	if err != nil {
		return err
	}

	for _, u := range updates {
		var transactions []map[string]any
		if err := json.Unmarshal(u.raw, &transactions); err != nil {
			return fmt.Errorf("failed to decode transactions of statement %d: %w", u.id, err)
		}
		stripTransactionIDs(transactions)
		if err := updateTransactions(ctx, tx, u.id, transactions); err != nil {
			return err
		}
	}
	return nil
}

// assignTransactionIDs numbers the collection 1..N in its existing order,
// overwriting whatever was there before.
func assignTransactionIDs(transactions []map[string]any) {
	for i := range transactions {
		transactions[i]["id"] = i + 1
	}
}

// stripTransactionIDs removes the id field from every transaction. Safe to
// run on collections that never had one.
func stripTransactionIDs(transactions []map[string]any) {
	for _, tr := range transactions {
		delete(tr, "id")
	}
}

type transactionRow struct {
	id  int64
	raw []byte
}

// collectTransactionRows drains the result set before any update runs on
// the same transaction's connection.
func collectTransactionRows(rows *sql.Rows) ([]transactionRow, error) {
	defer rows.Close()

	var out []transactionRow
	for rows.Next() {
		var r transactionRow
		if err := rows.Scan(&r.id, &r.raw); err != nil {
			return nil, fmt.Errorf("failed to scan statement row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate statement rows: %w", err)
	}
	return out, nil
}

func updateTransactions(ctx context.Context, tx *sql.Tx, id int64, transactions []map[string]any) error {
	encoded, err := json.Marshal(transactions)
	if err != nil {
		return fmt.Errorf("failed to encode transactions of statement %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE statements SET transactions = $1 WHERE id = $2`, encoded, id); err != nil {
		return fmt.Errorf("failed to update statement %d: %w", id, err)
	}
	return nil
}
