package storage

import (
	"context"
	"database/sql"

	"fintrack/internal/core"
)

const (
	insertTransactionSQL = `
		INSERT INTO transactions (id, remote_id, amount, category, note, is_income, timestamp, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_id = excluded.remote_id,
			amount    = excluded.amount,
			category  = excluded.category,
			note      = excluded.note,
			is_income = excluded.is_income,
			timestamp = excluded.timestamp,
			user_id   = excluded.user_id`

	updateTransactionSQL = `
		UPDATE transactions
		SET remote_id = ?, amount = ?, category = ?, note = ?, is_income = ?, timestamp = ?, user_id = ?
		WHERE id = ?`

	deleteTransactionSQL = `DELETE FROM transactions WHERE id = ?`
)

// InsertTransaction stores t and returns its identity. A zero ID lets the
// store assign one; a non-zero ID is used verbatim and re-inserting it
// overwrites the existing row.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	return r.mutation(ctx, core.TableTransactions, "insert", func(tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, insertTransactionSQL,
			nullableID(t.ID),
			t.RemoteID,
			t.Amount,
			t.Category,
			nullableText(t.Note),
			t.IsIncome,
			t.Timestamp,
			t.UserID,
		)
		if err != nil {
			return 0, err
		}
		if t.ID != 0 {
			return t.ID, nil
		}
		return res.LastInsertId()
	})
}

// UpdateTransaction rewrites every column of the row addressed by t.ID.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.mutation(ctx, core.TableTransactions, "update", func(tx *sql.Tx) (int64, error) {
		return execAffecting(ctx, tx, t.ID, updateTransactionSQL,
			t.RemoteID,
			t.Amount,
			t.Category,
			nullableText(t.Note),
			t.IsIncome,
			t.Timestamp,
			t.UserID,
			t.ID,
		)
	})
	return err
}

// DeleteTransaction removes the row addressed by t.ID.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.mutation(ctx, core.TableTransactions, "delete", func(tx *sql.Tx) (int64, error) {
		return execAffecting(ctx, tx, t.ID, deleteTransactionSQL, t.ID)
	})
	return err
}
