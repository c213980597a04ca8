package storage

import (
	"context"
	"database/sql"

	"fintrack/internal/core"
)

const (
	insertCategorySQL = `
		INSERT INTO categories (id, name, is_income)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name      = excluded.name,
			is_income = excluded.is_income`

	updateCategorySQL = `UPDATE categories SET name = ?, is_income = ? WHERE id = ?`

	deleteCategorySQL = `DELETE FROM categories WHERE id = ?`
)

// InsertCategory follows the same identity convention as InsertTransaction.
func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) (int64, error) {
	return r.mutation(ctx, core.TableCategories, "insert", func(tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, insertCategorySQL, nullableID(c.ID), c.Name, c.IsIncome)
		if err != nil {
			return 0, err
		}
		if c.ID != 0 {
			return c.ID, nil
		}
		return res.LastInsertId()
	})
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	_, err := r.mutation(ctx, core.TableCategories, "update", func(tx *sql.Tx) (int64, error) {
		return execAffecting(ctx, tx, c.ID, updateCategorySQL, c.Name, c.IsIncome, c.ID)
	})
	return err
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, c core.Category) error {
	_, err := r.mutation(ctx, core.TableCategories, "delete", func(tx *sql.Tx) (int64, error) {
		return execAffecting(ctx, tx, c.ID, deleteCategorySQL, c.ID)
	})
	return err
}
