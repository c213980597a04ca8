package query

import (
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

// columnIndex maps the returned column names and fails when any of required
// is missing from the result set.
func columnIndex(rows *sql.Rows, required []string) (map[string]int, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: read columns: %w", core.ErrDecodeFailed, err)
	}
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", core.ErrDecodeFailed, name)
		}
	}
	return idx, nil
}

func decodeTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	idx, err := columnIndex(rows, core.TransactionColumns)
	if err != nil {
		return nil, err
	}

	var (
		id        sql.NullInt64
		remoteID  sql.NullString
		amount    sql.NullFloat64
		category  sql.NullString
		note      sql.NullString
		isIncome  sql.NullBool
		timestamp sql.NullInt64
		userID    sql.NullString
	)
	dest := make([]any, len(idx))
	for i := range dest {
		dest[i] = new(any)
	}
	dest[idx[core.ColID]] = &id
	dest[idx[core.ColRemoteID]] = &remoteID
	dest[idx[core.ColAmount]] = &amount
	dest[idx[core.ColCategory]] = &category
	dest[idx[core.ColNote]] = &note
	dest[idx[core.ColIsIncome]] = &isIncome
	dest[idx[core.ColTimestamp]] = &timestamp
	dest[idx[core.ColUserID]] = &userID

	out := make([]core.Transaction, 0)
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %w", core.ErrDecodeFailed, err)
		}
		if err := requireNotNull(map[string]bool{
			core.ColID:        id.Valid,
			core.ColAmount:    amount.Valid,
			core.ColCategory:  category.Valid,
			core.ColIsIncome:  isIncome.Valid,
			core.ColTimestamp: timestamp.Valid,
		}); err != nil {
			return nil, fmt.Errorf("transaction row: %w", err)
		}

		tx := core.Transaction{
			ID:        id.Int64,
			RemoteID:  remoteID.String,
			Amount:    amount.Float64,
			Category:  category.String,
			IsIncome:  isIncome.Bool,
			Timestamp: timestamp.Int64,
			UserID:    userID.String,
		}
		if note.Valid {
			s := note.String
			tx.Note = &s
		}
		out = append(out, tx)
	}
	return out, nil
}

func decodeCategories(rows *sql.Rows) ([]core.Category, error) {
	idx, err := columnIndex(rows, core.CategoryColumns)
	if err != nil {
		return nil, err
	}

	var (
		id       sql.NullInt64
		name     sql.NullString
		isIncome sql.NullBool
	)
	dest := make([]any, len(idx))
	for i := range dest {
		dest[i] = new(any)
	}
	dest[idx[core.ColID]] = &id
	dest[idx[core.ColName]] = &name
	dest[idx[core.ColIsIncome]] = &isIncome

	out := make([]core.Category, 0)
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: scan category: %w", core.ErrDecodeFailed, err)
		}
		if err := requireNotNull(map[string]bool{
			core.ColID:       id.Valid,
			core.ColName:     name.Valid,
			core.ColIsIncome: isIncome.Valid,
		}); err != nil {
			return nil, fmt.Errorf("category row: %w", err)
		}
		out = append(out, core.Category{ID: id.Int64, Name: name.String, IsIncome: isIncome.Bool})
	}
	return out, nil
}

// decodeOptionalFloat reads a single aggregate cell; NULL becomes nil.
func decodeOptionalFloat(rows *sql.Rows) (*float64, error) {
	if !rows.Next() {
		return nil, fmt.Errorf("%w: aggregate returned no row", core.ErrDecodeFailed)
	}
	var v sql.NullFloat64
	if err := rows.Scan(&v); err != nil {
		return nil, fmt.Errorf("%w: scan aggregate: %w", core.ErrDecodeFailed, err)
	}
	if !v.Valid {
		return nil, nil
	}
	f := v.Float64
	return &f, nil
}

func decodeFloat(rows *sql.Rows) (float64, error) {
	v, err := decodeOptionalFloat(rows)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("%w: aggregate is null", core.ErrDecodeFailed)
	}
	return *v, nil
}

func requireNotNull(cells map[string]bool) error {
	for name, valid := range cells {
		if !valid {
			return fmt.Errorf("%w: column %q is null", core.ErrDecodeFailed, name)
		}
	}
	return nil
}

// classify maps driver errors that mean the store is gone onto
// core.ErrStoreUnavailable.
func classify(err error) error {
	if errors.Is(err, sql.ErrConnDone) || err.Error() == "sql: database is closed" {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return err
}
