package query

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
)

var transactionSelect = fmt.Sprintf("SELECT %s FROM %s",
	strings.Join(core.TransactionColumns, ", "), core.TableTransactions)

var categorySelect = fmt.Sprintf("SELECT %s FROM %s",
	strings.Join(core.CategoryColumns, ", "), core.TableCategories)

// TransactionsByDateRange lists transactions with timestamp in [start, end],
// newest first.
func TransactionsByDateRange(start, end int64) Query[[]core.Transaction] {
	return Query[[]core.Transaction]{
		Name:   "transactions_by_date_range",
		SQL:    transactionSelect + " WHERE timestamp BETWEEN ?1 AND ?2 ORDER BY timestamp DESC",
		Args:   []any{start, end},
		Tables: []string{core.TableTransactions},
		decode: decodeTransactions,
	}
}

// SearchTransactions narrows the date range to rows whose category or note
// contains text. An empty text matches every row in range.
func SearchTransactions(start, end int64, text string) Query[[]core.Transaction] {
	return Query[[]core.Transaction]{
		Name: "search_transactions",
		SQL: transactionSelect + ` WHERE (timestamp BETWEEN ?1 AND ?2)
			AND (category LIKE '%' || ?3 || '%' OR note LIKE '%' || ?3 || '%')
			ORDER BY timestamp DESC`,
		Args:   []any{start, end, text},
		Tables: []string{core.TableTransactions},
		decode: decodeTransactions,
	}
}

// IncomeTotal sums income amounts in [start, end]. The result is nil when
// no income row falls in range.
func IncomeTotal(start, end int64) Query[*float64] {
	return total("income_total", true, start, end)
}

// ExpenseTotal sums expense amounts in [start, end]. The result is nil when
// no expense row falls in range.
func ExpenseTotal(start, end int64) Query[*float64] {
	return total("expense_total", false, start, end)
}

func total(name string, isIncome bool, start, end int64) Query[*float64] {
	return Query[*float64]{
		Name:   name,
		SQL:    "SELECT SUM(amount) FROM " + core.TableTransactions + " WHERE is_income = ?1 AND timestamp BETWEEN ?2 AND ?3",
		Args:   []any{isIncome, start, end},
		Tables: []string{core.TableTransactions},
		decode: decodeOptionalFloat,
	}
}

// Balance is income minus expense over [start, end]; an empty range yields 0.
func Balance(start, end int64) Query[float64] {
	return Query[float64]{
		Name: "balance",
		SQL: "SELECT COALESCE(SUM(CASE WHEN is_income THEN amount ELSE -amount END), 0) FROM " +
			core.TableTransactions + " WHERE timestamp BETWEEN ?1 AND ?2",
		Args:   []any{start, end},
		Tables: []string{core.TableTransactions},
		decode: decodeFloat,
	}
}

// CategoriesByType lists categories of one partition ordered by name.
func CategoriesByType(isIncome bool) Query[[]core.Category] {
	return Query[[]core.Category]{
		Name:   "categories_by_type",
		SQL:    categorySelect + " WHERE is_income = ?1 ORDER BY name ASC",
		Args:   []any{isIncome},
		Tables: []string{core.TableCategories},
		decode: decodeCategories,
	}
}

// TransactionByID reads a single row. The result is empty when id is unknown.
func TransactionByID(id int64) Query[[]core.Transaction] {
	return Query[[]core.Transaction]{
		Name:   "transaction_by_id",
		SQL:    transactionSelect + " WHERE id = ?1",
		Args:   []any{id},
		Tables: []string{core.TableTransactions},
		decode: decodeTransactions,
	}
}

// CategoryByID reads a single category. The result is empty when id is unknown.
func CategoryByID(id int64) Query[[]core.Category] {
	return Query[[]core.Category]{
		Name:   "category_by_id",
		SQL:    categorySelect + " WHERE id = ?1",
		Args:   []any{id},
		Tables: []string{core.TableCategories},
		decode: decodeCategories,
	}
}
