package query_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/query"
	"fintrack/internal/storage"
)

func seededStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "catalog.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	for _, tx := range []core.Transaction{
		{Amount: 50, Category: "Salary", IsIncome: true, Timestamp: 100, UserID: "u1"},
		{Amount: 25, Category: "Freelance", IsIncome: true, Timestamp: 150, Note: core.NoteOf("logo job")},
		{Amount: 10, Category: "Food", Timestamp: 120},
		{Amount: 4.5, Category: "Coffee", Timestamp: 200, Note: core.NoteOf("Food court")},
		{Amount: 99, Category: "Rent", Timestamp: 999},
	} {
		_, err := repo.InsertTransaction(ctx, tx)
		require.NoError(t, err)
	}
	for _, c := range []core.Category{
		{Name: "Rent"}, {Name: "Food"}, {Name: "Coffee"}, {Name: "Salary", IsIncome: true},
	} {
		_, err := repo.InsertCategory(ctx, c)
		require.NoError(t, err)
	}
	return repo
}

func TestCatalog_Totals(t *testing.T) {
	repo := seededStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		q     query.Query[*float64]
		want  float64
		empty bool
	}{
		{name: "income in range", q: query.IncomeTotal(0, 200), want: 75},
		{name: "income boundary inclusive", q: query.IncomeTotal(100, 100), want: 50},
		{name: "expense in range", q: query.ExpenseTotal(0, 200), want: 14.5},
		{name: "no income rows", q: query.IncomeTotal(300, 2000), empty: true},
		{name: "no rows at all", q: query.ExpenseTotal(5000, 6000), empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.q.Run(ctx, repo.DB())
			require.NoError(t, err)
			if tt.empty {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, 1e-9)
		})
	}
}

func TestCatalog_Balance(t *testing.T) {
	repo := seededStore(t)

	got, err := query.Balance(0, 200).Run(context.Background(), repo.DB())
	require.NoError(t, err)
	assert.InDelta(t, 60.5, got, 1e-9)

	got, err = query.Balance(5000, 6000).Run(context.Background(), repo.DB())
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestCatalog_SearchMatchesCategoryOrNote(t *testing.T) {
	repo := seededStore(t)
	ctx := context.Background()

	got, err := query.SearchTransactions(0, 1000, "Food").Run(ctx, repo.DB())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Coffee", got[0].Category, "matched through its note")
	assert.Equal(t, "Food", got[1].Category)

	got, err = query.SearchTransactions(0, 1000, "logo").Run(ctx, repo.DB())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "logo job", *got[0].Note)

	all, err := query.TransactionsByDateRange(0, 1000).Run(ctx, repo.DB())
	require.NoError(t, err)
	empty, err := query.SearchTransactions(0, 1000, "").Run(ctx, repo.DB())
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, all, empty)
}

func TestCatalog_TransactionsRoundTripNullNote(t *testing.T) {
	repo := seededStore(t)

	got, err := query.TransactionsByDateRange(100, 100).Run(context.Background(), repo.DB())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Note)
	assert.Equal(t, "u1", got[0].UserID)
}

func TestCatalog_CategoriesByType(t *testing.T) {
	repo := seededStore(t)
	ctx := context.Background()

	expense, err := query.CategoriesByType(false).Run(ctx, repo.DB())
	require.NoError(t, err)
	var names []string
	for _, c := range expense {
		names = append(names, c.Name)
		assert.False(t, c.IsIncome)
	}
	assert.Equal(t, []string{"Coffee", "Food", "Rent"}, names)

	income, err := query.CategoriesByType(true).Run(ctx, repo.DB())
	require.NoError(t, err)
	require.Len(t, income, 1)
	assert.Equal(t, "Salary", income[0].Name)
}

func TestCatalog_ByID(t *testing.T) {
	repo := seededStore(t)
	ctx := context.Background()

	txs, err := query.TransactionByID(2).Run(ctx, repo.DB())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Freelance", txs[0].Category)
	require.NotNil(t, txs[0].Note)
	assert.Equal(t, "logo job", *txs[0].Note)

	txs, err = query.TransactionByID(42).Run(ctx, repo.DB())
	require.NoError(t, err)
	assert.Empty(t, txs)

	cats, err := query.CategoryByID(4).Run(ctx, repo.DB())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, core.Category{ID: 4, Name: "Salary", IsIncome: true}, cats[0])

	cats, err = query.CategoryByID(42).Run(ctx, repo.DB())
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestCatalog_InvertedRangeIsEmpty(t *testing.T) {
	repo := seededStore(t)
	ctx := context.Background()

	txs, err := query.TransactionsByDateRange(200, 100).Run(ctx, repo.DB())
	require.NoError(t, err)
	assert.Empty(t, txs)

	total, err := query.IncomeTotal(200, 100).Run(ctx, repo.DB())
	require.NoError(t, err)
	assert.Nil(t, total)

	balance, err := query.Balance(200, 100).Run(ctx, repo.DB())
	require.NoError(t, err)
	assert.Zero(t, balance)
}
