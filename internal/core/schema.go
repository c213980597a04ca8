package core

// Table names double as invalidation keys.
const (
	TableTransactions = "transactions"
	TableCategories   = "categories"
)

// Column names of the transactions table, in insert binding order.
const (
	ColID        = "id"
	ColRemoteID  = "remote_id"
	ColAmount    = "amount"
	ColCategory  = "category"
	ColNote      = "note"
	ColIsIncome  = "is_income"
	ColTimestamp = "timestamp"
	ColUserID    = "user_id"
	ColName      = "name"
)

var (
	TransactionColumns = []string{ColID, ColRemoteID, ColAmount, ColCategory, ColNote, ColIsIncome, ColTimestamp, ColUserID}
	CategoryColumns    = []string{ColID, ColName, ColIsIncome}
)
