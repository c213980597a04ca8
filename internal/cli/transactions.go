package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
)

type transactionFlags struct {
	Income    bool
	Note      string
	ClearNote bool
	At        string
	RemoteID  string
	UserID    string
}

// register adds the shared flags. Income is only offered on add: a
// transaction keeps the side it was created on.
func (f *transactionFlags) register(cmd *cobra.Command, creating bool) {
	cmd.Flags().StringVar(&f.Note, "note", "", "optional note")
	cmd.Flags().StringVar(&f.At, "at", "", "time of the transaction, RFC 3339 or YYYY-MM-DD (default now)")
	cmd.Flags().StringVar(&f.RemoteID, "remote-id", "", "identifier of the matching remote record")
	cmd.Flags().StringVar(&f.UserID, "user", "", "owner (default DEFAULT_USER_ID)")
	if creating {
		cmd.Flags().BoolVar(&f.Income, "income", false, "record as income instead of expense")
		return
	}
	cmd.Flags().BoolVar(&f.ClearNote, "clear-note", false, "remove the note")
	cmd.MarkFlagsMutuallyExclusive("note", "clear-note")
}

func (f *transactionFlags) build(app *App, cmd *cobra.Command, amountArg, category string) (core.Transaction, error) {
	amount, err := parseAmount(amountArg)
	if err != nil {
		return core.Transaction{}, err
	}
	ts, err := parseTimestamp(f.At, time.Now())
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		RemoteID:  f.RemoteID,
		Amount:    amount,
		Category:  category,
		IsIncome:  f.Income,
		Timestamp: ts,
		UserID:    f.UserID,
	}
	if t.UserID == "" {
		t.UserID = app.Config.DefaultUserID
	}
	// Distinguish "--note ''" from an absent note
	if cmd.Flags().Changed("note") {
		t.Note = core.NoteOf(f.Note)
	}
	return t, nil
}

// apply overwrites the fields of t whose flags were set on the command line.
func (f *transactionFlags) apply(cmd *cobra.Command, t *core.Transaction) error {
	flags := cmd.Flags()
	if flags.Changed("at") {
		ts, err := parseTimestamp(f.At, time.Now())
		if err != nil {
			return err
		}
		t.Timestamp = ts
	}
	if flags.Changed("note") {
		t.Note = core.NoteOf(f.Note)
	}
	if f.ClearNote {
		t.Note = nil
	}
	if flags.Changed("remote-id") {
		t.RemoteID = f.RemoteID
	}
	if flags.Changed("user") {
		t.UserID = f.UserID
	}
	return nil
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &transactionFlags{}

	cmd := &cobra.Command{
		Use:   "add <amount> <category>",
		Short: "Record a transaction",
		Example: `  fintrack add 12.50 Groceries --note "weekly shop"
  fintrack add 2500 Salary --income --at 2024-05-01`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rootOpts.bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := flags.build(app, cmd, args[0], args[1])
			if err != nil {
				return err
			}
			id, err := app.Service.InsertTransaction(cmd.Context(), t)
			if err != nil {
				return classify("add transaction", err)
			}
			t.ID = id
			return rootOpts.formatter(cmd).Print("transaction", t, fmt.Sprintf("added transaction #%d", id))
		},
	}
	flags.register(cmd, true)
	return cmd
}

// NewEditCommand creates the edit command. Amount and category are
// replaced; other fields change only when their flag is given.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &transactionFlags{}

	cmd := &cobra.Command{
		Use:   "edit <id> <amount> <category>",
		Short: "Change a transaction",
		Example: `  fintrack edit 3 14.20 Groceries
  fintrack edit 3 14.20 Groceries --at 2024-05-02 --clear-note`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			app, err := rootOpts.bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			t, err := app.Service.Transaction(cmd.Context(), id)
			if err != nil {
				return classify("edit transaction", err)
			}
			t.Amount = amount
			t.Category = args[2]
			if err := flags.apply(cmd, &t); err != nil {
				return err
			}
			if err := app.Service.UpdateTransaction(cmd.Context(), t); err != nil {
				return classify("edit transaction", err)
			}
			return rootOpts.formatter(cmd).Print("transaction", t, fmt.Sprintf("updated transaction #%d", id))
		},
	}
	flags.register(cmd, false)
	return cmd
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			app, err := rootOpts.bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Service.DeleteTransaction(cmd.Context(), core.Transaction{ID: id}); err != nil {
				return classify("remove transaction", err)
			}
			return rootOpts.formatter(cmd).Print("deleted", map[string]int64{"id": id}, fmt.Sprintf("removed transaction #%d", id))
		},
	}
}
