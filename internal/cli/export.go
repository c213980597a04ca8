package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
)

// NewExportCommand creates the export command, writing one month of
// transactions as CSV.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var month, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a month of transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if month == "" {
				month = time.Now().Format("2006-01")
			}
			start, end, err := monthRange(month)
			if err != nil {
				return err
			}

			app, err := rootOpts.bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			txs, err := first(cmd.Context(), app.Service.SubscribeTransactionsByDateRange(cmd.Context(), start, end))
			if err != nil {
				return classify("export", err)
			}

			if output == "" || output == "-" {
				if err := writeCSV(cmd.OutOrStdout(), txs); err != nil {
					return WrapExitError(ExitFailure, "export", err)
				}
			} else if err := writeCSVFile(output, txs); err != nil {
				return err
			}
			app.Logger.Info("Exported transactions", "month", month, "count", len(txs))
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "month to export as YYYY-MM (default current month)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// writeCSVFile creates path and reports a failed close, since that is where
// buffered data reaches the disk.
func writeCSVFile(path string, txs []core.Transaction) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "export", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = WrapExitError(ExitFailure, "export", fmt.Errorf("close %s: %w", path, cerr))
		}
	}()
	if err := writeCSV(f, txs); err != nil {
		return WrapExitError(ExitFailure, "export", err)
	}
	return nil
}

var csvHeader = []string{"id", "date", "type", "category", "amount", "note", "remote_id"}

func writeCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range txs {
		kind := "expense"
		if t.IsIncome {
			kind = "income"
		}
		note := ""
		if t.Note != nil {
			note = *t.Note
		}
		row := []string{
			strconv.FormatInt(t.ID, 10),
			time.UnixMilli(t.Timestamp).Local().Format("2006-01-02 15:04:05"),
			kind,
			t.Category,
			strconv.FormatFloat(t.Amount, 'f', -1, 64),
			note,
			t.RemoteID,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
