package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (store unavailable, write failed, ...)
	ExitCommandError = 2 // Bad arguments or invalid input
	ExitNotFound     = 3 // Update or delete addressed a missing identity
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify picks an exit code from the error taxonomy.
func classify(message string, err error) error {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return WrapExitError(ExitNotFound, message, err)
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyName):
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// OutputFormatter writes command results as text lines or JSON objects.
// It is safe for concurrent use by the watch loops.
type OutputFormatter struct {
	Format string
	Writer io.Writer

	mu sync.Mutex
}

type record struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// Print writes data under kind. Text output uses text; JSON output encodes data.
func (f *OutputFormatter) Print(kind string, data any, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(record{Kind: kind, Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

func formatTotal(label string, v *float64) string {
	if v == nil {
		return label + ": -"
	}
	return fmt.Sprintf("%s: %.2f", label, *v)
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func formatTransactions(txs []core.Transaction) string {
	if len(txs) == 0 {
		return "transactions: none"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "transactions: %d", len(txs))
	for _, t := range txs {
		sign := "-"
		if t.IsIncome {
			sign = "+"
		}
		fmt.Fprintf(&b, "\n  #%d  %s  %s%.2f  %s", t.ID, formatTime(t.Timestamp), sign, t.Amount, t.Category)
		if t.Note != nil {
			fmt.Fprintf(&b, "  (%s)", *t.Note)
		}
	}
	return b.String()
}

func formatCategories(cats []core.Category) string {
	if len(cats) == 0 {
		return "categories: none"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "categories: %d", len(cats))
	for _, c := range cats {
		fmt.Fprintf(&b, "\n  #%d  %s", c.ID, c.Name)
	}
	return b.String()
}
