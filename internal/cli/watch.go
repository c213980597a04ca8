package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/live"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/worker"
)

type watchOptions struct {
	Month  string
	Search string
	Once   bool
}

// NewWatchCommand creates the watch command: a live dashboard of one month.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print balance, totals and transactions as they change",
		Long: `Subscribe to the balance, income and expense totals and the transaction
list of one month, printing every new value until interrupted.

When AMQP is configured the restore consumer runs alongside, and when
METRICS_ADDR is set Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Month, "month", "", "month to watch as YYYY-MM (default current month)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "only list transactions whose category or note contains this text")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "print the current values and exit")
	return cmd
}

func runWatch(cmd *cobra.Command, rootOpts *RootOptions, opts *watchOptions) error {
	month := opts.Month
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

	ctx, cancel := ShutdownContext(cmd.Context(), app.Logger)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	out := rootOpts.formatter(cmd)
	svc := app.Service

	balance := svc.SubscribeBalance(ctx, start, end)
	income := svc.SubscribeIncomeTotal(ctx, start, end)
	expense := svc.SubscribeExpenseTotal(ctx, start, end)
	var txs *live.Subscription[[]core.Transaction]
	if opts.Search != "" {
		txs = svc.SubscribeSearchTransactions(ctx, start, end, opts.Search)
	} else {
		txs = svc.SubscribeTransactionsByDateRange(ctx, start, end)
	}

	printBalance := func(v float64) error {
		return out.Print("balance", v, fmt.Sprintf("balance: %.2f", v))
	}
	printIncome := func(v *float64) error {
		return out.Print("income", v, formatTotal("income", v))
	}
	printExpense := func(v *float64) error {
		return out.Print("expense", v, formatTotal("expense", v))
	}
	printTransactions := func(v []core.Transaction) error {
		return out.Print("transactions", v, formatTransactions(v))
	}

	if opts.Once {
		if err := printFirst(ctx, balance, printBalance); err != nil {
			return err
		}
		if err := printFirst(ctx, income, printIncome); err != nil {
			return err
		}
		if err := printFirst(ctx, expense, printExpense); err != nil {
			return err
		}
		return printFirst(ctx, txs, printTransactions)
	}

	g.Go(func() error { return follow(balance, printBalance) })
	g.Go(func() error { return follow(income, printIncome) })
	g.Go(func() error { return follow(expense, printExpense) })
	g.Go(func() error { return follow(txs, printTransactions) })

	if app.amqp != nil {
		restore := worker.NewRestoreWorker(svc, app.amqp)
		g.Go(func() error { return restore.Run(ctx) })
	}

	if addr := app.Config.MetricsAddr; addr != "" {
		serveMetrics(ctx, g, app, addr)
	}

	if app.results != nil {
		manager := cache.NewManager()
		manager.Register(app.results)
		manager.StartCleanup(app.Config.ResultCacheTTL)
		defer manager.Stop()
	}

	app.Logger.Info("Watching", "month", month, "search", opts.Search)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return classify("watch", err)
	}
	return nil
}

// follow prints every value until the subscription ends. A terminal error
// is returned; a cancelled subscription ends quietly.
func follow[T any](sub *live.Subscription[T], emit func(T) error) error {
	defer sub.Cancel()
	for u := range sub.Updates() {
		if u.Err != nil {
			return u.Err
		}
		if err := emit(u.Value); err != nil {
			return err
		}
	}
	return nil
}

func printFirst[T any](ctx context.Context, sub *live.Subscription[T], emit func(T) error) error {
	v, err := first(ctx, sub)
	if err != nil {
		return classify("watch", err)
	}
	return emit(v)
}

// first returns the initial value of sub and cancels it.
func first[T any](ctx context.Context, sub *live.Subscription[T]) (T, error) {
	defer sub.Cancel()
	var zero T
	select {
	case u, ok := <-sub.Updates():
		if !ok {
			if err := sub.Err(); err != nil {
				return zero, err
			}
			return zero, ctx.Err()
		}
		return u.Value, u.Err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func serveMetrics(ctx context.Context, g *errgroup.Group, app *App, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.Registry))
	srv := &http.Server{
		Addr:              addr,
		Handler:           trace.NewMiddleware(app.Logger).Wrap(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		app.Logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
