// Command ledgerctl is the operator CLI for the ledger: period lifecycle,
// integrity checks, account mappings and manual job submission.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// PeriodAdmin is the period lifecycle surface used by the CLI.
type PeriodAdmin interface {
	List(ctx context.Context, tenantID int64, filters periods.Filters) ([]periods.Period, error)
	Create(ctx context.Context, in periods.CreateInput) (periods.Period, error)
	Close(ctx context.Context, tenantID int64, code string, actorID int64) (periods.Period, error)
	Reopen(ctx context.Context, tenantID int64, code string, actorID int64) (periods.Period, error)
}

// LedgerAdmin reads balances and runs integrity checks.
type LedgerAdmin interface {
	ListAccounts(ctx context.Context, tenantID int64) ([]ledger.Account, error)
	CheckIntegrity(ctx context.Context, tenantID int64) (ledger.IntegrityReport, error)
	CheckAll(ctx context.Context) ([]ledger.IntegrityReport, error)
}

// QueueAdmin submits jobs.
type QueueAdmin interface {
	EnqueueIntegrityCheck(ctx context.Context, tenantID int64) (*asynq.TaskInfo, error)
	EnqueuePostingRequest(ctx context.Context, req integration.Request) (*asynq.TaskInfo, error)
}

// backend resolves collaborators lazily so that --help never dials a database.
type backend struct {
	periods  func(ctx context.Context) (PeriodAdmin, error)
	ledger   func(ctx context.Context) (LedgerAdmin, error)
	mappings func(ctx context.Context) (mappings.Repository, error)
	queue    func() (QueueAdmin, error)
	close    func() error
}

// errViolations makes the process exit non-zero when an integrity check finds discrepancies.
var errViolations = errors.New("integrity violations found")

func main() {
	b := newRuntimeBackend()
	root := newRootCmd(b, os.Stdout)
	err := root.ExecuteContext(context.Background())
	if cerr := b.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		if !errors.Is(err, errViolations) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(b *backend, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the double-entry ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().Int64("tenant", 0, "tenant id")
	root.PersistentFlags().Int64("actor", 0, "acting user id recorded in the audit log")
	root.PersistentFlags().Int32("precision", shared.DefaultPrecision, "fractional digits printed for amounts; match LEDGER_CURRENCY_PRECISION")

	root.AddCommand(
		newPeriodsCmd(b),
		newBalancesCmd(b),
		newIntegrityCmd(b),
		newMappingsCmd(b),
		newJobsCmd(b),
	)
	return root
}

func tenantFlag(cmd *cobra.Command) (int64, error) {
	tenant, _ := cmd.Flags().GetInt64("tenant")
	if tenant <= 0 {
		return 0, errors.New("--tenant is required")
	}
	return tenant, nil
}

func actorFlag(cmd *cobra.Command) (int64, error) {
	actor, _ := cmd.Flags().GetInt64("actor")
	if actor <= 0 {
		return 0, errors.New("--actor is required")
	}
	return actor, nil
}

func precisionFlag(cmd *cobra.Command) int32 {
	places, _ := cmd.Flags().GetInt32("precision")
	if !shared.ValidPrecision(places) {
		return shared.DefaultPrecision
	}
	return places
}

func newRuntimeBackend() *backend {
	var (
		cfg    *app.Config
		svc    *app.Ledger
		client *jobs.Client
		closer = func() {}
	)
	load := func(ctx context.Context) (*app.Ledger, error) {
		if svc != nil {
			return svc, nil
		}
		var err error
		if cfg == nil {
			if cfg, err = app.LoadConfig(); err != nil {
				return nil, err
			}
		}
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		closer = pool.Close
		svc, err = app.BuildLedger(cfg, app.LedgerDeps{Pool: pool, Logger: app.NewLogger(cfg)})
		return svc, err
	}
	return &backend{
		periods: func(ctx context.Context) (PeriodAdmin, error) {
			l, err := load(ctx)
			if err != nil {
				return nil, err
			}
			return l.Periods, nil
		},
		ledger: func(ctx context.Context) (LedgerAdmin, error) {
			l, err := load(ctx)
			if err != nil {
				return nil, err
			}
			return l.Balances, nil
		},
		mappings: func(ctx context.Context) (mappings.Repository, error) {
			l, err := load(ctx)
			if err != nil {
				return nil, err
			}
			return l.Mappings, nil
		},
		queue: func() (QueueAdmin, error) {
			if client != nil {
				return client, nil
			}
			var err error
			if cfg == nil {
				if cfg, err = app.LoadConfig(); err != nil {
					return nil, err
				}
			}
			client, err = jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			return client, err
		},
		close: func() error {
			closer()
			if client != nil {
				return client.Close()
			}
			return nil
		},
	}
}
