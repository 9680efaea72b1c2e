package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func newPeriodsCmd(b *backend) *cobra.Command {
	cmd := &cobra.Command{Use: "periods", Short: "Manage financial periods"}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the tenant's periods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			svc, err := b.periods(cmd.Context())
			if err != nil {
				return err
			}
			items, err := svc.List(cmd.Context(), tenant, periods.Filters{Status: periods.PeriodStatus(strings.ToUpper(status))})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tSTART\tEND\tSTATUS\tCURRENT")
			for _, p := range items {
				current := ""
				if p.IsCurrent {
					current = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Code, p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly), p.Status, current)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by OPEN or CLOSED")

	var start, end string
	create := &cobra.Command{
		Use:   "create CODE",
		Short: "Create a period covering --start..--end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			actor, err := actorFlag(cmd)
			if err != nil {
				return err
			}
			from, err := time.Parse(time.DateOnly, start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			to, err := time.Parse(time.DateOnly, end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			svc, err := b.periods(cmd.Context())
			if err != nil {
				return err
			}
			p, err := svc.Create(cmd.Context(), periods.CreateInput{TenantID: tenant, Code: args[0], StartDate: from, EndDate: to, ActorID: actor})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created period %s (%s..%s)\n", p.Code, p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly))
			return nil
		},
	}
	create.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	create.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")

	transition := func(use, short, verb string, apply func(svc PeriodAdmin, cmd *cobra.Command, tenant int64, code string, actor int64) (periods.Period, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " CODE",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tenant, err := tenantFlag(cmd)
				if err != nil {
					return err
				}
				actor, err := actorFlag(cmd)
				if err != nil {
					return err
				}
				svc, err := b.periods(cmd.Context())
				if err != nil {
					return err
				}
				p, err := apply(svc, cmd, tenant, args[0], actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s period %s\n", verb, p.Code)
				return nil
			},
		}
	}
	closeCmd := transition("close", "Close an open period", "closed",
		func(svc PeriodAdmin, cmd *cobra.Command, tenant int64, code string, actor int64) (periods.Period, error) {
			return svc.Close(cmd.Context(), tenant, code, actor)
		})
	reopenCmd := transition("reopen", "Reopen a closed period", "reopened",
		func(svc PeriodAdmin, cmd *cobra.Command, tenant int64, code string, actor int64) (periods.Period, error) {
			return svc.Reopen(cmd.Context(), tenant, code, actor)
		})

	cmd.AddCommand(list, create, closeCmd, reopenCmd)
	return cmd
}

func newBalancesCmd(b *backend) *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Print running balances per account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			svc, err := b.ledger(cmd.Context())
			if err != nil {
				return err
			}
			accounts, err := svc.ListAccounts(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			places := precisionFlag(cmd)
			fmt.Fprintln(tw, "CODE\tNAME\tNORMAL\tBALANCE\tENTRIES\t")
			for _, a := range accounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t\n", a.AccountCode, a.AccountName, a.NormalBalance, formatMoney(a.DisplayBalance(), places), a.EntryCount)
			}
			return tw.Flush()
		},
	}
}

func newIntegrityCmd(b *backend) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Recompute balances from entries and report discrepancies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := b.ledger(cmd.Context())
			if err != nil {
				return err
			}
			var reports []ledger.IntegrityReport
			if all {
				if reports, err = svc.CheckAll(cmd.Context()); err != nil {
					return err
				}
			} else {
				tenant, err := tenantFlag(cmd)
				if err != nil {
					return err
				}
				report, err := svc.CheckIntegrity(cmd.Context(), tenant)
				if err != nil {
					return err
				}
				reports = []ledger.IntegrityReport{report}
			}
			return printIntegrity(cmd, reports)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "check every tenant")
	return cmd
}

func printIntegrity(cmd *cobra.Command, reports []ledger.IntegrityReport) error {
	out := cmd.OutOrStdout()
	places := precisionFlag(cmd)
	failed := false
	for _, r := range reports {
		status := "ok"
		if !r.OK() {
			status = "VIOLATIONS"
			failed = true
		}
		fmt.Fprintf(out, "tenant %d: %s (%d accounts, %d journals)\n", r.TenantID, status, r.AccountsChecked, r.JournalsChecked)
		for _, d := range r.Drifts {
			fmt.Fprintf(out, "  drift %s: cached %s, derived %s\n", d.AccountCode, formatMoney(d.Cached, places), formatMoney(d.Derived, places))
		}
		for _, im := range r.Imbalances {
			fmt.Fprintf(out, "  journal #%d: debits %s, credits %s\n", im.Number, formatMoney(im.TotalDebit, places), formatMoney(im.TotalCredit, places))
		}
	}
	if failed {
		return errViolations
	}
	return nil
}

func newMappingsCmd(b *backend) *cobra.Command {
	cmd := &cobra.Command{Use: "mappings", Short: "Manage integration account mappings"}

	list := &cobra.Command{
		Use:   "list [MODULE]",
		Short: "List account mappings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			repo, err := b.mappings(cmd.Context())
			if err != nil {
				return err
			}
			module := ""
			if len(args) == 1 {
				module = args[0]
			}
			items, err := repo.List(cmd.Context(), tenant, strings.ToUpper(module))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODULE\tKEY\tACCOUNT")
			for _, m := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Module, m.Key, m.AccountCode)
			}
			return tw.Flush()
		},
	}

	set := &cobra.Command{
		Use:   "set MODULE KEY ACCOUNT_CODE",
		Short: "Point a mapping key at a chart account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			repo, err := b.mappings(cmd.Context())
			if err != nil {
				return err
			}
			m := mappings.AccountMapping{TenantID: tenant, Module: args[0], Key: args[1], AccountCode: args[2]}
			m.Normalize()
			if err := m.Validate(); err != nil {
				return err
			}
			saved, err := repo.Upsert(cmd.Context(), m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s -> %s\n", saved.Module, saved.Key, saved.AccountCode)
			return nil
		},
	}

	cmd.AddCommand(list, set)
	return cmd
}

func newJobsCmd(b *backend) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Submit background jobs"}

	integrity := &cobra.Command{
		Use:   "integrity",
		Short: "Queue an integrity check; without --tenant every tenant is checked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetInt64("tenant")
			q, err := b.queue()
			if err != nil {
				return err
			}
			info, err := q.EnqueueIntegrityCheck(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s (id %s)\n", jobs.TaskIntegrityCheck, info.Queue, info.ID)
			return nil
		},
	}

	var kind, file string
	posting := &cobra.Command{
		Use:   "post",
		Short: "Queue a posting request read from --file (JSON event payload)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kind == "" || file == "" {
				return errors.New("--kind and --file are required")
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			if !json.Valid(raw) {
				return fmt.Errorf("%s: not valid JSON", file)
			}
			q, err := b.queue()
			if err != nil {
				return err
			}
			info, err := q.EnqueuePostingRequest(cmd.Context(), integration.Request{Kind: kind, Payload: raw})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s %s (id %s)\n", jobs.TaskPostingRequest, kind, info.ID)
			return nil
		},
	}
	posting.Flags().StringVar(&kind, "kind", "", "event kind, e.g. invoice.issued")
	posting.Flags().StringVar(&file, "file", "", "path to the event JSON")

	cmd.AddCommand(integrity, posting)
	return cmd
}
