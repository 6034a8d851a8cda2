// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/ManuGH/statustrack/internal/domain/status/model"
	"github.com/ManuGH/statustrack/internal/domain/status/report"
	"github.com/ManuGH/statustrack/internal/domain/status/store"
	"github.com/ManuGH/statustrack/internal/persistence/sqlite"
	"github.com/ManuGH/statustrack/internal/version"
)

type rootOptions struct {
	backend string
	path    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "statusctl",
		Short:        "Offline reports over a statustrack store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.backend, "backend", store.BackendSqlite, "store backend: sqlite or badger")
	root.PersistentFlags().StringVar(&opts.path, "path", "statustrack.db", "sqlite database file or badger directory")

	root.AddCommand(
		newSummaryCmd(opts),
		newHistoryCmd(opts),
		newExportCmd(opts),
		newTeamCmd(opts),
		newVerifyCmd(opts),
		newVersionCmd(),
	)
	return root
}

// withReports opens the store for the length of one command. Opening
// creates and migrates a missing store, so the path must already exist.
func (o *rootOptions) withReports(fn func(*report.Service) error) (err error) {
	if o.backend == store.BackendMemory {
		return errors.New("memory backend has nothing to read offline")
	}
	if err := requireStore(o.path); err != nil {
		return err
	}
	st, err := store.Open(o.backend, o.path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, st.Close())
	}()
	return fn(report.New(st))
}

func requireStore(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no store at %s", path)
		}
		return fmt.Errorf("stat store: %w", err)
	}
	return nil
}

// rangeFlags holds optional --from/--to bounds as ms or RFC3339.
type rangeFlags struct {
	from, to string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "range start, unix ms or RFC3339")
	cmd.Flags().StringVar(&r.to, "to", "", "range end, unix ms or RFC3339")
}

func (r *rangeFlags) bounds() (from, to *int64, err error) {
	if from, err = parseBound(r.from); err != nil {
		return nil, nil, fmt.Errorf("--from: %w", err)
	}
	if to, err = parseBound(r.to); err != nil {
		return nil, nil, fmt.Errorf("--to: %w", err)
	}
	return from, to, nil
}

func parseBound(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &ms, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q", raw)
	}
	ms := t.UnixMilli()
	return &ms, nil
}

func requireUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return errors.New("--user is required")
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var user string
	var rng rangeFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Total closed time per status (default: last 7 days)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(user); err != nil {
				return err
			}
			from, to, err := rng.bounds()
			if err != nil {
				return err
			}
			return opts.withReports(func(svc *report.Service) error {
				sum, err := svc.Summary(cmd.Context(), user, from, to, time.Now().UnixMilli())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "agent user id")
	rng.register(cmd)
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		user           string
		page, pageSize int
		rng            rangeFlags
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Paginated sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(user); err != nil {
				return err
			}
			from, to, err := rng.bounds()
			if err != nil {
				return err
			}
			return opts.withReports(func(svc *report.Service) error {
				res, err := svc.History(cmd.Context(), user, page, pageSize, model.Range{From: from, To: to})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "agent user id")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", report.DefaultPageSize, "items per page (max 100)")
	rng.register(cmd)
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		user string
		out  string
		rng  rangeFlags
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Sessions as CSV to stdout or --out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(user); err != nil {
				return err
			}
			from, to, err := rng.bounds()
			if err != nil {
				return err
			}
			return opts.withReports(func(svc *report.Service) error {
				if out == "" {
					return svc.ExportCSV(cmd.Context(), cmd.OutOrStdout(), user, from, to)
				}
				return exportToFile(cmd.Context(), svc, out, user, from, to)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "agent user id")
	cmd.Flags().StringVar(&out, "out", "", "write to this file atomically instead of stdout")
	rng.register(cmd)
	return cmd
}

// exportToFile replaces path only once the whole export succeeded.
func exportToFile(ctx context.Context, svc *report.Service, path, user string, from, to *int64) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending export file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if err := svc.ExportCSV(ctx, pending, user, from, to); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace export file: %w", err)
	}
	return nil
}

func newTeamCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "team",
		Short: "Current status of every agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withReports(func(svc *report.Service) error {
				board, err := svc.TeamBoard(cmd.Context())
				if err != nil {
					return err
				}
				if board == nil {
					board = []model.Session{}
				}
				return printJSON(cmd.OutOrStdout(), board)
			})
		},
	}
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check sqlite database integrity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.backend != store.BackendSqlite {
				return fmt.Errorf("verify supports the sqlite backend only, got %q", opts.backend)
			}
			mode = strings.ToLower(strings.TrimSpace(mode))
			if mode != "quick" && mode != "full" {
				return fmt.Errorf("invalid mode %q: use quick or full", mode)
			}
			if err := requireStore(opts.path); err != nil {
				return err
			}

			issues, err := sqlite.VerifyIntegrity(opts.path, mode)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(issues) == 0 {
				_, _ = fmt.Fprintf(w, "%s: ok\n", opts.path)
				return nil
			}
			for _, issue := range issues {
				_, _ = fmt.Fprintf(w, "%s: %s\n", opts.path, issue)
			}
			return fmt.Errorf("integrity check failed with %d issue(s)", len(issues))
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "quick", "quick or full")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
