// Command opctl is the operator's maintenance CLI: list/force-close open
// positions, reconcile a stale meta.qty_open after a missed fill, and
// check the position table's consistency invariants. Every subcommand
// reads and writes through internal/store, the same repo the services
// use, never touching Postgres directly.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/bybit"
	"github.com/macd3/futures-engine/pkg/config"
	"github.com/macd3/futures-engine/pkg/dbx"
	"github.com/macd3/futures-engine/pkg/ratelimit"
)

func main() {
	root := &cobra.Command{
		Use:   "opctl",
		Short: "Operator maintenance CLI for the trading engine's position store",
	}
	root.AddCommand(
		listCmd(),
		forceCloseCmd(),
		fixStaleCmd(),
		integrityCmd(),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (*store.Store, func(), *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := dbx.Open(ctx, cfg.DatabaseURL, 5)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store.New(db), func() { db.Close() }, cfg, nil
}

func listCmd() *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List OPEN positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, closeFn, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			positions, err := st.ListOpenPositions(ctx, symbol)
			if err != nil {
				return fmt.Errorf("list open positions: %w", err)
			}
			if len(positions) == 0 {
				fmt.Println("no OPEN positions")
				return nil
			}
			for _, p := range positions {
				fmt.Printf("%-40s %-10s %-6s qty_total=%-12g qty_runner=%-12g entry=%-12g sl=%-12g\n",
					p.IdempotencyKey, p.Symbol, p.Side, p.QtyTotal, p.QtyRunner, p.EntryPrice, p.PrimarySLPrice)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "filter to one symbol")
	return cmd
}

func forceCloseCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "force-close <idempotency_key>",
		Short: "Force-close a single OPEN position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, closeFn, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			key := args[0]
			p, found, err := st.GetPosition(ctx, key)
			if err != nil {
				return fmt.Errorf("get position: %w", err)
			}
			if !found {
				return fmt.Errorf("no position found for %s", key)
			}
			if p.Status == "CLOSED" {
				fmt.Printf("%s is already CLOSED\n", key)
				return nil
			}

			if err := st.ForceClosePosition(ctx, key, reason, nowMs()); err != nil {
				return fmt.Errorf("force close: %w", err)
			}
			fmt.Printf("closed %s (%s %s, reason=%s)\n", key, p.Symbol, p.Side, reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "MANUAL_CLEANUP", "exit_reason to record")
	return cmd
}

// fixStaleCmd reconciles DB-OPEN positions against Bybit's live
// position-list (LIVE mode only): positions the exchange no longer holds
// are force-closed; positions still open elsewhere just have their
// meta.qty_open corrected to the exchange-reported size.
func fixStaleCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "fix-stale",
		Short: "Reconcile OPEN positions against the exchange's live position list",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, closeFn, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if cfg.ExecutionMode != "LIVE" {
				fmt.Printf("execution mode is %s, not LIVE — nothing to reconcile against an exchange\n", cfg.ExecutionMode)
				return nil
			}

			limiter := ratelimit.New(map[ratelimit.Group]ratelimit.GroupConfig{
				ratelimit.GroupPrivateCritical: {RPS: cfg.PrivateCriticalRPS, Burst: cfg.PrivateCriticalBurst},
			}, cfg.PublicRPS, cfg.PublicBurst, cfg.MaxWait())
			bc := bybit.NewClient(bybit.Config{
				APIKey:      cfg.BybitAPIKey,
				APISecret:   cfg.BybitAPISecret,
				RESTBaseURL: cfg.BybitRESTBaseURL,
				Category:    cfg.BybitCategory,
				RecvWindow:  cfg.BybitRecvWindow,
			}, limiter)

			positions, err := st.ListOpenPositions(ctx, "")
			if err != nil {
				return fmt.Errorf("list open positions: %w", err)
			}

			liveBySymbol := make(map[string]float64)
			for _, p := range positions {
				if _, ok := liveBySymbol[p.Symbol]; ok {
					continue
				}
				live, err := bc.GetPositions(ctx, p.Symbol)
				if err != nil {
					fmt.Fprintf(os.Stderr, "warn: get live positions for %s: %v\n", p.Symbol, err)
					continue
				}
				var size float64
				for _, lp := range live {
					size += lp.Size
				}
				liveBySymbol[p.Symbol] = size
			}

			for _, p := range positions {
				size, checked := liveBySymbol[p.Symbol]
				if !checked {
					continue
				}
				if size <= 0 {
					fmt.Printf("%s (%s): exchange reports no size left — closing stale DB position\n", p.IdempotencyKey, p.Symbol)
					if !dryRun {
						if err := st.ForceClosePosition(ctx, p.IdempotencyKey, "MANUAL_CLEANUP", nowMs()); err != nil {
							fmt.Fprintf(os.Stderr, "warn: force close %s: %v\n", p.IdempotencyKey, err)
						}
					}
					continue
				}

				qtyOpen, ok := metaFloat(p.Meta, "qty_open")
				if !ok || qtyOpen != size {
					fmt.Printf("%s (%s): meta.qty_open drifted (db=%v exchange=%v) — correcting\n", p.IdempotencyKey, p.Symbol, qtyOpen, size)
					if !dryRun {
						if err := st.SetPositionQtyOpen(ctx, p.IdempotencyKey, size); err != nil {
							fmt.Fprintf(os.Stderr, "warn: set qty_open %s: %v\n", p.IdempotencyKey, err)
						}
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	return cmd
}

func integrityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Re-derive spec invariants (qty partition, stop direction) against live data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, closeFn, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			positions, err := st.ListPositions(ctx, 1000)
			if err != nil {
				return fmt.Errorf("list positions: %w", err)
			}

			violations := 0
			for _, p := range positions {
				for _, v := range checkPositionInvariants(p) {
					fmt.Printf("VIOLATION %s: %s\n", p.IdempotencyKey, v)
					violations++
				}
			}
			if violations == 0 {
				fmt.Println("no invariant violations found")
				return nil
			}
			return fmt.Errorf("%d invariant violation(s) found", violations)
		},
	}
	return cmd
}

// checkPositionInvariants checks a single row's position invariants:
// qty_open <= qty_total, runner_stop_price monotone in favor of the
// position relative to primary_sl_price, and closed_at_ms >= opened_at_ms.
func checkPositionInvariants(p store.Position) []string {
	var out []string

	if qtyOpen, ok := metaFloat(p.Meta, "qty_open"); ok && qtyOpen > p.QtyTotal+1e-9 {
		out = append(out, fmt.Sprintf("qty_open (%g) exceeds qty_total (%g)", qtyOpen, p.QtyTotal))
	}

	if p.Status == "OPEN" && p.RunnerStopPrice != nil {
		stop := *p.RunnerStopPrice
		switch p.Side {
		case "BUY", "LONG":
			if stop < p.PrimarySLPrice-1e-9 {
				out = append(out, fmt.Sprintf("runner_stop_price (%g) below primary_sl_price (%g) for LONG", stop, p.PrimarySLPrice))
			}
		case "SELL", "SHORT":
			if stop > p.PrimarySLPrice+1e-9 {
				out = append(out, fmt.Sprintf("runner_stop_price (%g) above primary_sl_price (%g) for SHORT", stop, p.PrimarySLPrice))
			}
		}
	}

	if p.ClosedAtMs != nil && *p.ClosedAtMs < p.OpenedAtMs {
		out = append(out, fmt.Sprintf("closed_at_ms (%d) precedes opened_at_ms (%d)", *p.ClosedAtMs, p.OpenedAtMs))
	}

	return out
}

func metaFloat(raw json.RawMessage, key string) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0, false
	}
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func nowMs() int64 { return time.Now().UnixMilli() }
