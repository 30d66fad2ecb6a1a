package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one batch sweep over every active rule and exit",
		Long: `Evaluates every (user, pet) pair that has an active rule, delivers any
alerts that fire and prints a summary. Exits non-zero when the rules could not
be loaded or any pair failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(prune)
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", true, "prune expired trigger log entries after the sweep")
	return cmd
}

func runSweep(prune bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.scheduler.BatchCheckAlerts(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, result.Summary())
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "  - %s\n", e)
	}

	if prune {
		removed, err := a.limiter.Prune(ctx, time.Now())
		if err != nil {
			a.log.Warn("Failed to prune trigger log: %v", err)
		} else {
			a.log.Info("Pruned %d trigger log entries", removed)
		}
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("sweep finished with %d error(s)", len(result.Errors))
	}
	return nil
}
