package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"leasepack/internal/app"
	"leasepack/internal/compliance"
	"leasepack/internal/facts/casefacts"
	"leasepack/internal/platform/config"
	"leasepack/internal/platform/logger"
	"leasepack/pkg/domain"
)

// errInvalidDocument makes validate exit non-zero without printing usage.
var errInvalidDocument = errors.New("document is invalid")

func buildApp(ctx context.Context) (*app.App, error) {
	cfg := config.FromEnv()
	return app.Build(ctx, cfg, logger.NewWithWriter(os.Stderr, cfg.Server.LogLevel))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <order-id>",
		Short: "Re-run fulfillment for a paid order",
		Long: `Re-enter the idempotent fulfillment path for one order. Completed orders
are left alone; failed or stale orders are claimed and generated again, skipping
documents already in the ledger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := domain.ParseOrderID(args[0])
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Fulfillment.Retry(cmd.Context(), orderID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Demote orders stuck in processing to failed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.Fulfillment.SweepStale(cmd.Context())
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []domain.OrderID{}
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"demoted": ids})
		},
	}
}

func validateCmd() *cobra.Command {
	var (
		expect       string
		jurisdiction string
	)
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check an uploaded notice against the expected form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expected, ok := compliance.ParseExpected(expect)
			if !ok {
				return fmt.Errorf("--expect must be one of section_21, section_8, notice_to_leave")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cf := casefacts.CaseFacts{}
			if jurisdiction != "" {
				if cf.Jurisdiction, err = domain.ParseJurisdiction(jurisdiction); err != nil {
					return err
				}
			}

			engine, err := compliance.NewEngine()
			if err != nil {
				return err
			}
			summary := engine.ValidateDocument(cmd.Context(), compliance.DocumentInput{
				Expected: expected,
				FileName: filepath.Base(args[0]),
				Data:     data,
			}, cf)
			if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if summary.Status == compliance.StatusInvalid {
				return errInvalidDocument
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&expect, "expect", "e", "", "Expected notice: section_21, section_8 or notice_to_leave")
	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "Jurisdiction of the case")
	_ = cmd.MarkFlagRequired("expect")
	return cmd
}
