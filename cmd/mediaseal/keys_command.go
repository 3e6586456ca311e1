package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mediaseal/internal/audit"
	"mediaseal/internal/drm"
	"mediaseal/internal/keyprovider"
	"mediaseal/internal/logging"
	"mediaseal/internal/rotation"
)

func newKeysCommand(ctx *commandContext) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Key provider utilities",
	}

	keysCmd.AddCommand(newKeysFetchCommand(ctx))
	keysCmd.AddCommand(newKeysEventsCommand(ctx))

	return keysCmd
}

func newKeysFetchCommand(ctx *commandContext) *cobra.Command {
	var labelsFlag string
	var periodFlag int

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch keys for stream labels from the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			labels := splitLabels(labelsFlag)
			if len(labels) == 0 {
				return fmt.Errorf("--labels must name at least one stream label")
			}

			params, err := cfg.EncryptionParams()
			if err != nil {
				return err
			}
			if periodFlag > 0 && params.CryptoPeriod <= 0 {
				return fmt.Errorf("--period requires encryption.crypto_period_seconds to be set")
			}
			if periodFlag < 0 {
				return fmt.Errorf("--period must not be negative")
			}

			provider, err := keyprovider.New(params)
			if err != nil {
				return err
			}
			scheduler, err := rotation.New(provider, params.CryptoPeriod)
			if err != nil {
				return err
			}

			jobID := uuid.NewString()
			cmdCtx := drm.WithJobID(cmd.Context(), jobID)
			timestamp := time.Duration(periodFlag) * params.CryptoPeriod

			period, err := scheduler.ActivePeriod(cmdCtx, timestamp, labels)
			if err != nil {
				return err
			}

			if cfg.Audit.Enabled {
				if err := recordFetch(ctx, cmdCtx, jobID, string(params.Provider()), period, labels); err != nil {
					logger.Warn("audit record failed", logging.Error(err))
				}
			}

			rows := make([][]string, 0, len(labels))
			for _, label := range labels {
				pair := period.Keys[label]
				rows = append(rows, []string{label, pair.KeyIDHex(), strconv.Itoa(period.Index)})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRows([]string{"LABEL", "KEY ID", "PERIOD"}, rows))
			fmt.Fprintf(cmd.OutOrStdout(), "Job: %s\n", jobID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&labelsFlag, "labels", "l", "", "Comma-separated stream labels (e.g. SD,HD,AUDIO-STEREO)")
	cmd.Flags().IntVarP(&periodFlag, "period", "p", 0, "Crypto period index to fetch keys for")
	return cmd
}

// recordFetch persists one keys_fetched event per label. The audit
// database is guarded by a file lock so concurrent CLI invocations do
// not interleave schema setup.
func recordFetch(ctx *commandContext, cmdCtx context.Context, jobID, provider string, period drm.CryptoPeriod, labels []string) error {
	cfg := ctx.cfg

	lock := flock.New(filepath.Join(cfg.Paths.AuditDir, "audit.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire audit lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	store, err := audit.Open(cfg.Paths.AuditDir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	for _, label := range labels {
		pair := period.Keys[label]
		event := audit.Event{
			JobID:       jobID,
			Kind:        audit.EventKeysFetched,
			Label:       label,
			PeriodIndex: period.Index,
			KeyIDHex:    pair.KeyIDHex(),
			Provider:    provider,
		}
		if err := store.Record(cmdCtx, event); err != nil {
			return err
		}
	}
	return nil
}

func newKeysEventsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <job-id>",
		Short: "List audit events recorded for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := audit.Open(cfg.Paths.AuditDir)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			events, err := store.Events(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events recorded for this job")
				return nil
			}

			rows := make([][]string, 0, len(events))
			for _, event := range events {
				rows = append(rows, []string{
					event.CreatedAt.Format(time.RFC3339),
					string(event.Kind),
					event.Label,
					strconv.Itoa(event.PeriodIndex),
					event.KeyIDHex,
					event.Provider,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRows([]string{"TIME", "EVENT", "LABEL", "PERIOD", "KEY ID", "PROVIDER"}, rows))
			return nil
		},
	}
	return cmd
}

func splitLabels(value string) []string {
	parts := strings.Split(value, ",")
	labels := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		label := strings.TrimSpace(part)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
