package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mediaseal/internal/drm"
	"mediaseal/internal/keyprovider"
	"mediaseal/internal/pssh"
	"mediaseal/internal/rotation"
)

func newPSSHCommand(ctx *commandContext) *cobra.Command {
	var labelsFlag string
	var periodFlag int
	var base64Flag bool

	cmd := &cobra.Command{
		Use:   "pssh",
		Short: "Emit PSSH payloads for the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
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

			provider, err := keyprovider.New(params)
			if err != nil {
				return err
			}
			scheduler, err := rotation.New(provider, params.CryptoPeriod)
			if err != nil {
				return err
			}
			builder, err := pssh.NewBuilder(params)
			if err != nil {
				return err
			}

			cmdCtx := drm.WithJobID(cmd.Context(), uuid.NewString())
			timestamp := time.Duration(periodFlag) * params.CryptoPeriod
			period, err := scheduler.ActivePeriod(cmdCtx, timestamp, labels)
			if err != nil {
				return err
			}

			payload, err := builder.Build(period.Keys)
			if err != nil {
				return err
			}

			if base64Flag {
				fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(payload))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(payload))
			return nil
		},
	}

	cmd.Flags().StringVarP(&labelsFlag, "labels", "l", "", "Comma-separated stream labels (e.g. SD,HD,AUDIO-STEREO)")
	cmd.Flags().IntVarP(&periodFlag, "period", "p", 0, "Crypto period index to build PSSH for")
	cmd.Flags().BoolVar(&base64Flag, "base64", false, "Emit base64 instead of hex")
	return cmd
}
