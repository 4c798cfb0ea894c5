package main

import (
	"context"
	"fmt"
	"time"

	"randomness-oracle-sol/internal/config"
	"randomness-oracle-sol/internal/logic/admin"

	"github.com/spf13/cobra"
)

const initConfirmTimeout = 60 * time.Second

func newInitCmd(gf *globalFlags) *cobra.Command {
	var keypairPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create and initialize a new randomness oracle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := gf.load()
			if err != nil {
				return err
			}

			params := admin.InitParams{
				FeePayer: cc.feePayer,
				Owner:    cc.owner,
				Timeout:  initConfirmTimeout,
			}
			if keypairPath != "" {
				kp, err := config.LoadKeypair(config.ExpandHome(keypairPath))
				if err != nil {
					return fmt.Errorf("keypair: %w", err)
				}
				params.Oracle = &kp
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), initConfirmTimeout+10*time.Second)
			defer cancel()
			res, err := admin.InitOracle(ctx, cc.client, cc.programID, params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signature: %s\n", res.Signature)
			return nil
		},
	}
	cmd.Flags().StringVar(&keypairPath, "keypair", "", "Account keypair [default: new keypair]")
	return cmd
}

