package main

import (
	"context"
	"fmt"
	"time"

	"randomness-oracle-sol/internal/logic/admin"
	"randomness-oracle-sol/internal/pkg/types"

	"github.com/spf13/cobra"
)

func newInfoCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info ADDRESS",
		Short: "Display randomness oracle info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := types.TryPubkeyFromBase58(args[0])
			if err != nil {
				return err
			}
			cc, err := gf.load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			info, err := admin.Info(ctx, cc.client, cc.programID, address)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), info.String())
			return nil
		},
	}
}
