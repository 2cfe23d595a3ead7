package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"ammcore/internal/exchange"
	"ammcore/internal/model"
)

func newPoolCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty pool for an ordered asset pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				assetA, err := addressFlag(cmd, "asset-a")
				if err != nil {
					return err
				}
				assetB, err := addressFlag(cmd, "asset-b")
				if err != nil {
					return err
				}
				rec, err := e.service.CreatePool(ctx, assetA, assetB)
				if err != nil {
					return err
				}
				return printJSON(cmd, rec)
			})
		},
	}
	cmd.Flags().String("asset-a", "", "asset A address")
	cmd.Flags().String("asset-b", "", "asset B address")
	addBackendFlags(cmd)
	return cmd
}

func newPoolShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a pool's reserves and LP supply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				id, err := poolFlag(cmd)
				if err != nil {
					return err
				}
				rec, err := e.service.Pool(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd, struct {
					model.PoolRecord
					Phase string `json:"phase"`
				}{PoolRecord: rec, Phase: rec.State.Phase().String()})
			})
		},
	}
	cmd.Flags().String("pool", "", "pool id")
	addBackendFlags(cmd)
	return cmd
}

func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	return fn(ctx, e)
}

func poolFlag(cmd *cobra.Command) (common.Hash, error) {
	raw, _ := cmd.Flags().GetString("pool")
	return exchange.ParsePoolID(raw)
}

func addressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	raw, _ := cmd.Flags().GetString(name)
	addr, err := exchange.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}
