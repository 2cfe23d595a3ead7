package main

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"ammcore/internal/amm"
)

func newFundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Credit an account with an asset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				account, err := addressFlag(cmd, "account")
				if err != nil {
					return err
				}
				asset, err := addressFlag(cmd, "asset")
				if err != nil {
					return err
				}
				amount, _ := cmd.Flags().GetUint64("amount")
				if err := e.store.Credit(ctx, account, asset, amount); err != nil {
					return err
				}
				return printBalance(ctx, cmd, e, account, asset)
			})
		},
	}
	cmd.Flags().String("account", "", "account address")
	cmd.Flags().String("asset", "", "asset address")
	cmd.Flags().Uint64("amount", 0, "amount to credit")
	addBackendFlags(cmd)
	return cmd
}

func newBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show an account's balance of an asset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				account, err := addressFlag(cmd, "account")
				if err != nil {
					return err
				}
				asset, err := addressFlag(cmd, "asset")
				if err != nil {
					return err
				}
				return printBalance(ctx, cmd, e, account, asset)
			})
		},
	}
	cmd.Flags().String("account", "", "account address")
	cmd.Flags().String("asset", "", "asset address")
	addBackendFlags(cmd)
	return cmd
}

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Provide liquidity to a pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				id, err := poolFlag(cmd)
				if err != nil {
					return err
				}
				provider, err := addressFlag(cmd, "account")
				if err != nil {
					return err
				}
				amountA, _ := cmd.Flags().GetUint64("amount-a")
				amountB, _ := cmd.Flags().GetUint64("amount-b")
				receipt, err := e.service.ProvideLiquidity(ctx, id, provider, amountA, amountB)
				if err != nil {
					return err
				}
				return printJSON(cmd, receipt)
			})
		},
	}
	cmd.Flags().String("pool", "", "pool id")
	cmd.Flags().String("account", "", "provider address")
	cmd.Flags().Uint64("amount-a", 0, "amount of asset A")
	cmd.Flags().Uint64("amount-b", 0, "amount of asset B")
	addBackendFlags(cmd)
	return cmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap one pool asset for the other",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				id, err := poolFlag(cmd)
				if err != nil {
					return err
				}
				trader, err := addressFlag(cmd, "account")
				if err != nil {
					return err
				}
				dir, err := directionFlag(cmd)
				if err != nil {
					return err
				}
				amountIn, _ := cmd.Flags().GetUint64("amount-in")
				minOut, _ := cmd.Flags().GetUint64("min-out")
				receipt, err := e.service.Swap(ctx, id, trader, amountIn, dir, minOut)
				if err != nil {
					return err
				}
				return printJSON(cmd, receipt)
			})
		},
	}
	cmd.Flags().String("pool", "", "pool id")
	cmd.Flags().String("account", "", "trader address")
	cmd.Flags().String("direction", amm.AToB.String(), "swap direction (a-to-b, b-to-a)")
	cmd.Flags().Uint64("amount-in", 0, "input amount")
	cmd.Flags().Uint64("min-out", 0, "minimum acceptable output")
	addBackendFlags(cmd)
	return cmd
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Preview a swap without executing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				id, err := poolFlag(cmd)
				if err != nil {
					return err
				}
				dir, err := directionFlag(cmd)
				if err != nil {
					return err
				}
				amountIn, _ := cmd.Flags().GetUint64("amount-in")
				amountOut, after, err := e.service.Quote(ctx, id, amountIn, dir)
				if err != nil {
					return err
				}
				return printJSON(cmd, struct {
					Direction string   `json:"direction"`
					AmountIn  uint64   `json:"amount_in,string"`
					AmountOut uint64   `json:"amount_out,string"`
					Pool      amm.Pool `json:"pool_after"`
				}{dir.String(), amountIn, amountOut, after})
			})
		},
	}
	cmd.Flags().String("pool", "", "pool id")
	cmd.Flags().String("direction", amm.AToB.String(), "swap direction (a-to-b, b-to-a)")
	cmd.Flags().Uint64("amount-in", 0, "input amount")
	addBackendFlags(cmd)
	return cmd
}

func directionFlag(cmd *cobra.Command) (amm.Direction, error) {
	raw, _ := cmd.Flags().GetString("direction")
	return amm.ParseDirection(raw)
}

func printBalance(ctx context.Context, cmd *cobra.Command, e *env, account, asset common.Address) error {
	amount, err := e.store.Balance(ctx, account, asset)
	if err != nil {
		return err
	}
	return printJSON(cmd, struct {
		Account common.Address `json:"account"`
		Asset   common.Address `json:"asset"`
		Amount  uint64         `json:"amount,string"`
	}{account, asset, amount})
}
