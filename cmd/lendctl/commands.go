package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"microlend/services/lending/client"
)

func (a *app) contributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contribute <amount>",
		Short: "Contribute funds to the lending pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, true, func(ctx context.Context, c *client.Client) (any, error) {
				id, err := c.Contribute(ctx, args[0])
				return map[string]uint64{"contributionId": id}, err
			})
		},
	}
}

func (a *app) depositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Deposit collateral into the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, true, func(ctx context.Context, c *client.Client) (any, error) {
				id, err := c.DepositCollateral(ctx, args[0])
				return map[string]uint64{"depositId": id}, err
			})
		},
	}
}

func (a *app) withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Withdraw unencumbered collateral",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, true, func(ctx context.Context, c *client.Client) (any, error) {
				remaining, err := c.WithdrawCollateral(ctx, args[0])
				return map[string]string{"remaining": remaining}, err
			})
		},
	}
}

func (a *app) requestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <principal> <duration>",
		Short: "Request a loan for duration blocks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, err := parseUint(args[1], "duration")
			if err != nil {
				return err
			}
			return a.withClient(cmd, true, func(ctx context.Context, c *client.Client) (any, error) {
				id, err := c.RequestLoan(ctx, args[0], duration)
				return map[string]uint64{"loanId": id}, err
			})
		},
	}
}

func (a *app) repayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repay <loan-id>",
		Short: "Repay an active loan in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "loan id")
			if err != nil {
				return err
			}
			return a.withClient(cmd, true, func(ctx context.Context, c *client.Client) (any, error) {
				repaid, err := c.RepayLoan(ctx, id)
				return map[string]bool{"repaid": repaid}, err
			})
		},
	}
}

func (a *app) liquidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "liquidate <loan-id>",
		Short: "Liquidate an overdue loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "loan id")
			if err != nil {
				return err
			}
			return a.withClient(cmd, true, func(ctx context.Context, c *client.Client) (any, error) {
				seized, err := c.LiquidateLoan(ctx, id)
				return map[string]string{"seized": seized}, err
			})
		},
	}
}

func (a *app) loanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loan <loan-id>",
		Short: "Show a loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0], "loan id")
			if err != nil {
				return err
			}
			return a.withClient(cmd, false, func(ctx context.Context, c *client.Client) (any, error) {
				loan, err := c.GetLoan(ctx, id)
				if err != nil {
					return nil, err
				}
				if loan == nil {
					return nil, fmt.Errorf("loan %d not found", id)
				}
				return loan, nil
			})
		},
	}
}

func (a *app) loansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loans [borrower]",
		Short: "List the loans of a borrower (defaults to the caller key)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			borrower, err := a.addressArg(args)
			if err != nil {
				return err
			}
			return a.withClient(cmd, false, func(ctx context.Context, c *client.Client) (any, error) {
				return c.ListLoans(ctx, borrower)
			})
		},
	}
}

func (a *app) treasuryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "treasury",
		Short: "Show the pool, vault and registry totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, false, func(ctx context.Context, c *client.Client) (any, error) {
				return c.GetTreasury(ctx)
			})
		},
	}
}

func (a *app) positionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "position [address]",
		Short: "Show an account's balances (defaults to the caller key)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := a.addressArg(args)
			if err != nil {
				return err
			}
			return a.withClient(cmd, false, func(ctx context.Context, c *client.Client) (any, error) {
				return c.GetPosition(ctx, address)
			})
		},
	}
}

func (a *app) quoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote <principal> <duration>",
		Short: "Preview interest, amount due and required collateral",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, err := parseUint(args[1], "duration")
			if err != nil {
				return err
			}
			return a.withClient(cmd, false, func(ctx context.Context, c *client.Client) (any, error) {
				return c.Quote(ctx, args[0], duration)
			})
		},
	}
}

func (a *app) heightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "height",
		Short: "Show the current chain height",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, false, func(ctx context.Context, c *client.Client) (any, error) {
				height, err := c.Height(ctx)
				return map[string]uint64{"height": height}, err
			})
		},
	}
}

func (a *app) mineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine <count>",
		Short: "Advance the chain height (operator)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := parseUint(args[0], "count")
			if err != nil {
				return err
			}
			return a.withClient(cmd, false, func(ctx context.Context, c *client.Client) (any, error) {
				height, err := c.MineBlocks(ctx, count)
				return map[string]uint64{"height": height}, err
			})
		},
	}
}

func (a *app) pauseCmd() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "pause <module>",
		Short: "Pause or resume a module (operator)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, false, func(ctx context.Context, c *client.Client) (any, error) {
				paused, err := c.SetPaused(ctx, args[0], !resume)
				return map[string][]string{"paused": paused}, err
			})
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "resume the module instead of pausing it")
	return cmd
}

// addressArg returns args[0] or the address of the configured caller key.
func (a *app) addressArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	key, err := a.loadKey()
	if err != nil {
		return "", fmt.Errorf("address required: %w", err)
	}
	return key.PubKey().Address().String(), nil
}

func parseUint(raw, name string) (uint64, error) {
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return value, nil
}
