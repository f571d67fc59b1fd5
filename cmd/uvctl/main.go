package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"usdtvault/internal/config"
	"usdtvault/internal/ctl"
	"usdtvault/internal/ledger"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCtlFromEnv()
	apiBase := cfg.OpsBaseURL
	depositAddress := cfg.DepositAddress

	root := &cobra.Command{
		Use:          "uvctl",
		Short:        "USDT vault back-office client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "ops API base URL")

	root.AddCommand(
		newRegisterCmd(&apiBase),
		newPackagesCmd(&apiBase),
		newBalancesCmd(&apiBase),
		newStatsCmd(&apiBase),
		newInvestCmd(&apiBase, &depositAddress),
		newDepositAddressCmd(&depositAddress),
		newWithdrawCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newInvestmentsCmd(&apiBase),
		newPendingCmd(&apiBase),
		newRejectCmd(&apiBase),
		newStatusCmd(&apiBase),
		newReconcileCmd(&apiBase),
		newAccrueCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		printError("error: " + err.Error())
		os.Exit(1)
	}
}

func newClient(apiBase *string) *ctl.Client {
	return ctl.NewClient(strings.TrimSpace(*apiBase))
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func parseAccountID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id %q", raw)
	}
	return id, nil
}

func newRegisterCmd(apiBase *string) *cobra.Command {
	var wallet, referral string
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account, optionally under a referrer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			acct, err := newClient(apiBase).Register(ctx, args[0], wallet, referral)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("account %d created", acct.ID))
			printInfo("referral code: " + acct.ReferralCode)
			return nil
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "payout wallet address (BEP-20)")
	cmd.Flags().StringVar(&referral, "referral", "", "referral code of the inviting account")
	return cmd
}

func newPackagesCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List the investment package catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			pkgs, err := newClient(apiBase).Packages(ctx)
			if err != nil {
				return err
			}
			printHeader(fmt.Sprintf("%-3s %-18s %12s %12s %8s %6s", "ID", "NAME", "MIN", "MAX", "RATE/D", "DAYS"))
			for _, p := range pkgs {
				fmt.Printf("%-3d %-18s %12s %12s %7.2f%% %6d\n",
					p.ID, p.Name, usdt(p.MinMicros), usdt(p.MaxMicros),
					float64(p.DailyRateBps)/100, p.DurationDays)
			}
			return nil
		},
	}
}

func newBalancesCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balances <account-id>",
		Short: "Show profit and bonus balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			b, err := newClient(apiBase).Balances(ctx, id)
			if err != nil {
				return err
			}
			printHeader(fmt.Sprintf("account %d (%s)", b.AccountID, b.Status))
			printInfo("profit  " + usdt(b.ProfitBalanceMicros) + " USDT")
			printInfo("bonus   " + usdt(b.BonusBalanceMicros) + " USDT")
			return nil
		},
	}
}

func newStatsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <account-id>",
		Short: "Show lifetime totals for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			st, err := newClient(apiBase).Stats(ctx, id)
			if err != nil {
				return err
			}
			printInfo("invested        " + usdt(st.TotalInvestedMicros) + " USDT")
			printInfo("profit earned   " + usdt(st.TotalProfitMicros) + " USDT")
			printInfo("bonus earned    " + usdt(st.TotalBonusMicros) + " USDT")
			printInfo(fmt.Sprintf("active plans    %d", st.ActiveInvestments))
			return nil
		},
	}
}

func newInvestCmd(apiBase, depositAddress *string) *cobra.Command {
	var (
		packageID int
		amount    float64
		wallet    string
		txRef     string
	)
	cmd := &cobra.Command{
		Use:   "invest <account-id>",
		Short: "Open an investment; without --txref it stays pending until the deposit is paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			res, err := newClient(apiBase).Invest(ctx, id, packageID, amount, wallet, txRef)
			if err != nil {
				return err
			}
			switch res.Status {
			case ledger.InvestmentActive:
				printSuccess(fmt.Sprintf("investment %d active until %s", res.InvestmentID, res.EndDate.Format(time.DateOnly)))
			case ledger.InvestmentPending:
				printWarn(fmt.Sprintf("investment %d pending on-chain confirmation", res.InvestmentID))
				if *depositAddress != "" {
					printInfo(fmt.Sprintf("send %.2f USDT (BEP-20) to:", amount))
					printDepositQR(*depositAddress)
				}
			default:
				printInfo(fmt.Sprintf("investment %d: %s", res.InvestmentID, res.Status))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&packageID, "package", 0, "package id (see: uvctl packages)")
	cmd.Flags().Float64Var(&amount, "amount", 0, "principal in USDT")
	cmd.Flags().StringVar(&wallet, "wallet", "", "payout wallet address")
	cmd.Flags().StringVar(&txRef, "txref", "", "on-chain transaction hash of the deposit")
	_ = cmd.MarkFlagRequired("package")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newDepositAddressCmd(depositAddress *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit-address",
		Short: "Print the platform deposit address as a QR code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *depositAddress == "" {
				return fmt.Errorf("UVCTL_DEPOSIT_ADDRESS is not set")
			}
			printDepositQR(*depositAddress)
			return nil
		},
	}
}

func newWithdrawCmd(apiBase *string) *cobra.Command {
	var (
		source string
		amount float64
		wallet string
	)
	cmd := &cobra.Command{
		Use:   "withdraw <account-id>",
		Short: "Reserve a withdrawal from the profit or bonus balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			res, err := newClient(apiBase).Withdraw(ctx, id, source, amount, wallet)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("withdrawal %d pending, %s USDT reserved", res.TransactionID, usdt(res.ReservedMicros)))
			printInfo("remaining " + source + " balance: " + usdt(res.BalanceMicros) + " USDT")
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "profit", "balance to draw from: profit or bonus")
	cmd.Flags().Float64Var(&amount, "amount", 0, "amount in USDT")
	cmd.Flags().StringVar(&wallet, "wallet", "", "destination wallet address")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("wallet")
	return cmd
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	var (
		txType string
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history <account-id>",
		Short: "List ledger transactions for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			txs, err := newClient(apiBase).History(ctx, id, txType, status, limit)
			if err != nil {
				return err
			}
			printHeader(fmt.Sprintf("%-8s %-15s %12s %-10s %-20s", "ID", "TYPE", "AMOUNT", "STATUS", "DATE"))
			for _, tx := range txs {
				fmt.Printf("%-8d %-15s %12s %-10s %-20s\n",
					tx.ID, tx.Type, usdt(tx.AmountMicros), tx.Status,
					tx.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&txType, "type", "", "filter by type: deposit, profit, referral_bonus, withdrawal")
	cmd.Flags().StringVar(&status, "status", "", "filter by status: pending, completed, failed")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func newInvestmentsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "investments <account-id>",
		Short: "List an account's investment contracts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			invs, err := newClient(apiBase).Investments(ctx, id)
			if err != nil {
				return err
			}
			printHeader(fmt.Sprintf("%-6s %-4s %12s %12s %8s %-11s %-12s", "ID", "PKG", "AMOUNT", "ACCRUED", "RATE/D", "STATUS", "ENDS"))
			for _, inv := range invs {
				fmt.Printf("%-6d %-4d %12s %12s %7.2f%% %-11s %-12s\n",
					inv.ID, inv.PackageID, usdt(inv.AmountMicros), usdt(inv.AccruedProfitMicros),
					float64(inv.DailyRateBps)/100, inv.Status, inv.EndDate.Format(time.DateOnly))
			}
			return nil
		},
	}
}

func newPendingCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pending-withdrawals",
		Short: "List withdrawals waiting for settlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			txs, err := newClient(apiBase).PendingWithdrawals(ctx)
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				printInfo("no pending withdrawals")
				return nil
			}
			printHeader(fmt.Sprintf("%-8s %-8s %12s %-44s %-20s", "ID", "ACCOUNT", "AMOUNT", "WALLET", "REQUESTED"))
			for _, tx := range txs {
				fmt.Printf("%-8d %-8d %12s %-44s %-20s\n",
					tx.ID, tx.AccountID, usdt(tx.AmountMicros), tx.WalletAddress,
					tx.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newRejectCmd(apiBase *string) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject-withdrawal <transaction-id>",
		Short: "Reject a pending withdrawal and refund the reserved amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txID, err := parseAccountID(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			ctx, cancel := cmdContext()
			defer cancel()
			if err := newClient(apiBase).RejectWithdrawal(ctx, txID, reason); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("withdrawal %d rejected, funds returned", txID))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the withdrawal was rejected")
	return cmd
}

func newStatusCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <account-id> <active|blocked>",
		Short: "Change an account's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()
			if err := newClient(apiBase).SetAccountStatus(ctx, id, args[1]); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("account %d is now %s", id, args[1]))
			return nil
		},
	}
	return cmd
}

func newReconcileCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Check stored balances against the transaction ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			balanced, drift, err := newClient(apiBase).Reconcile(ctx)
			if err != nil {
				return err
			}
			if balanced {
				printSuccess("ledger balanced: every account matches its transaction history")
				return nil
			}
			printError(fmt.Sprintf("%d account(s) drifted", len(drift)))
			printHeader(fmt.Sprintf("%-8s %14s %14s", "ACCOUNT", "PROFIT DRIFT", "BONUS DRIFT"))
			for _, row := range drift {
				fmt.Printf("%-8d %14s %14s\n", row.AccountID, usdt(row.ProfitDeltaMicros), usdt(row.BonusDeltaMicros))
			}
			return nil
		},
	}
}

func newAccrueCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "accrue",
		Short: "Trigger a daily accrual cycle immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext()
			defer cancel()
			rep, err := newClient(apiBase).RunAccrual(ctx)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("accrual done: %d accrued, %d skipped, %d failed, %d matured, %s USDT paid",
				rep.Accrued, rep.Skipped, rep.Failed, rep.Retired, usdt(rep.PaidMicros)))
			return nil
		},
	}
}
