package main

import (
	"fmt"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List accounts and balances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := session(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		accounts, err := c.Accounts(cmd.Context())
		if err != nil {
			return err
		}
		return printAccounts(cmd.OutOrStdout(), accounts)
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <account-id>",
	Short: "Print an account's transactions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSequence(cmd, args[0], func(c bank.Capability, acc bank.Account) txSeq {
			return c.History(cmd.Context(), acc)
		})
	},
}

var comingCmd = &cobra.Command{
	Use:   "coming <account-id>",
	Short: "Print pending card operations of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSequence(cmd, args[0], func(c bank.Capability, acc bank.Account) txSeq {
			return c.Coming(cmd.Context(), acc)
		})
	},
}

func printSequence(cmd *cobra.Command, id string, seq func(bank.Capability, bank.Account) txSeq) error {
	c, err := session(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	acc, err := c.Account(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printTransactions(cmd.OutOrStdout(), seq(c, *acc), historyLimit)
}

var investmentsCmd = &cobra.Command{
	Use:   "investments <account-id>",
	Short: "Print the positions of a market or life insurance account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := session(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		acc, err := c.Account(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		invs, err := c.Investments(cmd.Context(), *acc)
		if err != nil {
			return err
		}
		return printInvestments(cmd.OutOrStdout(), invs)
	},
}

var transferReason string

var transferCmd = &cobra.Command{
	Use:   "transfer <from-id> <to-id> <amount>",
	Short: "Transfer money between two of your accounts",
	Long: `Transfer money between two of your accounts. The amount takes a decimal
point or comma ("12.50" or "12,50"). A transfer is never retried.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := bank.ParseFrenchAmount(args[2])
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return fmt.Errorf("amount must be positive, got %s", amount)
		}

		c, err := session(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		from, err := c.Account(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		to, err := c.Account(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		receipt, err := c.Transfer(cmd.Context(), *from, *to, amount, transferReason)
		if err != nil {
			return err
		}
		return printReceipt(cmd.OutOrStdout(), receipt)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "stop after this many transactions (0 for all)")
	comingCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "stop after this many transactions (0 for all)")
	transferCmd.Flags().StringVarP(&transferReason, "reason", "r", "", "label shown on both accounts")
}
