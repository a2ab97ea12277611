package main

import (
	"fmt"
	"io"
	"iter"
	"text/tabwriter"

	"github.com/grez-lucas/webbank/internal/scraper/bank"
)

type txSeq = iter.Seq2[bank.Transaction, error]

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printAccounts(w io.Writer, accounts []bank.Account) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tLABEL\tTYPE\tBALANCE\tCURRENCY")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Label, a.Type, a.Balance.StringFixed(2), a.Currency)
	}
	return tw.Flush()
}

// printTransactions stops after limit transactions when limit is positive.
// Rows already written are flushed even when the sequence fails.
func printTransactions(w io.Writer, seq txSeq, limit int) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tDESCRIPTION")

	var (
		n   int
		err error
	)
	for tx, txErr := range seq {
		if txErr != nil {
			err = txErr
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tx.Date.Format("2006-01-02"), tx.Type, tx.Amount.StringFixed(2), tx.Description)
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	if ferr := tw.Flush(); err == nil {
		err = ferr
	}
	return err
}

func printInvestments(w io.Writer, invs []bank.Investment) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "CODE\tLABEL\tQUANTITY\tUNIT VALUE\tVALUATION")
	for _, inv := range invs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", inv.Code, inv.Label, inv.Quantity, inv.UnitValue.StringFixed(2), inv.Valuation.StringFixed(2))
	}
	return tw.Flush()
}

func printReceipt(w io.Writer, r *bank.TransferReceipt) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Receipt\t%s\n", r.ID)
	fmt.Fprintf(tw, "Date\t%s\n", r.Date.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(tw, "From\t%s\n", r.Origin)
	fmt.Fprintf(tw, "To\t%s\n", r.Recipient)
	fmt.Fprintf(tw, "Amount\t%s\n", r.Amount.StringFixed(2))
	if r.Reason != "" {
		fmt.Fprintf(tw, "Reason\t%s\n", r.Reason)
	}
	return tw.Flush()
}
