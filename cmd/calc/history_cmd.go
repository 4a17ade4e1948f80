package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zylisp/calc/history"
)

var historyClear bool

// historyCmd prints or clears the persisted history.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the evaluation history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, closeLedger := openLedger(cfg)
		defer closeLedger()

		if historyClear {
			ledger.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		}
		printEntries(cmd.OutOrStdout(), ledger.Entries())
		return nil
	},
}

func printEntries(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, color.HiBlackString("no history"))
		return
	}
	for i, e := range entries {
		result := color.GreenString(e.Result)
		if e.Error {
			result = color.RedString(e.Result)
		}
		fmt.Fprintf(w, "%4d  %s = %s\n", i, e.Expression, result)
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Remove all history entries")
}
