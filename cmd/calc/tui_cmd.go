package main

import (
	"github.com/spf13/cobra"

	"github.com/zylisp/calc/calculator"
	"github.com/zylisp/calc/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the interactive terminal calculator",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	ledger, closeLedger := openLedger(cfg)
	defer closeLedger()

	session := calculator.New(ledger, sessionOptions(cfg)...)
	return tui.Run(session, tui.WithHistoryLines(cfg.UI.HistoryLines))
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
