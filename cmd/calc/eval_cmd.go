package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zylisp/calc/server"
)

var evalNoHistory bool

// evalCmd evaluates each argument as its own expression.
var evalCmd = &cobra.Command{
	Use:   "eval EXPR...",
	Short: "Evaluate expressions and print the results",
	Example: `  calc eval "2+3*4"
  calc eval "50%" "(1+2)/3"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		if evalNoHistory {
			c.Storage.Backend = "memory"
		}
		ledger, closeLedger := openLedger(&c)
		defer closeLedger()

		srv := server.NewServer(ledger, sessionOptions(&c)...)
		out := cmd.OutOrStdout()

		failed := 0
		for _, expr := range args {
			result, err := srv.Eval(expr)
			if err != nil {
				failed++
				fmt.Fprintf(out, "%s = %s\n", expr, color.RedString(strings.TrimPrefix(err.Error(), "eval error: ")))
				continue
			}
			if len(args) == 1 {
				fmt.Fprintln(out, result)
			} else {
				fmt.Fprintf(out, "%s = %s\n", expr, color.GreenString(result))
			}
		}
		if failed > 0 {
			return errors.New(pluralize(failed, "expression") + " failed")
		}
		return nil
	},
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().BoolVar(&evalNoHistory, "no-history", false, "Do not record results in history")
}
