package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zylisp/calc"
	"github.com/zylisp/calc/protocol"
)

var (
	sendSession string
	sendCodec   string
	sendTimeout time.Duration
)

// sendCmd issues one protocol operation against a running server.
var sendCmd = &cobra.Command{
	Use:   "send ADDR OP [ARG]",
	Short: "Send one operation to a calculator server",
	Long: `Send one operation to a calculator server and print the response.

ADDR is tcp://host:port, host:port, unix:///path, /path or ws://host:port.
ARG is the expression for eval, insert and set, the direction for move
(left, right, home, end or to:N), and the entry index for recall.`,
	Example: `  calc send localhost:5555 eval "2*(3+4)"
  calc send --session me ws://localhost:8080 insert "1+"
  calc send --session me ws://localhost:8080 commit`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := ""
		if len(args) == 3 {
			arg = args[2]
		}
		req, err := buildRequest(args[1], arg)
		if err != nil {
			return err
		}
		req.Session = sendSession

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		client := calc.NewClientWithCodec(sendCodec)
		if err := client.Connect(ctx, args[0]); err != nil {
			return err
		}
		defer client.Close()

		resp, err := client.Send(ctx, req)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), req.Op, resp)
	},
}

// buildRequest maps command line words onto a protocol message.
func buildRequest(op, arg string) (*protocol.Message, error) {
	req := &protocol.Message{Op: op}
	switch op {
	case protocol.OpEval, protocol.OpInsert, protocol.OpSet:
		req.Code = arg
	case protocol.OpMove:
		if len(arg) > 3 && arg[:3] == "to:" {
			n, err := strconv.Atoi(arg[3:])
			if err != nil {
				return nil, fmt.Errorf("move offset: %w", err)
			}
			req.Code = "to"
			req.Index = n
		} else {
			req.Code = arg
		}
	case protocol.OpRecall:
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("recall index: %w", err)
		}
		req.Index = n
	}
	return req, nil
}

func printResponse(w io.Writer, op string, resp *protocol.Message) error {
	if resp.ProtocolError != "" {
		fmt.Fprintln(w, color.RedString(resp.ProtocolError))
		return errors.New("request failed")
	}
	if resp.HasStatus(protocol.StatusEvalError) {
		fmt.Fprintln(w, color.RedString(resp.Error))
		if resp.Text != "" {
			fmt.Fprintf(w, "buffer: %s\n", resp.Text)
		}
		return nil
	}

	switch {
	case op == protocol.OpHistory:
		printEntries(w, resp.Entries)
	case op == protocol.OpClearHistory, op == protocol.OpClose:
		fmt.Fprintln(w, color.GreenString("ok"))
	case resp.Data != nil:
		out, err := json.MarshalIndent(resp.Data, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
	case resp.Result != "":
		fmt.Fprintln(w, color.GreenString(resp.Result))
		if resp.Text != "" && resp.Text != resp.Result {
			fmt.Fprintf(w, "buffer: %s\n", resp.Text)
		}
	default:
		fmt.Fprintf(w, "buffer: %s (cursor %d)\n", resp.Text, resp.Cursor)
		if resp.HasPreview {
			fmt.Fprintln(w, color.HiBlackString("= %s", resp.Preview))
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendSession, "session", "", "Calculator session to act on")
	sendCmd.Flags().StringVar(&sendCodec, "codec", "json", "Codec: json or msgpack")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "Request timeout")
}
