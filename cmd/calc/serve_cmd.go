package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zylisp/calc"
	"github.com/zylisp/calc/config"
	"github.com/zylisp/calc/logger"
	"github.com/zylisp/calc/operations"
)

var (
	serveTransport string
	serveAddr      string
	serveCodec     string
)

// serveCmd runs a calculator server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a calculator server",
	Long:  "Serve calculator sessions sharing one history over TCP, a Unix socket or WebSocket.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := cfg.Server
		if serveTransport != "" {
			sc.Transport = serveTransport
		}
		if serveAddr != "" {
			sc.Addr = serveAddr
		}
		if serveCodec != "" {
			sc.Codec = serveCodec
		}

		ledger, closeLedger := openLedger(cfg)
		defer closeLedger()

		server, err := calc.NewServer(calc.ServerConfig{
			Transport: sc.Transport,
			Addr:      sc.Addr,
			Codec:     sc.Codec,
			Handler:   operations.NewHandler(ledger, sessionOptions(cfg)...),
		})
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go watchConfig(ctx)

		fmt.Fprintln(cmd.OutOrStdout(), color.CyanString("calc %s server on %s (%s)", sc.Transport, sc.Addr, sc.Codec))
		err = server.Start(ctx)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stopErr := server.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("shutdown: %v", stopErr)
		}

		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// watchConfig applies log level changes from the config file while the
// server runs.
func watchConfig(ctx context.Context) {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	err := config.Watch(ctx, path, func(c *config.Config, err error) {
		if err != nil {
			return
		}
		if logLevel == "" {
			logger.Global().SetLevel(c.LogLevel())
			logger.Info("log level set to %s", c.LogLevel())
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("config watch stopped: %v", err)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Transport: tcp, unix or ws")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address or socket path to listen on")
	serveCmd.Flags().StringVar(&serveCodec, "codec", "", "Codec for tcp and unix: json or msgpack")
}
