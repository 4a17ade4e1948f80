package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zylisp/calc/config"
	"github.com/zylisp/calc/logger"
)

var (
	configFile string
	logLevel   string
	cfg        *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "calc",
	Short: "Line-edit-and-evaluate calculator",
	Long: `Calc evaluates arithmetic expressions with + - * / % and parentheses.

- Interactive terminal calculator with live preview and history
- One-shot evaluation from the command line
- Network server speaking JSON or MessagePack over TCP, Unix sockets or WebSocket

If no subcommand is specified, the terminal calculator starts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := overrideLogLevel(cfg, logLevel); err != nil {
			return err
		}
		if err := logger.Init(cfg.LogLevel(), cfg.Log.Path); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debug("calc %s starting: %s", cmd.Name(), cmd.CommandPath())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Global().Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args)
	},
}

// overrideLogLevel applies --log-level and checks it like any other
// configured value.
func overrideLogLevel(c *config.Config, level string) error {
	if level == "" {
		return nil
	}
	c.Log.Level = level
	if err := c.Validate(); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (TOML, default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error, none)")
}
