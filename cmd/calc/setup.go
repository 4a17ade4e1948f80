package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/zylisp/calc/calculator"
	"github.com/zylisp/calc/config"
	"github.com/zylisp/calc/history"
	"github.com/zylisp/calc/logger"
	"github.com/zylisp/calc/storage"
	"github.com/zylisp/calc/storage/file"
	"github.com/zylisp/calc/storage/sqlite"
)

// openStore opens the configured backend.
func openStore(c *config.Config) (storage.Store, error) {
	switch c.Storage.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil
	case config.BackendFile:
		return file.Open(c.Storage.Path)
	case config.BackendSQLite:
		return sqlite.Open(c.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
}

// openLedger builds the history ledger. A store that cannot be opened is
// reported and the ledger runs in memory only. The returned func flushes
// and releases everything.
func openLedger(c *config.Config) (*history.Ledger, func()) {
	store, err := openStore(c)
	if err != nil {
		logger.Warn("storage unavailable: %v", err)
		fmt.Fprintln(os.Stderr, color.YellowString("warning: history will not be saved: %v", err))
		store = nil
	}

	ledger := history.New(store,
		history.WithMaxEntries(c.History.MaxEntries),
		history.WithLogger(logger.Global().WithPrefix("history")),
	)

	return ledger, func() {
		if err := ledger.Close(); err != nil {
			logger.Warn("history not saved: %v", err)
		}
		if store != nil {
			store.Close()
		}
	}
}

func sessionOptions(c *config.Config) []calculator.Option {
	return []calculator.Option{calculator.WithErrorMarker(c.UI.ErrorMarker)}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
