package tui

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// Clipboard is the system clipboard as seen by the model.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// systemClipboard talks to the OS clipboard. Init is attempted once; on
// headless systems every call reports the init error.
type systemClipboard struct {
	once sync.Once
	err  error
}

func (c *systemClipboard) init() error {
	c.once.Do(func() {
		if err := clipboard.Init(); err != nil {
			c.err = fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	})
	return c.err
}

func (c *systemClipboard) Read() (string, error) {
	if err := c.init(); err != nil {
		return "", err
	}
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (c *systemClipboard) Write(text string) error {
	if err := c.init(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
