package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode"

	"github.com/gogpu/life"
	"github.com/gogpu/life/internal/gpu"
)

// controller is the part of the simulation driven by the keyboard.
type controller interface {
	Toggle() gpu.RunState
	Restart() error
}

// handleKey applies one key press and reports whether it asked to quit.
// Unknown keys and whitespace are ignored.
func handleKey(c controller, key rune) (quit bool) {
	switch unicode.ToLower(key) {
	case 'p':
		state := c.Toggle()
		life.Logger().Info("toggled", "state", state)
	case 'r':
		if err := c.Restart(); err != nil {
			life.Logger().Warn("restart failed", "err", err)
		}
	case 'q':
		return true
	}
	return false
}

// readKeys applies keys read from r until ctx is done, r is exhausted or
// q is pressed. Quitting calls cancel.
func readKeys(ctx context.Context, r io.Reader, c controller, cancel context.CancelFunc) error {
	keys := make(chan rune)
	errc := make(chan error, 1)
	go func() {
		br := bufio.NewReader(r)
		for {
			key, _, err := br.ReadRune()
			if err != nil {
				errc <- err
				return
			}
			select {
			case keys <- key:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read keys: %w", err)
		case key := <-keys:
			if handleKey(c, key) {
				cancel()
				return nil
			}
		}
	}
}
