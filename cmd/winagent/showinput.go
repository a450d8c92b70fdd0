package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"winagent/internal/inputdecoder"
)

// runShowInput implements spec.md §6's "--show-input [--with-mouse]" debug
// mode: put the controlling terminal into raw mode, feed raw stdin bytes
// through the same decoder the agent loop uses, and print decoded events
// until the user sends Ctrl-D.
func runShowInput(withMouse bool) error {
	fd := int(os.Stdin.Fd())
	if !isatty.IsTerminal(uintptr(fd)) {
		return fmt.Errorf("--show-input requires stdin to be a terminal")
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	cols, rows, err := term.GetSize(fd)
	if err != nil {
		cols, rows = 80, 24
	}

	var dec inputdecoder.Decoder
	dec.MouseInputEnabled = withMouse
	dec.WindowCols = cols
	dec.WindowRows = rows

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	const ctrlD = 0x04
	buf := make([]byte, 256)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			hitCtrlD := false
			if i := bytes.IndexByte(chunk, ctrlD); i >= 0 {
				chunk = chunk[:i]
				hitCtrlD = true
			}
			events, _ := dec.Feed(chunk, time.Now())
			for _, ev := range events {
				fmt.Fprintf(w, "%+v\r\n", ev)
			}
			w.Flush()
			if hitCtrlD {
				return nil
			}
		}
		if err != nil {
			return nil
		}
	}
}
