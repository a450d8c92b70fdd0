// Package termencoder converts console cell rows into minimally-sized
// VT100 output (spec.md §4.4). It owns cursor-motion and SGR-diffing state
// across calls, so callers (internal/scraper) need only feed it
// (virtualLine, cells) pairs and a final cursor position per tick.
package termencoder

import (
	"fmt"
	"io"

	"winagent/internal/cell"
)

const csi = "\x1b["

// Encoder holds cross-call terminal state: where the remote cursor thinks
// it is, whether it's hidden, and the last SGR color emitted, so
// SendLine/FinishOutput only ever emit the minimal diff.
type Encoder struct {
	out io.Writer

	remoteLine   int64
	cursorHidden bool
	cursorCol    int
	cursorLine   int64
	remoteColor  int32 // -1 == unknown, forces a color escape on first cell
	consoleMode  bool

	lineBuf []byte
}

// New creates an Encoder writing to out.
func New(out io.Writer) *Encoder {
	e := &Encoder{out: out, remoteColor: -1}
	return e
}

// SetConsoleMode toggles bypass mode: when enabled, no escape sequences are
// emitted at all, only raw text (spec.md §4.4 "console mode").
func (e *Encoder) SetConsoleMode(enabled bool) {
	e.consoleMode = enabled
}

// Reset restarts encoder state. If sendClear, a full SGR-reset + home +
// erase-screen is emitted first (spec.md §4.4 reset).
func (e *Encoder) Reset(sendClear bool, newLine int64) error {
	if sendClear && !e.consoleMode {
		if _, err := io.WriteString(e.out, csi+"0m"+csi+"1;1H"+csi+"2J"); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	e.remoteLine = newLine
	e.cursorHidden = false
	e.cursorCol = 0
	e.cursorLine = newLine
	e.remoteColor = -1
	return nil
}

// SendLine emits the smallest VT100 sequence that reproduces cells (width
// wide) at virtualLine on the remote terminal, always terminating with
// erase-to-EOL unless the last emitted cell already consumed the line
// (spec.md §4.4 sendLine).
func (e *Encoder) SendLine(virtualLine int64, cells []cell.Cell, width int) error {
	if err := e.hideCursor(); err != nil {
		return err
	}
	if err := e.moveToLine(virtualLine); err != nil {
		return err
	}

	e.lineBuf = e.lineBuf[:0]
	trimmedLen := 0
	alreadyErased := false

	cellCount := 1
	for i := 0; i < width; i += cellCount {
		color := cells[i].Color()
		if int32(color) != e.remoteColor {
			if !e.consoleMode {
				e.lineBuf = appendSetColor(e.lineBuf, color)
			}
			trimmedLen = len(e.lineBuf)
			e.remoteColor = int32(color)
		}

		var ch rune
		cellCount, ch = scanUnicodeScalarValue(cells[i:], width-i)
		if ch == ' ' {
			e.lineBuf = append(e.lineBuf, ' ')
		} else {
			if i+cellCount == width {
				// Erasing after the last non-blank cell doesn't work on
				// many terminals once the cursor has passed it: they also
				// erase the last emitted cell. Issue the erase one
				// character early in that case (matches winpty exactly).
				if !e.consoleMode {
					e.lineBuf = append(e.lineBuf, csi+"0K"...)
				}
				alreadyErased = true
			}
			ch = fixConsolePopupBoxArt(ch)
			var enc [4]byte
			n := encodeUTF8(enc[:], ch)
			if n == 0 {
				enc[0] = '?'
				n = 1
			}
			e.lineBuf = append(e.lineBuf, enc[:n]...)
			trimmedLen = len(e.lineBuf)
		}
	}

	if _, err := e.out.Write(e.lineBuf[:trimmedLen]); err != nil {
		return fmt.Errorf("send line %d: %w", virtualLine, err)
	}
	if !alreadyErased && !e.consoleMode {
		if _, err := io.WriteString(e.out, csi+"0K"); err != nil {
			return fmt.Errorf("send line %d erase: %w", virtualLine, err)
		}
	}
	return nil
}

// FinishOutput reconciles the remote cursor with (col, line): if it moved
// or a SendLine hid it, the cursor is moved to (col, line) and shown again;
// if it neither moved nor was hidden, nothing is emitted (spec.md §4.4
// finishOutput).
func (e *Encoder) FinishOutput(col int, line int64) error {
	moved := col != e.cursorCol || line != e.cursorLine
	if moved {
		if err := e.hideCursor(); err != nil {
			return err
		}
	}
	if e.cursorHidden {
		if err := e.moveToLine(line); err != nil {
			return err
		}
		if !e.consoleMode {
			if _, err := fmt.Fprintf(e.out, csi+"%dG"+csi+"?25h", col+1); err != nil {
				return fmt.Errorf("finish output: %w", err)
			}
		}
		e.cursorHidden = false
	}
	e.cursorCol, e.cursorLine = col, line
	return nil
}

func (e *Encoder) hideCursor() error {
	if e.cursorHidden {
		return nil
	}
	if !e.consoleMode {
		if _, err := io.WriteString(e.out, csi+"?25l"); err != nil {
			return fmt.Errorf("hide cursor: %w", err)
		}
	}
	e.cursorHidden = true
	return nil
}

// moveToLine repositions the remote cursor to virtual line `line`. Upward
// motion uses \r + CUU; downward motion uses repeated \r\n. CPL/CNL are
// never used (old Konsole compatibility, spec.md §4.4 cursor motion).
func (e *Encoder) moveToLine(line int64) error {
	switch {
	case line < e.remoteLine:
		if !e.consoleMode {
			if _, err := fmt.Fprintf(e.out, "\r"+csi+"%dA", e.remoteLine-line); err != nil {
				return fmt.Errorf("move cursor up: %w", err)
			}
		}
		e.remoteLine = line
	case line > e.remoteLine:
		for line > e.remoteLine {
			if !e.consoleMode {
				if _, err := io.WriteString(e.out, "\r\n"); err != nil {
					return fmt.Errorf("move cursor down: %w", err)
				}
			}
			e.remoteLine++
		}
	default:
		// winpty's Terminal.cc emits this bare \r unconditionally, even in
		// console/bypass mode. Bypass mode here means "suppress all escape
		// sequences" per spec.md §4.4, and \r carries no ESC byte, but
		// guarding it keeps bypass mode producing exactly the requested
		// cells with no cursor-motion side effects.
		if !e.consoleMode {
			if _, err := io.WriteString(e.out, "\r"); err != nil {
				return fmt.Errorf("move cursor to column 0: %w", err)
			}
		}
	}
	return nil
}

// WriteTitle emits an OSC 0 title-update sequence.
func (e *Encoder) WriteTitle(title string) error {
	if e.consoleMode {
		return nil
	}
	if _, err := fmt.Fprintf(e.out, "\x1b]0;%s\a", title); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	return nil
}

// WriteDSRQuery emits the DSR barrier query used by internal/inputdecoder.
func (e *Encoder) WriteDSRQuery() error {
	if _, err := io.WriteString(e.out, csi+"6n"); err != nil {
		return fmt.Errorf("write DSR query: %w", err)
	}
	return nil
}
