//go:build windows

package scraper

import (
	"fmt"

	"golang.org/x/sys/windows"

	"winagent/internal/tracelog"
)

// Resize implements spec.md §4.5.3's three-step dance: the host refuses
// SetConsoleScreenBufferSize while the console is frozen, so the buffer
// resize itself briefly unfreezes, sandwiched between two window-rect
// adjustments that keep the cursor and any dirty content visible.
func (s *Scraper) Resize(cols, rows int16) error {
	s.ptyCols, s.ptyRows = cols, rows

	s.freeze()

	original, err := s.console.BufferInfo()
	if err != nil {
		s.unfreeze()
		return fmt.Errorf("resize: capture original buffer info: %w", err)
	}

	if s.mode == ModeScrolling {
		// Blank rows above the current window so rewraps on resize can't
		// move a tracked virtual line below the new window top.
		if original.Window.Top > 0 {
			if err := s.console.ClearLines(0, original.Window.Top, original); err != nil {
				tracelog.Errorf("resize: clear above-window rows failed: %v", err)
			}
			for row := int16(0); row < original.Window.Top; row++ {
				s.lines.Blank(int64(row)+s.scrolledCount, int(original.Size.X), original.Attributes)
			}
		}
		if s.syncRow >= 0 {
			if err := s.writeSyncMarker(s.syncRow, original); err != nil {
				tracelog.Errorf("resize: recreate sync marker failed: %v", err)
			}
		}
	}

	// Final buffer height: if the window had no scrollback (height ==
	// buffer height), shrink to the new row count; otherwise keep at
	// least as much scrollback as existed before.
	oldBufHeight := original.Size.Y
	oldWindowHeight := original.Window.Bottom - original.Window.Top + 1
	var finalBufHeight int16
	if oldWindowHeight == oldBufHeight {
		finalBufHeight = rows
	} else if oldBufHeight > rows {
		finalBufHeight = oldBufHeight
	} else {
		finalBufHeight = rows
	}

	// Step A: shrink the window to a size that fits within both the old
	// and new widths (and the old and new buffer height), including the
	// cursor if it was visible, before touching the buffer size — growing
	// the buffer while the window is still wide can fail.
	minWidth := original.Size.X
	if cols < minWidth {
		minWidth = cols
	}
	shrinkRect := windows.SmallRect{
		Left: 0, Top: original.Window.Top,
		Right:  minWidth - 1,
		Bottom: original.Window.Top,
	}
	if cur := original.CursorPosition; cur.Y > shrinkRect.Bottom && cur.Y <= original.Window.Bottom &&
		cur.X >= original.Window.Left && cur.X <= original.Window.Right {
		shrinkRect.Bottom = cur.Y
	}
	if shrinkRect.Bottom >= finalBufHeight {
		shrinkRect.Top = finalBufHeight - 1
		shrinkRect.Bottom = finalBufHeight - 1
	}
	if err := s.console.MoveWindow(shrinkRect); err != nil {
		tracelog.Errorf("resize: step A shrink window failed: %v", err)
	}

	// Step B: unfreeze, resize the buffer, refreeze.
	s.unfreeze()
	if err := s.console.ResizeBuffer(windows.Coord{X: cols, Y: finalBufHeight}); err != nil {
		s.freeze()
		return fmt.Errorf("resize: set buffer size: %w", err)
	}
	s.freeze()

	// Step C: recompute the final window rect, including the cursor and
	// any still-dirty content.
	final, err := s.console.BufferInfo()
	if err != nil {
		s.unfreeze()
		return fmt.Errorf("resize: capture post-resize buffer info: %w", err)
	}

	top := final.Window.Top
	if s.dirtyLineCount > top+rows {
		top = s.dirtyLineCount - rows
	}
	if top < 0 {
		top = 0
	}
	if final.CursorPosition.Y < top {
		top = final.CursorPosition.Y
	}
	if final.CursorPosition.Y >= top+rows {
		top = final.CursorPosition.Y - rows + 1
	}
	if top+rows > finalBufHeight {
		top = finalBufHeight - rows
	}
	if top < 0 {
		top = 0
	}

	finalRect := windows.SmallRect{
		Left: 0, Top: top,
		Right:  cols - 1,
		Bottom: top + rows - 1,
	}
	if err := s.console.MoveWindow(finalRect); err != nil {
		tracelog.Errorf("resize: step C final window move failed: %v", err)
	}

	s.dirtyWindowTop = top
	s.unfreeze()
	return nil
}
