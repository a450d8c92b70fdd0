//go:build windows

package scraper

import (
	"fmt"

	"golang.org/x/sys/windows"

	"winagent/internal/consoleapi"
	"winagent/internal/tracelog"
)

// tickDirect implements spec.md §4.5.2: a full-screen application owns
// the visible window, so there's no scroll tracking or virtual-line
// numbering — each pty row maps directly to a console window row.
func (s *Scraper) tickDirect() error {
	s.freeze()
	defer s.unfreeze()

	if err := s.syncTitle(); err != nil {
		tracelog.Errorf("scraper: title sync failed: %v", err)
	}

	info, err := s.console.BufferInfo()
	if err != nil {
		tracelog.Errorf("scraper: bufferInfo failed mid-tick: %v", err)
		return nil
	}
	s.directOrigin = info.Window.Top

	rows := int16(info.Window.Bottom-info.Window.Top) + 1
	if rows > s.ptyRows {
		rows = s.ptyRows
	}
	width := info.Size.X
	if width > s.ptyCols {
		width = s.ptyCols
	}
	if rows <= 0 || width <= 0 {
		return s.finishDirectTick(info)
	}

	rect := windows.SmallRect{
		Left: 0, Right: width - 1,
		Top: info.Window.Top, Bottom: info.Window.Top + rows - 1,
	}
	cells := make([]consoleapi.CellInfo, int(width)*int(rows))
	if err := readRect(s.console, rect, cells); err != nil {
		tracelog.Errorf("scraper: direct-mode read failed, skipping tick: %v", err)
		return nil
	}

	sendingAll := false
	for row := int16(0); row < rows; row++ {
		rowCells := cells[int(row)*int(width) : int(row+1)*int(width)]
		changed := s.lines.DetectChangeAndSetLine(int64(row), rowCells, int(width))
		if sendingAll || changed {
			sendingAll = true
			if err := s.enc.SendLine(int64(row), rowCells, int(width)); err != nil {
				return fmt.Errorf("send line %d: %w", row, err)
			}
		}
	}

	return s.finishDirectTick(info)
}

func (s *Scraper) finishDirectTick(info windows.ConsoleScreenBufferInfo) error {
	col := int(info.CursorPosition.X)
	row := int(info.CursorPosition.Y - s.directOrigin)
	if row < 0 {
		row = 0
	}
	if int16(row) >= s.ptyRows {
		row = int(s.ptyRows) - 1
	}
	if col < 0 {
		col = 0
	}
	if int16(col) >= s.ptyCols {
		col = int(s.ptyCols) - 1
	}
	return s.enc.FinishOutput(col, int64(row))
}
