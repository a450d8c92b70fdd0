//go:build windows

package scraper

import (
	"fmt"

	"golang.org/x/sys/windows"

	"winagent/internal/consoleapi"
	"winagent/internal/tracelog"
)

// tickScrolling implements spec.md §4.5.1's 13-step scrolling-mode loop.
func (s *Scraper) tickScrolling() error {
	// Step 1: reopen happens in Tick before dispatch.

	// Step 2: freeze.
	s.freeze()
	defer s.unfreeze() // step 13

	// Step 3: title sync.
	if err := s.syncTitle(); err != nil {
		tracelog.Errorf("scraper: title sync failed: %v", err)
	}

	// Step 4: buffer info.
	info, err := s.console.BufferInfo()
	if err != nil {
		tracelog.Errorf("scraper: bufferInfo failed mid-tick: %v", err)
		return nil
	}

	windowTop := info.Window.Top
	windowBottom := info.Window.Bottom
	cursorY := info.CursorPosition.Y

	// Step 5: sync marker scroll detection.
	if s.syncRow < 0 {
		// No marker tracked yet: adopt the current window as the scroll
		// origin without trying to locate one.
	} else {
		foundRow, err := s.findSyncMarker(windowTop + syncMarkerBand + 1)
		if err != nil {
			tracelog.Errorf("scraper: sync marker lookup failed: %v", err)
		} else if foundRow < 0 {
			// Marker vanished: lost synchronization, full reset.
			tracelog.Trace("scraper: sync marker lost, resetting")
			return s.resetState(s.scrapedLineCount)
		} else if foundRow < s.syncRow {
			delta := int64(s.syncRow - foundRow)
			s.scrolledCount += delta
			s.dirtyLineCount = windowBottom - windowTop + 1
			s.syncRow = foundRow
		}
	}

	// Step 6: update dirty region.
	if windowTop > s.dirtyWindowTop {
		// Window moved down: scroll, whole window dirty.
		s.dirtyLineCount = windowBottom - windowTop + 1
	} else if windowTop < s.dirtyWindowTop {
		// Window moved up (CLS or similar): reset tracking and clear remote.
		if err := s.resetState(s.scrapedLineCount); err != nil {
			return err
		}
		windowTop = info.Window.Top
		windowBottom = info.Window.Bottom
	}
	s.dirtyWindowTop = windowTop
	if v := cursorY + 1; v > s.dirtyLineCount {
		s.dirtyLineCount = v
	}
	if windowTop > s.dirtyLineCount {
		s.dirtyLineCount = windowTop
	}

	// Step 7: compute the read rectangle.
	firstReadLine := s.dirtyLineCount - 1 // carry attributes across rewraps
	if firstReadLine < 0 {
		firstReadLine = 0
	}
	stopReadLine := windowBottom + 1
	if s.dirtyLineCount > stopReadLine {
		stopReadLine = s.dirtyLineCount
	}
	if stopReadLine > info.Size.Y {
		stopReadLine = info.Size.Y
	}
	if firstReadLine >= stopReadLine {
		s.scrapedLineCount = int64(windowTop) + s.scrolledCount
		return s.finishScrollingTick(info)
	}

	rect := windows.SmallRect{Left: 0, Right: info.Size.X - 1, Top: firstReadLine, Bottom: stopReadLine - 1}
	width := int(info.Size.X)
	height := int(stopReadLine - firstReadLine)
	cells := make([]consoleapi.CellInfo, width*height)
	if err := readRect(s.console, rect, cells); err != nil {
		tracelog.Errorf("scraper: read failed, skipping tick: %v", err)
		return nil
	}

	// Step 8: extend dirty-line count by scanning forward for rewrap
	// artefacts or attribute-mismatched blank lines.
	scanRow := s.dirtyLineCount - 1
	if scanRow < firstReadLine {
		scanRow = firstReadLine
	}
	var prevLastAttr uint16
	if scanRow > firstReadLine {
		prevRow := cells[int(scanRow-1-firstReadLine)*width : int(scanRow-firstReadLine)*width]
		prevLastAttr = prevRow[width-1].Attr
	}
	for row := scanRow; row < stopReadLine; row++ {
		rowCells := cells[int(row-firstReadLine)*width : int(row-firstReadLine+1)*width]
		advance := false
		for _, c := range rowCells {
			if c.Char != ' ' || c.Attr != prevLastAttr {
				advance = true
				break
			}
		}
		if advance {
			s.dirtyLineCount = row + 1
		}
		prevLastAttr = rowCells[width-1].Attr
	}
	if stopReadLine < s.dirtyLineCount {
		// Dirty region grew past what we read; next tick's step 7 will
		// cover it once windowBottom/dirtyLineCount are reconciled.
	}

	// Step 9: emit lines.
	firstVirtLine := int64(firstReadLine) + s.scrolledCount
	stopVirtLine := int64(stopReadLine) + s.scrolledCount
	sendingAll := false
	for v := firstVirtLine; v < stopVirtLine; v++ {
		row := int(v-s.scrolledCount) - int(firstReadLine)
		rowCells := cells[row*width : (row+1)*width]

		changed := s.lines.DetectChangeAndSetLine(v, rowCells, width)
		send := sendingAll || v > s.maxBufferedLine || changed
		if send {
			sendingAll = true
			if err := s.enc.SendLine(v, rowCells, width); err != nil {
				return fmt.Errorf("send line %d: %w", v, err)
			}
		}
		if v > s.maxBufferedLine {
			s.maxBufferedLine = v
		}
	}

	// Step 10.
	s.scrapedLineCount = int64(windowTop) + s.scrolledCount

	// Step 11: re-evaluate sync marker placement.
	if err := s.maybeRelocateSyncMarker(windowTop, info); err != nil {
		tracelog.Errorf("scraper: sync marker relocation failed: %v", err)
	}

	return s.finishScrollingTick(info)
}

func (s *Scraper) finishScrollingTick(info windows.ConsoleScreenBufferInfo) error {
	cursorVirtRow := int64(info.CursorPosition.Y) + s.scrolledCount
	return s.enc.FinishOutput(int(info.CursorPosition.X), cursorVirtRow)
}

// maybeRelocateSyncMarker implements spec.md §4.5.1 step 11: once the
// window has advanced syncAdvanceThreshold rows past the current marker,
// move it forward, but never within syncAdvanceThreshold of row 0 (so it
// never collides with scrollback).
func (s *Scraper) maybeRelocateSyncMarker(windowTop int16, info windows.ConsoleScreenBufferInfo) error {
	threshold := s.syncAdvanceThreshold
	if windowTop < threshold {
		return nil
	}
	if s.syncRow >= 0 && windowTop-s.syncRow < threshold {
		return nil
	}
	newRow := windowTop - threshold
	return s.writeSyncMarker(newRow, info)
}
