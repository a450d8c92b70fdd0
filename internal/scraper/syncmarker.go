//go:build windows

package scraper

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows"

	"winagent/internal/consoleapi"
)

// syncMarkerPrefix begins every marker's literal text; the remaining
// cells hold 8 hex digits of an incrementing counter (spec.md §4.5.4).
const syncMarkerPrefix = "winsync:"
const syncMarkerWidth = 16

func markerText(counter uint32) string {
	text := fmt.Sprintf("%s%08x", syncMarkerPrefix, counter)
	if len(text) > syncMarkerWidth {
		text = text[:syncMarkerWidth]
	}
	return text
}

// writeSyncMarker clears the band around row and writes a fresh marker
// with an incremented counter there (spec.md §4.5.4 "Before writing a new
// marker, clear ... to prevent host-side rewrap from splitting it").
func (s *Scraper) writeSyncMarker(row int16, info windows.ConsoleScreenBufferInfo) error {
	clearTop := row - 1
	if clearTop < 0 {
		clearTop = 0
	}
	clearBottom := row + syncMarkerBand + 1
	if clearBottom >= info.Size.Y {
		clearBottom = info.Size.Y - 1
	}
	if err := s.console.ClearLines(clearTop, clearBottom-clearTop+1, info); err != nil {
		return fmt.Errorf("clear sync marker band: %w", err)
	}

	s.syncCounter++
	text := markerText(s.syncCounter)
	cells := make([]consoleapi.CellInfo, syncMarkerWidth)
	for i, r := range []rune(padMarker(text)) {
		cells[i] = consoleapi.CellInfo{Char: uint16(r), Attr: info.Attributes}
	}
	rect := windows.SmallRect{Left: 0, Right: syncMarkerWidth - 1, Top: row, Bottom: row}
	if err := s.console.Write(rect, cells, syncMarkerWidth); err != nil {
		return fmt.Errorf("write sync marker at row %d: %w", row, err)
	}
	s.syncRow = row
	return nil
}

func padMarker(text string) string {
	if len(text) >= syncMarkerWidth {
		return text
	}
	return text + strings.Repeat(" ", syncMarkerWidth-len(text))
}

// findSyncMarker reads the first syncMarkerWidth columns of rows
// [0, limit) and scans upward for
// the marker literal, returning its row or -1 if not present (spec.md
// §4.5.4 "Lookup").
func (s *Scraper) findSyncMarker(limit int16) (int16, error) {
	if limit <= 0 {
		return -1, nil
	}
	rect := windows.SmallRect{Left: 0, Right: syncMarkerWidth - 1, Top: 0, Bottom: limit - 1}
	cells := make([]consoleapi.CellInfo, int(syncMarkerWidth)*int(limit))
	if err := readRect(s.console, rect, cells); err != nil {
		return -1, fmt.Errorf("read sync marker column: %w", err)
	}
	prefixRunes := []rune(syncMarkerPrefix)
	for row := int(limit) - 1; row >= 0; row-- {
		match := true
		for i, r := range prefixRunes {
			if rune(cells[row*syncMarkerWidth+i].Char) != r {
				match = false
				break
			}
		}
		if match {
			return int16(row), nil
		}
	}
	return -1, nil
}
