//go:build windows

package scraper

import (
	"fmt"

	"golang.org/x/sys/windows"

	"winagent/internal/consoleapi"
)

// maxCellsPerRead approximates the host's ReadConsoleOutputW limit: the
// call fails once the rectangle's cell count makes the marshaled reply
// exceed the console driver's internal message size, empirically around
// 64KiB / sizeof(CHAR_INFO) (4 bytes) = 16384 cells (spec.md §4.5 "Large
// read"). Hosts at or above the "new" console revision lift this limit,
// but this implementation always splits defensively rather than probing
// for that revision.
const maxCellsPerRead = 16384

// readRect reads an arbitrarily large rectangle by splitting it into a
// sequence of row-contiguous sub-reads when it would exceed
// maxCellsPerRead, preserving the union rectangle (spec.md §4.5 "Large
// read"). cells must be sized width*height already.
func readRect(console consoleIO, rect windows.SmallRect, cells []consoleapi.CellInfo) error {
	width := int(rect.Right-rect.Left) + 1
	height := int(rect.Bottom-rect.Top) + 1
	if width <= 0 || height <= 0 {
		return nil
	}
	if width*height <= maxCellsPerRead {
		return console.Read(rect, cells)
	}

	rowsPerChunk := maxCellsPerRead / width
	if rowsPerChunk < 1 {
		rowsPerChunk = 1
	}

	for top := 0; top < height; top += rowsPerChunk {
		rows := rowsPerChunk
		if top+rows > height {
			rows = height - top
		}
		subRect := windows.SmallRect{
			Left:   rect.Left,
			Right:  rect.Right,
			Top:    rect.Top + int16(top),
			Bottom: rect.Top + int16(top) + int16(rows) - 1,
		}
		subCells := cells[top*width : (top+rows)*width]
		if err := console.Read(subRect, subCells); err != nil {
			return fmt.Errorf("sub-read rows [%d,%d): %w", top, top+rows, err)
		}
	}
	return nil
}
