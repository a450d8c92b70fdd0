//go:build windows

package scraper

import (
	"golang.org/x/sys/windows"

	"winagent/internal/consoleapi"
)

// consoleIO is the subset of *consoleapi.Console the scraper's core loop
// needs. Scraper depends on this interface rather than the concrete
// console type so tests can drive tickScrolling/tickDirect/Resize against
// a fake screen buffer instead of a real console handle, the same seam
// the teacher gives its VT type over a raw pty file descriptor (an
// io.Writer field backed by os.Pipe in tests).
type consoleIO interface {
	BufferInfo() (windows.ConsoleScreenBufferInfo, error)
	CursorPosition() (windows.Coord, error)
	SetCursorPosition(windows.Coord) error
	ResizeBuffer(windows.Coord) error
	MoveWindow(windows.SmallRect) error
	ClearLines(row, count int16, info windows.ConsoleScreenBufferInfo) error
	Read(rect windows.SmallRect, cells []consoleapi.CellInfo) error
	Write(rect windows.SmallRect, cells []consoleapi.CellInfo, width int16) error
	Title() (string, error)
	SendMark()
	SendSelectAll()
	SendEscape()
	Close() error
}
