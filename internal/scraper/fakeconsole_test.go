//go:build windows

package scraper

import (
	"golang.org/x/sys/windows"

	"winagent/internal/consoleapi"
)

// fakeConsole is a consoleIO backed by an in-memory cell grid instead of a
// real console handle, the same seam the teacher's VT type gets from
// typing Ptm as io.Writer rather than *os.File (tested with os.Pipe in
// vt_test.go).
type fakeConsole struct {
	size   windows.Coord
	window windows.SmallRect
	cursor windows.Coord
	attr   uint16
	title  string

	cells map[int]consoleapi.CellInfo

	marks      int
	selectAlls int
	escapes    int
	closed     bool
}

func newFakeConsole(cols, rows int16) *fakeConsole {
	return &fakeConsole{
		size:   windows.Coord{X: cols, Y: rows},
		window: windows.SmallRect{Left: 0, Top: 0, Right: cols - 1, Bottom: rows - 1},
		cells:  make(map[int]consoleapi.CellInfo),
	}
}

func (f *fakeConsole) idx(row, col int16) int { return int(row)*int(f.size.X) + int(col) }

func (f *fakeConsole) cellAt(row, col int16) consoleapi.CellInfo {
	if c, ok := f.cells[f.idx(row, col)]; ok {
		return c
	}
	return consoleapi.CellInfo{Char: ' '}
}

// setRow fills row with text (space-padded/truncated to the buffer width)
// at the given attribute, for test setup.
func (f *fakeConsole) setRow(row int16, text string, attr uint16) {
	for col := int16(0); col < f.size.X; col++ {
		ch := byte(' ')
		if int(col) < len(text) {
			ch = text[col]
		}
		f.cells[f.idx(row, col)] = consoleapi.CellInfo{Char: uint16(ch), Attr: attr}
	}
}

func (f *fakeConsole) BufferInfo() (windows.ConsoleScreenBufferInfo, error) {
	return windows.ConsoleScreenBufferInfo{
		Size:           f.size,
		CursorPosition: f.cursor,
		Window:         f.window,
		Attributes:     f.attr,
	}, nil
}

func (f *fakeConsole) CursorPosition() (windows.Coord, error) { return f.cursor, nil }

func (f *fakeConsole) SetCursorPosition(c windows.Coord) error {
	f.cursor = c
	return nil
}

func (f *fakeConsole) ResizeBuffer(c windows.Coord) error {
	f.size = c
	return nil
}

func (f *fakeConsole) MoveWindow(r windows.SmallRect) error {
	f.window = r
	return nil
}

func (f *fakeConsole) ClearLines(row, count int16, info windows.ConsoleScreenBufferInfo) error {
	for r := row; r < row+count; r++ {
		for c := int16(0); c < f.size.X; c++ {
			f.cells[f.idx(r, c)] = consoleapi.CellInfo{Char: ' ', Attr: info.Attributes}
		}
	}
	return nil
}

func (f *fakeConsole) Read(rect windows.SmallRect, cells []consoleapi.CellInfo) error {
	i := 0
	for row := rect.Top; row <= rect.Bottom; row++ {
		for col := rect.Left; col <= rect.Right; col++ {
			cells[i] = f.cellAt(row, col)
			i++
		}
	}
	return nil
}

func (f *fakeConsole) Write(rect windows.SmallRect, cells []consoleapi.CellInfo, width int16) error {
	i := 0
	for row := rect.Top; row <= rect.Bottom; row++ {
		for col := rect.Left; col <= rect.Right; col++ {
			f.cells[f.idx(row, col)] = cells[i]
			i++
		}
	}
	return nil
}

func (f *fakeConsole) Title() (string, error) { return f.title, nil }

func (f *fakeConsole) SendMark()      { f.marks++ }
func (f *fakeConsole) SendSelectAll() { f.selectAlls++ }
func (f *fakeConsole) SendEscape()    { f.escapes++ }

func (f *fakeConsole) Close() error {
	f.closed = true
	return nil
}
