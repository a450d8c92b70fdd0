//go:build windows

// Package consoleapi is the thin, fallible wrapper over the host console
// calls the agent needs (spec.md §4.2). Every exported method returns an
// error instead of panicking; callers (internal/scraper) treat most of
// these as transient failures per the "trace and continue" policy.
//
// golang.org/x/sys/windows covers most of the surface directly. A handful
// of cell-level and window-message APIs (ReadConsoleOutputW,
// WriteConsoleOutputW, WriteConsoleInputW, GetConsoleTitleW/SetConsoleTitleW,
// SendMessageW) aren't exposed by that package, so they're resolved the same
// way x/sys/windows resolves its own procs: golang.org/x/sys/windows.NewLazySystemDLL
// + NewProc, grounded on the syscall.NewLazyDLL pattern used by the tcell
// Windows console backend in the example pack.
package consoleapi

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"winagent/internal/cell"
)

var (
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")
	moduser32   = windows.NewLazySystemDLL("user32.dll")

	procReadConsoleOutputW  = modkernel32.NewProc("ReadConsoleOutputW")
	procWriteConsoleOutputW = modkernel32.NewProc("WriteConsoleOutputW")
	procWriteConsoleInputW  = modkernel32.NewProc("WriteConsoleInputW")
	procGetConsoleTitleW    = modkernel32.NewProc("GetConsoleTitleW")
	procSetConsoleTitleW    = modkernel32.NewProc("SetConsoleTitleW")
	procSendMessageW        = moduser32.NewProc("SendMessageW")
	procShowWindow          = moduser32.NewProc("ShowWindow")
)

// Syscommands used to freeze/unfreeze console output by abusing the
// selection UI (spec.md §4.5 Freeze primitive), carried verbatim from
// winpty's Agent.cc.
const (
	scConsoleMark      = 0xFFF2
	scConsoleSelectAll = 0xFFF5
	wmSysCommand       = 0x0112
	wmChar             = 0x0102
	escapeCharLParam   = 0x00010001 // matches winpty's sendEscape WM_CHAR lParam
)

// CellInfo mirrors CHAR_INFO: a UTF-16 code unit plus an attribute word.
// Bit-identical to cell.Cell; the two are used interchangeably via
// unsafe.Pointer casts below so the rest of the agent never needs to know
// about the Win32 CHAR_INFO ABI.
type CellInfo = cell.Cell

// Console is an exclusively-owned handle onto the active console screen
// buffer and its window. Nothing outside this package touches the raw
// handles (spec.md §9 "Global mutable state").
type Console struct {
	out  windows.Handle
	in   windows.Handle
	hwnd uintptr
}

// OpenConout opens (or reopens) CONOUT$ as the active output handle. Called
// once at startup, and again whenever the scraper detects the child swapped
// the active screen buffer.
func OpenConout() (*Console, error) {
	path, err := windows.UTF16PtrFromString("CONOUT$")
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(path,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("open CONOUT$: %w", err)
	}
	conin, err := windows.GetStdHandle(windows.STD_INPUT_HANDLE)
	if err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("get conin handle: %w", err)
	}
	hwnd, _, _ := procGetConsoleWindow()
	return &Console{out: h, in: conin, hwnd: hwnd}, nil
}

func procGetConsoleWindow() (uintptr, uintptr, error) {
	h := windows.GetConsoleWindow()
	return uintptr(h), 0, nil
}

// Close releases the output handle. The console window itself outlives the
// handle; PostCloseMessage is what actually tears the window down.
func (c *Console) Close() error {
	return windows.CloseHandle(c.out)
}

// Conout returns the active output handle.
func (c *Console) Conout() windows.Handle { return c.out }

// Conin returns the console input handle.
func (c *Console) Conin() windows.Handle { return c.in }

// Hwnd returns the console window handle used for freeze/unfreeze syscommands.
func (c *Console) Hwnd() uintptr { return c.hwnd }

// BufferInfo captures buffer size, window rect, cursor position and
// current attribute in one atomic snapshot (spec.md §3 ScreenBufferInfo).
func (c *Console) BufferInfo() (windows.ConsoleScreenBufferInfo, error) {
	var info windows.ConsoleScreenBufferInfo
	if err := windows.GetConsoleScreenBufferInfo(c.out, &info); err != nil {
		return info, fmt.Errorf("get console screen buffer info: %w", err)
	}
	return info, nil
}

// CursorPosition returns just the cursor position from BufferInfo.
func (c *Console) CursorPosition() (windows.Coord, error) {
	info, err := c.BufferInfo()
	if err != nil {
		return windows.Coord{}, err
	}
	return info.CursorPosition, nil
}

// WindowRect returns the visible window rectangle from BufferInfo.
func (c *Console) WindowRect() (windows.SmallRect, error) {
	info, err := c.BufferInfo()
	if err != nil {
		return windows.SmallRect{}, err
	}
	return info.Window, nil
}

// BufferSize returns the screen buffer's total size (may exceed the window).
func (c *Console) BufferSize() (windows.Coord, error) {
	info, err := c.BufferInfo()
	if err != nil {
		return windows.Coord{}, err
	}
	return info.Size, nil
}

// ResizeBuffer changes the total buffer size. The host refuses this call
// while the console is frozen (spec.md §4.5.3 step B).
func (c *Console) ResizeBuffer(size windows.Coord) error {
	if err := windows.SetConsoleScreenBufferSize(c.out, size); err != nil {
		return fmt.Errorf("resize buffer to %dx%d: %w", size.X, size.Y, err)
	}
	return nil
}

// MoveWindow repositions/resizes the visible window within the buffer.
func (c *Console) MoveWindow(rect windows.SmallRect) error {
	if err := windows.SetConsoleWindowInfo(c.out, true, &rect); err != nil {
		return fmt.Errorf("move window to %+v: %w", rect, err)
	}
	return nil
}

// SetCursorPosition moves the console cursor.
func (c *Console) SetCursorPosition(pt windows.Coord) error {
	if err := windows.SetConsoleCursorPosition(c.out, pt); err != nil {
		return fmt.Errorf("set cursor position %+v: %w", pt, err)
	}
	return nil
}

// SetTextAttribute sets the default fill attribute used by clear operations.
func (c *Console) SetTextAttribute(attr uint16) error {
	if err := windows.SetConsoleTextAttribute(c.out, attr); err != nil {
		return fmt.Errorf("set text attribute %#x: %w", attr, err)
	}
	return nil
}

// ClearLines fills count rows starting at row with spaces using info's
// default attribute.
func (c *Console) ClearLines(row int16, count int16, info windows.ConsoleScreenBufferInfo) error {
	rect := windows.SmallRect{
		Left: 0, Top: row,
		Right:  info.Size.X - 1,
		Bottom: row + count - 1,
	}
	return c.fillRect(rect, ' ', info.Attributes)
}

// ClearAllLines fills the entire buffer with spaces using info's attribute.
func (c *Console) ClearAllLines(info windows.ConsoleScreenBufferInfo) error {
	return c.ClearLines(0, info.Size.Y, info)
}

func (c *Console) fillRect(rect windows.SmallRect, fillChar rune, attr uint16) error {
	width := int(rect.Right-rect.Left) + 1
	height := int(rect.Bottom-rect.Top) + 1
	if width <= 0 || height <= 0 {
		return nil
	}
	cells := make([]CellInfo, width*height)
	for i := range cells {
		cells[i] = CellInfo{Char: uint16(fillChar), Attr: attr}
	}
	return c.Write(cellRect(rect), cells, int16(width))
}

func cellRect(r windows.SmallRect) windows.SmallRect { return r }

// Read fills cells (row-major, width columns wide) from the buffer
// rectangle rect. Splitting wide/tall reads into host-limited sub-reads is
// the caller's responsibility (internal/scraper's largeRead helper) —
// this method issues exactly one ReadConsoleOutputW call.
func (c *Console) Read(rect windows.SmallRect, cells []CellInfo) error {
	bufSize := windows.Coord{X: rect.Right - rect.Left + 1, Y: rect.Bottom - rect.Top + 1}
	bufCoord := windows.Coord{X: 0, Y: 0}
	readRegion := rect
	r1, _, e1 := procReadConsoleOutputW.Call(
		uintptr(c.out),
		uintptr(unsafe.Pointer(&cells[0])),
		coordToUintptr(bufSize),
		coordToUintptr(bufCoord),
		uintptr(unsafe.Pointer(&readRegion)),
	)
	if r1 == 0 {
		return fmt.Errorf("read console output %+v: %w", rect, e1)
	}
	return nil
}

// Write writes cells (width columns wide) into the buffer rectangle rect.
func (c *Console) Write(rect windows.SmallRect, cells []CellInfo, width int16) error {
	height := rect.Bottom - rect.Top + 1
	bufSize := windows.Coord{X: width, Y: height}
	bufCoord := windows.Coord{X: 0, Y: 0}
	writeRegion := rect
	r1, _, e1 := procWriteConsoleOutputW.Call(
		uintptr(c.out),
		uintptr(unsafe.Pointer(&cells[0])),
		coordToUintptr(bufSize),
		coordToUintptr(bufCoord),
		uintptr(unsafe.Pointer(&writeRegion)),
	)
	if r1 == 0 {
		return fmt.Errorf("write console output %+v: %w", rect, e1)
	}
	return nil
}

// WriteInput pushes synthetic input records produced by internal/inputdecoder.
func (c *Console) WriteInput(records []InputRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	var written uint32
	r1, _, e1 := procWriteConsoleInputW.Call(
		uintptr(c.in),
		uintptr(unsafe.Pointer(&records[0])),
		uintptr(len(records)),
		uintptr(unsafe.Pointer(&written)),
	)
	if r1 == 0 {
		return 0, fmt.Errorf("write console input: %w", e1)
	}
	return int(written), nil
}

// Title reads the console title. The host's GetConsoleTitleW length
// semantics differ across versions (spec.md §4.2), so this doubles the
// buffer until the returned length no longer suggests truncation.
func (c *Console) Title() (string, error) {
	bufLen := uint32(256)
	for attempt := 0; attempt < 6; attempt++ {
		buf := make([]uint16, bufLen)
		r1, _, _ := procGetConsoleTitleW.Call(
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(bufLen),
		)
		n := uint32(r1)
		if n == 0 {
			return "", nil
		}
		if n < bufLen-1 {
			return windows.UTF16ToString(buf[:n]), nil
		}
		bufLen *= 2
	}
	return "", fmt.Errorf("get console title: exceeded retry budget")
}

// SetTitle sets the console title.
func (c *Console) SetTitle(title string) error {
	ptr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return err
	}
	r1, _, e1 := procSetConsoleTitleW.Call(uintptr(unsafe.Pointer(ptr)))
	if r1 == 0 {
		return fmt.Errorf("set console title: %w", e1)
	}
	return nil
}

// ProcessedInputMode reports whether the host will translate Ctrl-C into a
// signal (ENABLE_PROCESSED_INPUT set on the input handle).
func (c *Console) ProcessedInputMode() (bool, error) {
	var mode uint32
	if err := windows.GetConsoleMode(c.in, &mode); err != nil {
		return false, fmt.Errorf("get console mode: %w", err)
	}
	return mode&windows.ENABLE_PROCESSED_INPUT != 0, nil
}

// MouseInputMode reports whether the host will report mouse events to the
// input handle (ENABLE_MOUSE_INPUT set on the input handle).
func (c *Console) MouseInputMode() (bool, error) {
	var mode uint32
	if err := windows.GetConsoleMode(c.in, &mode); err != nil {
		return false, fmt.Errorf("get console mode: %w", err)
	}
	return mode&windows.ENABLE_MOUSE_INPUT != 0, nil
}

// PostCloseMessage asks the console window to close; called from the
// agent's shutdown path.
func (c *Console) PostCloseMessage() error {
	return windows.PostMessage(windows.HWND(c.hwnd), windows.WM_CLOSE, 0, 0)
}

// SendSysCommand sends a WM_SYSCOMMAND, used to invoke MARK / SELECT_ALL to
// freeze console output (spec.md §4.5 Freeze primitive).
func (c *Console) SendSysCommand(command uintptr) {
	procSendMessageW.Call(c.hwnd, wmSysCommand, command, 0)
}

// SendMark sends the MARK syscommand.
func (c *Console) SendMark() { c.SendSysCommand(scConsoleMark) }

// SendSelectAll sends the SELECT_ALL syscommand.
func (c *Console) SendSelectAll() { c.SendSysCommand(scConsoleSelectAll) }

// SendEscape sends a WM_CHAR(27) to release the freeze induced by MARK or
// SELECT_ALL. lParam matches winpty's Agent.cc sendEscape exactly.
func (c *Console) SendEscape() {
	procSendMessageW.Call(c.hwnd, wmChar, 27, escapeCharLParam)
}

const swHide = 0
const swShow = 5

// SetWindowVisible hides or restores the agent's own console window
// (spec.md §6 WINPTY_SHOW_CONSOLE debug aid; normally the hidden console is
// never shown to the user).
func (c *Console) SetWindowVisible(visible bool) {
	cmd := uintptr(swHide)
	if visible {
		cmd = uintptr(swShow)
	}
	procShowWindow.Call(c.hwnd, cmd)
}

func coordToUintptr(c windows.Coord) uintptr {
	return uintptr(uint32(uint16(c.X)) | uint32(uint16(c.Y))<<16)
}
