//go:build windows

package consoleapi

import "unsafe"

// Event type tags for INPUT_RECORD.EventType (wincon.h).
const (
	keyEventType   = 0x0001
	mouseEventType = 0x0002
)

// KeyEventRecord mirrors KEY_EVENT_RECORD. Field order and widths match the
// Win32 ABI exactly (4+2+2+2+2+4 = 16 bytes), so it can be copied byte for
// byte into InputRecord's union slot the same way cell.Cell is copied into
// CHAR_INFO elsewhere in this package.
type KeyEventRecord struct {
	KeyDown         int32
	RepeatCount     uint16
	VirtualKeyCode  uint16
	VirtualScanCode uint16
	UnicodeChar     uint16
	ControlKeyState uint32
}

// MouseEventRecord mirrors MOUSE_EVENT_RECORD (4+4+4+4 = 16 bytes).
type MouseEventRecord struct {
	MousePositionX  int16
	MousePositionY  int16
	ButtonState     uint32
	ControlKeyState uint32
	EventFlags      uint32
}

// Control-key-state bits shared by key and mouse records (wincon.h).
const (
	CapsLockOn       = 0x0080
	NumLockOn        = 0x0020
	ScrollLockOn     = 0x0040
	ShiftPressed     = 0x0010
	LeftAltPressed   = 0x0002
	LeftCtrlPressed  = 0x0008
	RightAltPressed  = 0x0001
	RightCtrlPressed = 0x0004
)

// Mouse button and event flag bits (wincon.h).
const (
	FromLeft1stButtonPressed = 0x0001
	RightmostButtonPressed   = 0x0002
	FromLeft2ndButtonPressed = 0x0004

	MouseMoved    = 0x0001
	DoubleClick   = 0x0002
	MouseWheeled  = 0x0004
	MouseHWheeled = 0x0008
)

// InputRecord mirrors INPUT_RECORD: a WORD event tag, two bytes of padding
// to align the following union on a 4-byte boundary, then the 16-byte union
// itself (the largest member, KEY_EVENT_RECORD/MOUSE_EVENT_RECORD, is 16
// bytes on both 32- and 64-bit Windows).
type InputRecord struct {
	EventType uint16
	_         uint16
	data      [16]byte
}

// NewKeyInputRecord packs k into an InputRecord tagged KEY_EVENT.
func NewKeyInputRecord(k KeyEventRecord) InputRecord {
	var r InputRecord
	r.EventType = keyEventType
	*(*KeyEventRecord)(unsafe.Pointer(&r.data[0])) = k
	return r
}

// NewMouseInputRecord packs m into an InputRecord tagged MOUSE_EVENT.
func NewMouseInputRecord(m MouseEventRecord) InputRecord {
	var r InputRecord
	r.EventType = mouseEventType
	*(*MouseEventRecord)(unsafe.Pointer(&r.data[0])) = m
	return r
}
