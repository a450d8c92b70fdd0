package inputdecoder

import "time"

// tryMouse matches the three mouse report encodings winpty's terminal
// front-end may use (spec.md §4.6): legacy X10 ("\x1b[M" + 3 raw bytes),
// SGR 1006 ("\x1b[<b;x;yM" or "...m"), and URxvt 1015 ("\x1b[b;x;yM").
// Reports are ignored (but still consumed) when MouseInputEnabled is
// false, since the agent must not desync its byte stream just because the
// console isn't currently accepting mouse input.
func (d *Decoder) tryMouse(q []byte, now time.Time) (int, *Event, bool) {
	if n, ev, ok := d.tryMouseX10(q, now); ok {
		return n, ev, true
	}
	if n, ev, ok := d.tryMouseSGR(q, now); ok {
		return n, ev, true
	}
	if n, ev, ok := d.tryMouseURxvt(q, now); ok {
		return n, ev, true
	}
	return 0, nil, false
}

func (d *Decoder) tryMouseX10(q []byte, now time.Time) (int, *Event, bool) {
	if len(q) < 3 || q[0] != 0x1b || q[1] != '[' || q[2] != 'M' {
		return 0, nil, false
	}
	if len(q) < 6 {
		return 0, nil, false
	}
	btnByte := int(q[3]) - 32
	x := int(q[4]) - 32 - 1
	y := int(q[5]) - 32 - 1
	return 6, d.buildMouseEvent(btnByte, x, y, now), true
}

func (d *Decoder) tryMouseSGR(q []byte, now time.Time) (int, *Event, bool) {
	if len(q) < 3 || q[0] != 0x1b || q[1] != '[' || q[2] != '<' {
		return 0, nil, false
	}
	i := 3
	btn, i, ok := readMouseParam(q, i)
	if !ok {
		return 0, nil, false
	}
	x, i, ok := readMouseParam(q, i)
	if !ok {
		return 0, nil, false
	}
	y, i, ok := readMouseParam(q, i)
	if !ok {
		return 0, nil, false
	}
	if i >= len(q) || (q[i] != 'M' && q[i] != 'm') {
		return 0, nil, false
	}
	release := q[i] == 'm'
	ev := d.buildMouseEvent(btn, x-1, y-1, now)
	if release && ev != nil && ev.Mouse != nil {
		ev.Mouse.Down = false
	}
	return i + 1, ev, true
}

func (d *Decoder) tryMouseURxvt(q []byte, now time.Time) (int, *Event, bool) {
	if len(q) < 3 || q[0] != 0x1b || q[1] != '[' || !isDigit(q[2]) {
		return 0, nil, false
	}
	i := 2
	btn, i, ok := readMouseParam(q, i)
	if !ok {
		return 0, nil, false
	}
	x, i, ok := readMouseParam(q, i)
	if !ok {
		return 0, nil, false
	}
	y, i, ok := readMouseParam(q, i)
	if !ok {
		return 0, nil, false
	}
	if i >= len(q) || q[i] != 'M' {
		return 0, nil, false
	}
	return i + 1, d.buildMouseEvent(btn, x-1, y-1, now), true
}

// readMouseParam reads one ";"-or-terminator-delimited decimal parameter
// starting at i, returning the value and the index of the delimiter byte
// (not consumed). ok is false if no digits were found.
func readMouseParam(q []byte, i int) (int, int, bool) {
	start := i
	for i < len(q) && isDigit(q[i]) {
		i++
	}
	if i == start {
		return 0, i, false
	}
	n := atoiBytes(q[start:i])
	if i < len(q) && q[i] == ';' {
		i++
	}
	return n, i, true
}

const (
	mouseWheelFlag = 0x40
	mouseMotionFlag = 0x20
	mouseShiftFlag  = 0x04
	mouseAltFlag    = 0x08
	mouseCtrlFlag   = 0x10
	mouseButtonMask = 0x03
	mouseNoButton   = 0x03
)

// wheelDeltaMagnitude is the notch size MOUSE_EVENT_RECORD.dwButtonState
// expects in the high word of a wheel event (wincon.h's WHEEL_DELTA; see
// winpty's ConsoleInput.cc, which ORs in the literal 0x00780000/0xff880000
// rather than a signed 1). Consumers that pack WheelDelta into that high
// word (internal/agentloop) rely on this exact magnitude.
const wheelDeltaMagnitude = 120

// buildMouseEvent decodes the raw button byte, clamps coordinates to the
// console window, and applies double-click detection (spec.md §4.6
// "mouse events"). It returns nil when mouse input is currently disabled,
// so callers still advance the byte cursor without producing an event.
func (d *Decoder) buildMouseEvent(btnByte, x, y int, now time.Time) *Event {
	if !d.MouseInputEnabled {
		return nil
	}
	if d.WindowCols > 0 && x >= d.WindowCols {
		x = d.WindowCols - 1
	}
	if d.WindowRows > 0 && y >= d.WindowRows {
		y = d.WindowRows - 1
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	mods := Modifiers{
		Shift: btnByte&mouseShiftFlag != 0,
		Alt:   btnByte&mouseAltFlag != 0,
		Ctrl:  btnByte&mouseCtrlFlag != 0,
	}

	if btnByte&mouseWheelFlag != 0 {
		delta := wheelDeltaMagnitude
		if btnByte&mouseButtonMask == 1 {
			delta = -wheelDeltaMagnitude
		}
		return &Event{Mouse: &MouseEvent{Button: -1, X: x, Y: y, WheelDelta: delta, Mods: mods}}
	}

	motion := btnByte&mouseMotionFlag != 0
	button := btnByte & mouseButtonMask

	if motion {
		return &Event{Mouse: &MouseEvent{Button: -1, X: x, Y: y, Motion: true, Mods: mods}}
	}

	down := button != mouseNoButton
	ev := &MouseEvent{Button: button, X: x, Y: y, Down: down, Mods: mods}

	if down {
		ev.DoubleClick = d.detectDoubleClick(button, x, y, now)
	}

	return &Event{Mouse: ev}
}

// detectDoubleClick mirrors GetDoubleClickTime-gated detection: the same
// button clicked at the same cell within the configured interval counts
// as a double click; any intervening different button resets the state.
func (d *Decoder) detectDoubleClick(button, x, y int, now time.Time) bool {
	wasDouble := false
	if d.dblHasState && d.dblButton == button && d.dblX == x && d.dblY == y {
		if now.Sub(d.dblAt) <= d.doubleClickInterval() {
			wasDouble = true
		}
	}
	d.dblHasState = true
	d.dblButton = button
	d.dblX, d.dblY = x, y
	d.dblAt = now
	return wasDouble
}
