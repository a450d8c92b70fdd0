//go:build windows

package agentloop

import (
	"winagent/internal/consoleapi"
	"winagent/internal/inputdecoder"
)

// eventsToInputRecords converts decoder events into the console's native
// INPUT_RECORD shape (spec.md §4.6 "synthesize console input records").
// Key events are expanded through inputdecoder.ExpandKeyPress first so a
// single decoded key press becomes the modifier-down, key-down, key-up,
// modifier-up sequence the console expects; mouse events map directly to
// one MOUSE_EVENT_RECORD each.
func eventsToInputRecords(events []inputdecoder.Event) []consoleapi.InputRecord {
	var out []consoleapi.InputRecord
	for _, ev := range events {
		switch {
		case ev.Key != nil:
			for _, k := range inputdecoder.ExpandKeyPress(*ev.Key) {
				out = append(out, consoleapi.NewKeyInputRecord(keyEventRecord(k)))
			}
		case ev.Mouse != nil:
			out = append(out, consoleapi.NewMouseInputRecord(mouseEventRecord(*ev.Mouse)))
		}
	}
	return out
}

func keyEventRecord(k inputdecoder.KeyEvent) consoleapi.KeyEventRecord {
	var keyDown int32
	if k.Down {
		keyDown = 1
	}
	return consoleapi.KeyEventRecord{
		KeyDown:         keyDown,
		RepeatCount:     1,
		VirtualKeyCode:  k.VK,
		VirtualScanCode: 0,
		UnicodeChar:     uint16(k.Char),
		ControlKeyState: controlKeyState(k.Mods),
	}
}

func controlKeyState(m inputdecoder.Modifiers) uint32 {
	var state uint32
	if m.Shift {
		state |= consoleapi.ShiftPressed
	}
	if m.Alt {
		state |= consoleapi.LeftAltPressed
	}
	if m.Ctrl {
		state |= consoleapi.LeftCtrlPressed
	}
	return state
}

func mouseEventRecord(m inputdecoder.MouseEvent) consoleapi.MouseEventRecord {
	var buttons uint32
	switch m.Button {
	case 0:
		buttons = consoleapi.FromLeft1stButtonPressed
	case 1:
		buttons = consoleapi.FromLeft2ndButtonPressed
	case 2:
		buttons = consoleapi.RightmostButtonPressed
	}
	if !m.Down && m.Button >= 0 {
		buttons = 0 // button release: no buttons held
	}

	var flags uint32
	if m.Motion {
		flags |= consoleapi.MouseMoved
	}
	if m.DoubleClick {
		flags |= consoleapi.DoubleClick
	}
	if m.WheelDelta != 0 {
		flags |= consoleapi.MouseWheeled
		// High word of dwButtonState carries the signed wheel delta
		// (wincon.h convention for MOUSE_WHEELED). m.WheelDelta is
		// +/-120 (wheelDeltaMagnitude), so this produces the same
		// 0x00780000 / 0xff880000 words winpty's ConsoleInput.cc ORs
		// in literally.
		buttons |= uint32(int32(m.WheelDelta) << 16)
	}

	return consoleapi.MouseEventRecord{
		MousePositionX:  int16(m.X),
		MousePositionY:  int16(m.Y),
		ButtonState:     buttons,
		ControlKeyState: controlKeyState(m.Mods),
		EventFlags:      flags,
	}
}
