package inputdecoder

import (
	"testing"
	"time"
)

func TestFeed_MouseDisabledProducesNoEvent(t *testing.T) {
	var d Decoder
	now := time.Now()
	events, _ := d.Feed([]byte("\x1b[M !!"), now)
	if len(events) != 0 {
		t.Fatalf("expected no events while mouse input disabled, got %+v", events)
	}
}

func TestFeed_MouseX10LeftClick(t *testing.T) {
	var d Decoder
	d.MouseInputEnabled = true
	now := time.Now()
	// button=0 (left), x=5, y=3 (0-based; each coordinate is sent 1-based, +32)
	events, _ := d.Feed([]byte{0x1b, '[', 'M', 32 + 0, 32 + 6, 32 + 4}, now)
	if len(events) != 1 || events[0].Mouse == nil {
		t.Fatalf("expected one mouse event, got %+v", events)
	}
	m := events[0].Mouse
	if m.Button != 0 || m.X != 5 || m.Y != 3 || !m.Down {
		t.Fatalf("got %+v, want button 0 at (5,3) down", m)
	}
}

func TestFeed_MouseSGRPressAndRelease(t *testing.T) {
	var d Decoder
	d.MouseInputEnabled = true
	now := time.Now()
	events, _ := d.Feed([]byte("\x1b[<0;10;5M"), now)
	if len(events) != 1 || events[0].Mouse == nil || !events[0].Mouse.Down {
		t.Fatalf("expected a press event, got %+v", events)
	}
	events, _ = d.Feed([]byte("\x1b[<0;10;5m"), now)
	if len(events) != 1 || events[0].Mouse == nil || events[0].Mouse.Down {
		t.Fatalf("expected a release event, got %+v", events)
	}
}

func TestFeed_MouseURxvt(t *testing.T) {
	var d Decoder
	d.MouseInputEnabled = true
	now := time.Now()
	events, _ := d.Feed([]byte("\x1b[32;10;5M"), now)
	if len(events) != 1 || events[0].Mouse == nil {
		t.Fatalf("expected one mouse event, got %+v", events)
	}
	if events[0].Mouse.X != 9 || events[0].Mouse.Y != 4 {
		t.Fatalf("got %+v, want (9,4) (1-based input converted to 0-based)", events[0].Mouse)
	}
}

// wheelButtonStateWord reproduces the high-word packing
// internal/agentloop's mouseEventRecord applies to WheelDelta, so this
// test can assert the actual MOUSE_EVENT_RECORD.dwButtonState bits a
// wheel event produces without depending on a Windows build.
func wheelButtonStateWord(delta int) uint32 {
	return uint32(int32(delta) << 16)
}

func TestFeed_MouseWheel(t *testing.T) {
	var d Decoder
	d.MouseInputEnabled = true
	now := time.Now()

	// button byte 0x40 | 0 = wheel up
	events, _ := d.Feed([]byte{0x1b, '[', 'M', 32 + 0x40, 32 + 1, 32 + 1}, now)
	if len(events) != 1 || events[0].Mouse == nil || events[0].Mouse.WheelDelta != wheelDeltaMagnitude {
		t.Fatalf("expected wheel-up event with delta %d, got %+v", wheelDeltaMagnitude, events)
	}
	if got, want := wheelButtonStateWord(events[0].Mouse.WheelDelta), uint32(0x00780000); got != want {
		t.Fatalf("wheel-up button-state word = %#08x, want %#08x", got, want)
	}

	// button byte 0x40 | 1 = wheel down
	events, _ = d.Feed([]byte{0x1b, '[', 'M', 32 + 0x40 + 1, 32 + 1, 32 + 1}, now)
	if len(events) != 1 || events[0].Mouse == nil || events[0].Mouse.WheelDelta != -wheelDeltaMagnitude {
		t.Fatalf("expected wheel-down event with delta %d, got %+v", -wheelDeltaMagnitude, events)
	}
	if got, want := wheelButtonStateWord(events[0].Mouse.WheelDelta), uint32(0xff880000); got != want {
		t.Fatalf("wheel-down button-state word = %#08x, want %#08x", got, want)
	}
}

func TestDetectDoubleClick_SameCellWithinInterval(t *testing.T) {
	var d Decoder
	d.MouseInputEnabled = true
	d.DoubleClickInterval = 500 * time.Millisecond
	now := time.Now()

	first := d.detectDoubleClick(0, 1, 1, now)
	if first {
		t.Fatalf("first click should never be a double click")
	}
	second := d.detectDoubleClick(0, 1, 1, now.Add(100*time.Millisecond))
	if !second {
		t.Fatalf("expected the second click at the same cell to register as a double click")
	}
}

func TestDetectDoubleClick_DifferentButtonResets(t *testing.T) {
	var d Decoder
	d.DoubleClickInterval = 500 * time.Millisecond
	now := time.Now()

	d.detectDoubleClick(0, 1, 1, now)
	d.detectDoubleClick(1, 1, 1, now.Add(50*time.Millisecond))
	third := d.detectDoubleClick(0, 1, 1, now.Add(100*time.Millisecond))
	if third {
		t.Fatalf("an intervening different button should reset double-click tracking")
	}
}

func TestDetectDoubleClick_TooSlowDoesNotCount(t *testing.T) {
	var d Decoder
	d.DoubleClickInterval = 200 * time.Millisecond
	now := time.Now()

	d.detectDoubleClick(0, 1, 1, now)
	late := d.detectDoubleClick(0, 1, 1, now.Add(time.Second))
	if late {
		t.Fatalf("a click outside the interval should not be a double click")
	}
}
