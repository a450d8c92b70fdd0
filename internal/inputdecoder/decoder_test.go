package inputdecoder

import (
	"testing"
	"time"
)

func TestFeed_PlainASCII(t *testing.T) {
	var d Decoder
	now := time.Now()
	events, dsr := d.Feed([]byte("a"), now)
	if dsr {
		t.Fatalf("unexpected DSR request for single immediately-complete byte")
	}
	if len(events) != 1 || events[0].Key == nil {
		t.Fatalf("expected one key event, got %+v", events)
	}
	if events[0].Key.Char != 'a' || events[0].Key.VK != 'A' {
		t.Fatalf("got %+v, want char 'a' vk 'A'", events[0].Key)
	}
}

func TestFeed_ArrowKey(t *testing.T) {
	var d Decoder
	now := time.Now()
	events, _ := d.Feed([]byte("\x1b[A"), now)
	if len(events) != 1 || events[0].Key == nil {
		t.Fatalf("expected one key event, got %+v", events)
	}
	if events[0].Key.VK != VKUp {
		t.Fatalf("got VK %x, want VKUp", events[0].Key.VK)
	}
}

func TestFeed_SplitArrowKeyAcrossTwoFeeds(t *testing.T) {
	var d Decoder
	now := time.Now()
	events, dsr := d.Feed([]byte("\x1b["), now)
	if len(events) != 0 {
		t.Fatalf("expected no events yet for a partial escape, got %+v", events)
	}
	if !dsr {
		t.Fatalf("expected a DSR barrier request while bytes are queued incomplete")
	}

	events, _ = d.Feed([]byte("A"), now.Add(10*time.Millisecond))
	if len(events) != 1 || events[0].Key == nil || events[0].Key.VK != VKUp {
		t.Fatalf("expected the completed arrow key after the second Feed, got %+v", events)
	}
}

func TestFeed_IncompleteEscapeTimesOutAsLiteral(t *testing.T) {
	var d Decoder
	now := time.Now()
	d.Feed([]byte("\x1b"), now)

	events, _ := d.Feed(nil, now.Add(2*time.Second))
	if len(events) != 1 || events[0].Key == nil {
		t.Fatalf("expected the lone ESC flushed as a literal key, got %+v", events)
	}
	if events[0].Key.VK != VKEscape {
		t.Fatalf("got %+v, want VKEscape", events[0].Key)
	}
}

func TestFeed_CtrlCInProcessedInputMode(t *testing.T) {
	var d Decoder
	d.ProcessedInputMode = true
	now := time.Now()
	events, _ := d.Feed([]byte{0x03}, now)
	if len(events) != 1 || events[0].Key == nil || events[0].Key.VK != 0x03 {
		t.Fatalf("expected a raw ctrl-c event, got %+v", events)
	}
}

func TestFeed_DSRReplyClearsBarrierWithoutEvent(t *testing.T) {
	var d Decoder
	now := time.Now()
	d.Feed([]byte("\x1b["), now)
	if !d.dsrSent {
		t.Fatalf("expected dsrSent to be set after queuing an incomplete escape")
	}
	events, dsr := d.Feed([]byte("3;1R"), now)
	if len(events) != 0 {
		t.Fatalf("DSR reply should not produce an Event, got %+v", events)
	}
	if dsr {
		t.Fatalf("should not re-request DSR immediately after consuming its reply with an empty queue")
	}
	if d.dsrSent {
		t.Fatalf("dsrSent should be cleared once the reply is consumed")
	}
}

func TestFeed_ParameterizedCtrlRight(t *testing.T) {
	var d Decoder
	now := time.Now()
	events, _ := d.Feed([]byte("\x1b[1;5C"), now)
	if len(events) != 1 || events[0].Key == nil {
		t.Fatalf("expected one key event, got %+v", events)
	}
	if events[0].Key.VK != VKRight {
		t.Fatalf("got VK %x, want VKRight", events[0].Key.VK)
	}
	if !events[0].Key.Mods.Ctrl {
		t.Fatalf("expected Ctrl modifier from param 5, got %+v", events[0].Key.Mods)
	}
}

func TestFeed_ParameterizedTildeCtrlDelete(t *testing.T) {
	var d Decoder
	now := time.Now()
	events, _ := d.Feed([]byte("\x1b[3;5~"), now)
	if len(events) != 1 || events[0].Key == nil || events[0].Key.VK != VKDelete {
		t.Fatalf("expected VKDelete, got %+v", events)
	}
	if !events[0].Key.Mods.Ctrl {
		t.Fatalf("expected Ctrl modifier, got %+v", events[0].Key.Mods)
	}
}

func TestFeed_AltPrefixedChar(t *testing.T) {
	var d Decoder
	now := time.Now()
	events, _ := d.Feed([]byte("\x1bx"), now)
	if len(events) != 1 || events[0].Key == nil {
		t.Fatalf("expected one key event, got %+v", events)
	}
	if !events[0].Key.Mods.Alt || events[0].Key.Char != 'x' {
		t.Fatalf("got %+v, want Alt+'x'", events[0].Key)
	}
}

func TestFeed_UTF8MultibyteCodepoint(t *testing.T) {
	var d Decoder
	now := time.Now()
	events, _ := d.Feed([]byte("é"), now)
	if len(events) != 1 || events[0].Key == nil {
		t.Fatalf("expected one key event, got %+v", events)
	}
	if events[0].Key.Char != 'é' {
		t.Fatalf("got char %q, want 'é'", events[0].Key.Char)
	}
}

func TestModifiersFromParam(t *testing.T) {
	tests := []struct {
		param int
		want  Modifiers
	}{
		{0, Modifiers{}},
		{1, Modifiers{}},
		{2, Modifiers{Shift: true}},
		{3, Modifiers{Alt: true}},
		{5, Modifiers{Ctrl: true}},
		{8, Modifiers{Shift: true, Alt: true, Ctrl: true}},
	}
	for _, tt := range tests {
		got := modifiersFromParam(tt.param)
		if got != tt.want {
			t.Fatalf("modifiersFromParam(%d) = %+v, want %+v", tt.param, got, tt.want)
		}
	}
}

func TestExpandKeyPress_PlainKeyHasDownThenUp(t *testing.T) {
	seq := ExpandKeyPress(KeyEvent{VK: 'A', Char: 'a', Down: true})
	if len(seq) != 2 {
		t.Fatalf("expected 2 events (down, up), got %d: %+v", len(seq), seq)
	}
	if !seq[0].Down || seq[1].Down {
		t.Fatalf("expected down then up, got %+v", seq)
	}
}

func TestExpandKeyPress_CtrlWrapsKeyWithModifierEvents(t *testing.T) {
	seq := ExpandKeyPress(KeyEvent{VK: 'C', Char: 'c', Mods: Modifiers{Ctrl: true}, Down: true})
	// VK_CONTROL down, 'C' down, 'C' up, VK_CONTROL up
	if len(seq) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(seq), seq)
	}
	if seq[0].VK != 0x11 || !seq[0].Down {
		t.Fatalf("expected VK_CONTROL down first, got %+v", seq[0])
	}
	if seq[3].VK != 0x11 || seq[3].Down {
		t.Fatalf("expected VK_CONTROL up last, got %+v", seq[3])
	}
}

func TestExpandKeyPress_CtrlAltZeroesDownChar(t *testing.T) {
	seq := ExpandKeyPress(KeyEvent{VK: 'A', Char: 'a', Mods: Modifiers{Ctrl: true, Alt: true}, Down: true})
	var keyDown *KeyEvent
	for i := range seq {
		if seq[i].VK == 'A' && seq[i].Down {
			keyDown = &seq[i]
		}
	}
	if keyDown == nil {
		t.Fatalf("expected to find the key-down event in %+v", seq)
	}
	if keyDown.Char != 0 {
		t.Fatalf("expected char zeroed when Ctrl+Alt held, got %q", keyDown.Char)
	}
}
