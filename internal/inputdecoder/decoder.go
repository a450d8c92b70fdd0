package inputdecoder

import (
	"time"
	"unicode/utf8"
)

// IncompleteEscapeTimeout bounds how long a partial escape sequence may
// wait for more bytes before being flushed as literal text (spec.md §5).
const IncompleteEscapeTimeout = time.Second

// Decoder turns a byte stream from the terminal client into a sequence of
// Events. It is stateful across Feed calls: an escape sequence split
// across two pipe reads is reassembled, and double-click detection and the
// DSR flush barrier persist between calls.
type Decoder struct {
	queue         []byte
	lastWriteTick time.Time

	dsrSent bool

	// ProcessedInputMode, when true, makes a bare 0x03 byte emit a
	// CTRL_C_EVENT instead of a literal Ctrl-C keypress (spec.md §4.6
	// step 1); the caller (internal/agentloop) sets this from
	// consoleapi.Console.ProcessedInputMode before each Feed.
	ProcessedInputMode bool

	// MouseInputEnabled gates whether decoded mouse reports are emitted at
	// all (spec.md §4.6 "Output events").
	MouseInputEnabled bool

	// WindowCols/WindowRows clamp decoded mouse coordinates into the
	// console window rectangle.
	WindowCols, WindowRows int

	dblButton    int
	dblX, dblY   int
	dblAt        time.Time
	dblReleased  bool
	dblHasState  bool
	mouseButtons int

	// DoubleClickInterval mirrors the host's GetDoubleClickTime(); tests
	// override it, production code leaves the zero value meaning
	// "use DefaultDoubleClickInterval".
	DoubleClickInterval time.Duration
}

// DefaultDoubleClickInterval is used when DoubleClickInterval is zero.
const DefaultDoubleClickInterval = 500 * time.Millisecond

func (d *Decoder) doubleClickInterval() time.Duration {
	if d.DoubleClickInterval > 0 {
		return d.DoubleClickInterval
	}
	return DefaultDoubleClickInterval
}

// Feed appends newly-arrived bytes and decodes as many complete
// fragments as possible. now is the current tick time (injected rather
// than time.Now() so tests are deterministic). It returns the decoded
// events and whether the caller should now write a DSR query to the data
// pipe (the flush barrier, spec.md §4.6 step 4).
func (d *Decoder) Feed(data []byte, now time.Time) (events []Event, sendDSR bool) {
	if len(data) > 0 {
		d.queue = append(d.queue, data...)
		d.lastWriteTick = now
	}

	for len(d.queue) > 0 {
		n, ev, ok := d.tryConsume(now)
		if !ok {
			// No complete match. If a partial escape might still complete
			// and we haven't timed out, wait for more bytes.
			if d.couldBePartialEscape() && now.Sub(d.lastWriteTick) < IncompleteEscapeTimeout {
				break
			}
			// Timed out or definitely not an escape: flush one byte
			// literally and keep going.
			n, ev, ok = d.consumeOneLiteralByte()
			if !ok {
				break
			}
		}
		d.queue = d.queue[n:]
		if ev != nil {
			events = append(events, *ev)
		}
	}

	if len(d.queue) > 0 && !d.dsrSent {
		d.dsrSent = true
		sendDSR = true
	}
	return events, sendDSR
}

// tryConsume attempts the ordered set of prefix matches from spec.md §4.6
// step 2. It returns the number of bytes consumed, the produced event (nil
// for control replies that produce no INPUT_RECORD), and whether a match
// was found at all.
func (d *Decoder) tryConsume(now time.Time) (int, *Event, bool) {
	q := d.queue

	if q[0] == 0x03 && d.ProcessedInputMode {
		return 1, &Event{Key: &KeyEvent{VK: 0x03, Char: 0x03, Down: true}}, true
	}

	if n, ok := d.tryDSRReply(q); ok {
		return n, nil, true
	}

	if n, ev, ok := d.tryMouse(q, now); ok {
		return n, ev, true
	}

	// While the queue is still a strict prefix of a longer dictionary
	// sequence (a lone ESC, "ESC [", "ESC O"), wait for more bytes until
	// the incomplete-escape timeout has passed.
	if now.Sub(d.lastWriteTick) < IncompleteEscapeTimeout {
		for _, e := range baseDict {
			if len(e.seq) > len(q) && e.seq[:len(q)] == string(q) {
				return 0, nil, false
			}
		}
	}

	if n, ev, ok := d.tryDictionary(q); ok {
		return n, ev, true
	}

	if n, ev, ok := d.tryAltPrefixed(q); ok {
		return n, ev, true
	}

	if n, ev, ok := d.tryUTF8(q); ok {
		return n, ev, true
	}

	return 0, nil, false
}

// tryDSRReply matches "ESC [ n ; m R" and clears dsrSent without emitting
// an event (spec.md §4.6 step 2).
func (d *Decoder) tryDSRReply(q []byte) (int, bool) {
	if len(q) < 2 || q[0] != 0x1b || q[1] != '[' {
		return 0, false
	}
	i := 2
	start := i
	for i < len(q) && isDigit(q[i]) {
		i++
	}
	if i == start || i >= len(q) || q[i] != ';' {
		return 0, false
	}
	i++
	start2 := i
	for i < len(q) && isDigit(q[i]) {
		i++
	}
	if i == start2 || i >= len(q) || q[i] != 'R' {
		return 0, false
	}
	d.dsrSent = false
	return i + 1, true
}

// tryDictionary matches the longest entry in baseDict, then falls back to
// the modifier-parameterized CSI forms ("\x1b[1;<mod><letter>" and
// "\x1b[<n>;<mod>~").
func (d *Decoder) tryDictionary(q []byte) (int, *Event, bool) {
	best := -1
	var bestEntry escapeEntry
	for _, e := range baseDict {
		if len(q) >= len(e.seq) && string(q[:len(e.seq)]) == e.seq {
			if len(e.seq) > best {
				best = len(e.seq)
				bestEntry = e
			}
		}
	}
	// The bare ESC entry stands for the Escape key only when nothing follows
	// it; otherwise the parameterized CSI and Alt-prefix rules get the bytes.
	if best == 1 && bestEntry.seq == "\x1b" && len(q) > 1 {
		best = -1
	}
	if best >= 0 {
		return best, keyEvents(bestEntry.vk, bestEntry.ch, Modifiers{}), true
	}

	if n, vk, mods, ok := tryParameterizedCSI(q); ok {
		return n, keyEvents(vk, 0, mods), true
	}

	return 0, nil, false
}

// tryParameterizedCSI matches "\x1b[1;<mod><letter>" and
// "\x1b[<n>;<mod>~" forms used by xterm for modified cursor/nav keys.
func tryParameterizedCSI(q []byte) (n int, vk uint16, mods Modifiers, ok bool) {
	if len(q) < 6 || q[0] != 0x1b || q[1] != '[' {
		return 0, 0, Modifiers{}, false
	}
	i := 2
	numStart := i
	for i < len(q) && isDigit(q[i]) {
		i++
	}
	if i == numStart {
		return 0, 0, Modifiers{}, false
	}
	firstNum := atoiBytes(q[numStart:i])
	if i >= len(q) || q[i] != ';' {
		return 0, 0, Modifiers{}, false
	}
	i++
	modStart := i
	for i < len(q) && isDigit(q[i]) {
		i++
	}
	if i == modStart || i >= len(q) {
		return 0, 0, Modifiers{}, false
	}
	modParam := atoiBytes(q[modStart:i])
	final := q[i]
	switch final {
	case '~':
		if vk, found := tildeFinals[firstNum]; found {
			return i + 1, vk, modifiersFromParam(modParam), true
		}
	default:
		if firstNum == 1 {
			if vk, found := letterFinals[final]; found {
				return i + 1, vk, modifiersFromParam(modParam), true
			}
		}
	}
	return 0, 0, Modifiers{}, false
}

// tryAltPrefixed matches "ESC <ch>" where <ch> is not ESC: an Alt-prefixed
// character (spec.md §4.6 step 2).
func (d *Decoder) tryAltPrefixed(q []byte) (int, *Event, bool) {
	if len(q) < 2 || q[0] != 0x1b || q[1] == 0x1b {
		return 0, nil, false
	}
	r, size := utf8.DecodeRune(q[1:])
	if r == utf8.RuneError && size <= 1 {
		return 0, nil, false
	}
	vk, _ := vkKeyScan(r)
	mods := Modifiers{Alt: true}
	return 1 + size, keyEvents(vk, r, mods), true
}

// tryUTF8 matches a single UTF-8 code point and translates it through a
// VkKeyScan-equivalent table (spec.md §4.6 step 2, final case).
func (d *Decoder) tryUTF8(q []byte) (int, *Event, bool) {
	r, size := utf8.DecodeRune(q)
	if r == utf8.RuneError && size <= 1 {
		if len(q) == 0 {
			return 0, nil, false
		}
		// Invalid byte in isolation: still consume it as a literal so the
		// decoder can't wedge on unrecognized input.
		return 1, keyEvents(0, rune(q[0]), Modifiers{}), true
	}
	vk, mods := vkKeyScan(r)
	return size, keyEvents(vk, r, mods), true
}

func (d *Decoder) consumeOneLiteralByte() (int, *Event, bool) {
	if len(d.queue) == 0 {
		return 0, nil, false
	}
	r, size := utf8.DecodeRune(d.queue)
	if r == utf8.RuneError && size <= 1 {
		return 1, keyEvents(0, rune(d.queue[0]), Modifiers{}), true
	}
	vk, mods := vkKeyScan(r)
	return size, keyEvents(vk, r, mods), true
}

// maxPendingEscapeBytes bounds how long an unmatched ESC-prefixed run can
// grow while waiting for more bytes before it's treated as garbage rather
// than a not-yet-complete sequence. The longest real sequence this
// decoder recognizes is an SGR mouse report, comfortably under this.
const maxPendingEscapeBytes = 16

// couldBePartialEscape reports whether the queued bytes might still grow
// into a recognizable escape or mouse-report sequence, as opposed to
// definitely-garbage bytes that should be flushed immediately. Mouse
// reports can contain arbitrary raw bytes (legacy X10) or run longer than
// the key-escape grammar (SGR/URxvt), so this only bounds length rather
// than validating structure; tryConsume has already rejected every known
// complete form by the time this is consulted.
func (d *Decoder) couldBePartialEscape() bool {
	if len(d.queue) == 0 || d.queue[0] != 0x1b {
		return false
	}
	return len(d.queue) <= maxPendingEscapeBytes
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func atoiBytes(b []byte) int {
	n := 0
	for _, c := range b {
		n = n*10 + int(c-'0')
	}
	return n
}

// keyEvents returns a single Event. Full key-down/up + modifier expansion
// (spec.md §4.6 "Key-press expansion") is performed by ExpandKeyPress,
// called by internal/agentloop just before writing to the console, so this
// package's direct callers get one logical keystroke per Event.
func keyEvents(vk uint16, ch rune, mods Modifiers) *Event {
	return &Event{Key: &KeyEvent{VK: vk, Char: ch, Mods: mods, Down: true}}
}

// vkKeyScan is a minimal VkKeyScan-equivalent: maps a rune to a virtual-key
// code and the modifiers needed to type it on a US keyboard layout. Control
// characters 0x01-0x1A other than Tab and CR map to Ctrl+letter; ASCII
// letters and digits map to their own VK code (Shift for uppercase), space
// maps to VKSpace, and any other rune gets VK 0 with no modifiers.
func vkKeyScan(r rune) (uint16, Modifiers) {
	switch {
	case r >= 0x01 && r <= 0x1A && r != '\r' && r != '\t':
		return uint16('A' + r - 1), Modifiers{Ctrl: true}
	case r >= 'a' && r <= 'z':
		return uint16(r - 'a' + 'A'), Modifiers{}
	case r >= 'A' && r <= 'Z':
		return uint16(r), Modifiers{Shift: true}
	case r >= '0' && r <= '9':
		return uint16(r), Modifiers{}
	case r == ' ':
		return VKSpace, Modifiers{}
	default:
		return 0, Modifiers{}
	}
}

// ExpandKeyPress produces the down/up event sequence for a single decoded
// key, including synthesized modifier down/up events, matching spec.md
// §4.6's order: Ctrl, Alt, Shift down; the key down; the key up; then
// modifier ups in reverse order. When both Ctrl and Alt are held, the
// unicode char on the key-down event is zeroed (matches host behavior);
// the key-up event's char is always zeroed.
func ExpandKeyPress(k KeyEvent) []KeyEvent {
	var seq []KeyEvent
	if k.Mods.Ctrl {
		seq = append(seq, KeyEvent{VK: 0x11, Down: true}) // VK_CONTROL
	}
	if k.Mods.Alt {
		seq = append(seq, KeyEvent{VK: 0x12, Down: true}) // VK_MENU
	}
	if k.Mods.Shift {
		seq = append(seq, KeyEvent{VK: 0x10, Down: true}) // VK_SHIFT
	}

	downChar := k.Char
	if k.Mods.Ctrl && k.Mods.Alt {
		downChar = 0
	}
	seq = append(seq, KeyEvent{VK: k.VK, Char: downChar, Mods: k.Mods, Down: true})
	seq = append(seq, KeyEvent{VK: k.VK, Char: 0, Mods: k.Mods, Down: false})

	if k.Mods.Shift {
		seq = append(seq, KeyEvent{VK: 0x10, Down: false})
	}
	if k.Mods.Alt {
		seq = append(seq, KeyEvent{VK: 0x12, Down: false})
	}
	if k.Mods.Ctrl {
		seq = append(seq, KeyEvent{VK: 0x11, Down: false})
	}
	return seq
}
