package inputdecoder

import "fmt"

// escapeEntry is one entry in the escape-sequence dictionary: a literal
// byte sequence mapped to the key it represents. Modifier-carrying variants
// (e.g. "\x1b[1;5C" for Ctrl-Right) are not listed individually: the
// decoder's tryParameterizedCSI parses the modifier parameter and looks up
// the base key in tildeFinals/letterFinals below.
type escapeEntry struct {
	seq string
	vk  uint16
	ch  rune
}

// baseDict holds unmodified sequences (no ";<n>" modifier parameter) for
// keys that have a distinct CSI/SS3 form. Longest-match lookup in
// (*Decoder).tryDictionary tries these before falling back to the
// modifier-parameterized CSI forms in tryParameterizedCSI.
var baseDict = []escapeEntry{
	{"\x1bOP", VKF1, 0},
	{"\x1b[A", VKUp, 0},
	{"\x1b[B", VKDown, 0},
	{"\x1b[C", VKRight, 0},
	{"\x1b[D", VKLeft, 0},
	{"\x1b[H", VKHome, 0},
	{"\x1b[F", VKEnd, 0},
	{"\x1bOA", VKUp, 0},
	{"\x1bOB", VKDown, 0},
	{"\x1bOC", VKRight, 0},
	{"\x1bOD", VKLeft, 0},
	{"\x1bOH", VKHome, 0},
	{"\x1bOF", VKEnd, 0},
	{"\x1b[1~", VKHome, 0},
	{"\x1b[2~", VKInsert, 0},
	{"\x1b[3~", VKDelete, 0},
	{"\x1b[4~", VKEnd, 0},
	{"\x1b[5~", VKPrior, 0},
	{"\x1b[6~", VKNext, 0},
	{"\x7f", VKBack, 0},
	{"\x1b\x7f", VKBack, 0}, // Alt+Backspace: matched here ahead of the Alt-prefix rule, emitted as VKBack with no modifiers
	{"\r", VKReturn, '\r'},
	{"\n", VKReturn, '\n'},
	{"\t", VKTab, '\t'},
	{"\x1b", VKEscape, 0x1b},
}

// tildeFinals are the CSI "n~" sequences whose base key is looked up by
// numeric parameter instead of by the whole literal (so "\x1b[3;5~" for
// Ctrl-Delete is recognized without a dictionary entry per modifier combo).
var tildeFinals = map[int]uint16{
	1: VKHome, 2: VKInsert, 3: VKDelete, 4: VKEnd, 5: VKPrior, 6: VKNext,
}

// letterFinals are the CSI "...<letter>" cursor-key finals for the
// modifier-parameterized form "\x1b[1;<mod><letter>".
var letterFinals = map[byte]uint16{
	'A': VKUp, 'B': VKDown, 'C': VKRight, 'D': VKLeft, 'H': VKHome, 'F': VKEnd,
}

// DumpMap renders the escape dictionary one entry per line, for the
// WINAGENT_DEBUG=dump_input_map diagnostic (spec.md §6).
func DumpMap() []string {
	lines := make([]string, 0, len(baseDict))
	for _, e := range baseDict {
		lines = append(lines, fmt.Sprintf("%q -> vk=0x%02X ch=%q", e.seq, e.vk, e.ch))
	}
	return lines
}
