package termencoder

import "winagent/internal/cell"

// Color bit flags in the 4-bit fore/back nibble space, named to match the
// console's RED/GREEN/BLUE/INTENSITY bits (spec.md §4.4 color table).
const (
	flagRed    = 1
	flagGreen  = 2
	flagBlue   = 4
	flagBright = 8

	colorBlack  = 0
	colorDkGray = colorBlack | flagBright
	colorLtGray = flagRed | flagGreen | flagBlue
	colorWhite  = colorLtGray | flagBright
)

// SGR base parameters.
const (
	sgrFore   = 30
	sgrForeHi = 90
	sgrBack   = 40
	sgrBackHi = 100
)

// splitColor decodes a console color attribute word into 4-bit fore/back
// nibbles, exactly as winpty's Terminal.cc outputSetColor does.
func splitColor(attr uint16) (fore, back int) {
	if attr&cell.FlagForegroundRed != 0 {
		fore |= flagRed
	}
	if attr&cell.FlagForegroundGreen != 0 {
		fore |= flagGreen
	}
	if attr&cell.FlagForegroundBlue != 0 {
		fore |= flagBlue
	}
	if attr&cell.FlagForegroundIntensity != 0 {
		fore |= flagBright
	}
	if attr&cell.FlagBackgroundRed != 0 {
		back |= flagRed
	}
	if attr&cell.FlagBackgroundGreen != 0 {
		back |= flagGreen
	}
	if attr&cell.FlagBackgroundBlue != 0 {
		back |= flagBlue
	}
	if attr&cell.FlagBackgroundIntensity != 0 {
		back |= flagBright
	}
	return fore, back
}

// appendColorSgrParams appends ";<base+color>" and, for bright colors, a
// defensive fallback pair "<3X>;<9X>" so terminals lacking the 9X/10X
// range still show something (spec.md §4.4 "defensive pair").
func appendColorSgrParams(buf []byte, isFore bool, color int) []byte {
	base := sgrBack
	baseHi := sgrBackHi
	if isFore {
		base = sgrFore
		baseHi = sgrForeHi
	}
	buf = append(buf, ';')
	if color&flagBright != 0 {
		plain := color &^ flagBright
		buf = appendUint(buf, base+plain)
		buf = append(buf, ';')
		buf = appendUint(buf, baseHi+plain)
	} else {
		buf = appendUint(buf, base+color)
	}
	return buf
}

func appendUint(buf []byte, n int) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	var tmp [8]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
	}
	return append(buf, tmp[i:]...)
}

// appendSetColor appends the SGR escape sequence that reproduces attr on a
// terminal whose default scheme is unknown, using the heuristic table in
// spec.md §4.4 (taken verbatim from Terminal.cc's outputSetColor).
func appendSetColor(buf []byte, attr uint16) []byte {
	fore, back := splitColor(attr)

	buf = append(buf, "\x1b[0"...)
	switch {
	case back == colorBlack:
		switch fore {
		case colorLtGray:
			// Default foreground: use the terminal's own default colors.
		case colorWhite:
			buf = append(buf, ";1"...)
		case colorDkGray:
			buf = append(buf, ";37;90"...)
		default:
			buf = appendColorSgrParams(buf, true, fore)
		}
	case back == colorWhite:
		buf = append(buf, ";7"...)
		if fore != colorLtGray && fore != colorBlack {
			buf = appendColorSgrParams(buf, false, fore)
		}
	default:
		buf = appendColorSgrParams(buf, true, fore)
		buf = appendColorSgrParams(buf, false, back)
	}
	if fore == back {
		buf = append(buf, ";8"...)
	}
	buf = append(buf, 'm')
	return buf
}
