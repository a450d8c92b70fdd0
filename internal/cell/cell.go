// Package cell defines the console data model shared by every layer of the
// agent: Cell, and the attribute bits used to decode console color and
// double-width markers. Cell mirrors CHAR_INFO from the host console API
// (see internal/consoleapi), kept here so linebuffer and termencoder don't
// need to import consoleapi just for the shape. Buffer/window coordinates
// (COORD, SMALL_RECT) are used directly as golang.org/x/sys/windows types
// instead, since every caller that needs them already imports that package.
package cell

// Attribute bit layout, matching the host console's CHAR_INFO.Attributes
// word: 4 foreground bits, 4 background bits, plus leading/trailing
// double-width markers (COMMON_LVB_LEADING_BYTE / COMMON_LVB_TRAILING_BYTE).
const (
	FlagForegroundBlue      = 0x0001
	FlagForegroundGreen     = 0x0002
	FlagForegroundRed       = 0x0004
	FlagForegroundIntensity = 0x0008
	FlagBackgroundBlue      = 0x0010
	FlagBackgroundGreen     = 0x0020
	FlagBackgroundRed       = 0x0040
	FlagBackgroundIntensity = 0x0080

	FlagLeadingByte  = 0x0100
	FlagTrailingByte = 0x0200

	ColorAttributeMask = FlagForegroundRed | FlagForegroundGreen | FlagForegroundBlue | FlagForegroundIntensity |
		FlagBackgroundRed | FlagBackgroundGreen | FlagBackgroundBlue | FlagBackgroundIntensity
)

// Cell is one console cell: a UTF-16 code unit plus its attribute word.
type Cell struct {
	Char uint16
	Attr uint16
}

// Color returns just the color bits of the attribute (masking off the
// double-width markers).
func (c Cell) Color() uint16 {
	return c.Attr & ColorAttributeMask
}

// IsLeadingByte reports whether this cell is the left half of a
// double-width (East Asian) character.
func (c Cell) IsLeadingByte() bool {
	return c.Attr&FlagLeadingByte != 0
}

// IsTrailingByte reports whether this cell is the right half of a
// double-width character.
func (c Cell) IsTrailingByte() bool {
	return c.Attr&FlagTrailingByte != 0
}

