// Package linebuffer implements the agent's ring of logical "emitted
// lines" (spec.md §4.3). It is pure, platform-independent bookkeeping: a
// fixed-size ring keyed by a monotonically increasing virtual line number,
// with per-line change detection so internal/scraper only ever sends a
// line to internal/termencoder when its content actually changed.
package linebuffer

import "winagent/internal/cell"

// DefaultCapacity is the default ring size (spec.md §3: "typical N = 3000").
const DefaultCapacity = 3000

// Line is one ring slot: a fixed-capacity row of cells plus the virtual
// line number it currently holds. A slot's content is the source of truth
// for diffing until a newer virtual line overwrites it on ring wrap
// (spec.md §4.3 invariant).
type Line struct {
	Virtual int64
	Cells   []cell.Cell
	valid   bool
}

// Buffer is a ring of N Line entries, N >= the console's max buffered
// lines.
type Buffer struct {
	lines []Line
}

// New creates a ring buffer with the given capacity (0 uses DefaultCapacity).
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{lines: make([]Line, capacity)}
}

func (b *Buffer) slot(v int64) int {
	n := int64(len(b.lines))
	m := v % n
	if m < 0 {
		m += n
	}
	return int(m)
}

// Line returns the ring slot for virtual line v. The returned pointer is
// only meaningful if the slot currently holds v (check Line.Virtual == v
// and Line.valid via HasLine).
func (b *Buffer) Line(v int64) *Line {
	return &b.lines[b.slot(v)]
}

// HasLine reports whether the ring slot for v currently holds v's content
// (as opposed to a stale, not-yet-overwritten older or newer line).
func (b *Buffer) HasLine(v int64) bool {
	l := &b.lines[b.slot(v)]
	return l.valid && l.Virtual == v
}

// Blank clears virtual line v to width spaces of the given attribute and
// marks the slot valid for v.
func (b *Buffer) Blank(v int64, width int, attr uint16) {
	l := &b.lines[b.slot(v)]
	l.Virtual = v
	l.valid = true
	l.Cells = growCells(l.Cells, width)
	for i := range l.Cells {
		l.Cells[i] = cell.Cell{Char: ' ', Attr: attr}
	}
}

// DetectChangeAndSetLine copies cells (width wide) into the ring slot for
// virtual line v, returning true if the slot's previous content (for this
// same virtual line) differed from the new content, or if the slot didn't
// already hold v (a never-before-seen or evicted line is always "changed").
func (b *Buffer) DetectChangeAndSetLine(v int64, cells []cell.Cell, width int) bool {
	l := &b.lines[b.slot(v)]
	changed := !l.valid || l.Virtual != v || !equalCells(l.Cells, cells, width)
	l.Virtual = v
	l.valid = true
	l.Cells = growCells(l.Cells, width)
	copy(l.Cells, cells[:width])
	return changed
}

// Capacity returns the ring size.
func (b *Buffer) Capacity() int { return len(b.lines) }

func growCells(dst []cell.Cell, width int) []cell.Cell {
	if cap(dst) < width {
		return make([]cell.Cell, width)
	}
	return dst[:width]
}

func equalCells(a, b []cell.Cell, width int) bool {
	if len(a) < width || len(b) < width {
		return false
	}
	for i := 0; i < width; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
