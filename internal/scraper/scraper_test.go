//go:build windows

package scraper

import (
	"bytes"
	"testing"

	"golang.org/x/sys/windows"
)

func newTestScraper(fc *fakeConsole, ptyCols, ptyRows int16) (*Scraper, *bytes.Buffer) {
	var out bytes.Buffer
	return New(fc, &out, ptyCols, ptyRows), &out
}

func TestTickScrolling_InitialRedraw(t *testing.T) {
	fc := newFakeConsole(5, 2)
	fc.setRow(0, "AB", 0)
	fc.setRow(1, "C", 0)

	s, out := newTestScraper(fc, 5, 2)
	s.SetConsoleMode(true) // strip escapes so only cell text is asserted

	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got, want := out.String(), "ABC"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if fc.marks != 1 || fc.escapes != 1 {
		t.Fatalf("expected one freeze/unfreeze cycle, got marks=%d escapes=%d", fc.marks, fc.escapes)
	}
}

func TestTickScrolling_UnchangedProducesNoOutput(t *testing.T) {
	fc := newFakeConsole(5, 2)
	fc.setRow(0, "AB", 0)
	fc.setRow(1, "C", 0)

	s, out := newTestScraper(fc, 5, 2)
	s.SetConsoleMode(true)

	if err := s.Tick(); err != nil {
		t.Fatalf("Tick 1: %v", err)
	}
	before := out.Len()
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick 2: %v", err)
	}
	if out.Len() != before {
		t.Fatalf("expected no new output on unchanged tick, buffer grew from %d to %d bytes", before, out.Len())
	}
}

func TestTickScrolling_ChangedLineSendsOnlyThatLine(t *testing.T) {
	fc := newFakeConsole(5, 2)
	fc.setRow(0, "AB", 0)
	fc.setRow(1, "C", 0)

	s, out := newTestScraper(fc, 5, 2)
	s.SetConsoleMode(true)

	if err := s.Tick(); err != nil {
		t.Fatalf("Tick 1: %v", err)
	}
	out.Reset()

	fc.setRow(1, "D", 0)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick 2: %v", err)
	}
	if got, want := out.String(), "D"; got != want {
		t.Fatalf("output = %q, want %q (only the changed row)", got, want)
	}
}

func TestTickScrolling_WindowMovedUpResetsAndClears(t *testing.T) {
	fc := newFakeConsole(5, 10)
	fc.window = windows.SmallRect{Left: 0, Right: 4, Top: 5, Bottom: 9}
	fc.setRow(5, "ROW5", 0)

	s, out := newTestScraper(fc, 5, 10)
	// Leave escapes enabled: the CLS reset sequence is what this test
	// verifies.

	if err := s.Tick(); err != nil {
		t.Fatalf("Tick 1: %v", err)
	}
	if s.dirtyWindowTop != 5 {
		t.Fatalf("dirtyWindowTop = %d, want 5", s.dirtyWindowTop)
	}
	out.Reset()

	// Window moved up (e.g. a CLS): new top is below the tracked top.
	fc.window = windows.SmallRect{Left: 0, Right: 4, Top: 2, Bottom: 6}
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick 2: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("\x1b[0m\x1b[1;1H\x1b[2J")) {
		t.Fatalf("expected a full clear sequence after window moved up, got %q", out.String())
	}
}

func TestChooseMode(t *testing.T) {
	fc := newFakeConsole(5, 2)
	s, _ := newTestScraper(fc, 5, 2)

	if got := s.chooseMode(windows.Coord{X: 5, Y: 2}); got != ModeScrolling {
		t.Fatalf("buffer height == ptyRows: got mode %v, want ModeScrolling", got)
	}
	if got := s.chooseMode(windows.Coord{X: 5, Y: 40}); got != ModeDirect {
		t.Fatalf("buffer height != ptyRows: got mode %v, want ModeDirect", got)
	}
}

func TestTickDirect_ClampsCursorToPtyBounds(t *testing.T) {
	fc := newFakeConsole(5, 5) // buffer taller than ptyRows: picks direct mode
	fc.window = windows.SmallRect{Left: 0, Right: 4, Top: 1, Bottom: 2}
	fc.cursor = windows.Coord{X: 10, Y: 1} // past the right edge of a 5-wide pty
	fc.setRow(1, "X", 0)
	fc.setRow(2, "Y", 0)

	s, out := newTestScraper(fc, 5, 2)

	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if s.mode != ModeDirect {
		t.Fatalf("expected ModeDirect, got %v", s.mode)
	}
	if s.directOrigin != 1 {
		t.Fatalf("directOrigin = %d, want 1 (window.Top)", s.directOrigin)
	}
	// Cursor column 10 must be clamped to ptyCols-1 (4), surfaced as CUP
	// column 5 (1-based) in the finishOutput escape.
	if !bytes.Contains(out.Bytes(), []byte("\x1b[5G")) {
		t.Fatalf("expected clamped cursor column escape \\x1b[5G, got %q", out.String())
	}
}

func TestDetectFreezePrimitive_MarkLeavesCursorAlone(t *testing.T) {
	fc := newFakeConsole(5, 5)
	s, _ := newTestScraper(fc, 5, 5)

	if err := s.DetectFreezePrimitive(); err != nil {
		t.Fatalf("DetectFreezePrimitive: %v", err)
	}
	if s.useSelectAll {
		t.Fatalf("expected useSelectAll=false when MARK leaves the cursor in place")
	}
	if fc.marks != 1 || fc.escapes != 1 {
		t.Fatalf("expected one MARK probe and one escape release, got marks=%d escapes=%d", fc.marks, fc.escapes)
	}
}

func TestWriteAndFindSyncMarker(t *testing.T) {
	fc := newFakeConsole(syncMarkerWidth+4, 30)
	s, _ := newTestScraper(fc, syncMarkerWidth+4, 30)

	info, err := fc.BufferInfo()
	if err != nil {
		t.Fatalf("BufferInfo: %v", err)
	}
	if err := s.writeSyncMarker(5, info); err != nil {
		t.Fatalf("writeSyncMarker: %v", err)
	}
	if s.syncRow != 5 {
		t.Fatalf("syncRow = %d, want 5", s.syncRow)
	}

	found, err := s.findSyncMarker(20)
	if err != nil {
		t.Fatalf("findSyncMarker: %v", err)
	}
	if found != 5 {
		t.Fatalf("findSyncMarker = %d, want 5", found)
	}
}

func TestFindSyncMarker_AbsentReturnsNegativeOne(t *testing.T) {
	fc := newFakeConsole(syncMarkerWidth+4, 30)
	s, _ := newTestScraper(fc, syncMarkerWidth+4, 30)

	found, err := s.findSyncMarker(20)
	if err != nil {
		t.Fatalf("findSyncMarker: %v", err)
	}
	if found != -1 {
		t.Fatalf("findSyncMarker = %d, want -1 (no marker written)", found)
	}
}
