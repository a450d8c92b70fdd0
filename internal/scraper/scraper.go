//go:build windows

// Package scraper implements the console-scraping agent's core loop
// (spec.md §4.5): it owns the freeze/unfreeze cycle, detects scrolls via a
// sync marker, maintains a dirty-region model, and drives the terminal
// encoder from what it reads off the console screen buffer.
package scraper

import (
	"fmt"
	"io"

	"golang.org/x/sys/windows"

	"winagent/internal/consoleapi"
	"winagent/internal/linebuffer"
	"winagent/internal/termencoder"
	"winagent/internal/tracelog"
)

// Mode is the scraper's top-level state (spec.md §3 ScraperState.mode).
type Mode int

const (
	ModeScrolling Mode = iota
	ModeDirect
)

// syncMarkerBand is how many rows below the marker row are cleared along
// with it and searched past the window top (the marker itself is written on
// a single row), and defaultSyncMarkerAdvanceThreshold is the default distance the window
// must advance past it before it's relocated (spec.md §4.5.4, §4.5.1 step
// 11). internal/agentconfig can override the threshold via
// SetSyncMarkerAdvanceThreshold.
const syncMarkerBand = 16
const defaultSyncMarkerAdvanceThreshold = 200

// Scraper owns one console's screen-buffer reconstruction.
type Scraper struct {
	console consoleIO
	lines   *linebuffer.Buffer
	enc     *termencoder.Encoder

	ptyCols, ptyRows int16

	mode Mode
	// initialized becomes true once SetMode has run at least once; Tick
	// uses it to force the first-ever reset (spec.md §4.5 "Mode...any
	// change resets all scraper state").
	initialized bool

	useSelectAll bool // decided once at startup by DetectFreezePrimitive

	syncRow     int16
	syncCounter uint32

	scrapedLineCount int64
	scrolledCount    int64
	maxBufferedLine  int64
	dirtyWindowTop   int16
	dirtyLineCount   int16

	syncAdvanceThreshold int16

	lastTitle string

	// directOrigin is the console row direct mode is currently scraping
	// from, i.e. the window's top row at the time direct mode was entered
	// or last resynced.
	directOrigin int16
}

// New constructs a Scraper bound to console, writing encoded output to
// out, sized to the frontend's requested pty dimensions. console is
// typically a *consoleapi.Console; tests substitute a fake implementing
// the narrower consoleIO interface.
func New(console consoleIO, out io.Writer, ptyCols, ptyRows int16) *Scraper {
	return &Scraper{
		console:              console,
		lines:                linebuffer.New(linebuffer.DefaultCapacity),
		enc:                  termencoder.New(out),
		ptyCols:              ptyCols,
		ptyRows:              ptyRows,
		syncAdvanceThreshold: defaultSyncMarkerAdvanceThreshold,
	}
}

// SetConsoleMode forwards to the encoder (spec.md §4.4 bypass mode).
func (s *Scraper) SetConsoleMode(enabled bool) { s.enc.SetConsoleMode(enabled) }

// SetSyncMarkerAdvanceThreshold overrides the default distance (in rows)
// the window must advance past the sync marker before it's relocated,
// read from internal/agentconfig's tuning file.
func (s *Scraper) SetSyncMarkerAdvanceThreshold(rows int16) {
	if rows > 0 {
		s.syncAdvanceThreshold = rows
	}
}

// DetectFreezePrimitive runs the MARK-vs-SELECT_ALL probe once at agent
// startup (spec.md §4.5 "Freeze primitive"), grounded on winpty's
// Agent::detectWhetherMarkMovesCursor: resize to 2x2, move the cursor to
// (1,1), send MARK, and check whether the cursor moved. A destructive MARK
// means this host build requires SELECT_ALL instead.
func (s *Scraper) DetectFreezePrimitive() error {
	if err := s.console.ResizeBuffer(windows.Coord{X: 2, Y: 2}); err != nil {
		return fmt.Errorf("probe resize: %w", err)
	}
	probePos := windows.Coord{X: 1, Y: 1}
	if err := s.console.SetCursorPosition(probePos); err != nil {
		return fmt.Errorf("probe set cursor: %w", err)
	}
	s.console.SendMark()
	after, err := s.console.CursorPosition()
	if err != nil {
		return fmt.Errorf("probe read cursor: %w", err)
	}
	// Release whatever selection state MARK may have entered before
	// continuing, regardless of outcome.
	s.console.SendEscape()

	if after != probePos {
		tracelog.Trace("freeze primitive: MARK moved the cursor, using SELECT_ALL")
		s.useSelectAll = true
	} else {
		tracelog.Trace("freeze primitive: MARK left the cursor alone, using MARK")
		s.useSelectAll = false
	}
	return nil
}

func (s *Scraper) freeze() {
	if s.useSelectAll {
		s.console.SendSelectAll()
	} else {
		s.console.SendMark()
	}
}

func (s *Scraper) unfreeze() {
	s.console.SendEscape()
}

// resetState fully resets scraper tracking and tells the encoder to clear
// the remote terminal (spec.md §3 "Mode transitions always fully reset...",
// §4.5.5 "Sync marker loss").
func (s *Scraper) resetState(newLine int64) error {
	s.scrapedLineCount = newLine
	s.scrolledCount = 0
	s.maxBufferedLine = newLine - 1
	s.dirtyWindowTop = 0
	s.dirtyLineCount = 0
	s.syncRow = -1
	s.syncCounter = 0
	s.directOrigin = 0
	return s.enc.Reset(true, newLine)
}

// SetMode switches between scrolling and direct tracking, fully resetting
// state (spec.md §4.5 "Mode change resets all scraper state").
func (s *Scraper) SetMode(m Mode) error {
	s.mode = m
	s.initialized = true
	return s.resetState(0)
}

// chooseMode applies spec.md §4.5's transition rule: a buffer whose height
// no longer matches the negotiated pty rows means the child resized the
// buffer itself (typical of a full-screen TUI taking over the console).
func (s *Scraper) chooseMode(bufferSize windows.Coord) Mode {
	if bufferSize.Y != s.ptyRows {
		return ModeDirect
	}
	return ModeScrolling
}

// Tick runs one scrape iteration, dispatching to the scrolling- or
// direct-mode loop, reopening the console and switching modes first if
// needed.
func (s *Scraper) Tick() error {
	info, err := s.console.BufferInfo()
	if err != nil {
		if reopenErr := s.reopen(); reopenErr != nil {
			tracelog.Errorf("scraper: reopen console failed: %v", reopenErr)
			return nil
		}
		info, err = s.console.BufferInfo()
		if err != nil {
			tracelog.Errorf("scraper: bufferInfo failed after reopen, skipping tick: %v", err)
			return nil
		}
	}

	wantMode := s.chooseMode(info.Size)
	if !s.initialized || wantMode != s.mode {
		if err := s.SetMode(wantMode); err != nil {
			return err
		}
	}

	switch s.mode {
	case ModeDirect:
		return s.tickDirect()
	default:
		return s.tickScrolling()
	}
}

// reopen reopens CONOUT$, e.g. because the child swapped the active
// screen buffer (spec.md §4.5.5 "Console handle invalidation").
func (s *Scraper) reopen() error {
	fresh, err := consoleapi.OpenConout()
	if err != nil {
		return err
	}
	s.console.Close()
	s.console = fresh
	return nil
}

// syncTitle re-reads the console title and, if changed, emits an OSC title
// update (spec.md §4.5.1 step 3).
func (s *Scraper) syncTitle() error {
	title, err := s.console.Title()
	if err != nil {
		tracelog.Errorf("scraper: title query failed: %v", err)
		return nil
	}
	if title == s.lastTitle {
		return nil
	}
	s.lastTitle = title
	return s.enc.WriteTitle(title)
}

// cellRowWidth is a convenience for sizing a one-row read/write rectangle.
func cellRowWidth(rect windows.SmallRect) int16 {
	return rect.Right - rect.Left + 1
}
