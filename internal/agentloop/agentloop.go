//go:build windows

// Package agentloop implements the single-threaded cooperative event loop
// tying timers, pipe I/O readiness, and child-process exit into one
// scheduler (spec.md §4.8), grounded on this corpus's daemon/overlay
// dispatch-loop style but replacing its PTY/session plumbing with the
// console-scraping agent's pipes, decoder, and scraper.
package agentloop

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"

	"winagent/internal/consoleapi"
	"winagent/internal/controlproto"
	"winagent/internal/inputdecoder"
	"winagent/internal/pipeio"
	"winagent/internal/scraper"
	"winagent/internal/spawn"
	"winagent/internal/tracelog"
)

// PollInterval bounds scrape-to-scrape latency (spec.md §5).
const PollInterval = 25 * time.Millisecond

// Loop owns the agent's two pipes, console, scraper, decoder, and child
// process for the lifetime of one session.
type Loop struct {
	console *consoleapi.Console
	ctl     *pipeio.Pipe
	data    *pipeio.Pipe
	scraper *scraper.Scraper
	decoder inputdecoder.Decoder

	child        *spawn.Handle
	childExited  bool
	lastExitCode int32
	childDone    chan struct{}

	consoleMode bool

	cols, rows int16

	pollInterval time.Duration
}

// New wires together a freshly opened console and connected pipe pair.
func New(console *consoleapi.Console, ctl, data *pipeio.Pipe, cols, rows int16) *Loop {
	l := &Loop{
		console:      console,
		ctl:          ctl,
		data:         data,
		cols:         cols,
		rows:         rows,
		pollInterval: PollInterval,
	}
	l.scraper = scraper.New(console, &pipeWriter{data}, cols, rows)
	// MouseInputEnabled starts false (zero value) and is kept in sync with
	// the host's ENABLE_MOUSE_INPUT bit by feedInput on every call.
	l.decoder.WindowCols = int(cols)
	l.decoder.WindowRows = int(rows)

	if tracelog.Enabled(tracelog.CategoryDumpInputMap) {
		for _, line := range inputdecoder.DumpMap() {
			tracelog.Trace("input map: %s", line)
		}
	}
	return l
}

// SetPollInterval overrides the default scrape-to-scrape poll interval,
// read from internal/agentconfig's tuning file.
func (l *Loop) SetPollInterval(d time.Duration) {
	if d > 0 {
		l.pollInterval = d
	}
}

// Scraper exposes the loop's scraper so cmd/winagent can apply
// internal/agentconfig tuning (sync-marker advance threshold) before Run.
func (l *Loop) Scraper() *scraper.Scraper { return l.scraper }

// pipeWriter adapts a *pipeio.Pipe's output queue to an io.Writer for
// internal/termencoder, which only ever needs to enqueue bytes; the
// agent loop's Pump calls drain the queue on subsequent ticks.
type pipeWriter struct{ p *pipeio.Pipe }

func (w *pipeWriter) Write(b []byte) (int, error) {
	w.p.Enqueue(b)
	return len(b), nil
}

// Run blocks until the control pipe closes or an unrecoverable error
// occurs (spec.md §4.8 "Exit when the control pipe is closed").
func (l *Loop) Run() error {
	if err := l.scraper.DetectFreezePrimitive(); err != nil {
		return fmt.Errorf("detect freeze primitive: %w", err)
	}

	connected, err := l.ctl.BeginConnect()
	if err != nil {
		return fmt.Errorf("connect control pipe: %w", err)
	}
	if !connected {
		if idx, err := waitAny([]windows.Handle{l.ctl.ConnectEvent()}, 30000); err != nil {
			return err
		} else if idx < 0 {
			return fmt.Errorf("timed out waiting for control pipe client")
		}
		if err := l.ctl.PollConnect(); err != nil {
			return fmt.Errorf("control pipe connect: %w", err)
		}
	}
	connected, err = l.data.BeginConnect()
	if err != nil {
		return fmt.Errorf("connect data pipe: %w", err)
	}
	if !connected {
		if idx, err := waitAny([]windows.Handle{l.data.ConnectEvent()}, 30000); err != nil {
			return err
		} else if idx < 0 {
			return fmt.Errorf("timed out waiting for data pipe client")
		}
		if err := l.data.PollConnect(); err != nil {
			return fmt.Errorf("data pipe connect: %w", err)
		}
	}

	for {
		if err := l.ctl.BeginRead(); err != nil {
			tracelog.Errorf("agentloop: control read failed: %v", err)
			return nil
		}
		if err := l.data.BeginRead(); err != nil {
			tracelog.Errorf("agentloop: data read failed: %v", err)
		}
		if err := l.ctl.Pump(); err != nil {
			tracelog.Errorf("agentloop: control pipe write failed: %v", err)
		}
		if err := l.data.Pump(); err != nil {
			tracelog.Errorf("agentloop: data pipe write failed: %v", err)
		}

		// The child's OS handle itself isn't in this wait set: os.Process
		// doesn't expose a raw waitable handle portably, so exit detection
		// happens via Poll() on every timeout tick instead (bounded by
		// PollInterval, which is already the loop's latency budget).
		handles := []windows.Handle{l.ctl.ReadEvent(), l.data.ReadEvent(), l.data.WriteEvent()}

		idx, err := waitAny(handles, uint32(l.pollInterval/time.Millisecond))
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}

		switch idx {
		case 0:
			if err := l.ctl.PollRead(); err != nil {
				tracelog.Errorf("agentloop: control pipe closed: %v", err)
				return nil
			}
			if err := l.drainControl(); err != nil {
				return err
			}
		case 1:
			if err := l.data.PollRead(); err != nil {
				tracelog.Errorf("agentloop: data pipe read closed: %v", err)
				l.data = nil
				if l.childExited {
					return nil
				}
				continue
			}
			l.feedInput(time.Now())
		case 2:
			if _, err := l.data.PollWrite(); err != nil {
				tracelog.Errorf("agentloop: data pipe write closed: %v", err)
			}
		default:
			l.onPollTimeout()
		}
	}
}

func (l *Loop) drainControl() error {
	for {
		buf := l.ctl.Dequeue(l.ctl.QueuedLen())
		if len(buf) == 0 {
			return nil
		}
		req, consumed, ok, err := controlproto.TryReadRequest(buf)
		if err != nil {
			tracelog.Errorf("agentloop: malformed control frame: %v", err)
			return nil
		}
		if !ok {
			// Not enough bytes for a full frame yet: put them back.
			l.ctl.Unread(buf)
			return nil
		}
		if consumed < len(buf) {
			l.ctl.Unread(buf[consumed:])
		}
		reply := l.handleControl(req)
		l.ctl.Enqueue(encodeInt32(reply))
	}
}

func encodeInt32(v int32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func (l *Loop) handleControl(req *controlproto.Request) int32 {
	switch req.Type {
	case controlproto.Ping:
		return 0
	case controlproto.StartProcess:
		return l.handleStartProcess(req.StartProcess)
	case controlproto.SetSize:
		if err := l.scraper.Resize(int16(req.SetSize.Cols), int16(req.SetSize.Rows)); err != nil {
			tracelog.Errorf("agentloop: resize failed: %v", err)
			return -1
		}
		l.cols, l.rows = int16(req.SetSize.Cols), int16(req.SetSize.Rows)
		l.decoder.WindowCols, l.decoder.WindowRows = int(l.cols), int(l.rows)
		return 0
	case controlproto.GetExitCode:
		if !l.childExited {
			return -1
		}
		return l.lastExitCode
	case controlproto.GetProcessId:
		if l.child == nil {
			return -1
		}
		return int32(l.child.Pid())
	case controlproto.SetConsoleMode:
		l.consoleMode = req.ConsoleMode.Mode != 0
		l.scraper.SetConsoleMode(l.consoleMode)
		return 0
	default:
		tracelog.Trace("agentloop: unknown control message type %v", req.Type)
		return controlproto.ReplyUnknownType
	}
}

func (l *Loop) handleStartProcess(req controlproto.StartProcessRequest) int32 {
	if l.child != nil && !l.childExited {
		return -1 // spec.md §4.7: rejects a second call while a child is alive
	}
	h, err := spawn.Start(spawn.Options{
		App:     req.App,
		CmdLine: req.CmdLine,
		Cwd:     req.Cwd,
		Env:     decodeEnvBlock(req.Env),
		Desktop: req.Desktop,
	})
	if err != nil {
		tracelog.Errorf("agentloop: start process failed: %v", err)
		return 1
	}
	l.child = h
	l.childExited = false
	l.childDone = make(chan struct{})
	go func() {
		h.Wait()
		close(l.childDone)
	}()
	return 0
}

func decodeEnvBlock(block string) []string {
	if block == "" {
		return nil
	}
	var out []string
	for _, part := range splitNulTerminated(block) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitNulTerminated(block string) []string {
	var out []string
	start := 0
	for i, r := range block {
		if r == 0 {
			out = append(out, block[start:i])
			start = i + 1
		}
	}
	return out
}

// onPollTimeout implements spec.md §4.8 step 3's timeout branch: flush
// partial escape sequences, reap the child if it exited, then scrape.
func (l *Loop) onPollTimeout() {
	now := time.Now()
	l.feedInput(now)

	if l.child != nil && !l.childExited {
		select {
		case <-l.childDone:
			l.childExited = true
			exited, code := l.child.Poll()
			if exited {
				l.lastExitCode = int32(code)
			}
			tracelog.Trace("agentloop: child exited with code %d", l.lastExitCode)
		default:
		}
	}

	if err := l.scraper.Tick(); err != nil {
		tracelog.Errorf("agentloop: scraper tick failed: %v", err)
	}
}

// feedInput drains any buffered data-pipe bytes through the decoder and
// synthesizes console input records for the results.
func (l *Loop) feedInput(now time.Time) {
	if l.data == nil {
		return
	}
	// The decoder runs even with no new bytes so a partial escape sequence
	// is flushed once IncompleteEscapeTimeout has passed.
	var buf []byte
	if n := l.data.QueuedLen(); n > 0 {
		buf = l.data.Dequeue(n)
	}

	processedMode, err := l.console.ProcessedInputMode()
	if err != nil {
		tracelog.Errorf("agentloop: processedInputMode query failed: %v", err)
	}
	l.decoder.ProcessedInputMode = processedMode

	mouseMode, err := l.console.MouseInputMode()
	if err != nil {
		tracelog.Errorf("agentloop: mouseInputMode query failed: %v", err)
	}
	l.decoder.MouseInputEnabled = mouseMode

	events, sendDSR := l.decoder.Feed(buf, now)
	var keyed []inputdecoder.Event
	for _, ev := range events {
		tracelog.Input("%+v", ev)
		if ev.Key != nil && ev.Key.VK == 0x03 && ev.Key.Char == 0x03 {
			// Processed-input Ctrl-C: raise CTRL_C_EVENT on the console
			// instead of injecting a key press.
			if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_C_EVENT, 0); err != nil {
				tracelog.Errorf("agentloop: GenerateConsoleCtrlEvent failed: %v", err)
			}
			continue
		}
		keyed = append(keyed, ev)
	}
	records := eventsToInputRecords(keyed)
	if len(records) > 0 {
		if _, err := l.console.WriteInput(records); err != nil {
			tracelog.Errorf("agentloop: writeInput failed: %v", err)
		}
	}
	if sendDSR {
		l.writeDSRQuery()
	}
}

func (l *Loop) writeDSRQuery() {
	const dsrQuery = "\x1b[6n"
	l.data.Enqueue([]byte(dsrQuery))
}
