//go:build windows

package pipeio

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

// DefaultQueueBytes bounds how much unread data a Pipe will buffer from
// completed overlapped reads before it stops issuing new ones, giving the
// client backpressure instead of unbounded memory growth (spec.md §6).
const DefaultQueueBytes = 64 * 1024

const readChunkSize = 4096

// ErrWritePending is returned by beginWrite when a previous write on the
// same pipe hasn't completed yet.
var ErrWritePending = errors.New("pipeio: write already pending")

// Pipe wraps one end of a Windows named pipe opened in overlapped mode.
// Exactly one read and one write operation may be outstanding at a time
// (spec.md §6 "single-outstanding-op invariant"); the event loop drives
// progress by waiting on ReadEvent/WriteEvent/ConnectEvent alongside its
// other timers and handles rather than blocking in a dedicated goroutine
// per pipe.
type Pipe struct {
	handle windows.Handle

	connectOverlapped windows.Overlapped
	connectEvent      windows.Handle
	connectPending    bool

	readOverlapped windows.Overlapped
	readEvent      windows.Handle
	readPending    bool
	readBuf        [readChunkSize]byte

	mu       sync.Mutex
	queued   []byte
	maxQueue int

	writeOverlapped windows.Overlapped
	writeEvent      windows.Handle
	writePending    bool
	writeRemaining  []byte

	writeMu      sync.Mutex
	pendingWrite []byte
}

// NewServerPipe creates one end of a duplex named pipe in
// message-independent byte mode with FILE_FLAG_OVERLAPPED set, matching
// the control/data pipes winpty's agent side owns (spec.md §4.1).
func NewServerPipe(name string, bufferSize uint32) (*Pipe, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("pipe name %q: %w", name, err)
	}

	const (
		pipeAccessDuplex     = 0x00000003
		fileFlagOverlapped   = 0x40000000
		pipeTypeByte         = 0x00000000
		pipeReadmodeByte     = 0x00000000
		pipeWait             = 0x00000000
		pipeRejectRemoteClns = 0x00000008
	)

	h, err := windows.CreateNamedPipe(
		namePtr,
		pipeAccessDuplex|fileFlagOverlapped,
		pipeTypeByte|pipeReadmodeByte|pipeWait|pipeRejectRemoteClns,
		1, // max instances: one client per pipe
		bufferSize,
		bufferSize,
		0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("CreateNamedPipe %q: %w", name, err)
	}

	maxQueue := int(bufferSize)
	if maxQueue <= 0 {
		maxQueue = DefaultQueueBytes
	}
	p := &Pipe{handle: h, maxQueue: maxQueue}
	for _, ev := range []*windows.Handle{&p.connectEvent, &p.readEvent, &p.writeEvent} {
		e, err := windows.CreateEvent(nil, 1 /* manual reset */, 0, nil)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("create pipe event: %w", err)
		}
		*ev = e
	}
	p.connectOverlapped.HEvent = p.connectEvent
	p.readOverlapped.HEvent = p.readEvent
	p.writeOverlapped.HEvent = p.writeEvent
	return p, nil
}

// BeginConnect issues an asynchronous ConnectNamedPipe. ConnectEvent
// becomes signaled once a client connects (or was already connected,
// which Windows reports as ERROR_PIPE_CONNECTED rather than pending).
func (p *Pipe) BeginConnect() (connected bool, err error) {
	err = windows.ConnectNamedPipe(p.handle, &p.connectOverlapped)
	if err == nil {
		return true, nil
	}
	switch err {
	case windows.ERROR_PIPE_CONNECTED:
		return true, nil
	case windows.ERROR_IO_PENDING:
		p.connectPending = true
		return false, nil
	default:
		return false, fmt.Errorf("ConnectNamedPipe: %w", err)
	}
}

// ConnectEvent is part of the event loop's wait set until PollConnect
// reports completion.
func (p *Pipe) ConnectEvent() windows.Handle { return p.connectEvent }

// PollConnect finalizes a pending BeginConnect after ConnectEvent fires.
func (p *Pipe) PollConnect() error {
	if !p.connectPending {
		return nil
	}
	var transferred uint32
	err := windows.GetOverlappedResult(p.handle, &p.connectOverlapped, &transferred, false)
	p.connectPending = false
	if err != nil {
		return fmt.Errorf("connect completion: %w", err)
	}
	return nil
}

// BeginRead issues one overlapped ReadFile if the queue has room and no
// read is already outstanding. It is a no-op otherwise: the caller simply
// calls it again once PollRead drains the queue or completes the pending
// read.
func (p *Pipe) BeginRead() error {
	if p.readPending {
		return nil
	}
	p.mu.Lock()
	full := len(p.queued) >= p.maxQueue
	p.mu.Unlock()
	if full {
		return nil
	}

	var n uint32
	err := windows.ReadFile(p.handle, p.readBuf[:], &n, &p.readOverlapped)
	if err == nil {
		p.appendQueued(p.readBuf[:n])
		return nil
	}
	if err == windows.ERROR_IO_PENDING {
		p.readPending = true
		return nil
	}
	return fmt.Errorf("ReadFile: %w", err)
}

// ReadEvent is part of the event loop's wait set whenever a read is
// pending.
func (p *Pipe) ReadEvent() windows.Handle { return p.readEvent }

// PollRead finalizes a pending overlapped read after ReadEvent fires,
// appending the received bytes to the internal queue.
func (p *Pipe) PollRead() error {
	if !p.readPending {
		return nil
	}
	var transferred uint32
	err := windows.GetOverlappedResult(p.handle, &p.readOverlapped, &transferred, false)
	p.readPending = false
	if err != nil {
		return fmt.Errorf("read completion: %w", err)
	}
	p.appendQueued(p.readBuf[:transferred])
	return nil
}

func (p *Pipe) appendQueued(b []byte) {
	if len(b) == 0 {
		return
	}
	p.mu.Lock()
	p.queued = append(p.queued, b...)
	p.mu.Unlock()
}

// Dequeue removes and returns up to max bytes of buffered input, freeing
// room for BeginRead to issue another overlapped read.
func (p *Pipe) Dequeue(max int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if max > len(p.queued) {
		max = len(p.queued)
	}
	out := make([]byte, max)
	copy(out, p.queued[:max])
	p.queued = p.queued[max:]
	return out
}

// QueuedLen reports how many bytes are currently buffered and not yet
// consumed by Dequeue.
func (p *Pipe) QueuedLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queued)
}

// Unread pushes b back onto the front of the queue. Used when a caller
// dequeues a batch of bytes looking for a complete framed message and
// finds only a partial one at the end (internal/agentloop's control-frame
// buffering).
func (p *Pipe) Unread(b []byte) {
	if len(b) == 0 {
		return
	}
	p.mu.Lock()
	p.queued = append(append([]byte{}, b...), p.queued...)
	p.mu.Unlock()
}

// Enqueue appends data to the pipe's output queue (spec.md §4.1
// "write(bytes): append to the output queue; I/O progresses
// asynchronously"). It never blocks and never drops bytes, even if a
// write is already in flight: Pump issues the next WriteFile once the
// current one completes.
func (p *Pipe) Enqueue(data []byte) {
	if len(data) == 0 {
		return
	}
	p.writeMu.Lock()
	p.pendingWrite = append(p.pendingWrite, data...)
	p.writeMu.Unlock()
}

// Pump issues a WriteFile for the next chunk of the output queue if none
// is currently outstanding. The agent loop calls this once per
// iteration so queued bytes make progress even without a dedicated
// wake-up for "queue became non-empty".
func (p *Pipe) Pump() error {
	if p.writePending {
		return nil
	}
	p.writeMu.Lock()
	if len(p.pendingWrite) == 0 {
		p.writeMu.Unlock()
		return nil
	}
	chunk := p.pendingWrite
	p.pendingWrite = nil
	p.writeMu.Unlock()

	return p.beginWrite(chunk)
}

// beginWrite issues an overlapped WriteFile for data. Large writes that
// don't complete in one WriteFile call are resumed automatically by
// subsequent PollWrite calls; only one overlapped write may be
// outstanding at a time (spec.md §6).
func (p *Pipe) beginWrite(data []byte) error {
	if p.writePending {
		return ErrWritePending
	}
	if len(data) == 0 {
		return nil
	}
	p.writeRemaining = data

	var n uint32
	err := windows.WriteFile(p.handle, p.writeRemaining, &n, &p.writeOverlapped)
	if err == nil {
		p.writeRemaining = p.writeRemaining[n:]
		return nil
	}
	if err == windows.ERROR_IO_PENDING {
		p.writePending = true
		return nil
	}
	return fmt.Errorf("WriteFile: %w", err)
}

// WriteEvent is part of the event loop's wait set whenever a write is
// pending.
func (p *Pipe) WriteEvent() windows.Handle { return p.writeEvent }

// PollWrite finalizes a pending overlapped write, issuing a follow-up
// WriteFile automatically if the prior call was a short write. It
// reports done=true once writeRemaining is fully flushed and there is no
// more queued output to start.
func (p *Pipe) PollWrite() (done bool, err error) {
	if !p.writePending {
		return true, nil
	}
	var transferred uint32
	getErr := windows.GetOverlappedResult(p.handle, &p.writeOverlapped, &transferred, false)
	p.writePending = false
	if getErr != nil {
		return false, fmt.Errorf("write completion: %w", getErr)
	}
	p.writeRemaining = p.writeRemaining[transferred:]
	if len(p.writeRemaining) > 0 {
		if err := p.beginWrite(p.writeRemaining); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := p.Pump(); err != nil {
		return false, err
	}
	return !p.writePending, nil
}

// Close tears down the pipe handle and its events, cancelling any
// outstanding overlapped operations first.
func (p *Pipe) Close() error {
	if p.handle != 0 {
		windows.CancelIoEx(p.handle, nil)
		windows.CloseHandle(p.handle)
		p.handle = 0
	}
	for _, ev := range []windows.Handle{p.connectEvent, p.readEvent, p.writeEvent} {
		if ev != 0 {
			windows.CloseHandle(ev)
		}
	}
	return nil
}
