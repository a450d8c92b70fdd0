// Package pipeio provides overlapped-style, non-blocking named-pipe I/O for
// the control and data channels (spec.md §4.1, §6). The pipe-name
// reservation logic in this file has no Windows dependency and is tested
// directly; the actual CreateNamedPipe/ReadFile/WriteFile plumbing lives in
// pipe_windows.go behind a build tag.
package pipeio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Kind distinguishes the two pipe roles (spec.md §4.1): Control carries the
// length-prefixed RPC protocol, Data is the raw bidirectional terminal
// byte stream.
type Kind string

const (
	Control Kind = "ctl"
	Data    Kind = "data"
)

// Name builds the well-known pipe path for a session id and kind, matching
// winpty's "\\.\pipe\<prefix>-<kind>-<id>" convention.
func Name(sessionID string, kind Kind) string {
	return fmt.Sprintf(`\\.\pipe\winagent-%s-%s`, kind, sessionID)
}

// Reservation holds an advisory lock on a pipe name so two agents started
// in close succession never race to CreateNamedPipe the same path. The
// Windows named-pipe namespace has no equivalent to SO_REUSEADDR, and a
// crashed agent can leave a server-side handle open well past process
// exit, so SPEC_FULL.md's pipe-name allocator guards the reuse window with
// a gofrs/flock lock file under the directory flock normally manages for
// this module, released only once the pipe is confirmed closed.
type Reservation struct {
	SessionID string
	lock      *flock.Flock
}

// lockDir is where reservation lock files live; overridable in tests.
var lockDir = filepath.Join(os.TempDir(), "winagent-pipes")

// Reserve allocates a fresh session id and locks it, retrying with a new
// id on the rare collision against a concurrently-starting agent.
func Reserve() (*Reservation, error) {
	if err := os.MkdirAll(lockDir, 0o700); err != nil {
		return nil, fmt.Errorf("create pipe lock dir: %w", err)
	}
	for attempt := 0; attempt < 8; attempt++ {
		id := uuid.NewString()
		lockPath := filepath.Join(lockDir, id+".lock")
		fl := flock.New(lockPath)
		ok, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock pipe name %s: %w", id, err)
		}
		if !ok {
			continue
		}
		return &Reservation{SessionID: id, lock: fl}, nil
	}
	return nil, fmt.Errorf("could not reserve a pipe name after 8 attempts")
}

// ControlName and DataName return this reservation's two pipe paths.
func (r *Reservation) ControlName() string { return Name(r.SessionID, Control) }
func (r *Reservation) DataName() string    { return Name(r.SessionID, Data) }

// Release drops the advisory lock, making the session id eligible for
// reuse. Callers must call this only after both pipes are confirmed
// closed, since the lock exists to keep CreateNamedPipe from racing, not
// to serialize pipe I/O itself.
func (r *Reservation) Release() error {
	if r.lock == nil {
		return nil
	}
	path := r.lock.Path()
	if err := r.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock pipe name %s: %w", r.SessionID, err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pipe lock file %s: %w", path, err)
	}
	return nil
}
