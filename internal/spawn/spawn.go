//go:build windows

// Package spawn starts the child process inside the agent's hidden
// console in response to a StartProcess control-pipe request (spec.md
// §4.7). It splits the raw Win32-style command line into an argv the way
// this corpus's slash-command exec helper does, via google/shlex, rather
// than re-implementing CommandLineToArgvW.
package spawn

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/google/shlex"
)

// Handle wraps the running child process and lets the agent loop poll for
// exit without blocking (spec.md §4.8 "child-process handle is waited on
// every tick").
type Handle struct {
	cmd *exec.Cmd
	pid int
}

// Options mirrors controlproto.StartProcessRequest's fields, decoded into
// native Go strings.
type Options struct {
	App     string
	CmdLine string
	Cwd     string
	Env     []string // already split out of the doubly-NUL-terminated block
	Desktop string
}

// Start launches the child. The executable is App if non-empty, otherwise
// the first shlex-split token of CmdLine; either one is looked up on PATH
// when it contains no path separator, matching how a user would type it at
// a prompt.
func Start(opts Options) (*Handle, error) {
	argv, err := shlex.Split(opts.CmdLine)
	if err != nil {
		return nil, fmt.Errorf("split command line %q: %w", opts.CmdLine, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command line")
	}

	path := opts.App
	if path == "" {
		path = argv[0]
	}
	if !strings.ContainsAny(path, `\/`) {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return nil, fmt.Errorf("look up %q: %w", path, err)
		}
		path = resolved
	}

	cmd := exec.Command(path, argv[1:]...)
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}
	if len(opts.Env) > 0 {
		cmd.Env = opts.Env
	} else {
		cmd.Env = os.Environ()
	}

	// The agent's own hidden console is already CONOUT$/CONIN$ for this
	// process; a child spawned without CREATE_NEW_CONSOLE inherits it
	// directly, which is exactly the console the scraper is reading.
	cmd.SysProcAttr = &syscall.SysProcAttr{}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", path, err)
	}
	return &Handle{cmd: cmd, pid: cmd.Process.Pid}, nil
}

// Pid returns the child's process id.
func (h *Handle) Pid() int { return h.pid }

// Poll reports whether the child has exited and, if so, its exit code. It
// never blocks: the agent loop calls it on a poll-timeout tick once the
// reaper goroutine running Wait has returned.
func (h *Handle) Poll() (exited bool, code int) {
	if h.cmd.ProcessState != nil {
		return true, h.cmd.ProcessState.ExitCode()
	}
	return false, -1
}

// Wait blocks until the child exits, used by the agent loop's background
// reaper goroutine so Poll's ProcessState is populated as soon as the
// child exits.
func (h *Handle) Wait() {
	h.cmd.Wait()
}

// OSHandle exposes the underlying *os.Process. The agent loop does not put
// it in its wait set.
func (h *Handle) OSHandle() *os.Process { return h.cmd.Process }
