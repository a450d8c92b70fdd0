//go:build windows

package consoleapi

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var procSetConsoleCtrlHandler = modkernel32.NewProc("SetConsoleCtrlHandler")

func newCtrlHandlerCallback() uintptr {
	return windows.NewCallback(func(ctrlType uint32) uintptr {
		return ctrlHandlerProc(ctrlType)
	})
}

// ctrlHandlerProc is called by the host on its own internal thread whenever
// Ctrl-C/Ctrl-Break is raised on this console. Returning TRUE tells the host
// the event was handled, so it never reaches this process's default
// handler — only the child (which shares the console) sees it, matching
// winpty's Agent.cc consoleCtrlHandler.
func ctrlHandlerProc(ctrlType uint32) uintptr {
	const ctrlCEvent, ctrlBreakEvent = 0, 1
	switch ctrlType {
	case ctrlCEvent, ctrlBreakEvent:
		return 1 // TRUE: swallow it, the child gets it via the shared console
	default:
		return 0
	}
}

// InstallCtrlHandler registers ctrlHandlerProc so Ctrl-C typed at the
// hidden console terminates the child, not this agent process.
func InstallCtrlHandler() error {
	cb := newCtrlHandlerCallback()
	ok, _, e1 := procSetConsoleCtrlHandler.Call(cb, 1)
	if ok == 0 {
		return fmt.Errorf("set console ctrl handler: %w", e1)
	}
	return nil
}
