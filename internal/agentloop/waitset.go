//go:build windows

package agentloop

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// waitForMultipleObjects is resolved the same way internal/consoleapi
// resolves APIs golang.org/x/sys/windows doesn't wrap directly.
var (
	modkernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procWaitForMultipleObjects = modkernel32.NewProc("WaitForMultipleObjects")
)

const (
	waitObject0  = 0x00000000
	waitTimeout  = 0x00000102
	waitFailed   = 0xFFFFFFFF
	maxWaitCount = 64
)

// waitAny blocks until one of handles is signaled or timeoutMillis
// elapses, returning the index of the signaled handle, or -1 on timeout.
// This is the AgentLoop's single suspension point (spec.md §5
// "Suspension points").
func waitAny(handles []windows.Handle, timeoutMillis uint32) (int, error) {
	if len(handles) == 0 || len(handles) > maxWaitCount {
		return -1, fmt.Errorf("waitAny: invalid handle count %d", len(handles))
	}
	r1, _, e1 := procWaitForMultipleObjects.Call(
		uintptr(len(handles)),
		uintptr(unsafe.Pointer(&handles[0])),
		0, // bWaitAll = false
		uintptr(timeoutMillis),
	)
	switch {
	case r1 == waitTimeout:
		return -1, nil
	case r1 == waitFailed:
		return -1, fmt.Errorf("WaitForMultipleObjects: %w", e1)
	case r1 >= waitObject0 && int(r1) < len(handles):
		return int(r1), nil
	default:
		return -1, fmt.Errorf("WaitForMultipleObjects: unexpected result %#x", r1)
	}
}
