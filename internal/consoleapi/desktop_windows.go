//go:build windows

package consoleapi

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"winagent/internal/tracelog"
)

var (
	procGetProcessWindowStation = moduser32.NewProc("GetProcessWindowStation")
	procCreateWindowStationW    = moduser32.NewProc("CreateWindowStationW")
	procSetProcessWindowStation = moduser32.NewProc("SetProcessWindowStation")
	procCreateDesktopW          = moduser32.NewProc("CreateDesktopW")
)

const (
	windowStationAllAccess = 0x37f
	desktopGenericAll      = 0x10000000
)

// ShouldUseBackgroundDesktop decides whether the agent should move itself
// onto a non-interactive window station before creating its hidden
// console, mirroring winpty's Agent.cc shouldCreateBackgroundDesktop: the
// repeated MARK/SELECT_ALL freeze dance steals focus from the user's
// visible console windows on older hosts, so pre-Windows-7 agents hide in
// a background desktop unless a debug flag overrides the decision.
// WINAGENT_SHOW_CONSOLE only affects the default: force_desktop and
// no_desktop override it, and setting both leaves the default in place.
func ShouldUseBackgroundDesktop(isAtLeastWindows7 bool) bool {
	ret := !tracelog.ShowConsole() && !isAtLeastWindows7
	force := tracelog.Enabled(tracelog.CategoryForceDesktop)
	suppress := tracelog.Enabled(tracelog.CategoryNoDesktop)
	switch {
	case force && suppress:
		tracelog.Errorf("consoleapi: both force_desktop and no_desktop are set")
	case force:
		ret = true
	case suppress:
		ret = false
	}
	return ret
}

// UseBackgroundDesktop creates a private window station and desktop and
// switches the current process onto it, so the hidden console this
// process subsequently creates never competes for focus with the user's
// visible session (spec.md §4.2 "hidden console window").
func UseBackgroundDesktop() error {
	originalStation, _, _ := procGetProcessWindowStation.Call()
	if originalStation == 0 {
		return fmt.Errorf("get process window station failed")
	}

	station, _, _ := procCreateWindowStationW.Call(0, 0, windowStationAllAccess, 0)
	if station == 0 {
		return fmt.Errorf("create window station failed")
	}
	if ok, _, e1 := procSetProcessWindowStation.Call(station); ok == 0 {
		return fmt.Errorf("set process window station: %w", e1)
	}

	name, err := windows.UTF16PtrFromString("Default")
	if err != nil {
		return err
	}
	desktop, _, _ := procCreateDesktopW.Call(uintptr(unsafe.Pointer(name)), 0, 0, 0, desktopGenericAll, 0)
	if desktop == 0 {
		procSetProcessWindowStation.Call(originalStation)
		return fmt.Errorf("create desktop failed")
	}
	tracelog.Trace("consoleapi: created background window station/desktop")
	return nil
}
