//go:build windows

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/windows"

	"winagent/internal/agentconfig"
	"winagent/internal/agentloop"
	"winagent/internal/consoleapi"
	"winagent/internal/pipeio"
	"winagent/internal/tracelog"
)

// runAgent is the non-debug entry point: it owns the hidden console for
// the lifetime of one session (spec.md §4.7 "Invocation").
func runAgent(args []string, configPath string) error {
	cols, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid cols %q: %w", args[2], err)
	}
	rows, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("invalid rows %q: %w", args[3], err)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyDebugEnv(cfg)

	if isAtLeastWindows7, err := atLeastWindows7(); err == nil {
		if consoleapi.ShouldUseBackgroundDesktop(isAtLeastWindows7) {
			if err := consoleapi.UseBackgroundDesktop(); err != nil {
				tracelog.Errorf("winagent: background desktop setup failed: %v", err)
			}
		}
	}

	console, err := consoleapi.OpenConout()
	if err != nil {
		return fmt.Errorf("open console: %w", err)
	}
	defer console.Close()

	if err := consoleapi.InstallCtrlHandler(); err != nil {
		tracelog.Errorf("winagent: install ctrl handler failed: %v", err)
	}

	showConsole := tracelog.ShowConsole() || cfg.ShowConsole
	if tracelog.Enabled(tracelog.CategoryForceSWHide) {
		showConsole = false
	}
	if tracelog.Enabled(tracelog.CategoryNoSWHide) {
		showConsole = true
	}
	console.SetWindowVisible(showConsole)

	bufferSize := uint32(pipeio.DefaultQueueBytes)
	if cfg.PipeBufferBytes > 0 {
		bufferSize = uint32(cfg.PipeBufferBytes)
	}

	ctl, err := pipeio.NewServerPipe(args[0], bufferSize)
	if err != nil {
		return fmt.Errorf("create control pipe %q: %w", args[0], err)
	}
	defer ctl.Close()

	data, err := pipeio.NewServerPipe(args[1], bufferSize)
	if err != nil {
		return fmt.Errorf("create data pipe %q: %w", args[1], err)
	}
	defer data.Close()

	loop := agentloop.New(console, ctl, data, int16(cols), int16(rows))
	if d := cfg.PollInterval(); d > 0 {
		loop.SetPollInterval(d)
	}
	if cfg.SyncMarkerAdvanceRows > 0 {
		loop.Scraper().SetSyncMarkerAdvanceThreshold(int16(cfg.SyncMarkerAdvanceRows))
	}

	return loop.Run()
}

func loadConfig(configPath string) (*agentconfig.Config, error) {
	if configPath != "" {
		return agentconfig.LoadFrom(configPath)
	}
	return agentconfig.Load()
}

// applyDebugEnv merges the config file's debug category list into
// WINAGENT_DEBUG before any tracelog call runs, so "--config" and
// WINAGENT_DEBUG compose instead of one silently overriding the other.
func applyDebugEnv(cfg *agentconfig.Config) {
	if cfg == nil || len(cfg.Debug) == 0 {
		return
	}
	existing := os.Getenv("WINAGENT_DEBUG")
	merged := cfg.Debug
	if existing != "" {
		merged = append(append([]string{}, strings.Split(existing, ",")...), cfg.Debug...)
	}
	os.Setenv("WINAGENT_DEBUG", strings.Join(merged, ","))
}

func atLeastWindows7() (bool, error) {
	info := windows.RtlGetVersion()
	if info == nil {
		return false, fmt.Errorf("RtlGetVersion failed")
	}
	if info.MajorVersion > 6 {
		return true, nil
	}
	return info.MajorVersion == 6 && info.MinorVersion >= 1, nil
}
