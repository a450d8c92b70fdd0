package version

import (
	"fmt"
	"strings"
)

// Version is the current version of the agent.
const Version = "0.1.0"

// ProtocolVersion is the control-pipe RPC wire format's version (spec.md
// §4.7 "Invocation" / §4.1 protocol). It's reported alongside Version
// because, unlike a standalone CLI, the agent is always invoked by a
// separate frontend process over a pipe pair it doesn't control the
// other end of: a frontend built against a different ProtocolVersion
// needs a clear signal that its framing assumptions may not hold, rather
// than a generic semver mismatch.
const ProtocolVersion = 1

// GitRef is injected at build time for dev builds (e.g. via -ldflags -X).
var GitRef = "unknown"

// ReleaseBuild is injected at build time. When true, DisplayVersion omits git ref.
var ReleaseBuild = "false"

// DisplayVersion returns the user-facing build version, reported by
// "winagent --version" and logged once at startup:
// - release: v<semver> (protocol N)
// - dev:     v<semver>-<gitref> (protocol N)
func DisplayVersion() string {
	if isReleaseBuild() {
		return fmt.Sprintf("v%s (protocol %d)", Version, ProtocolVersion)
	}
	return fmt.Sprintf("v%s-%s (protocol %d)", Version, normalizeRef(GitRef), ProtocolVersion)
}

func isReleaseBuild() bool {
	switch strings.ToLower(strings.TrimSpace(ReleaseBuild)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "unknown"
	}
	return ref
}
