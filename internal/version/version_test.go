package version

import (
	"fmt"
	"regexp"
	"testing"
)

func TestVersionIsSemver(t *testing.T) {
	// Simplified semver regex: MAJOR.MINOR.PATCH with optional pre-release
	semverRe := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	if !semverRe.MatchString(Version) {
		t.Errorf("Version %q is not a valid semver string", Version)
	}
}

func TestDisplayVersion_DevBuildIncludesGitRefAndProtocol(t *testing.T) {
	oldGitRef := GitRef
	oldReleaseBuild := ReleaseBuild
	t.Cleanup(func() {
		GitRef = oldGitRef
		ReleaseBuild = oldReleaseBuild
	})

	GitRef = "abc1234"
	ReleaseBuild = "false"

	want := fmt.Sprintf("v%s-abc1234 (protocol %d)", Version, ProtocolVersion)
	if got := DisplayVersion(); got != want {
		t.Fatalf("DisplayVersion() = %q, want %q", got, want)
	}
}

func TestDisplayVersion_ReleaseBuildOmitsGitRef(t *testing.T) {
	oldGitRef := GitRef
	oldReleaseBuild := ReleaseBuild
	t.Cleanup(func() {
		GitRef = oldGitRef
		ReleaseBuild = oldReleaseBuild
	})

	GitRef = "abc1234"
	ReleaseBuild = "true"

	want := fmt.Sprintf("v%s (protocol %d)", Version, ProtocolVersion)
	if got := DisplayVersion(); got != want {
		t.Fatalf("DisplayVersion() = %q, want %q", got, want)
	}
}

func TestDisplayVersion_UnsetGitRefNormalizesToUnknown(t *testing.T) {
	oldGitRef := GitRef
	oldReleaseBuild := ReleaseBuild
	t.Cleanup(func() {
		GitRef = oldGitRef
		ReleaseBuild = oldReleaseBuild
	})

	GitRef = "   "
	ReleaseBuild = "false"

	want := fmt.Sprintf("v%s-unknown (protocol %d)", Version, ProtocolVersion)
	if got := DisplayVersion(); got != want {
		t.Fatalf("DisplayVersion() = %q, want %q", got, want)
	}
}

func TestDisplayVersion_ReleaseBuildRecognizesVariants(t *testing.T) {
	oldReleaseBuild := ReleaseBuild
	t.Cleanup(func() { ReleaseBuild = oldReleaseBuild })

	for _, v := range []string{"1", "TRUE", " yes ", "Yes"} {
		ReleaseBuild = v
		if !isReleaseBuild() {
			t.Errorf("isReleaseBuild() = false for ReleaseBuild=%q, want true", v)
		}
	}
	for _, v := range []string{"0", "no", "", "maybe"} {
		ReleaseBuild = v
		if isReleaseBuild() {
			t.Errorf("isReleaseBuild() = true for ReleaseBuild=%q, want false", v)
		}
	}
}
