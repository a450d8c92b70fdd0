package pipeio

import (
	"strings"
	"testing"
)

func TestName_ControlAndDataDiffer(t *testing.T) {
	c := Name("abc", Control)
	d := Name("abc", Data)
	if c == d {
		t.Fatalf("control and data names must differ, both were %q", c)
	}
	if !strings.Contains(c, "abc") || !strings.Contains(d, "abc") {
		t.Fatalf("names must carry the session id: %q / %q", c, d)
	}
}

func TestReserve_ProducesUsableDistinctNames(t *testing.T) {
	r1, err := Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r1.Release()

	r2, err := Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r2.Release()

	if r1.SessionID == r2.SessionID {
		t.Fatalf("expected distinct session ids, got %q twice", r1.SessionID)
	}
	if r1.ControlName() == r1.DataName() {
		t.Fatalf("control and data names must differ within one reservation")
	}
}

func TestRelease_AllowsReacquiringSameLockFile(t *testing.T) {
	r, err := Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := r.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	// Releasing twice must not panic or error in a way that wedges cleanup.
	if err := r.Release(); err != nil {
		t.Fatalf("second Release should be a harmless no-op, got %v", err)
	}
}
