package controlproto

import (
	"bytes"
	"testing"
)

func TestRoundTrip_Ping(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, Request{Type: Ping}); err != nil {
		t.Fatal(err)
	}
	req, err := ReadRequest(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if req.Type != Ping {
		t.Fatalf("got type %v, want Ping", req.Type)
	}
}

func TestRoundTrip_StartProcess(t *testing.T) {
	var buf bytes.Buffer
	want := StartProcessRequest{
		App:     `C:\Windows\System32\cmd.exe`,
		CmdLine: `cmd.exe /c dir`,
		Cwd:     `C:\Users\test`,
		Env:     EncodeEnvBlock([]string{"PATH=C:\\Windows", "FOO=bar"}),
		Desktop: "",
	}
	if err := WriteRequest(&buf, Request{Type: StartProcess, StartProcess: want}); err != nil {
		t.Fatal(err)
	}
	req, err := ReadRequest(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if req.Type != StartProcess {
		t.Fatalf("got type %v, want StartProcess", req.Type)
	}
	if req.StartProcess != want {
		t.Fatalf("got %+v, want %+v", req.StartProcess, want)
	}
}

func TestRoundTrip_SetSize(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, Request{Type: SetSize, SetSize: SetSizeRequest{Cols: 120, Rows: 40}}); err != nil {
		t.Fatal(err)
	}
	req, err := ReadRequest(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if req.SetSize.Cols != 120 || req.SetSize.Rows != 40 {
		t.Fatalf("got %+v, want {120 40}", req.SetSize)
	}
}

func TestRoundTrip_SetConsoleMode(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, Request{Type: SetConsoleMode, ConsoleMode: SetConsoleModeRequest{Mode: 1}}); err != nil {
		t.Fatal(err)
	}
	req, err := ReadRequest(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if req.ConsoleMode.Mode != 1 {
		t.Fatalf("got mode %d, want 1", req.ConsoleMode.Mode)
	}
}

func TestReply_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReply(&buf, -1); err != nil {
		t.Fatal(err)
	}
	got, err := ReadReply(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != -1 {
		t.Fatalf("got %d, want -1", got)
	}
}

func TestReadRequest_UnknownTypeStillConsumesFrame(t *testing.T) {
	var buf bytes.Buffer
	// Hand-build a frame with an out-of-range type and no further fields;
	// ReadRequest must consume exactly payloadSize bytes so a subsequent
	// read on the same stream isn't desynced.
	if err := WriteRequest(&buf, Request{Type: MessageType(99)}); err != nil {
		t.Fatal(err)
	}
	buf.Write([]byte("next-frame-marker"))

	req, err := ReadRequest(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if req.Type != MessageType(99) {
		t.Fatalf("got type %v, want 99", req.Type)
	}
	rest := buf.String()
	if rest != "next-frame-marker" {
		t.Fatalf("stream desynced: leftover %q", rest)
	}
}

func TestTryReadRequest_PartialFrameNotReady(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, Request{Type: Ping}); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()

	_, _, ok, err := TryReadRequest(full[:len(full)-1])
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected ok=false for a truncated frame")
	}

	req, consumed, ok, err := TryReadRequest(full)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || consumed != len(full) || req.Type != Ping {
		t.Fatalf("got req=%+v consumed=%d ok=%v, want full frame consumed", req, consumed, ok)
	}
}

func TestEncodeEnvBlock_DoublyNulTerminated(t *testing.T) {
	block := EncodeEnvBlock([]string{"A=1", "B=2"})
	want := "A=1\x00B=2\x00\x00"
	if block != want {
		t.Fatalf("got %q, want %q", block, want)
	}
}
