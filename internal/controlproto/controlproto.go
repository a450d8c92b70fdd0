// Package controlproto implements the control-pipe RPC protocol (spec.md
// §4.7): a length-prefixed request/reply stream the frontend library uses
// to start the child process, resize the console, and poll exit status.
// Framing is int32 little-endian payload size followed by an int32 message
// type and type-specific fields, the same layout-first style as the length-
// prefixed frames in the session-attach protocol this corpus uses
// elsewhere, adapted here to the fixed binary encoding winpty's control
// pipe actually uses instead of JSON.
package controlproto

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"
)

// MessageType identifies a request's payload shape and reply semantics.
type MessageType int32

const (
	Ping MessageType = iota
	StartProcess
	SetSize
	GetExitCode
	GetProcessId
	SetConsoleMode
)

func (t MessageType) String() string {
	switch t {
	case Ping:
		return "Ping"
	case StartProcess:
		return "StartProcess"
	case SetSize:
		return "SetSize"
	case GetExitCode:
		return "GetExitCode"
	case GetProcessId:
		return "GetProcessId"
	case SetConsoleMode:
		return "SetConsoleMode"
	default:
		return fmt.Sprintf("MessageType(%d)", int32(t))
	}
}

// ReplyUnknownType is returned for any message type this agent version
// doesn't recognize (spec.md §4.7 "Unknown type").
const ReplyUnknownType int32 = -1

// StartProcessRequest carries StartProcess's five wstring fields. Env is
// the raw doubly-NUL-terminated environment block; Cwd and Desktop empty
// means "pass NULL" to CreateProcess.
type StartProcessRequest struct {
	App     string
	CmdLine string
	Cwd     string
	Env     string
	Desktop string
}

// SetSizeRequest carries SetSize's two int32 fields.
type SetSizeRequest struct {
	Cols int32
	Rows int32
}

// SetConsoleModeRequest carries SetConsoleMode's single int32 field.
type SetConsoleModeRequest struct {
	Mode int32
}

// Request is one decoded control-pipe message.
type Request struct {
	Type         MessageType
	StartProcess StartProcessRequest
	SetSize      SetSizeRequest
	ConsoleMode  SetConsoleModeRequest
}

// ReadRequest reads one framed message from r and decodes it according to
// its type. An unrecognized type is still returned (with Type set) so the
// caller can reply ReplyUnknownType without desyncing the stream, since the
// framing's payloadSize lets us skip the body either way.
func ReadRequest(r io.Reader) (*Request, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return decodePayload(payload)
}

// TryReadRequest decodes one frame from the front of buf without blocking,
// for callers (internal/agentloop) driving an overlapped, non-blocking
// pipe where a full frame may not have arrived yet. ok is false if buf
// doesn't yet contain a complete frame; consumed is only meaningful when
// ok is true.
func TryReadRequest(buf []byte) (req *Request, consumed int, ok bool, err error) {
	if len(buf) < 4 {
		return nil, 0, false, nil
	}
	size := int(binary.LittleEndian.Uint32(buf[:4]))
	if size < 0 {
		return nil, 0, false, fmt.Errorf("negative payload size %d", size)
	}
	if len(buf) < 4+size {
		return nil, 0, false, nil
	}
	req, err = decodePayload(buf[4 : 4+size])
	if err != nil {
		return nil, 0, false, err
	}
	return req, 4 + size, true, nil
}

func decodePayload(payload []byte) (*Request, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("payload too short for a type tag: %d bytes", len(payload))
	}
	typ := MessageType(int32(binary.LittleEndian.Uint32(payload[:4])))
	body := payload[4:]

	req := &Request{Type: typ}
	var err error
	switch typ {
	case Ping, GetExitCode, GetProcessId:
		// No further fields.
	case StartProcess:
		req.StartProcess, err = decodeStartProcess(body)
	case SetSize:
		req.SetSize, err = decodeSetSize(body)
	case SetConsoleMode:
		req.ConsoleMode, err = decodeSetConsoleMode(body)
	default:
		// Unknown type: already fully consumed via payloadSize, nothing
		// further to decode.
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", typ, err)
	}
	return req, nil
}

// WriteReply writes the single int32 reply every request gets.
func WriteReply(w io.Writer, value int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(value))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

// WriteRequest frames and writes req, for use by the library-side client
// (and by tests exercising the agent's server side end to end).
func WriteRequest(w io.Writer, req Request) error {
	body := encodeRequestBody(req)
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(body)))
	if _, err := w.Write(sizeBuf[:]); err != nil {
		return fmt.Errorf("write payload size: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// ReadReply reads the single int32 reply to a request.
func ReadReply(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read reply: %w", err)
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func encodeRequestBody(req Request) []byte {
	var body []byte
	body = appendInt32(body, int32(req.Type))
	switch req.Type {
	case StartProcess:
		body = appendWString(body, req.StartProcess.App)
		body = appendWString(body, req.StartProcess.CmdLine)
		body = appendWString(body, req.StartProcess.Cwd)
		body = appendWString(body, req.StartProcess.Env)
		body = appendWString(body, req.StartProcess.Desktop)
	case SetSize:
		body = appendInt32(body, req.SetSize.Cols)
		body = appendInt32(body, req.SetSize.Rows)
	case SetConsoleMode:
		body = appendInt32(body, req.ConsoleMode.Mode)
	}
	return body
}

func decodeStartProcess(body []byte) (StartProcessRequest, error) {
	var req StartProcessRequest
	fields := []*string{&req.App, &req.CmdLine, &req.Cwd, &req.Env, &req.Desktop}
	for _, f := range fields {
		s, rest, err := readWString(body)
		if err != nil {
			return req, err
		}
		*f = s
		body = rest
	}
	return req, nil
}

func decodeSetSize(body []byte) (SetSizeRequest, error) {
	if len(body) < 8 {
		return SetSizeRequest{}, fmt.Errorf("short SetSize payload: %d bytes", len(body))
	}
	return SetSizeRequest{
		Cols: int32(binary.LittleEndian.Uint32(body[0:4])),
		Rows: int32(binary.LittleEndian.Uint32(body[4:8])),
	}, nil
}

func decodeSetConsoleMode(body []byte) (SetConsoleModeRequest, error) {
	if len(body) < 4 {
		return SetConsoleModeRequest{}, fmt.Errorf("short SetConsoleMode payload: %d bytes", len(body))
	}
	return SetConsoleModeRequest{Mode: int32(binary.LittleEndian.Uint32(body[0:4]))}, nil
}

func appendInt32(b []byte, v int32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return append(b, buf[:]...)
}

// appendWString encodes s as UTF-16LE prefixed by its length in UTF-16
// code units (int32), matching the wstring convention used throughout
// the control protocol.
func appendWString(b []byte, s string) []byte {
	units := utf16.Encode([]rune(s))
	b = appendInt32(b, int32(len(units)))
	for _, u := range units {
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], u)
		b = append(b, buf[:]...)
	}
	return b
}

// readWString decodes one length-prefixed UTF-16LE wstring field,
// returning the decoded string and the remaining bytes.
func readWString(body []byte) (string, []byte, error) {
	if len(body) < 4 {
		return "", nil, fmt.Errorf("short wstring length prefix")
	}
	n := int(int32(binary.LittleEndian.Uint32(body[:4])))
	if n < 0 {
		return "", nil, fmt.Errorf("negative wstring length %d", n)
	}
	body = body[4:]
	if len(body) < n*2 {
		return "", nil, fmt.Errorf("short wstring body: want %d units, have %d bytes", n, len(body))
	}
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = binary.LittleEndian.Uint16(body[i*2 : i*2+2])
	}
	return string(utf16.Decode(units)), body[n*2:], nil
}

// EncodeEnvBlock joins env KEY=VALUE pairs into the doubly-NUL-terminated
// wstring CreateProcess expects (spec.md §4.7).
func EncodeEnvBlock(env []string) string {
	var b []rune
	for _, kv := range env {
		b = append(b, []rune(kv)...)
		b = append(b, 0)
	}
	b = append(b, 0)
	return string(b)
}
