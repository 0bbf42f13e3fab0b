package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payloads := []string{
		"",
		"hello",
		"sender\x03body with spaces",
		string(bytes.Repeat([]byte("x"), 64*1024)), // larger than any internal buffer
		"unicode: héllo wörld",
	}
	for _, payload := range payloads {
		msg := protocol.NewMessage(protocol.OpForward, payload)
		data, err := protocol.EncodeMessage(msg)
		if err != nil {
			t.Fatalf("EncodeMessage: unexpected error: %v", err)
		}
		got, err := protocol.NewFrameReader(bytes.NewReader(data)).Next()
		if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		if got.Op != msg.Op {
			t.Fatalf("round trip: opcode mismatch want=%q got=%q", msg.Op, got.Op)
		}
		if !bytes.Equal(got.Payload, msg.Payload) {
			t.Fatalf("round trip: payload mismatch for %d bytes", len(payload))
		}
	}
}

func TestEncodeRejectsTerminator(t *testing.T) {
	_, err := protocol.EncodeMessage(protocol.NewMessage(protocol.OpSend, "bad\x00payload"))
	if !errors.Is(err, protocol.ErrPayloadTerminator) {
		t.Fatalf("EncodeMessage: want ErrPayloadTerminator got %v", err)
	}
}

func TestEncodeRejectsBadOpcode(t *testing.T) {
	_, err := protocol.EncodeMessage(protocol.Message{Op: "TOOLONG"})
	if !errors.Is(err, protocol.ErrBadOpcode) {
		t.Fatalf("EncodeMessage: want ErrBadOpcode got %v", err)
	}
}

func TestFrameReaderMultipleFrames(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString("SNDfirst\x00")
	stream.WriteString("SNDsecond\x00")
	stream.WriteString("CON\x00")

	fr := protocol.NewFrameReader(&stream)
	for _, want := range []string{"first", "second", ""} {
		msg, err := fr.Next()
		if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		if msg.Text() != want {
			t.Fatalf("Next: payload want=%q got=%q", want, msg.Text())
		}
	}
	if _, err := fr.Next(); err != io.EOF {
		t.Fatalf("Next: want io.EOF at stream end, got %v", err)
	}
}

func TestFrameReaderShortFrameRecovers(t *testing.T) {
	// A short frame is a client error, not a framing desync: the reader
	// must consume through the terminator and decode the following frame.
	stream := bytes.NewBufferString("AB\x00SNDok\x00")
	fr := protocol.NewFrameReader(stream)

	if _, err := fr.Next(); !errors.Is(err, protocol.ErrFrameTooShort) {
		t.Fatalf("Next: want ErrFrameTooShort got %v", err)
	}
	msg, err := fr.Next()
	if err != nil {
		t.Fatalf("Next after short frame: unexpected error: %v", err)
	}
	if msg.Op != protocol.OpSend || msg.Text() != "ok" {
		t.Fatalf("Next after short frame: got %q %q", msg.Op, msg.Text())
	}
}

func TestFrameReaderTruncatedFrame(t *testing.T) {
	fr := protocol.NewFrameReader(bytes.NewBufferString("SNDno terminator"))
	if _, err := fr.Next(); err != io.ErrUnexpectedEOF {
		t.Fatalf("Next: want io.ErrUnexpectedEOF got %v", err)
	}
}

func TestSplitFields(t *testing.T) {
	head, tail, found := protocol.SplitFields(protocol.JoinFields("alice", "secret"))
	if !found || string(head) != "alice" || string(tail) != "secret" {
		t.Fatalf("SplitFields: got head=%q tail=%q found=%t", head, tail, found)
	}

	head, tail, found = protocol.SplitFields([]byte("alice"))
	if found || string(head) != "alice" || tail != nil {
		t.Fatalf("SplitFields without separator: got head=%q tail=%q found=%t", head, tail, found)
	}

	// Only the first separator splits; the rest belongs to the tail.
	head, tail, found = protocol.SplitFields([]byte("a\x03b\x03c"))
	if !found || string(head) != "a" || string(tail) != "b\x03c" {
		t.Fatalf("SplitFields repeated separator: got head=%q tail=%q", head, tail)
	}
}

func TestSanitize(t *testing.T) {
	got := protocol.Sanitize("line\nbreak\r\x00\x03\x1b[31mtext")
	if got != "line break [31mtext" {
		t.Fatalf("Sanitize: got %q", got)
	}
}
