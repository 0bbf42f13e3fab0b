// Package protocol defines the GoTalk wire format and message framing.
//
// Every frame is a 3-byte ASCII opcode followed by the payload and a single
// NUL terminator byte:
//
//	<3-byte opcode><payload><0x00>
//
// Payloads that carry two logical fields (username and password, sender and
// body) separate them with a 0x03 byte. The terminator never appears inside
// a payload; user-supplied text must be run through Sanitize before encoding.
package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

const (
	// OpcodeLen is the byte length of every opcode tag.
	OpcodeLen = 3

	// Terminator marks the end of a frame on the wire.
	Terminator byte = 0x00

	// FieldSep separates sub-fields inside a payload.
	FieldSep byte = 0x03
)

// Opcode identifies the type of a protocol message.
type Opcode string

// Client-to-server opcodes.
const (
	OpConnectRequest Opcode = "NCR" // handshake request: username [0x03 password]
	OpSend           Opcode = "SND" // chat message body to broadcast
	OpAdmin          Opcode = "ADM" // admin command line
	OpServerError    Opcode = "ERS" // client reports a server-side fault
)

// Server-to-client opcodes. OpDisconnect travels in both directions.
const (
	OpConnected    Opcode = "CON" // handshake accepted, no payload
	OpNotConnected Opcode = "NCN" // handshake rejected: reason
	OpForward      Opcode = "MSG" // forwarded chat: sender 0x03 body
	OpNotify       Opcode = "NOT" // server notification text
	OpResponse     Opcode = "RSP" // admin command output
	OpClientError  Opcode = "ERC" // client committed a protocol error
	OpDisconnect   Opcode = "DSC" // polite disconnect, optional reason
)

var (
	// ErrFrameTooShort reports a frame with fewer than OpcodeLen bytes before
	// the terminator. The stream remains aligned after the error.
	ErrFrameTooShort = errors.New("protocol: frame shorter than opcode")

	// ErrBadOpcode reports an opcode that is not exactly OpcodeLen bytes.
	ErrBadOpcode = errors.New("protocol: opcode must be 3 bytes")

	// ErrPayloadTerminator reports a payload containing the terminator byte.
	ErrPayloadTerminator = errors.New("protocol: payload contains terminator byte")
)

// Message is one decoded protocol frame.
type Message struct {
	Op      Opcode
	Payload []byte
}

// NewMessage builds a message from an opcode and a payload string.
func NewMessage(op Opcode, payload string) Message {
	return Message{Op: op, Payload: []byte(payload)}
}

// Text returns the payload as a string.
func (m Message) Text() string {
	return string(m.Payload)
}

// EncodeMessage serializes a message to its wire form. The payload must not
// contain the terminator byte; there is no escaping on this protocol.
func EncodeMessage(m Message) ([]byte, error) {
	if len(m.Op) != OpcodeLen {
		return nil, fmt.Errorf("%w: %q", ErrBadOpcode, m.Op)
	}
	if bytes.IndexByte(m.Payload, Terminator) >= 0 {
		return nil, ErrPayloadTerminator
	}
	buf := make([]byte, 0, OpcodeLen+len(m.Payload)+1)
	buf = append(buf, m.Op...)
	buf = append(buf, m.Payload...)
	buf = append(buf, Terminator)
	return buf, nil
}

// FrameReader decodes a byte stream into discrete messages. Its sole read
// primitive blocks until a complete frame has arrived, so callers never see
// partial messages regardless of how the transport chunks its reads.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps a transport in a FrameReader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// Next blocks until the next complete frame and returns it decoded.
//
// A frame with fewer than OpcodeLen bytes before the terminator yields
// ErrFrameTooShort; the terminator has been consumed, so the caller may
// report the error and keep reading. Any other error is a transport
// failure: io.EOF on clean peer close, io.ErrUnexpectedEOF when the stream
// ends mid-frame.
func (fr *FrameReader) Next() (Message, error) {
	raw, err := fr.r.ReadBytes(Terminator)
	if err != nil {
		if err == io.EOF && len(raw) > 0 {
			return Message{}, io.ErrUnexpectedEOF
		}
		return Message{}, err
	}
	body := raw[:len(raw)-1] // strip terminator
	if len(body) < OpcodeLen {
		return Message{}, ErrFrameTooShort
	}
	return Message{Op: Opcode(body[:OpcodeLen]), Payload: body[OpcodeLen:]}, nil
}

// JoinFields concatenates two payload fields with the field separator.
func JoinFields(head, tail string) []byte {
	buf := make([]byte, 0, len(head)+1+len(tail))
	buf = append(buf, head...)
	buf = append(buf, FieldSep)
	buf = append(buf, tail...)
	return buf
}

// SplitFields splits a payload at the first field separator. When no
// separator is present the whole payload is returned as head and found is
// false.
func SplitFields(payload []byte) (head, tail []byte, found bool) {
	i := bytes.IndexByte(payload, FieldSep)
	if i < 0 {
		return payload, nil, false
	}
	return payload[:i], payload[i+1:], true
}

// Sanitize strips control characters from user-supplied text so it can be
// embedded in a payload: newlines collapse to spaces and every other control
// character (including the frame terminator and field separator) is dropped.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
