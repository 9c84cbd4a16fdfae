// Package packet implements the line-oriented text codec spoken between chat
// clients and the server.
//
// A packet is six backtick-separated fields terminated by a newline:
//
//	code`actor`message`r`g`b\n
//
// There is no escaping. Clients must never put a backtick or a newline inside
// the actor or message fields; doing so corrupts framing for the whole
// connection.
package packet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Delimiter separates the fields of a packet.
	Delimiter = "`"
	// Terminator ends every encoded packet.
	Terminator = "\n"
	// Blank is sent in place of a field that carries no value.
	Blank = "_"

	fieldCount = 6
)

// ErrInvalid is returned for any input that is not a well-formed packet.
var ErrInvalid = errors.New("invalid packet")

// Packet is a single decoded protocol message. R, G and B carry an optional
// text colour that the server forwards but never interprets.
type Packet struct {
	Code    int
	Actor   string
	Message string
	R, G, B uint8
}

// New returns a packet with no colour.
func New(code int, actor, message string) *Packet {
	return &Packet{Code: code, Actor: actor, Message: message}
}

// Status returns a packet carrying only a code, with both text fields blank.
func Status(code int) *Packet {
	return New(code, Blank, Blank)
}

// Encode renders p in wire format, including the trailing newline.
func (p *Packet) Encode() []byte {
	return []byte(p.String() + Terminator)
}

// String renders p in wire format without the trailing newline.
func (p *Packet) String() string {
	return fmt.Sprintf("%d`%s`%s`%d`%d`%d", p.Code, p.Actor, p.Message, p.R, p.G, p.B)
}

// Decode parses a single packet. A trailing newline (and carriage return) is
// ignored. Empty fields are preserved so that Decode(Encode(p)) yields p for
// any packet whose text fields are free of delimiters.
func Decode(s string) (*Packet, error) {
	s = strings.TrimRight(s, "\r\n")

	fields := strings.Split(s, Delimiter)
	if len(fields) != fieldCount {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalid, fieldCount, len(fields))
	}

	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad code %q", ErrInvalid, fields[0])
	}

	return &Packet{
		Code:    code,
		Actor:   fields[1],
		Message: fields[2],
		R:       colour(fields[3]),
		G:       colour(fields[4]),
		B:       colour(fields[5]),
	}, nil
}

// Colour channels are advisory, so anything unparsable is treated as zero
// instead of rejecting the packet.
func colour(s string) uint8 {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

// NeedsSplit reports whether buf holds more than one packet, which is the
// case whenever its first newline is not its final character.
func NeedsSplit(buf string) bool {
	i := strings.Index(buf, Terminator)
	return i >= 0 && i != len(buf)-1
}

// Split breaks buf into its newline-terminated pieces. Empty lines are
// dropped.
func Split(buf string) []string {
	var lines []string
	for _, line := range strings.Split(buf, Terminator) {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// DecodeAll splits buf and decodes every piece in order. Decoding stops at
// the first malformed piece; the packets decoded before it are returned
// alongside the error.
func DecodeAll(buf string) ([]*Packet, error) {
	pieces := []string{buf}
	if NeedsSplit(buf) {
		pieces = Split(buf)
	}

	packets := make([]*Packet, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimRight(piece, "\r\n") == "" {
			continue
		}
		p, err := Decode(piece)
		if err != nil {
			return packets, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}
