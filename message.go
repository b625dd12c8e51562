package pixsync

import (
	"fmt"
	"net"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is one self-describing wire message: a symbolic command pattern,
// ordered scalar arguments and an optional binary blob carrying a serialized
// state object. A Message is immutable once received.
type Message struct {
	Pattern string
	Args    []string
	Blob    []byte

	// Source is the sender's address, filled in by the receiving endpoint.
	Source *net.UDPAddr
}

// HasBlob reports whether the message carries a state object payload.
// A command carrying a blob is allowed to omit its scalar arguments.
func (msg Message) HasBlob() bool {
	return msg.Blob != nil
}

// EncodeMessage renders a message into a single datagram frame. The layout
// is protowire varint length-delimited: pattern, arg count, each arg, a blob
// presence flag, and the blob when present.
func EncodeMessage(msg Message) []byte {
	buf := protowire.AppendBytes(nil, []byte(msg.Pattern))
	buf = protowire.AppendVarint(buf, uint64(len(msg.Args)))
	for _, arg := range msg.Args {
		buf = protowire.AppendBytes(buf, []byte(arg))
	}
	if msg.Blob != nil {
		buf = protowire.AppendVarint(buf, 1)
		buf = protowire.AppendBytes(buf, msg.Blob)
	} else {
		buf = protowire.AppendVarint(buf, 0)
	}
	return buf
}

// DecodeMessage parses a datagram frame. A frame whose pattern cannot be
// extracted fails with ErrMalformedMessage; a blank pattern is not an error,
// the endpoints treat such messages as no-ops and drop them.
func DecodeMessage(frame []byte) (Message, error) {
	var msg Message

	pattern, n := protowire.ConsumeBytes(frame)
	if n < 0 {
		return msg, fmt.Errorf("%w: %w", ErrMalformedMessage, protowire.ParseError(n))
	}
	msg.Pattern = string(pattern)
	frame = frame[n:]

	argc, n := protowire.ConsumeVarint(frame)
	if n < 0 {
		return msg, fmt.Errorf("%w: %w", ErrMalformedMessage, protowire.ParseError(n))
	}
	frame = frame[n:]

	if argc > uint64(len(frame)) {
		// each argument needs at least one byte of frame, so this
		// count cannot come from a well-formed sender
		return msg, fmt.Errorf("%w: argument count %d exceeds frame size", ErrMalformedMessage, argc)
	}

	if argc > 0 {
		msg.Args = make([]string, 0, argc)
		for i := uint64(0); i < argc; i++ {
			arg, n := protowire.ConsumeBytes(frame)
			if n < 0 {
				return msg, fmt.Errorf("%w: %w", ErrMalformedMessage, protowire.ParseError(n))
			}
			msg.Args = append(msg.Args, string(arg))
			frame = frame[n:]
		}
	}

	hasBlob, n := protowire.ConsumeVarint(frame)
	if n < 0 {
		return msg, fmt.Errorf("%w: %w", ErrMalformedMessage, protowire.ParseError(n))
	}
	frame = frame[n:]

	switch hasBlob {
	case 0:
	case 1:
		blob, n := protowire.ConsumeBytes(frame)
		if n < 0 {
			return msg, fmt.Errorf("%w: %w", ErrMalformedMessage, protowire.ParseError(n))
		}
		msg.Blob = blob
		frame = frame[n:]
	default:
		return msg, fmt.Errorf("%w: invalid blob flag %d", ErrMalformedMessage, hasBlob)
	}

	if len(frame) != 0 {
		return msg, fmt.Errorf("%w: %d trailing bytes", ErrMalformedMessage, len(frame))
	}
	return msg, nil
}
