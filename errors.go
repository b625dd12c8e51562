package pixsync

import (
	"errors"
)

var (
	ErrMalformedMessage = errors.New("codec: unable to extract message pattern")
	ErrPayloadTooLarge  = errors.New("codec: payload exceeds the maximum datagram size")

	ErrUnknownCommand = errors.New("command: unknown command symbol")
	ErrArgumentCount  = errors.New("command: argument count mismatch")

	ErrDeserialize = errors.New("payload: state object does not match the expected kind")

	ErrDiscoveryTimeout = errors.New("discovery: no authority answered the service query")

	ErrTransportBind = errors.New("transport: could not open socket")
	ErrShutdown      = errors.New("transport: shutting down")

	ErrInvalidCfg       = errors.New("session: invalid options")
	ErrSessionClosed    = errors.New("session: closed")
	ErrBootstrapTimeout = errors.New("session: no answer received, verify the remote instance is running and restart")
)
