package pixsync

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MaxPayloadSize bounds a single datagram frame in both directions. It is
// chosen to comfortably fit one image buffer of the target display and must
// match exactly between authority and mirror builds. Objects whose
// serialized form exceeds it are a deployment configuration error; the
// protocol does not fragment.
const MaxPayloadSize = 32 * 1024

// MarshalState serializes a state object into the blob portion of a
// message.
func MarshalState(v any) ([]byte, error) {
	blob, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("payload: marshal: %w", err)
	}
	if len(blob) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(blob), MaxPayloadSize)
	}
	return blob, nil
}

// UnmarshalState reassembles a state object of the expected kind from a
// message blob.
func UnmarshalState(blob []byte, v any) error {
	if len(blob) > MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(blob), MaxPayloadSize)
	}
	if err := cbor.Unmarshal(blob, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDeserialize, err)
	}
	return nil
}
