// Package pixsync lets a thin control frontend mirror and drive the full
// runtime state of a remote pixel-matrix controller over UDP, without the
// frontend running any part of the rendering pipeline.
//
// ## How it works
//
// Two roles exist. The `Authority` holds the canonical visual/output state
// and answers internal state requests. The `Mirror` is a read-only copy of
// that state, owned by a `Session` which drives the whole lifecycle:
//
//  1. *Discover* the authority on the local segment with an mDNS service
//     query, falling back to a well-known host and port when nobody answers.
//  2. *Connect* both directions of the channel: a locally-bound UDP endpoint
//     for inbound replies, and a client handle towards the authority.
//  3. *Fetch* every required state kind (version, configuration, matrix
//     layout, color sets, output snapshot, UI state, output mapping, preset
//     settings, statistics, file locations, image buffer) with a bounded
//     retry loop that tolerates packet loss, duplicates and reordering.
//  4. *Register* as the authority's visual observer so subsequent UI-state
//     changes are pushed unsolicited, keeping the mirror live.
//
// The transport is plain connectionless UDP: no delivery or ordering
// guarantee exists at that layer, the protocol compensates above it with
// idempotent slot updates and request retries. Messages are self-describing
// (a symbolic command pattern, scalar string arguments and an optional
// binary blob holding a CBOR-serialized state object).
//
// ## Design Principles
//
// The `Session` never blocks its caller: it runs on its own goroutine and
// reports progress only through an asynchronous status callback. No single
// inbound datagram, however malformed, may terminate a receive loop; bad
// input is counted, logged and dropped. The authority keeps serving
// operational commands from any sender while exactly one mirroring client
// at a time is tracked for live updates.
package pixsync
