package feed

import "cosmossdk.io/errors"

// Decode errors. All of them are confined to the decoder: datagrams that fail
// to decode are counted and dropped, never propagated upstream.
var (
	ErrShortBuffer = errors.Register("feed", 1, "datagram shorter than message")
	ErrBadMagic    = errors.Register("feed", 2, "magic number mismatch")
	ErrUnknownType = errors.Register("feed", 3, "unknown message type")
)
