package feed

import "sync/atomic"

// Feed names used in logs and metric labels.
const (
	FeedMD       = "md"
	FeedClearing = "clearing"
)

// Drop reasons used in metric labels.
const (
	dropShortHeader = "short_header"
	dropShortBody   = "short_body"
	dropBadMagic    = "bad_magic"
)

// Stats accounts for datagrams flowing through one decoder. Counters are
// atomics so the receiver's stats logger can read them concurrently.
type Stats struct {
	Packets atomic.Uint64
	Bytes   atomic.Uint64
	Dropped atomic.Uint64
	Gaps    atomic.Uint64
}
