package transport

import (
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// AppendSessionID stamps a channel URI with a session-id parameter the way
// the archive requires for the response channel and for replay/extend
// destinations that must land on a specific session (spec.md §6). Channel
// URIs already carrying a query string get `|session-id=<n>`; bare URIs get
// `?session-id=<n>`. This deliberately does not dedupe against an existing
// session-id parameter (DESIGN.md Open Question decision #4) — matching
// spec.md's literal two-branch description.
func AppendSessionID(channel string, sessionID int32) string {
	sep := "?"
	if strings.Contains(channel, "?") {
		sep = "|"
	}
	return channel + sep + "session-id=" + strconv.FormatInt(int64(sessionID), 10)
}

// ReplaceEndpoint substitutes the value of a channel URI's `endpoint=`
// parameter with newEndpoint ("host:port"), used by pkg/discovery to rewrite
// a statically configured channel once the real address is resolved from
// etcd. Channels without an `endpoint=` parameter are returned unchanged.
func ReplaceEndpoint(channel, newEndpoint string) string {
	const key = "endpoint="
	start := strings.Index(channel, key)
	if start < 0 {
		return channel
	}
	valueStart := start + len(key)
	end := strings.IndexAny(channel[valueStart:], "|")
	if end < 0 {
		return channel[:valueStart] + newEndpoint
	}
	return channel[:valueStart] + newEndpoint + channel[valueStart+end:]
}

// IsManualControlMode reports whether a channel URI opts into manual
// multi-destination control (`control-mode=manual`), the mode
// ReplayMerge's live-destination add/remove requires (spec.md §5).
func IsManualControlMode(channel string) bool {
	return strings.Contains(channel, "control-mode=manual")
}

// ChannelKey is a stable hash of a channel URI + stream id, used to detect a
// second, non-original recording session on the same channel without
// string-comparing full URIs on every check (spec.md §4.4).
type ChannelKey uint64

// NewChannelKey hashes a channel URI and stream id with murmur3, the
// teacher's own hash of choice for cheap key derivation (util.Murmur3Hash).
func NewChannelKey(channel string, streamID int32) ChannelKey {
	h := murmur3.New64()
	h.Write([]byte(channel))
	var streamBuf [4]byte
	streamBuf[0] = byte(streamID)
	streamBuf[1] = byte(streamID >> 8)
	streamBuf[2] = byte(streamID >> 16)
	streamBuf[3] = byte(streamID >> 24)
	h.Write(streamBuf[:])
	return ChannelKey(h.Sum64())
}
