// Package transport declares the narrow slice of the Aeron client the
// control-session engine depends on: publications, subscriptions, images,
// and the counters registry. The real media-driver-backed implementation
// lives outside this module (spec.md §1's "existing Aeron Go client
// library" out-of-scope note); this package is the seam the core programs
// against, grounded on the teacher's io.Connect/ioconfig split between
// "what we need from the wire" and "how the wire is actually reached".
package transport

import "context"

// OfferResult mirrors Aeron's Publication.offer() sentinel space: any value
// > 0 is the new stream position on success.
type OfferResult int64

const (
	BackPressured       OfferResult = -2
	NotConnected        OfferResult = -1
	AdminAction         OfferResult = -3
	PublicationClosed   OfferResult = -4
	MaxPositionExceeded OfferResult = -5
)

// IsFatal reports whether an offer result should abandon the request rather
// than be retried (spec.md §6: PUBLICATION_CLOSED and MAX_POSITION_EXCEEDED
// are fatal, BACK_PRESSURED/NOT_CONNECTED/ADMIN_ACTION are retryable).
func (r OfferResult) IsFatal() bool {
	return r == PublicationClosed || r == MaxPositionExceeded
}

func (r OfferResult) String() string {
	switch r {
	case BackPressured:
		return "BACK_PRESSURED"
	case NotConnected:
		return "NOT_CONNECTED"
	case AdminAction:
		return "ADMIN_ACTION"
	case PublicationClosed:
		return "PUBLICATION_CLOSED"
	case MaxPositionExceeded:
		return "MAX_POSITION_EXCEEDED"
	default:
		return "OK"
	}
}

// Header carries the per-fragment metadata a handler needs to attribute a
// frame to an image/session.
type Header struct {
	SessionID int32
}

// FragmentHandler processes one frame from a Subscription.Poll.
type FragmentHandler func(buf []byte, header Header)

// ControlledPollAction is the disposition a ControlledFragmentHandler
// returns for a fragment, matching Aeron's controlled-poll contract.
type ControlledPollAction int

const (
	ActionContinue ControlledPollAction = iota
	ActionBreak
	ActionAbort
	ActionCommit
)

// ControlledFragmentHandler processes one frame and controls whether the
// poll loop continues, breaks, aborts (rewinding position), or commits.
type ControlledFragmentHandler func(buf []byte, header Header) ControlledPollAction

// Publication is the write side of a channel+stream.
type Publication interface {
	Offer(buf []byte) (int64, error)
	IsConnected() bool
	Channel() string
	SessionID() int32
	StreamID() int32
	Close() error
}

// Image is one active source (session) on a Subscription.
type Image interface {
	SessionID() int32
	Position() int64
	TermBufferLength() int32
	IsEndOfStream() bool
	IsClosed() bool
}

// Subscription is the read side of a channel+stream. AddDestination and
// RemoveDestination apply only to a subscription whose channel declares
// `control-mode=manual`; ReplayMerge is their only caller in this module.
type Subscription interface {
	Poll(handler FragmentHandler, fragmentLimit int) (int, error)
	ControlledPoll(handler ControlledFragmentHandler, fragmentLimit int) (int, error)
	IsConnected() bool
	Channel() string
	StreamID() int32
	ImageBySessionID(sessionID int32) (Image, bool)
	AddDestination(channel string) error
	RemoveDestination(channel string) error
	Close() error
}

// CountersReader scans the counters registry for a recording-position
// counter (type id 100, spec.md §6): recordingId@0, sessionId@8,
// sourceIdentityLength@16, sourceIdentity(UTF-8)@20.
type CountersReader interface {
	FindCounter(typeID int32, matches func(keyBuf []byte) bool) (int32, bool)
	CounterValue(counterID int32) int64
	CounterLabel(counterID int32) string
}

// Aeron is the client's entry point for creating publications and
// subscriptions and reaching the counters registry. A real implementation
// wraps the media-driver client; faketransport wraps in-memory channels for
// tests.
type Aeron interface {
	AddPublication(ctx context.Context, channel string, streamID int32) (Publication, error)
	AddExclusivePublication(ctx context.Context, channel string, streamID int32) (Publication, error)
	AddSubscription(ctx context.Context, channel string, streamID int32) (Subscription, error)
	CountersReader() CountersReader
	Close() error
}
