package archive

import (
	"context"
	"time"

	"archiveclient/internal/control"
	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/archiveerr"
	"archiveclient/pkg/metrics"
	"archiveclient/pkg/transport"
)

// DescriptorConsumer receives one decoded recording or recording-subscription
// descriptor from a list operation.
//
// This cannot be a generic type alias (`type DescriptorConsumer[T any] =
// control.DescriptorConsumer[T]`) under the go 1.21 language version this
// module targets, so call sites reference control.DescriptorConsumer[T]
// directly instead.

// AsyncErrorHandler receives protocol errors observed for a correlation id
// other than the one a command is currently awaiting.
type AsyncErrorHandler = control.AsyncErrorHandler

// ReplayMerge stitches a historical replay onto a live subscription; see
// internal/control.ReplayMerge for its state machine.
type ReplayMerge = control.ReplayMerge

// Archive is the connected session controller an embedder programs against;
// it wraps internal/control.AeronArchive one-for-one, the way pkg/client.New
// wraps cli.Processor behind an exported surface.
type Archive struct {
	inner     *control.AeronArchive
	latencies *metrics.CommandLatencies
}

// Latencies exposes the round-trip latency distribution recorded for each
// single-response command issued through this Archive (StartRecording
// through FindLastMatchingRecording). The List* methods and the
// recorded-publication, replay-subscription and error-check helpers are not
// timed.
func (a *Archive) Latencies() *metrics.CommandLatencies { return a.latencies }

// timed runs fn, recording its wall-clock duration and outcome against
// command in a.latencies.
func (a *Archive) timed(command string, fn func() (int64, error)) (int64, error) {
	start := time.Now()
	relevantID, err := fn()
	a.latencies.Record(command, time.Since(start), err)
	return relevantID, err
}

// Connect drives the async connect handshake to completion, idling between
// polls, and returns a ready Archive. It blocks until the handshake
// completes, ctx is done, or cfg.ConnectTimeout elapses (reported as an
// *archiveerr.Timeout). handler may be nil.
func Connect(ctx context.Context, aeron transport.Aeron, cfg *Config, handler AsyncErrorHandler) (*Archive, error) {
	handshake, err := control.NewAsyncConnect(
		ctx,
		aeron,
		cfg.RequestChannel,
		cfg.RequestStreamID,
		cfg.ResponseChannel,
		cfg.ResponseStreamID,
		control.YieldingIdleStrategy{},
		cfg.ConnectTimeout.Duration,
		cfg.ResponseFragmentLimit,
		cfg.OfferRetryCount,
		cfg.ScratchBufferSize,
	)
	if err != nil {
		return nil, err
	}

	idle := control.YieldingIdleStrategy{}
	deadline := time.Now().Add(cfg.ConnectTimeout.Duration)
	for {
		done, err := handshake.Poll()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		if time.Now().After(deadline) {
			return nil, archiveerr.NewTimeout("timeout awaiting archive connect response")
		}
		select {
		case <-ctx.Done():
			return nil, archiveerr.New("archive connect canceled")
		default:
			idle.Idle()
		}
	}

	inner, err := handshake.MakeArchive(cfg.MessageTimeout.Duration, handler)
	if err != nil {
		return nil, err
	}
	return &Archive{inner: inner, latencies: metrics.NewCommandLatencies()}, nil
}

func (a *Archive) ControlSessionID() int64 { return a.inner.ControlSessionID() }

func (a *Archive) StartRecording(channel string, streamID int32, sourceLocation aeronproto.SourceLocation, autoStop bool) (int64, error) {
	return a.timed("start-recording", func() (int64, error) {
		return a.inner.StartRecording(channel, streamID, sourceLocation, autoStop)
	})
}

func (a *Archive) StopRecording(channel string, streamID int32) (int64, error) {
	return a.timed("stop-recording", func() (int64, error) {
		return a.inner.StopRecording(channel, streamID)
	})
}

func (a *Archive) StopRecordingBySubscriptionID(subscriptionID int64) (int64, error) {
	return a.timed("stop-recording-by-subscription", func() (int64, error) {
		return a.inner.StopRecordingBySubscriptionID(subscriptionID)
	})
}

func (a *Archive) ExtendRecording(recordingID int64, channel string, streamID int32, sourceLocation aeronproto.SourceLocation, autoStop bool) (int64, error) {
	return a.timed("extend-recording", func() (int64, error) {
		return a.inner.ExtendRecording(recordingID, channel, streamID, sourceLocation, autoStop)
	})
}

func (a *Archive) StartReplay(recordingID, position, length int64, replayChannel string, replayStreamID int32) (int64, error) {
	return a.timed("replay", func() (int64, error) {
		return a.inner.StartReplay(recordingID, position, length, replayChannel, replayStreamID)
	})
}

func (a *Archive) StartBoundedReplay(recordingID, position, length int64, replayChannel string, replayStreamID, limitCounterID int32) (int64, error) {
	return a.timed("bounded-replay", func() (int64, error) {
		return a.inner.StartBoundedReplay(recordingID, position, length, replayChannel, replayStreamID, limitCounterID)
	})
}

func (a *Archive) StopReplay(replaySessionID int64) (int64, error) {
	return a.timed("stop-replay", func() (int64, error) {
		return a.inner.StopReplay(replaySessionID)
	})
}

func (a *Archive) StopAllReplays(recordingID int64) (int64, error) {
	return a.timed("stop-all-replays", func() (int64, error) {
		return a.inner.StopAllReplays(recordingID)
	})
}

func (a *Archive) GetRecordingPosition(recordingID int64) (int64, error) {
	return a.timed("get-recording-position", func() (int64, error) {
		return a.inner.GetRecordingPosition(recordingID)
	})
}

func (a *Archive) GetStopPosition(recordingID int64) (int64, error) {
	return a.timed("get-stop-position", func() (int64, error) {
		return a.inner.GetStopPosition(recordingID)
	})
}

func (a *Archive) TruncateRecording(recordingID, position int64) (int64, error) {
	return a.timed("truncate-recording", func() (int64, error) {
		return a.inner.TruncateRecording(recordingID, position)
	})
}

func (a *Archive) FindLastMatchingRecording(minRecordingID int64, sessionID, streamID int32, channelFragment string) (int64, error) {
	return a.timed("find-last-matching-recording", func() (int64, error) {
		return a.inner.FindLastMatchingRecording(minRecordingID, sessionID, streamID, channelFragment)
	})
}

func (a *Archive) ListRecordings(fromRecordingID int64, recordCount int32, consumer control.DescriptorConsumer[aeronproto.RecordingDescriptor]) (int32, error) {
	return a.inner.ListRecordings(fromRecordingID, recordCount, consumer)
}

func (a *Archive) ListRecordingsForUri(fromRecordingID int64, recordCount, streamID int32, channelFragment string, consumer control.DescriptorConsumer[aeronproto.RecordingDescriptor]) (int32, error) {
	return a.inner.ListRecordingsForUri(fromRecordingID, recordCount, streamID, channelFragment, consumer)
}

func (a *Archive) ListRecording(recordingID int64, consumer control.DescriptorConsumer[aeronproto.RecordingDescriptor]) (int32, error) {
	return a.inner.ListRecording(recordingID, consumer)
}

func (a *Archive) ListRecordingSubscriptions(pseudoIndex, subscriptionCount int32, applyStreamID bool, streamID int32, channelFragment string, consumer control.DescriptorConsumer[aeronproto.RecordingSubscriptionDescriptor]) (int32, error) {
	return a.inner.ListRecordingSubscriptions(pseudoIndex, subscriptionCount, applyStreamID, streamID, channelFragment, consumer)
}

func (a *Archive) AddRecordedPublication(ctx context.Context, channel string, streamID int32) (transport.Publication, error) {
	return a.inner.AddRecordedPublication(ctx, channel, streamID)
}

func (a *Archive) AddRecordedExclusivePublication(ctx context.Context, channel string, streamID int32) (transport.Publication, error) {
	return a.inner.AddRecordedExclusivePublication(ctx, channel, streamID)
}

func (a *Archive) StopRecordingOfPublication(pub transport.Publication) (int64, error) {
	return a.inner.StopRecordingOfPublication(pub)
}

func (a *Archive) ReplayWithSubscription(ctx context.Context, recordingID, position, length int64, replayChannel string, replayStreamID int32) (transport.Subscription, error) {
	return a.inner.ReplayWithSubscription(ctx, recordingID, position, length, replayChannel, replayStreamID)
}

func (a *Archive) CheckForErrorResponse() error {
	return a.inner.CheckForErrorResponse()
}

func (a *Archive) Close() error { return a.inner.Close() }

// NewReplayMerge builds a ReplayMerge bound to this archive's session
// controller, seeded from cfg's configured thresholds.
func (a *Archive) NewReplayMerge(subscription transport.Subscription, replayChannel, replayDestination, liveDestination string, recordingID, startPosition int64, cfg *Config) (*ReplayMerge, error) {
	rm, err := control.NewReplayMerge(a.inner, subscription, replayChannel, replayDestination, liveDestination, recordingID, startPosition)
	if err != nil {
		return nil, err
	}
	rm.SetThresholds(cfg.LiveAddThreshold, cfg.ReplayRemoveThreshold)
	return rm, nil
}
