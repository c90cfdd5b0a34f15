package control

import (
	"context"
	"sync"
	"time"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/archiveerr"
	"archiveclient/pkg/logging"
	"archiveclient/pkg/telemetry"
	"archiveclient/pkg/transport"
)

// AsyncErrorHandler receives protocol errors observed for a correlation id
// other than the one a command is currently awaiting (spec.md §7).
type AsyncErrorHandler func(error)

// AeronArchive is the session controller: it owns the control session id,
// drives the encoder and pollers under a single mutex, and exposes the
// synchronous command surface. Grounded on the teacher's
// cli.Processor.ProcessRequest (mutex-guarded single-flight request against
// a shared connection), generalized from a length-framed KV request to the
// archive's correlation-id-matched command protocol.
type AeronArchive struct {
	mu sync.Mutex

	controlSessionID        int64
	proxy                   *ArchiveProxy
	responsePoller          *ControlResponsePoller
	recordingDescriptors    *DescriptorPoller[aeronproto.RecordingDescriptor]
	subscriptionDescriptors *DescriptorPoller[aeronproto.RecordingSubscriptionDescriptor]
	correlationIDs          *CorrelationIDGenerator
	idle                    IdleStrategy
	messageTimeout          time.Duration
	asyncErrorHandler       AsyncErrorHandler
	aeron                   transport.Aeron
	recordedChannels        map[transport.ChannelKey]int32
	closed                  bool
}

// NewAeronArchive assembles a session controller around an already
// established control session. Used directly by tests and by
// AsyncConnect.MakeArchive once the handshake completes.
func NewAeronArchive(
	controlSessionID int64,
	proxy *ArchiveProxy,
	responseSub transport.Subscription,
	aeron transport.Aeron,
	idle IdleStrategy,
	messageTimeout time.Duration,
	fragmentLimit int,
	correlationIDs *CorrelationIDGenerator,
	asyncErrorHandler AsyncErrorHandler,
) *AeronArchive {
	if idle == nil {
		idle = YieldingIdleStrategy{}
	}
	if correlationIDs == nil {
		correlationIDs = NewCorrelationIDGenerator()
	}
	responsePoller := NewControlResponsePoller(responseSub, fragmentLimit)
	return &AeronArchive{
		controlSessionID: controlSessionID,
		proxy:            proxy,
		responsePoller:   responsePoller,
		recordingDescriptors: NewDescriptorPoller[aeronproto.RecordingDescriptor](
			responseSub, fragmentLimit, aeronproto.TemplateRecordingDescriptor, aeronproto.CodeRecordingUnknown, asyncErrorHandler),
		subscriptionDescriptors: NewDescriptorPoller[aeronproto.RecordingSubscriptionDescriptor](
			responseSub, fragmentLimit, aeronproto.TemplateRecordingSubscriptionDescriptor, aeronproto.CodeSubscriptionUnknown, asyncErrorHandler),
		correlationIDs:    correlationIDs,
		idle:              idle,
		messageTimeout:    messageTimeout,
		asyncErrorHandler: asyncErrorHandler,
		aeron:             aeron,
		recordedChannels:  make(map[transport.ChannelKey]int32),
	}
}

func (a *AeronArchive) ControlSessionID() int64 { return a.controlSessionID }

// pollForResponse implements the single-response protocol of spec.md §4.4.
// Must be called with a.mu held.
func (a *AeronArchive) pollForResponse(correlationID int64) (int64, error) {
	diagnosticID := aeronproto.NewDiagnosticID()
	deadline := time.Now().Add(a.messageTimeout)
	a.idle.Reset()
	for {
		if _, err := a.responsePoller.Poll(); err != nil {
			return 0, err
		}
		if !a.responsePoller.IsPollComplete() {
			if !a.responsePoller.Subscription().IsConnected() {
				return 0, archiveerr.New("control response subscription is not connected")
			}
			if time.Now().After(deadline) {
				logging.Warningf("archive[%s]: timeout awaiting response for correlation id %d", diagnosticID, correlationID)
				return 0, archiveerr.NewTimeout("timeout awaiting archive response")
			}
			a.idle.Idle()
			continue
		}
		if !a.responsePoller.IsControlResponse() || a.responsePoller.ControlSessionID() != a.controlSessionID {
			continue
		}
		if a.responsePoller.CorrelationID() != correlationID {
			if a.responsePoller.IsCodeError() && a.asyncErrorHandler != nil {
				logging.Debugf("archive[%s]: forwarding async error for correlation id %d: %s", diagnosticID, a.responsePoller.CorrelationID(), a.responsePoller.ErrorMessage())
				a.asyncErrorHandler(archiveProtocolErrorFromPoller(a.responsePoller))
			}
			continue
		}
		switch a.responsePoller.Code() {
		case aeronproto.CodeError:
			return 0, archiveProtocolErrorFromPoller(a.responsePoller)
		case aeronproto.CodeOK:
			return a.responsePoller.RelevantID(), nil
		default:
			return 0, archiveerr.Newf("unexpected response code %s for correlation id %d", a.responsePoller.Code(), correlationID)
		}
	}
}

// invoke is the single-response command protocol: mint a correlation id,
// encode+offer under the mutex, then wait for the matching response. Each
// call is wrapped in its own span and adds to the commands/errors counters.
func (a *AeronArchive) invoke(name string, encode func(correlationID int64) (bool, error)) (int64, error) {
	ctx, span := telemetry.StartCommandSpan(context.Background(), name)
	relevantID, err := a.invokeLocked(name, encode)
	telemetry.EndCommandSpan(ctx, span, name, err)
	return relevantID, err
}

func (a *AeronArchive) invokeLocked(name string, encode func(correlationID int64) (bool, error)) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, archiveerr.New("archive session is closed")
	}
	correlationID := a.correlationIDs.Next()
	ok, err := encode(correlationID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, archiveerr.Newf("failed to send %s request", name)
	}
	return a.pollForResponse(correlationID)
}

func (a *AeronArchive) StartRecording(channel string, streamID int32, sourceLocation aeronproto.SourceLocation, autoStop bool) (int64, error) {
	return a.invoke("start-recording", func(correlationID int64) (bool, error) {
		return a.proxy.StartRecording(a.controlSessionID, correlationID, channel, streamID, sourceLocation, autoStop)
	})
}

func (a *AeronArchive) StopRecording(channel string, streamID int32) (int64, error) {
	return a.invoke("stop-recording", func(correlationID int64) (bool, error) {
		return a.proxy.StopRecording(a.controlSessionID, correlationID, channel, streamID)
	})
}

func (a *AeronArchive) StopRecordingBySubscriptionID(subscriptionID int64) (int64, error) {
	return a.invoke("stop-recording-subscription", func(correlationID int64) (bool, error) {
		return a.proxy.StopRecordingBySubscription(a.controlSessionID, correlationID, subscriptionID)
	})
}

func (a *AeronArchive) ExtendRecording(recordingID int64, channel string, streamID int32, sourceLocation aeronproto.SourceLocation, autoStop bool) (int64, error) {
	return a.invoke("extend-recording", func(correlationID int64) (bool, error) {
		return a.proxy.ExtendRecording(a.controlSessionID, correlationID, recordingID, channel, streamID, sourceLocation, autoStop)
	})
}

func (a *AeronArchive) StartReplay(recordingID, position, length int64, replayChannel string, replayStreamID int32) (int64, error) {
	return a.invoke("replay", func(correlationID int64) (bool, error) {
		return a.proxy.Replay(a.controlSessionID, correlationID, recordingID, position, length, replayChannel, replayStreamID)
	})
}

func (a *AeronArchive) StartBoundedReplay(recordingID, position, length int64, replayChannel string, replayStreamID, limitCounterID int32) (int64, error) {
	return a.invoke("bounded-replay", func(correlationID int64) (bool, error) {
		return a.proxy.BoundedReplay(a.controlSessionID, correlationID, recordingID, position, length, replayChannel, replayStreamID, limitCounterID)
	})
}

func (a *AeronArchive) StopReplay(replaySessionID int64) (int64, error) {
	return a.invoke("stop-replay", func(correlationID int64) (bool, error) {
		return a.proxy.StopReplay(a.controlSessionID, correlationID, replaySessionID)
	})
}

func (a *AeronArchive) StopAllReplays(recordingID int64) (int64, error) {
	return a.invoke("stop-all-replays", func(correlationID int64) (bool, error) {
		return a.proxy.StopAllReplays(a.controlSessionID, correlationID, recordingID)
	})
}

func (a *AeronArchive) GetRecordingPosition(recordingID int64) (int64, error) {
	return a.invoke("get-recording-position", func(correlationID int64) (bool, error) {
		return a.proxy.GetRecordingPosition(a.controlSessionID, correlationID, recordingID)
	})
}

func (a *AeronArchive) GetStopPosition(recordingID int64) (int64, error) {
	return a.invoke("get-stop-position", func(correlationID int64) (bool, error) {
		return a.proxy.GetStopPosition(a.controlSessionID, correlationID, recordingID)
	})
}

func (a *AeronArchive) TruncateRecording(recordingID, position int64) (int64, error) {
	return a.invoke("truncate-recording", func(correlationID int64) (bool, error) {
		return a.proxy.TruncateRecording(a.controlSessionID, correlationID, recordingID, position)
	})
}

func (a *AeronArchive) FindLastMatchingRecording(minRecordingID int64, sessionID, streamID int32, channelFragment string) (int64, error) {
	return a.invoke("find-last-matching-recording", func(correlationID int64) (bool, error) {
		return a.proxy.FindLastMatchingRecording(a.controlSessionID, correlationID, minRecordingID, sessionID, streamID, channelFragment)
	})
}

// dispatchDescriptors implements the multi-record command protocol of
// spec.md §4.4: the deadline is rearmed on every record delivered.
func dispatchDescriptors[T any](poller *DescriptorPoller[T], idle IdleStrategy, timeout time.Duration, sub transport.Subscription, expectedCount int32) (int32, error) {
	diagnosticID := aeronproto.NewDiagnosticID()
	deadline := time.Now().Add(timeout)
	idle.Reset()
	for {
		delivered, err := poller.Poll()
		if err != nil {
			return expectedCount - poller.Remaining(), err
		}
		if poller.IsDispatchComplete() {
			return expectedCount - poller.Remaining(), nil
		}
		if delivered > 0 {
			deadline = time.Now().Add(timeout)
			continue
		}
		if !sub.IsConnected() {
			return expectedCount - poller.Remaining(), archiveerr.New("control response subscription is not connected")
		}
		if time.Now().After(deadline) {
			logging.Warningf("archive[%s]: timeout awaiting descriptor stream, %d of %d delivered", diagnosticID, expectedCount-poller.Remaining(), expectedCount)
			return expectedCount - poller.Remaining(), archiveerr.NewTimeout("timeout awaiting descriptor stream")
		}
		idle.Idle()
	}
}

func (a *AeronArchive) ListRecordings(fromRecordingID int64, recordCount int32, consumer DescriptorConsumer[aeronproto.RecordingDescriptor]) (int32, error) {
	ctx, span := telemetry.StartCommandSpan(context.Background(), "list-recordings")
	delivered, err := a.listRecordingsLocked(fromRecordingID, recordCount, consumer)
	telemetry.EndCommandSpan(ctx, span, "list-recordings", err)
	return delivered, err
}

func (a *AeronArchive) listRecordingsLocked(fromRecordingID int64, recordCount int32, consumer DescriptorConsumer[aeronproto.RecordingDescriptor]) (int32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, archiveerr.New("archive session is closed")
	}
	correlationID := a.correlationIDs.Next()
	ok, err := a.proxy.ListRecordings(a.controlSessionID, correlationID, fromRecordingID, recordCount)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, archiveerr.New("failed to send list-recordings request")
	}
	a.recordingDescriptors.Reset(a.controlSessionID, correlationID, recordCount, consumer)
	return dispatchDescriptors(a.recordingDescriptors, a.idle, a.messageTimeout, a.responsePoller.Subscription(), recordCount)
}

func (a *AeronArchive) ListRecordingsForUri(fromRecordingID int64, recordCount, streamID int32, channelFragment string, consumer DescriptorConsumer[aeronproto.RecordingDescriptor]) (int32, error) {
	ctx, span := telemetry.StartCommandSpan(context.Background(), "list-recordings-for-uri")
	delivered, err := a.listRecordingsForUriLocked(fromRecordingID, recordCount, streamID, channelFragment, consumer)
	telemetry.EndCommandSpan(ctx, span, "list-recordings-for-uri", err)
	return delivered, err
}

func (a *AeronArchive) listRecordingsForUriLocked(fromRecordingID int64, recordCount, streamID int32, channelFragment string, consumer DescriptorConsumer[aeronproto.RecordingDescriptor]) (int32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, archiveerr.New("archive session is closed")
	}
	correlationID := a.correlationIDs.Next()
	ok, err := a.proxy.ListRecordingsForUri(a.controlSessionID, correlationID, fromRecordingID, recordCount, streamID, channelFragment)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, archiveerr.New("failed to send list-recordings-for-uri request")
	}
	a.recordingDescriptors.Reset(a.controlSessionID, correlationID, recordCount, consumer)
	return dispatchDescriptors(a.recordingDescriptors, a.idle, a.messageTimeout, a.responsePoller.Subscription(), recordCount)
}

func (a *AeronArchive) ListRecording(recordingID int64, consumer DescriptorConsumer[aeronproto.RecordingDescriptor]) (int32, error) {
	ctx, span := telemetry.StartCommandSpan(context.Background(), "list-recording")
	delivered, err := a.listRecordingLocked(recordingID, consumer)
	telemetry.EndCommandSpan(ctx, span, "list-recording", err)
	return delivered, err
}

func (a *AeronArchive) listRecordingLocked(recordingID int64, consumer DescriptorConsumer[aeronproto.RecordingDescriptor]) (int32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, archiveerr.New("archive session is closed")
	}
	correlationID := a.correlationIDs.Next()
	ok, err := a.proxy.ListRecording(a.controlSessionID, correlationID, recordingID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, archiveerr.New("failed to send list-recording request")
	}
	a.recordingDescriptors.Reset(a.controlSessionID, correlationID, 1, consumer)
	return dispatchDescriptors(a.recordingDescriptors, a.idle, a.messageTimeout, a.responsePoller.Subscription(), 1)
}

func (a *AeronArchive) ListRecordingSubscriptions(pseudoIndex, subscriptionCount int32, applyStreamID bool, streamID int32, channelFragment string, consumer DescriptorConsumer[aeronproto.RecordingSubscriptionDescriptor]) (int32, error) {
	ctx, span := telemetry.StartCommandSpan(context.Background(), "list-recording-subscriptions")
	delivered, err := a.listRecordingSubscriptionsLocked(pseudoIndex, subscriptionCount, applyStreamID, streamID, channelFragment, consumer)
	telemetry.EndCommandSpan(ctx, span, "list-recording-subscriptions", err)
	return delivered, err
}

func (a *AeronArchive) listRecordingSubscriptionsLocked(pseudoIndex, subscriptionCount int32, applyStreamID bool, streamID int32, channelFragment string, consumer DescriptorConsumer[aeronproto.RecordingSubscriptionDescriptor]) (int32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, archiveerr.New("archive session is closed")
	}
	correlationID := a.correlationIDs.Next()
	ok, err := a.proxy.ListRecordingSubscriptions(a.controlSessionID, correlationID, pseudoIndex, subscriptionCount, applyStreamID, streamID, channelFragment)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, archiveerr.New("failed to send list-recording-subscriptions request")
	}
	a.subscriptionDescriptors.Reset(a.controlSessionID, correlationID, subscriptionCount, consumer)
	return dispatchDescriptors(a.subscriptionDescriptors, a.idle, a.messageTimeout, a.responsePoller.Subscription(), subscriptionCount)
}

// AddRecordedPublication adds a publication via the transport, waits for it
// to resolve, rejects a second non-original session on the same channel,
// then starts recording the session-scoped channel (spec.md §4.4).
func (a *AeronArchive) AddRecordedPublication(ctx context.Context, channel string, streamID int32) (transport.Publication, error) {
	return a.addRecordedPublication(ctx, channel, streamID, false)
}

// AddRecordedExclusivePublication is the exclusive-publication variant.
func (a *AeronArchive) AddRecordedExclusivePublication(ctx context.Context, channel string, streamID int32) (transport.Publication, error) {
	return a.addRecordedPublication(ctx, channel, streamID, true)
}

func (a *AeronArchive) addRecordedPublication(ctx context.Context, channel string, streamID int32, exclusive bool) (transport.Publication, error) {
	var pub transport.Publication
	var err error
	if exclusive {
		pub, err = a.aeron.AddExclusivePublication(ctx, channel, streamID)
	} else {
		pub, err = a.aeron.AddPublication(ctx, channel, streamID)
	}
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(a.messageTimeout)
	for !pub.IsConnected() {
		if time.Now().After(deadline) {
			return nil, archiveerr.NewTimeout("timeout waiting for recorded publication to connect")
		}
		a.idle.Idle()
	}

	key := transport.NewChannelKey(channel, streamID)
	a.mu.Lock()
	if existing, dup := a.recordedChannels[key]; dup && existing != pub.SessionID() {
		a.mu.Unlock()
		return nil, archiveerr.New("a second, non-original session already exists for this recorded channel")
	}
	a.recordedChannels[key] = pub.SessionID()
	a.mu.Unlock()

	sessionChannel := transport.AppendSessionID(channel, pub.SessionID())
	if _, err := a.StartRecording(sessionChannel, streamID, aeronproto.SourceLocationLocal, false); err != nil {
		return nil, err
	}
	return pub, nil
}

// StopRecordingOfPublication derives the session-scoped channel from a
// publication previously returned by AddRecordedPublication and stops it.
func (a *AeronArchive) StopRecordingOfPublication(pub transport.Publication) (int64, error) {
	channel := transport.AppendSessionID(pub.Channel(), pub.SessionID())
	return a.StopRecording(channel, pub.StreamID())
}

// ReplayWithSubscription starts a replay and adds a subscription bound to
// the replay image's session id (spec.md §4.4).
func (a *AeronArchive) ReplayWithSubscription(ctx context.Context, recordingID, position, length int64, replayChannel string, replayStreamID int32) (transport.Subscription, error) {
	replaySessionID, err := a.StartReplay(recordingID, position, length, replayChannel, replayStreamID)
	if err != nil {
		return nil, err
	}
	imageSessionID := int32(uint64(replaySessionID) & 0xFFFFFFFF)
	channel := transport.AppendSessionID(replayChannel, imageSessionID)
	return a.aeron.AddSubscription(ctx, channel, replayStreamID)
}

// PollForErrorResponse is a single non-blocking poll that returns a decoded
// archive error iff a complete, session-matching, ERROR-coded response was
// observed; it silently discards any other complete response it happens to
// consume (spec.md §9 Open Question — preserved intentionally). Only call
// this when not already awaiting another response.
func (a *AeronArchive) PollForErrorResponse() (*archiveerr.ArchiveError, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, archiveerr.New("archive session is closed")
	}
	if _, err := a.responsePoller.Poll(); err != nil {
		return nil, err
	}
	if !a.responsePoller.IsPollComplete() || !a.responsePoller.IsControlResponse() {
		return nil, nil
	}
	if a.responsePoller.ControlSessionID() != a.controlSessionID || !a.responsePoller.IsCodeError() {
		return nil, nil
	}
	return archiveerr.NewArchiveError(archiveerr.ErrorCode(a.responsePoller.RelevantID()), a.responsePoller.ErrorMessage()), nil
}

// CheckForErrorResponse raises the decoded error from PollForErrorResponse,
// if any, as a Go error.
func (a *AeronArchive) CheckForErrorResponse() error {
	archErr, err := a.PollForErrorResponse()
	if err != nil {
		return err
	}
	if archErr != nil {
		return archErr
	}
	return nil
}

// Close best-effort offers closeSession and marks the controller unusable.
// Offer failure is ignored (spec.md §4.4).
func (a *AeronArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	_, _ = a.proxy.CloseSession(a.controlSessionID)
	return nil
}
