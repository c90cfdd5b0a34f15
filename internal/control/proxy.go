package control

import (
	"time"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/archiveerr"
	"archiveclient/pkg/transport"
)

// DefaultRetryCount is how many times a normal-path offer retries on
// back-pressure before the caller is told the send failed (spec.md §4.1).
const DefaultRetryCount = 3

// DefaultScratchBufferSize is the scratch buffer size used when a caller
// does not configure one (spec.md §3: implementers may raise this for
// request types with large variable-length fields, e.g. long channel URIs).
const DefaultScratchBufferSize = 256

// ArchiveProxy is the single owner of the scratch buffer used to frame every
// outbound request; grounded on the teacher's doRequestProcess offer/retry
// loop (internal/cli/proc.go), generalized from a length-framed KV wire
// message to an SBE-shaped archive request.
type ArchiveProxy struct {
	pub            transport.Publication
	idle           IdleStrategy
	retryCount     int
	connectTimeout time.Duration
	scratch        []byte
}

// NewArchiveProxy constructs an encoder bound to a single control-request
// publication. Not safe to share across session controllers (spec.md §9's
// single-writer discipline). scratchSize sizes the frame buffer every
// request is encoded into; a value <= 0 falls back to
// DefaultScratchBufferSize.
func NewArchiveProxy(pub transport.Publication, idle IdleStrategy, retryCount int, connectTimeout time.Duration, scratchSize int) *ArchiveProxy {
	if retryCount <= 0 {
		retryCount = DefaultRetryCount
	}
	if scratchSize <= 0 {
		scratchSize = DefaultScratchBufferSize
	}
	return &ArchiveProxy{pub: pub, idle: idle, retryCount: retryCount, connectTimeout: connectTimeout, scratch: make([]byte, scratchSize)}
}

// offerResult classifies a raw Publication.Offer return value.
func offerResult(position int64) (ok bool, sentinel transport.OfferResult) {
	if position > 0 {
		return true, 0
	}
	return false, transport.OfferResult(position)
}

// offerConnect implements the retry-until-deadline policy connect/tryConnect
// use (spec.md §4.1). single=true performs exactly one attempt (tryConnect).
func (p *ArchiveProxy) offerConnect(n int, single bool) (bool, error) {
	deadline := time.Now().Add(p.connectTimeout)
	p.idle.Reset()
	for {
		position, err := p.pub.Offer(p.scratch[:n])
		if err != nil {
			return false, err
		}
		ok, sentinel := offerResult(position)
		if ok {
			return true, nil
		}
		if sentinel.IsFatal() {
			return false, fatalOfferError(sentinel)
		}
		if single {
			return false, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		p.idle.Idle()
	}
}

// offerWithRetry implements the bounded-retry policy every non-connect
// operation uses: up to retryCount attempts on BACK_PRESSURED/ADMIN_ACTION,
// immediate fatal error on PUBLICATION_CLOSED/MAX_POSITION_EXCEEDED/
// NOT_CONNECTED.
func (p *ArchiveProxy) offerWithRetry(n int) (bool, error) {
	p.idle.Reset()
	for attempt := 0; attempt < p.retryCount; attempt++ {
		position, err := p.pub.Offer(p.scratch[:n])
		if err != nil {
			return false, err
		}
		ok, sentinel := offerResult(position)
		if ok {
			return true, nil
		}
		if sentinel == transport.NotConnected || sentinel.IsFatal() {
			return false, fatalOfferError(sentinel)
		}
		p.idle.Idle()
	}
	return false, nil
}

func fatalOfferError(sentinel transport.OfferResult) error {
	switch sentinel {
	case transport.PublicationClosed:
		return archiveerr.New("connection to the archive has been closed")
	case transport.MaxPositionExceeded:
		return archiveerr.New("offer failed due to max position being reached")
	case transport.NotConnected:
		return archiveerr.New("connection to the archive is no longer available")
	default:
		return archiveerr.Newf("offer failed: %s", sentinel)
	}
}

// Connect offers a connect request, retrying until connectTimeout elapses.
func (p *ArchiveProxy) Connect(responseChannel string, responseStreamID int32, correlationID int64) (bool, error) {
	req := aeronproto.ConnectRequest{
		CorrelationID:    correlationID,
		ResponseStreamID: responseStreamID,
		Version:          aeronproto.ClientSemanticVersion,
		ResponseChannel:  responseChannel,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerConnect(n, false)
}

// TryConnect offers a single connect attempt, no retry.
func (p *ArchiveProxy) TryConnect(responseChannel string, responseStreamID int32, correlationID int64) (bool, error) {
	req := aeronproto.ConnectRequest{
		CorrelationID:    correlationID,
		ResponseStreamID: responseStreamID,
		Version:          aeronproto.ClientSemanticVersion,
		ResponseChannel:  responseChannel,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerConnect(n, true)
}

// CloseSession is best-effort: the caller ignores a false return.
func (p *ArchiveProxy) CloseSession(controlSessionID int64) (bool, error) {
	req := aeronproto.CloseSessionRequest{ControlSessionID: controlSessionID}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) StartRecording(controlSessionID, correlationID int64, channel string, streamID int32, sourceLocation aeronproto.SourceLocation, autoStop bool) (bool, error) {
	req := aeronproto.StartRecordingRequest{
		RequestHeader:  aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		Channel:        channel,
		StreamID:       streamID,
		SourceLocation: sourceLocation,
		AutoStop:       autoStop,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) StopRecording(controlSessionID, correlationID int64, channel string, streamID int32) (bool, error) {
	req := aeronproto.StopRecordingRequest{
		RequestHeader: aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		Channel:       channel,
		StreamID:      streamID,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) StopRecordingBySubscription(controlSessionID, correlationID, subscriptionID int64) (bool, error) {
	req := aeronproto.StopRecordingBySubscriptionRequest{
		RequestHeader:  aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		SubscriptionID: subscriptionID,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) ExtendRecording(controlSessionID, correlationID, recordingID int64, channel string, streamID int32, sourceLocation aeronproto.SourceLocation, autoStop bool) (bool, error) {
	req := aeronproto.ExtendRecordingRequest{
		RequestHeader:  aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		RecordingID:    recordingID,
		Channel:        channel,
		StreamID:       streamID,
		SourceLocation: sourceLocation,
		AutoStop:       autoStop,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) Replay(controlSessionID, correlationID, recordingID, position, length int64, replayChannel string, replayStreamID int32) (bool, error) {
	req := aeronproto.ReplayRequest{
		RequestHeader:  aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		RecordingID:    recordingID,
		Position:       position,
		Length:         length,
		ReplayStreamID: replayStreamID,
		ReplayChannel:  replayChannel,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) BoundedReplay(controlSessionID, correlationID, recordingID, position, length int64, replayChannel string, replayStreamID, limitCounterID int32) (bool, error) {
	req := aeronproto.BoundedReplayRequest{
		ReplayRequest: aeronproto.ReplayRequest{
			RequestHeader:  aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
			RecordingID:    recordingID,
			Position:       position,
			Length:         length,
			ReplayStreamID: replayStreamID,
			ReplayChannel:  replayChannel,
		},
		LimitCounterID: limitCounterID,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) StopReplay(controlSessionID, correlationID, replaySessionID int64) (bool, error) {
	req := aeronproto.StopReplayRequest{
		RequestHeader:   aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		ReplaySessionID: replaySessionID,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) StopAllReplays(controlSessionID, correlationID, recordingID int64) (bool, error) {
	req := aeronproto.StopAllReplaysRequest{
		RequestHeader: aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		RecordingID:   recordingID,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) ListRecordings(controlSessionID, correlationID, fromRecordingID int64, recordCount int32) (bool, error) {
	req := aeronproto.ListRecordingsRequest{
		RequestHeader:   aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		FromRecordingID: fromRecordingID,
		RecordCount:     recordCount,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) ListRecordingsForUri(controlSessionID, correlationID, fromRecordingID int64, recordCount, streamID int32, channelFragment string) (bool, error) {
	req := aeronproto.ListRecordingsForUriRequest{
		RequestHeader:   aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		FromRecordingID: fromRecordingID,
		RecordCount:     recordCount,
		StreamID:        streamID,
		ChannelFragment: channelFragment,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) ListRecording(controlSessionID, correlationID, recordingID int64) (bool, error) {
	req := aeronproto.ListRecordingRequest{
		RequestHeader: aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		RecordingID:   recordingID,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) ListRecordingSubscriptions(controlSessionID, correlationID int64, pseudoIndex, subscriptionCount int32, applyStreamID bool, streamID int32, channelFragment string) (bool, error) {
	req := aeronproto.ListRecordingSubscriptionsRequest{
		RequestHeader:     aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		PseudoIndex:       pseudoIndex,
		SubscriptionCount: subscriptionCount,
		ApplyStreamID:     applyStreamID,
		StreamID:          streamID,
		ChannelFragment:   channelFragment,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) GetRecordingPosition(controlSessionID, correlationID, recordingID int64) (bool, error) {
	req := aeronproto.GetRecordingPositionRequest{
		RequestHeader: aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		RecordingID:   recordingID,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) GetStopPosition(controlSessionID, correlationID, recordingID int64) (bool, error) {
	req := aeronproto.GetStopPositionRequest{
		RequestHeader: aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		RecordingID:   recordingID,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) TruncateRecording(controlSessionID, correlationID, recordingID, position int64) (bool, error) {
	req := aeronproto.TruncateRecordingRequest{
		RequestHeader: aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		RecordingID:   recordingID,
		Position:      position,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}

func (p *ArchiveProxy) FindLastMatchingRecording(controlSessionID, correlationID, minRecordingID int64, sessionID, streamID int32, channelFragment string) (bool, error) {
	req := aeronproto.FindLastMatchingRecordingRequest{
		RequestHeader:   aeronproto.RequestHeader{ControlSessionID: controlSessionID, CorrelationID: correlationID},
		MinRecordingID:  minRecordingID,
		SessionID:       sessionID,
		StreamID:        streamID,
		ChannelFragment: channelFragment,
	}
	n, err := req.Encode(p.scratch[:])
	if err != nil {
		return false, err
	}
	return p.offerWithRetry(n)
}
