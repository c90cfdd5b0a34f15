package control

import (
	"context"
	"time"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/archiveerr"
	"archiveclient/pkg/telemetry"
	"archiveclient/pkg/transport"
	"go.opentelemetry.io/otel/trace"
)

// AsyncConnect drives the three-step handshake — response subscription
// ready, request publication ready, connect-request acknowledged — as a
// non-blocking state machine polled by the embedder (spec.md §4.5).
// Grounded on the teacher's Processor.Start() sequencing, restated as a
// step function instead of a blocking call.
type AsyncConnect struct {
	aeron            transport.Aeron
	sub              transport.Subscription
	pub              transport.Publication
	responseChannel  string
	responseStreamID int32
	idle             IdleStrategy
	connectTimeout   time.Duration
	fragmentLimit    int
	retryCount       int
	scratchSize      int
	correlationIDs   *CorrelationIDGenerator

	poller *ControlResponsePoller
	proxy  *ArchiveProxy

	haveCorrelationID          bool
	correlationID              int64
	controlResponsePollerReady bool
	archiveProxyReady          bool

	done             bool
	controlSessionID int64

	span trace.Span
}

// NewAsyncConnect registers the response subscription and request
// publication with the transport and returns a handshake driver ready to be
// polled. Registration itself is synchronous in this transport contract;
// connectivity is what Poll() waits on.
func NewAsyncConnect(
	ctx context.Context,
	aeron transport.Aeron,
	requestChannel string,
	requestStreamID int32,
	responseChannel string,
	responseStreamID int32,
	idle IdleStrategy,
	connectTimeout time.Duration,
	fragmentLimit int,
	retryCount int,
	scratchSize int,
) (*AsyncConnect, error) {
	if idle == nil {
		idle = YieldingIdleStrategy{}
	}
	sub, err := aeron.AddSubscription(ctx, responseChannel, responseStreamID)
	if err != nil {
		return nil, err
	}
	pub, err := aeron.AddPublication(ctx, requestChannel, requestStreamID)
	if err != nil {
		return nil, err
	}
	return &AsyncConnect{
		aeron:            aeron,
		sub:              sub,
		pub:              pub,
		responseChannel:  responseChannel,
		responseStreamID: responseStreamID,
		idle:             idle,
		connectTimeout:   connectTimeout,
		fragmentLimit:    fragmentLimit,
		retryCount:       retryCount,
		scratchSize:      scratchSize,
		correlationIDs:   NewCorrelationIDGenerator(),
	}, nil
}

// Poll is idempotent and returns true exactly once the handshake completes.
func (c *AsyncConnect) Poll() (bool, error) {
	if c.done {
		return true, nil
	}

	if c.span == nil {
		_, c.span = telemetry.StartConnectSpan(context.Background())
	}

	if !c.controlResponsePollerReady && c.sub.IsConnected() {
		c.poller = NewControlResponsePoller(c.sub, c.fragmentLimit)
		c.controlResponsePollerReady = true
	}

	if !c.archiveProxyReady && c.pub.IsConnected() {
		if c.proxy == nil {
			c.proxy = NewArchiveProxy(c.pub, c.idle, c.retryCount, c.connectTimeout, c.scratchSize)
		}
		if !c.haveCorrelationID {
			c.correlationID = c.correlationIDs.Next()
			c.haveCorrelationID = true
		}
		ok, err := c.proxy.TryConnect(c.responseChannel, c.responseStreamID, c.correlationID)
		if err != nil {
			return false, c.failConnect(err)
		}
		if ok {
			c.archiveProxyReady = true
		}
	}

	if !c.controlResponsePollerReady || !c.archiveProxyReady {
		return false, nil
	}

	if _, err := c.poller.Poll(); err != nil {
		return false, c.failConnect(err)
	}
	if !c.poller.IsPollComplete() {
		return false, nil
	}
	if !c.poller.IsControlResponse() || c.poller.CorrelationID() != c.correlationID {
		return false, nil
	}

	switch c.poller.Code() {
	case aeronproto.CodeOK:
		c.controlSessionID = c.poller.ControlSessionID()
		c.done = true
		c.span.End()
		return true, nil
	case aeronproto.CodeError:
		return false, c.failConnect(archiveProtocolErrorFromPoller(c.poller))
	default:
		return false, c.failConnect(archiveerr.Newf("unexpected response code %s during connect", c.poller.Code()))
	}
}

func (c *AsyncConnect) failConnect(err error) error {
	c.span.RecordError(err)
	c.span.End()
	return err
}

func (c *AsyncConnect) IsConnected() bool { return c.done }

func (c *AsyncConnect) ControlSessionID() int64 { return c.controlSessionID }

// MakeArchive consumes the completed handshake's subscription, encoder (and
// the publication it owns), and correlation-id generator to build a session
// controller with a fresh response poller and two descriptor pollers, all
// bound to the same response subscription (spec.md §4.5).
func (c *AsyncConnect) MakeArchive(messageTimeout time.Duration, asyncErrorHandler AsyncErrorHandler) (*AeronArchive, error) {
	if !c.done {
		return nil, archiveerr.New("connect handshake has not completed")
	}
	return NewAeronArchive(
		c.controlSessionID,
		c.proxy,
		c.sub,
		c.aeron,
		c.idle,
		messageTimeout,
		c.fragmentLimit,
		c.correlationIDs,
		asyncErrorHandler,
	), nil
}
