package control

import (
	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/logging"
	"archiveclient/pkg/transport"
)

// DescriptorConsumer receives one decoded descriptor record.
type DescriptorConsumer[T any] func(desc T)

// DescriptorPoller is the functional core both descriptor streams share
// (spec.md §9's design note): parameterized by the descriptor's own
// template id and the *_UNKNOWN response code that terminates its listing
// early, instead of two near-duplicate poller types.
type DescriptorPoller[T any] struct {
	sub           transport.Subscription
	fragmentLimit int
	templateID    aeronproto.TemplateID
	unknownCode   aeronproto.ResponseCode
	asyncErr      func(error)

	controlSessionID int64
	correlationID    int64
	remaining        int32
	consumer         DescriptorConsumer[T]
	dispatchComplete bool
}

func NewDescriptorPoller[T any](sub transport.Subscription, fragmentLimit int, templateID aeronproto.TemplateID, unknownCode aeronproto.ResponseCode, asyncErr func(error)) *DescriptorPoller[T] {
	if fragmentLimit <= 0 {
		fragmentLimit = DefaultFragmentLimit
	}
	return &DescriptorPoller[T]{sub: sub, fragmentLimit: fragmentLimit, templateID: templateID, unknownCode: unknownCode, asyncErr: asyncErr}
}

// Reset starts a new descriptor query.
func (p *DescriptorPoller[T]) Reset(controlSessionID, correlationID int64, expectedCount int32, consumer DescriptorConsumer[T]) {
	p.controlSessionID = controlSessionID
	p.correlationID = correlationID
	p.remaining = expectedCount
	p.consumer = consumer
	p.dispatchComplete = false
}

func (p *DescriptorPoller[T]) IsDispatchComplete() bool { return p.dispatchComplete }

// Remaining is the number of records still expected before the dispatch is
// considered complete by count.
func (p *DescriptorPoller[T]) Remaining() int32 { return p.remaining }

// Poll drains fragments, invoking the consumer for each matching descriptor
// and reporting how many were delivered this call, so the caller can rearm
// its deadline on observable progress (spec.md §5).
func (p *DescriptorPoller[T]) Poll() (delivered int, err error) {
	diagnosticID := aeronproto.NewDiagnosticID()
	var fatalErr error
	handler := func(buf []byte, _ transport.Header) transport.ControlledPollAction {
		if p.dispatchComplete {
			return transport.ActionAbort
		}
		header, decoded, decErr := aeronproto.Decode(buf)
		if decErr != nil {
			logging.Warningf("descriptorpoller[%s]: rejecting malformed fragment: %v", diagnosticID, decErr)
			fatalErr = decErr
			return transport.ActionAbort
		}

		switch header.TemplateID {
		case p.templateID:
			desc, ok := decoded.(T)
			if !ok {
				return transport.ActionContinue
			}
			sessionID, correlationID := descriptorIDs(desc)
			if sessionID != p.controlSessionID || correlationID != p.correlationID {
				return transport.ActionContinue
			}
			p.consumer(desc)
			delivered++
			p.remaining--
			if p.remaining <= 0 {
				p.dispatchComplete = true
				return transport.ActionBreak
			}
			return transport.ActionContinue

		case aeronproto.TemplateControlResponse:
			cr := decoded.(aeronproto.ControlResponse)
			if cr.ControlSessionID != p.controlSessionID {
				return transport.ActionContinue
			}
			if cr.Code == p.unknownCode && cr.CorrelationID == p.correlationID {
				p.dispatchComplete = true
				return transport.ActionBreak
			}
			if cr.Code == aeronproto.CodeError {
				if cr.CorrelationID == p.correlationID {
					fatalErr = archiveProtocolError(cr)
					return transport.ActionAbort
				}
				if p.asyncErr != nil {
					logging.Debugf("descriptorpoller[%s]: forwarding async error for correlation id %d: %s", diagnosticID, cr.CorrelationID, cr.ErrorMessage)
					p.asyncErr(archiveProtocolError(cr))
				}
			}
			return transport.ActionContinue

		default:
			return transport.ActionContinue
		}
	}

	_, pollErr := p.sub.ControlledPoll(handler, p.fragmentLimit)
	if pollErr != nil {
		return delivered, pollErr
	}
	if fatalErr != nil {
		return delivered, fatalErr
	}
	return delivered, nil
}

// descriptorIDs extracts the controlSessionId/correlationId common to both
// descriptor record types without an interface method per type.
func descriptorIDs(desc any) (int64, int64) {
	switch d := desc.(type) {
	case aeronproto.RecordingDescriptor:
		return d.ControlSessionID, d.CorrelationID
	case aeronproto.RecordingSubscriptionDescriptor:
		return d.ControlSessionID, d.CorrelationID
	default:
		return 0, 0
	}
}
