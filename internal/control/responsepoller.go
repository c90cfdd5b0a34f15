package control

import (
	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/logging"
	"archiveclient/pkg/transport"
)

// DefaultFragmentLimit bounds how many fragments a single Poll() call
// drains from the control-response subscription (spec.md §4.2).
const DefaultFragmentLimit = 10

// ControlResponsePoller decodes one complete control response per Poll()
// call and exposes its fields until the next Poll() clears them. Grounded
// on the teacher's tracker.OnResonseReceived correlation matching, adapted
// from a length-framed response reader to a controlled-poll fragment
// handler.
type ControlResponsePoller struct {
	sub           transport.Subscription
	fragmentLimit int

	controlSessionID int64
	correlationID    int64
	relevantID       int64
	code             aeronproto.ResponseCode
	errorMessage     string
	templateID       aeronproto.TemplateID
	pollComplete     bool
}

func NewControlResponsePoller(sub transport.Subscription, fragmentLimit int) *ControlResponsePoller {
	if fragmentLimit <= 0 {
		fragmentLimit = DefaultFragmentLimit
	}
	return &ControlResponsePoller{sub: sub, fragmentLimit: fragmentLimit}
}

func (p *ControlResponsePoller) Subscription() transport.Subscription { return p.sub }

// Poll drains up to fragmentLimit fragments, stopping as soon as one
// complete control response has been decoded.
func (p *ControlResponsePoller) Poll() (int, error) {
	p.controlSessionID = 0
	p.correlationID = 0
	p.relevantID = 0
	p.code = 0
	p.errorMessage = ""
	p.templateID = 0
	p.pollComplete = false

	var decodeErr error
	handler := func(buf []byte, _ transport.Header) transport.ControlledPollAction {
		if p.pollComplete {
			return transport.ActionAbort
		}
		header, decoded, err := aeronproto.Decode(buf)
		if err != nil {
			decodeErr = err
			return transport.ActionAbort
		}
		p.templateID = header.TemplateID
		if header.TemplateID != aeronproto.TemplateControlResponse {
			return transport.ActionContinue
		}
		cr := decoded.(aeronproto.ControlResponse)
		p.controlSessionID = cr.ControlSessionID
		p.correlationID = cr.CorrelationID
		p.relevantID = cr.RelevantID
		p.code = cr.Code
		p.errorMessage = cr.ErrorMessage
		p.pollComplete = true
		return transport.ActionBreak
	}

	n, err := p.sub.ControlledPoll(handler, p.fragmentLimit)
	if err != nil {
		return n, err
	}
	if decodeErr != nil {
		diagnosticID := aeronproto.NewDiagnosticID()
		logging.Warningf("responsepoller[%s]: rejecting malformed fragment: %v", diagnosticID, decodeErr)
		return n, decodeErr
	}
	return n, nil
}

func (p *ControlResponsePoller) ControlSessionID() int64          { return p.controlSessionID }
func (p *ControlResponsePoller) CorrelationID() int64             { return p.correlationID }
func (p *ControlResponsePoller) RelevantID() int64                { return p.relevantID }
func (p *ControlResponsePoller) Code() aeronproto.ResponseCode    { return p.code }
func (p *ControlResponsePoller) ErrorMessage() string             { return p.errorMessage }
func (p *ControlResponsePoller) IsControlResponse() bool          { return p.templateID == aeronproto.TemplateControlResponse }
func (p *ControlResponsePoller) IsCodeOk() bool                   { return p.code == aeronproto.CodeOK }
func (p *ControlResponsePoller) IsCodeError() bool                { return p.code == aeronproto.CodeError }
func (p *ControlResponsePoller) IsPollComplete() bool             { return p.pollComplete }
