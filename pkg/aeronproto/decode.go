package aeronproto

import "fmt"

// Decode reads the message header from frame and dispatches to the matching
// response decoder, returning the header (so a caller can inspect
// TemplateID before type-asserting) and the decoded body as one of
// ControlResponse, RecordingDescriptor, or RecordingSubscriptionDescriptor.
//
// Request templates are not decoded here: the archive side never round-trips
// through this client, so only the three response-shaped templates are
// dispatched.
func Decode(frame []byte) (MessageHeader, interface{}, error) {
	header, err := DecodeMessageHeader(frame)
	if err != nil {
		return header, nil, err
	}
	body := frame[MessageHeaderLength:]
	switch header.TemplateID {
	case TemplateControlResponse:
		m, err := DecodeControlResponse(body)
		return header, m, err
	case TemplateRecordingDescriptor:
		m, err := DecodeRecordingDescriptor(body)
		return header, m, err
	case TemplateRecordingSubscriptionDescriptor:
		m, err := DecodeRecordingSubscriptionDescriptor(body)
		return header, m, err
	default:
		return header, nil, fmt.Errorf("aeronproto: unexpected template id %d (%s) on control response stream", header.TemplateID, header.TemplateID)
	}
}
