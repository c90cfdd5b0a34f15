package aeronproto

// RequestHeader is embedded by every request that targets an already
// established control session; Connect is the only exception, since it is
// what establishes the session in the first place.
type RequestHeader struct {
	ControlSessionID int64
	CorrelationID    int64
}

func (h RequestHeader) encode(w *writer) error {
	if err := w.putInt64(h.ControlSessionID); err != nil {
		return err
	}
	return w.putInt64(h.CorrelationID)
}

func decodeRequestHeader(r *reader) (RequestHeader, error) {
	var h RequestHeader
	var err error
	if h.ControlSessionID, err = r.getInt64(); err != nil {
		return h, err
	}
	if h.CorrelationID, err = r.getInt64(); err != nil {
		return h, err
	}
	return h, nil
}

// ConnectRequest is the only frame sent before a control session exists.
type ConnectRequest struct {
	CorrelationID    int64
	ResponseStreamID int32
	Version          int32
	ResponseChannel  string
}

func (m ConnectRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateConnect); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.CorrelationID); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.ResponseStreamID); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.Version); err != nil {
		return 0, err
	}
	if err := w.putString(m.ResponseChannel); err != nil {
		return 0, err
	}
	return w.pos, nil
}

// CloseSessionRequest is fire-and-forget: no response is expected.
type CloseSessionRequest struct {
	ControlSessionID int64
}

func (m CloseSessionRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateCloseSession); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.ControlSessionID); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type StartRecordingRequest struct {
	RequestHeader
	Channel        string
	StreamID       int32
	SourceLocation SourceLocation
	AutoStop       bool
}

func (m StartRecordingRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateStartRecording); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.StreamID); err != nil {
		return 0, err
	}
	if err := w.putInt32(int32(m.SourceLocation)); err != nil {
		return 0, err
	}
	if err := w.putBool(m.AutoStop); err != nil {
		return 0, err
	}
	if err := w.putString(m.Channel); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type StopRecordingRequest struct {
	RequestHeader
	Channel  string
	StreamID int32
}

func (m StopRecordingRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateStopRecording); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.StreamID); err != nil {
		return 0, err
	}
	if err := w.putString(m.Channel); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type StopRecordingBySubscriptionRequest struct {
	RequestHeader
	SubscriptionID int64
}

func (m StopRecordingBySubscriptionRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateStopRecordingSubscription); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.SubscriptionID); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type ExtendRecordingRequest struct {
	RequestHeader
	RecordingID    int64
	Channel        string
	StreamID       int32
	SourceLocation SourceLocation
	AutoStop       bool
}

func (m ExtendRecordingRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateExtendRecording); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.RecordingID); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.StreamID); err != nil {
		return 0, err
	}
	if err := w.putInt32(int32(m.SourceLocation)); err != nil {
		return 0, err
	}
	if err := w.putBool(m.AutoStop); err != nil {
		return 0, err
	}
	if err := w.putString(m.Channel); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type ReplayRequest struct {
	RequestHeader
	RecordingID    int64
	Position       int64
	Length         int64
	ReplayStreamID int32
	ReplayChannel  string
}

func (m ReplayRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateReplay); err != nil {
		return 0, err
	}
	if err := m.encodeBody(w); err != nil {
		return 0, err
	}
	return w.pos, nil
}

func (m ReplayRequest) encodeBody(w *writer) error {
	if err := m.RequestHeader.encode(w); err != nil {
		return err
	}
	if err := w.putInt64(m.RecordingID); err != nil {
		return err
	}
	if err := w.putInt64(m.Position); err != nil {
		return err
	}
	if err := w.putInt64(m.Length); err != nil {
		return err
	}
	if err := w.putInt32(m.ReplayStreamID); err != nil {
		return err
	}
	return w.putString(m.ReplayChannel)
}

type BoundedReplayRequest struct {
	ReplayRequest
	LimitCounterID int32
}

func (m BoundedReplayRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateBoundedReplay); err != nil {
		return 0, err
	}
	if err := m.ReplayRequest.encodeBody(w); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.LimitCounterID); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type StopReplayRequest struct {
	RequestHeader
	ReplaySessionID int64
}

func (m StopReplayRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateStopReplay); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.ReplaySessionID); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type StopAllReplaysRequest struct {
	RequestHeader
	RecordingID int64
}

func (m StopAllReplaysRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateStopAllReplays); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.RecordingID); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type ListRecordingsRequest struct {
	RequestHeader
	FromRecordingID int64
	RecordCount     int32
}

func (m ListRecordingsRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateListRecordings); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.FromRecordingID); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.RecordCount); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type ListRecordingsForUriRequest struct {
	RequestHeader
	FromRecordingID int64
	RecordCount     int32
	StreamID        int32
	ChannelFragment string
}

func (m ListRecordingsForUriRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateListRecordingsForUri); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.FromRecordingID); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.RecordCount); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.StreamID); err != nil {
		return 0, err
	}
	if err := w.putString(m.ChannelFragment); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type ListRecordingRequest struct {
	RequestHeader
	RecordingID int64
}

func (m ListRecordingRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateListRecording); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.RecordingID); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type ListRecordingSubscriptionsRequest struct {
	RequestHeader
	PseudoIndex       int32
	SubscriptionCount int32
	ApplyStreamID     bool
	StreamID          int32
	ChannelFragment   string
}

func (m ListRecordingSubscriptionsRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateListRecordingSubscriptions); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.PseudoIndex); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.SubscriptionCount); err != nil {
		return 0, err
	}
	if err := w.putBool(m.ApplyStreamID); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.StreamID); err != nil {
		return 0, err
	}
	if err := w.putString(m.ChannelFragment); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type GetRecordingPositionRequest struct {
	RequestHeader
	RecordingID int64
}

func (m GetRecordingPositionRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateGetRecordingPosition); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.RecordingID); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type GetStopPositionRequest struct {
	RequestHeader
	RecordingID int64
}

func (m GetStopPositionRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateGetStopPosition); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.RecordingID); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type TruncateRecordingRequest struct {
	RequestHeader
	RecordingID int64
	Position    int64
}

func (m TruncateRecordingRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateTruncateRecording); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.RecordingID); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.Position); err != nil {
		return 0, err
	}
	return w.pos, nil
}

type FindLastMatchingRecordingRequest struct {
	RequestHeader
	MinRecordingID  int64
	SessionID       int32
	StreamID        int32
	ChannelFragment string
}

func (m FindLastMatchingRecordingRequest) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateFindLastMatchingRecording); err != nil {
		return 0, err
	}
	if err := m.RequestHeader.encode(w); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.MinRecordingID); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.SessionID); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.StreamID); err != nil {
		return 0, err
	}
	if err := w.putString(m.ChannelFragment); err != nil {
		return 0, err
	}
	return w.pos, nil
}

func writeHeader(w *writer, templateID TemplateID) error {
	if err := w.need(MessageHeaderLength); err != nil {
		return err
	}
	MessageHeader{TemplateID: templateID, SchemaID: SchemaID, Version: SchemaVersion}.Encode(w.buf[w.pos:])
	w.pos += MessageHeaderLength
	return nil
}
