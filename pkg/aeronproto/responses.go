package aeronproto

// ControlResponse is the archive's synchronous reply to a correlation id:
// OK/ERROR/RECORDING_UNKNOWN/SUBSCRIPTION_UNKNOWN/NULL_VAL (spec.md §3).
// RelevantID carries an ErrorCode when Code is CodeError, or a semantic
// result (a new recording id, a stop position, ...) for a subset of the
// single-response commands.
type ControlResponse struct {
	ControlSessionID int64
	CorrelationID    int64
	RelevantID       int64
	Code             ResponseCode
	ErrorMessage     string
}

func (m ControlResponse) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateControlResponse); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.ControlSessionID); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.CorrelationID); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.RelevantID); err != nil {
		return 0, err
	}
	if err := w.putInt32(int32(m.Code)); err != nil {
		return 0, err
	}
	if err := w.putString(m.ErrorMessage); err != nil {
		return 0, err
	}
	return w.pos, nil
}

func DecodeControlResponse(body []byte) (ControlResponse, error) {
	r := newReader(body)
	var m ControlResponse
	var err error
	if m.ControlSessionID, err = r.getInt64(); err != nil {
		return m, err
	}
	if m.CorrelationID, err = r.getInt64(); err != nil {
		return m, err
	}
	if m.RelevantID, err = r.getInt64(); err != nil {
		return m, err
	}
	code, err := r.getInt32()
	if err != nil {
		return m, err
	}
	m.Code = ResponseCode(code)
	if m.ErrorMessage, err = r.getString(); err != nil {
		return m, err
	}
	return m, nil
}

// RecordingDescriptor is one row of a listRecordings*/listRecording stream
// (spec.md §4.1's 16-field descriptor).
type RecordingDescriptor struct {
	ControlSessionID  int64
	CorrelationID     int64
	RecordingID       int64
	StartTimestamp    int64
	StopTimestamp     int64
	StartPosition     int64
	StopPosition      int64
	InitialTermID     int32
	SegmentFileLength int32
	TermBufferLength  int32
	MtuLength         int32
	SessionID         int32
	StreamID          int32
	StrippedChannel   string
	OriginalChannel   string
	SourceIdentity    string
}

func (m RecordingDescriptor) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateRecordingDescriptor); err != nil {
		return 0, err
	}
	for _, v := range []int64{m.ControlSessionID, m.CorrelationID, m.RecordingID, m.StartTimestamp, m.StopTimestamp, m.StartPosition, m.StopPosition} {
		if err := w.putInt64(v); err != nil {
			return 0, err
		}
	}
	for _, v := range []int32{m.InitialTermID, m.SegmentFileLength, m.TermBufferLength, m.MtuLength, m.SessionID, m.StreamID} {
		if err := w.putInt32(v); err != nil {
			return 0, err
		}
	}
	for _, s := range []string{m.StrippedChannel, m.OriginalChannel, m.SourceIdentity} {
		if err := w.putString(s); err != nil {
			return 0, err
		}
	}
	return w.pos, nil
}

func DecodeRecordingDescriptor(body []byte) (RecordingDescriptor, error) {
	r := newReader(body)
	var m RecordingDescriptor
	var err error
	int64Fields := []*int64{&m.ControlSessionID, &m.CorrelationID, &m.RecordingID, &m.StartTimestamp, &m.StopTimestamp, &m.StartPosition, &m.StopPosition}
	for _, f := range int64Fields {
		if *f, err = r.getInt64(); err != nil {
			return m, err
		}
	}
	int32Fields := []*int32{&m.InitialTermID, &m.SegmentFileLength, &m.TermBufferLength, &m.MtuLength, &m.SessionID, &m.StreamID}
	for _, f := range int32Fields {
		if *f, err = r.getInt32(); err != nil {
			return m, err
		}
	}
	if m.StrippedChannel, err = r.getString(); err != nil {
		return m, err
	}
	if m.OriginalChannel, err = r.getString(); err != nil {
		return m, err
	}
	if m.SourceIdentity, err = r.getString(); err != nil {
		return m, err
	}
	return m, nil
}

// RecordingSubscriptionDescriptor is one row of a
// listRecordingSubscriptions stream (spec.md §4.1's 5-field descriptor).
type RecordingSubscriptionDescriptor struct {
	ControlSessionID int64
	CorrelationID    int64
	SubscriptionID   int64
	StreamID         int32
	StrippedChannel  string
}

func (m RecordingSubscriptionDescriptor) Encode(buf []byte) (int, error) {
	w := newWriter(buf)
	if err := writeHeader(w, TemplateRecordingSubscriptionDescriptor); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.ControlSessionID); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.CorrelationID); err != nil {
		return 0, err
	}
	if err := w.putInt64(m.SubscriptionID); err != nil {
		return 0, err
	}
	if err := w.putInt32(m.StreamID); err != nil {
		return 0, err
	}
	if err := w.putString(m.StrippedChannel); err != nil {
		return 0, err
	}
	return w.pos, nil
}

func DecodeRecordingSubscriptionDescriptor(body []byte) (RecordingSubscriptionDescriptor, error) {
	r := newReader(body)
	var m RecordingSubscriptionDescriptor
	var err error
	if m.ControlSessionID, err = r.getInt64(); err != nil {
		return m, err
	}
	if m.CorrelationID, err = r.getInt64(); err != nil {
		return m, err
	}
	if m.SubscriptionID, err = r.getInt64(); err != nil {
		return m, err
	}
	if m.StreamID, err = r.getInt32(); err != nil {
		return m, err
	}
	if m.StrippedChannel, err = r.getString(); err != nil {
		return m, err
	}
	return m, nil
}
