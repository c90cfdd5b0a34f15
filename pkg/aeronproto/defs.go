// Package aeronproto is the codec facade: it wraps the archive's SBE wire
// templates (opaque per spec — schema id, template id, block length,
// version) behind typed Go request/response records, the way the teacher's
// pkg/proto wraps its own binary wire format behind OperationalMessage.
package aeronproto

import "encoding/binary"

// EncByteOrder is the wire byte order for every field in this package.
var EncByteOrder = binary.BigEndian

// SchemaID and SchemaVersion identify the message schema; a mismatch on
// decode is a fatal protocol violation (spec.md §7).
const (
	SchemaID            uint16 = 101
	SchemaVersion       uint16 = 0
	MessageHeaderLength        = 8 // blockLength(2) + templateId(2) + schemaId(2) + version(2)
)

// TemplateID enumerates every request and response template the control
// session protocol defines (spec.md §3-4).
type TemplateID uint16

const (
	TemplateConnect TemplateID = iota + 1
	TemplateCloseSession
	TemplateStartRecording
	TemplateStopRecording
	TemplateStopRecordingSubscription
	TemplateExtendRecording
	TemplateReplay
	TemplateBoundedReplay
	TemplateStopReplay
	TemplateStopAllReplays
	TemplateListRecordings
	TemplateListRecordingsForUri
	TemplateListRecording
	TemplateListRecordingSubscriptions
	TemplateGetRecordingPosition
	TemplateGetStopPosition
	TemplateTruncateRecording
	TemplateFindLastMatchingRecording

	TemplateControlResponse
	TemplateRecordingDescriptor
	TemplateRecordingSubscriptionDescriptor
)

var templateNames = map[TemplateID]string{
	TemplateConnect:                          "Connect",
	TemplateCloseSession:                     "CloseSession",
	TemplateStartRecording:                   "StartRecording",
	TemplateStopRecording:                    "StopRecording",
	TemplateStopRecordingSubscription:        "StopRecordingSubscription",
	TemplateExtendRecording:                  "ExtendRecording",
	TemplateReplay:                           "Replay",
	TemplateBoundedReplay:                    "BoundedReplay",
	TemplateStopReplay:                       "StopReplay",
	TemplateStopAllReplays:                   "StopAllReplays",
	TemplateListRecordings:                   "ListRecordings",
	TemplateListRecordingsForUri:             "ListRecordingsForUri",
	TemplateListRecording:                    "ListRecording",
	TemplateListRecordingSubscriptions:       "ListRecordingSubscriptions",
	TemplateGetRecordingPosition:             "GetRecordingPosition",
	TemplateGetStopPosition:                  "GetStopPosition",
	TemplateTruncateRecording:                "TruncateRecording",
	TemplateFindLastMatchingRecording:        "FindLastMatchingRecording",
	TemplateControlResponse:                  "ControlResponse",
	TemplateRecordingDescriptor:              "RecordingDescriptor",
	TemplateRecordingSubscriptionDescriptor:  "RecordingSubscriptionDescriptor",
}

func (t TemplateID) String() string {
	if name, ok := templateNames[t]; ok {
		return name
	}
	return "Unknown"
}

// SourceLocation is the recording origin, LOCAL (image on this node) or
// REMOTE (a manually added, remote-sourced image).
type SourceLocation int32

const (
	SourceLocationLocal SourceLocation = iota
	SourceLocationRemote
)

// ResponseCode is the control response's `code` field (spec.md §3).
type ResponseCode int32

const (
	CodeOK ResponseCode = iota
	CodeError
	CodeRecordingUnknown
	CodeSubscriptionUnknown
	CodeNullVal
)

func (c ResponseCode) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeError:
		return "ERROR"
	case CodeRecordingUnknown:
		return "RECORDING_UNKNOWN"
	case CodeSubscriptionUnknown:
		return "SUBSCRIPTION_UNKNOWN"
	case CodeNullVal:
		return "NULL_VAL"
	default:
		return "UNKNOWN"
	}
}

// NullValue is the sentinel for "no correlation id" / "no position known".
const NullValue int64 = -1

// CounterTypeIDRecordingPosition is the counters-registry type id used to
// scan for a recording-position counter (spec.md §6).
const CounterTypeIDRecordingPosition int32 = 100

// SemanticVersion composes the client's protocol version the way
// spec.md §6 describes: (major<<16)|(minor<<8)|patch.
func SemanticVersion(major, minor, patch uint8) int32 {
	return int32(major)<<16 | int32(minor)<<8 | int32(patch)
}

// ClientSemanticVersion is this module's protocol version.
var ClientSemanticVersion = SemanticVersion(0, 2, 1)
