package aeronproto

import (
	uuid "github.com/satori/go.uuid"
)

// DiagnosticID tags the log line emitted for a timeout, a decode error, or a
// forwarded async error, so an operator can correlate a burst of such lines
// back to one poll cycle independent of the protocol's own int64 correlation
// id. Grounded on the teacher's proto.RequestId, which stamps every wire
// message with a UUIDv1 for the same reason.
type DiagnosticID uuid.UUID

// NewDiagnosticID mints a time-ordered UUIDv1 diagnostic tag.
func NewDiagnosticID() DiagnosticID {
	return DiagnosticID(uuid.NewV1())
}

func (id DiagnosticID) String() string {
	return uuid.UUID(id).String()
}
