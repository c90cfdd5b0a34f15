package control

import (
	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/archiveerr"
)

// archiveProtocolError converts an ERROR-coded control response into the
// typed error a command surfaces to its caller (spec.md §7).
func archiveProtocolError(cr aeronproto.ControlResponse) error {
	return archiveerr.NewArchiveError(archiveerr.ErrorCode(cr.RelevantID), cr.ErrorMessage)
}

// archiveProtocolErrorFromPoller is the same conversion read off a
// ControlResponsePoller's last-polled fields.
func archiveProtocolErrorFromPoller(p *ControlResponsePoller) error {
	return archiveerr.NewArchiveError(archiveerr.ErrorCode(p.RelevantID()), p.ErrorMessage())
}
