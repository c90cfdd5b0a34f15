package aeronproto

import "fmt"

// MessageHeader is the 8-byte prefix on every frame: blockLength is the SBE
// field for the fixed-size portion of the body that follows, templateId
// selects the decoder, schemaId/version guard against a mismatched codec
// generation. This codec writes blockLength as 0 and does not use it when
// decoding.
type MessageHeader struct {
	BlockLength uint16
	TemplateID  TemplateID
	SchemaID    uint16
	Version     uint16
}

// Encode writes the header into buf[0:8]. Panics if buf is too short — a
// caller-sized scratch buffer is a programming error, not a runtime one.
func (h MessageHeader) Encode(buf []byte) {
	EncByteOrder.PutUint16(buf[0:2], h.BlockLength)
	EncByteOrder.PutUint16(buf[2:4], uint16(h.TemplateID))
	EncByteOrder.PutUint16(buf[4:6], h.SchemaID)
	EncByteOrder.PutUint16(buf[6:8], h.Version)
}

// DecodeMessageHeader reads the 8-byte prefix and validates the schema id.
func DecodeMessageHeader(buf []byte) (MessageHeader, error) {
	if len(buf) < MessageHeaderLength {
		return MessageHeader{}, fmt.Errorf("aeronproto: short frame, need %d bytes, got %d", MessageHeaderLength, len(buf))
	}
	h := MessageHeader{
		BlockLength: EncByteOrder.Uint16(buf[0:2]),
		TemplateID:  TemplateID(EncByteOrder.Uint16(buf[2:4])),
		SchemaID:    EncByteOrder.Uint16(buf[4:6]),
		Version:     EncByteOrder.Uint16(buf[6:8]),
	}
	if h.SchemaID != SchemaID {
		return h, fmt.Errorf("aeronproto: schema id mismatch, want %d got %d", SchemaID, h.SchemaID)
	}
	return h, nil
}
