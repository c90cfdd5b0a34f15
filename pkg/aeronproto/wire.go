package aeronproto

import "fmt"

// writer appends fixed-width fields and length-prefixed strings into a
// caller-supplied scratch buffer, failing rather than growing it — the
// scratch buffer is a fixed archive-protocol allowance (spec.md §6).
type writer struct {
	buf []byte
	pos int
}

func newWriter(buf []byte) *writer { return &writer{buf: buf} }

func (w *writer) need(n int) error {
	if w.pos+n > len(w.buf) {
		return fmt.Errorf("aeronproto: scratch buffer too small, need %d more bytes at offset %d of %d", n, w.pos, len(w.buf))
	}
	return nil
}

func (w *writer) putInt32(v int32) error {
	if err := w.need(4); err != nil {
		return err
	}
	EncByteOrder.PutUint32(w.buf[w.pos:], uint32(v))
	w.pos += 4
	return nil
}

func (w *writer) putInt64(v int64) error {
	if err := w.need(8); err != nil {
		return err
	}
	EncByteOrder.PutUint64(w.buf[w.pos:], uint64(v))
	w.pos += 8
	return nil
}

func (w *writer) putBool(v bool) error {
	if err := w.need(1); err != nil {
		return err
	}
	if v {
		w.buf[w.pos] = 1
	} else {
		w.buf[w.pos] = 0
	}
	w.pos++
	return nil
}

func (w *writer) putString(s string) error {
	if err := w.need(4 + len(s)); err != nil {
		return err
	}
	EncByteOrder.PutUint32(w.buf[w.pos:], uint32(len(s)))
	w.pos += 4
	copy(w.buf[w.pos:], s)
	w.pos += len(s)
	return nil
}

// reader mirrors writer for decoding.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("aeronproto: short frame, need %d more bytes at offset %d of %d", n, r.pos, len(r.buf))
	}
	return nil
}

func (r *reader) getInt32() (int32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := int32(EncByteOrder.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *reader) getInt64() (int64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := int64(EncByteOrder.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *reader) getBool() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *reader) getString() (string, error) {
	if err := r.need(4); err != nil {
		return "", err
	}
	n := int(EncByteOrder.Uint32(r.buf[r.pos:]))
	r.pos += 4
	if err := r.need(n); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}
