package ua

// MaxRecursionDepth bounds DiagnosticInfo/Variant/ExtensionObject decode
// nesting; a DiagnosticInfo nested 101 levels deep is rejected rather than
// recursed into.
const MaxRecursionDepth = 100

// Decoder walks a byte slice with an explicit cursor. It never allocates on
// the happy path for scalar types and fails fast on any length field that
// could not possibly fit in the remaining input, so adversarial length
// prefixes are rejected before any allocation is attempted.
type Decoder struct {
	buf   []byte
	pos   int
	depth int
}

// NewDecoder wraps buf for decoding starting at position 0.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Pos returns the current cursor position.
func (d *Decoder) Pos() int { return d.pos }

// Len returns the number of unread bytes remaining.
func (d *Decoder) Len() int { return len(d.buf) - d.pos }

// Bytes returns the full underlying buffer (for signature/MAC verification
// over a byte range already consumed).
func (d *Decoder) Bytes() []byte { return d.buf }

func (d *Decoder) requireEnter(typ string) error {
	if d.depth >= MaxRecursionDepth {
		return decErr(BadDecodingError, d.pos, typ+": recursion limit exceeded")
	}
	d.depth++
	return nil
}

func (d *Decoder) leave() { d.depth-- }

// ReadBytes returns the next n raw bytes and advances the cursor, or fails
// if fewer than n bytes remain.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > d.Len() {
		return nil, decErr(BadDecodingError, d.pos, "raw bytes: truncated input")
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// PeekBytes returns the next n raw bytes without advancing the cursor.
func (d *Decoder) PeekBytes(n int) ([]byte, error) {
	if n < 0 || n > d.Len() {
		return nil, decErr(BadDecodingError, d.pos, "raw bytes: truncated input")
	}
	return d.buf[d.pos : d.pos+n], nil
}

// Skip advances the cursor by n bytes without returning them.
func (d *Decoder) Skip(n int) error {
	_, err := d.ReadBytes(n)
	return err
}

// Encoder accumulates encoded bytes into a growable buffer.
type Encoder struct {
	buf   []byte
	depth int
}

// NewEncoder creates an Encoder with the given initial capacity hint.
func NewEncoder(capHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capHint)}
}

// Bytes returns the bytes written so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

// WriteBytes appends raw bytes.
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *Encoder) requireEnter(typ string) error {
	if e.depth >= MaxRecursionDepth {
		return decErr(BadEncodingError, e.Len(), typ+": recursion limit exceeded")
	}
	e.depth++
	return nil
}

func (e *Encoder) leave() { e.depth-- }

// minElemSize is a conservative per-element minimum encoded size used to
// reject array length prefixes that could not possibly be satisfied by the
// remaining input, mitigating adversarial length fields.
const minElemSize = 1

// checkArrayCount rejects a declared array/container count that exceeds
// what the remaining buffer could contain given the smallest legal element.
func (d *Decoder) checkArrayCount(count int, perElemMin int) error {
	if count < 0 {
		return decErr(BadDecodingError, d.pos, "array: negative length")
	}
	if perElemMin <= 0 {
		perElemMin = minElemSize
	}
	if count > d.Len()/perElemMin {
		return decErr(BadEncodingLimitsExceeded, d.pos, "array: length exceeds remaining input")
	}
	return nil
}
