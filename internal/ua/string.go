package ua

// String and ByteString share identical wire encoding: an Int32 length
// followed by that many bytes. A length of -1 denotes the null value,
// distinct from a length of 0 (the empty, non-null value). Go's string and
// []byte both lack a native null state, so the Read/Write functions below
// pair the value with an ok flag: ok false denotes the null value.

// MaxStringLength bounds a single decoded String/ByteString length field,
// mirroring the secure channel's negotiated maxByteStringLength/
// maxStringLength default of 4194304 bytes.
const MaxStringLength = 4 * 1024 * 1024

const nullLength int32 = -1

// ReadString decodes a String value. ok reports whether the value was
// present; when ok is false the value is the null string, distinct from "".
func (d *Decoder) ReadString() (s string, ok bool, err error) {
	b, isNull, err := d.readLengthPrefixed()
	if err != nil {
		return "", false, err
	}
	if isNull {
		return "", false, nil
	}
	return string(b), true, nil
}

// WriteString encodes s. If ok is false, the null string is written.
func (e *Encoder) WriteString(s string, ok bool) {
	if !ok {
		e.WriteInt32(nullLength)
		return
	}
	e.WriteInt32(int32(len(s)))
	e.buf = append(e.buf, s...)
}

// ReadByteString decodes a ByteString value. A nil, non-ok return denotes
// the null value; a non-nil empty slice denotes the empty, present value.
func (d *Decoder) ReadByteString() (b []byte, ok bool, err error) {
	raw, isNull, err := d.readLengthPrefixed()
	if err != nil {
		return nil, false, err
	}
	if isNull {
		return nil, false, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true, nil
}

// WriteByteString encodes b. If ok is false, the null ByteString is
// written regardless of b's contents.
func (e *Encoder) WriteByteString(b []byte, ok bool) {
	if !ok {
		e.WriteInt32(nullLength)
		return
	}
	e.WriteInt32(int32(len(b)))
	e.buf = append(e.buf, b...)
}

func (d *Decoder) readLengthPrefixed() (b []byte, isNull bool, err error) {
	n, err := d.ReadInt32()
	if err != nil {
		return nil, false, err
	}
	if n == nullLength {
		return nil, true, nil
	}
	if n < 0 {
		return nil, false, decErr(BadDecodingError, d.pos, "length-prefixed: negative length")
	}
	if int64(n) > MaxStringLength {
		return nil, false, decErr(BadEncodingLimitsExceeded, d.pos, "length-prefixed: exceeds max length")
	}
	out, err := d.ReadBytes(int(n))
	if err != nil {
		return nil, false, err
	}
	return out, false, nil
}
