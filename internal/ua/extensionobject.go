package ua

// ExtensionBodyEncoding identifies how an ExtensionObject's body is framed.
type ExtensionBodyEncoding byte

const (
	ExtensionBodyNone   ExtensionBodyEncoding = 0
	ExtensionBodyBinary ExtensionBodyEncoding = 1
	ExtensionBodyXML    ExtensionBodyEncoding = 2
	// ExtensionBodyJSON is an addition beyond the reference wire format,
	// which defines only Binary/XML. No JSON mapping in this module uses
	// it, and the binary codec rejects it when reading or writing.
	ExtensionBodyJSON ExtensionBodyEncoding = 3
)

// ExtensionObject wraps an opaque, type-identified payload. A null
// ExtensionObject (TypeId's identifier is 0 in namespace 0 and Encoding is
// ExtensionBodyNone) carries no body at all, distinct from a present body
// of zero length.
type ExtensionObject struct {
	TypeId   NodeId
	Encoding ExtensionBodyEncoding
	Body     []byte // raw bytes for Binary/XML; unused for JSON/none
	JSONBody []byte // raw JSON text when Encoding == ExtensionBodyJSON
}

// IsNull reports whether the object is the well-known null ExtensionObject.
func (o ExtensionObject) IsNull() bool {
	return o.Encoding == ExtensionBodyNone && o.TypeId.IsNull()
}

func (d *Decoder) ReadExtensionObject() (ExtensionObject, error) {
	if err := d.requireEnter("ExtensionObject"); err != nil {
		return ExtensionObject{}, err
	}
	defer d.leave()

	typeId, err := d.ReadNodeId()
	if err != nil {
		return ExtensionObject{}, err
	}
	enc, err := d.ReadByte()
	if err != nil {
		return ExtensionObject{}, err
	}
	obj := ExtensionObject{TypeId: typeId, Encoding: ExtensionBodyEncoding(enc)}
	switch obj.Encoding {
	case ExtensionBodyNone:
		return obj, nil
	case ExtensionBodyBinary, ExtensionBodyXML:
		b, ok, err := d.ReadByteString()
		if err != nil {
			return ExtensionObject{}, err
		}
		if ok {
			obj.Body = b
		}
		return obj, nil
	default:
		return ExtensionObject{}, decErr(BadDecodingError, d.pos, "ExtensionObject: unknown body encoding")
	}
}

func (e *Encoder) WriteExtensionObject(o ExtensionObject) error {
	if err := e.requireEnter("ExtensionObject"); err != nil {
		return err
	}
	defer e.leave()

	e.WriteNodeId(o.TypeId)
	switch o.Encoding {
	case ExtensionBodyNone:
		e.WriteByte(byte(ExtensionBodyNone))
	case ExtensionBodyBinary, ExtensionBodyXML:
		e.WriteByte(byte(o.Encoding))
		e.WriteByteString(o.Body, o.Body != nil)
	default:
		return decErr(BadEncodingError, e.Len(), "ExtensionObject: body encoding not representable on the binary wire")
	}
	return nil
}
