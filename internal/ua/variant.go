package ua

import "time"

// BuiltinID identifies one of the 25 built-in types a Variant may carry.
type BuiltinID byte

const (
	TypeBoolean         BuiltinID = 1
	TypeSByte           BuiltinID = 2
	TypeByte            BuiltinID = 3
	TypeInt16           BuiltinID = 4
	TypeUInt16          BuiltinID = 5
	TypeInt32           BuiltinID = 6
	TypeUInt32          BuiltinID = 7
	TypeInt64           BuiltinID = 8
	TypeUInt64          BuiltinID = 9
	TypeFloat           BuiltinID = 10
	TypeDouble          BuiltinID = 11
	TypeString          BuiltinID = 12
	TypeDateTime        BuiltinID = 13
	TypeGuid            BuiltinID = 14
	TypeByteString       BuiltinID = 15
	TypeXmlElement      BuiltinID = 16
	TypeNodeId          BuiltinID = 17
	TypeExpandedNodeId  BuiltinID = 18
	TypeStatusCode      BuiltinID = 19
	TypeQualifiedName   BuiltinID = 20
	TypeLocalizedText   BuiltinID = 21
	TypeExtensionObject BuiltinID = 22
	TypeDataValue       BuiltinID = 23
	TypeVariant         BuiltinID = 24
	TypeDiagnosticInfo  BuiltinID = 25
)

const (
	variantTypeMask      byte = 0x3F
	variantArrayFlag     byte = 0x40
	variantDimensionFlag byte = 0x80
)

// Variant is a tagged union over the 25 built-in types, optionally an
// array, optionally carrying array dimensions for multi-dimensional data.
// Scalar values are held in Value; array values are held in Array, a
// []interface{} whose elements have the Go type ReadXxx/WriteXxx use for
// that BuiltinID (e.g. int32 for TypeInt32, string for TypeString).
type Variant struct {
	Type       BuiltinID
	IsArray    bool
	Value      interface{}
	Array      []interface{}
	HasDims    bool
	Dimensions []int32
}

// IsNull reports whether v is the empty Variant (Type 0, no array).
func (v Variant) IsNull() bool { return v.Type == 0 && !v.IsArray }

func (d *Decoder) ReadVariant() (Variant, error) {
	if err := d.requireEnter("Variant"); err != nil {
		return Variant{}, err
	}
	defer d.leave()

	enc, err := d.ReadByte()
	if err != nil {
		return Variant{}, err
	}
	typ := BuiltinID(enc & variantTypeMask)
	isArray := enc&variantArrayFlag != 0
	hasDims := enc&variantDimensionFlag != 0

	if hasDims && !isArray {
		return Variant{}, decErr(BadDecodingError, d.pos, "Variant: ArrayDimensions present without array flag")
	}
	if typ == 0 {
		if isArray {
			return Variant{}, decErr(BadDecodingError, d.pos, "Variant: array of null type")
		}
		return Variant{}, nil
	}

	v := Variant{Type: typ, IsArray: isArray, HasDims: hasDims}

	if !isArray {
		val, err := d.readVariantScalar(typ)
		if err != nil {
			return Variant{}, err
		}
		v.Value = val
		return v, nil
	}

	count, err := d.ReadInt32()
	if err != nil {
		return Variant{}, err
	}
	if count == nullLength {
		v.Array = nil
	} else {
		if count < 0 {
			return Variant{}, decErr(BadDecodingError, d.pos, "Variant: negative array length")
		}
		if err := d.checkArrayCount(int(count), 1); err != nil {
			return Variant{}, err
		}
		arr := make([]interface{}, count)
		for i := range arr {
			val, err := d.readVariantScalar(typ)
			if err != nil {
				return Variant{}, err
			}
			arr[i] = val
		}
		v.Array = arr
	}

	if hasDims {
		dimCount, err := d.ReadInt32()
		if err != nil {
			return Variant{}, err
		}
		if dimCount == nullLength {
			v.Dimensions = nil
		} else {
			if dimCount < 0 {
				return Variant{}, decErr(BadDecodingError, d.pos, "Variant: negative dimension count")
			}
			if err := d.checkArrayCount(int(dimCount), 4); err != nil {
				return Variant{}, err
			}
			dims := make([]int32, dimCount)
			product := int64(1)
			for i := range dims {
				dv, err := d.ReadInt32()
				if err != nil {
					return Variant{}, err
				}
				dims[i] = dv
				product *= int64(dv)
			}
			if product != int64(len(v.Array)) {
				return Variant{}, decErr(BadDecodingError, d.pos, "Variant: ArrayDimensions product does not match array length")
			}
			v.Dimensions = dims
		}
	}

	return v, nil
}

func (e *Encoder) WriteVariant(v Variant) error {
	if err := e.requireEnter("Variant"); err != nil {
		return err
	}
	defer e.leave()

	if v.IsNull() {
		e.WriteByte(0)
		return nil
	}

	enc := byte(v.Type) & variantTypeMask
	if v.IsArray {
		enc |= variantArrayFlag
	}
	if v.HasDims {
		enc |= variantDimensionFlag
	}
	e.WriteByte(enc)

	if !v.IsArray {
		return e.writeVariantScalar(v.Type, v.Value)
	}

	if v.Array == nil {
		e.WriteInt32(nullLength)
	} else {
		e.WriteInt32(int32(len(v.Array)))
		for _, elem := range v.Array {
			if err := e.writeVariantScalar(v.Type, elem); err != nil {
				return err
			}
		}
	}

	if v.HasDims {
		if v.Dimensions == nil {
			e.WriteInt32(nullLength)
		} else {
			e.WriteInt32(int32(len(v.Dimensions)))
			for _, dv := range v.Dimensions {
				e.WriteInt32(dv)
			}
		}
	}
	return nil
}

func (d *Decoder) readVariantScalar(typ BuiltinID) (interface{}, error) {
	switch typ {
	case TypeBoolean:
		return d.ReadBoolean()
	case TypeSByte:
		return d.ReadSByte()
	case TypeByte:
		return d.ReadByte()
	case TypeInt16:
		return d.ReadInt16()
	case TypeUInt16:
		return d.ReadUInt16()
	case TypeInt32:
		return d.ReadInt32()
	case TypeUInt32:
		return d.ReadUInt32()
	case TypeInt64:
		return d.ReadInt64()
	case TypeUInt64:
		return d.ReadUInt64()
	case TypeFloat:
		return d.ReadFloat()
	case TypeDouble:
		return d.ReadDouble()
	case TypeString:
		s, ok, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return s, nil
	case TypeDateTime:
		return d.ReadDateTime()
	case TypeGuid:
		return d.ReadGuid()
	case TypeByteString, TypeXmlElement:
		b, ok, err := d.ReadByteString()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return b, nil
	case TypeNodeId:
		return d.ReadNodeId()
	case TypeExpandedNodeId:
		return d.ReadExpandedNodeId()
	case TypeStatusCode:
		s, err := d.ReadUInt32()
		return StatusCode(s), err
	case TypeQualifiedName:
		return d.ReadQualifiedName()
	case TypeLocalizedText:
		return d.ReadLocalizedText()
	case TypeExtensionObject:
		return d.ReadExtensionObject()
	case TypeDataValue:
		return d.ReadDataValue()
	case TypeVariant:
		return d.ReadVariant()
	case TypeDiagnosticInfo:
		return d.ReadDiagnosticInfo()
	default:
		return nil, decErr(BadDecodingError, d.pos, "Variant: unknown built-in type id")
	}
}

func (e *Encoder) writeVariantScalar(typ BuiltinID, val interface{}) error {
	switch typ {
	case TypeBoolean:
		e.WriteBoolean(val.(bool))
	case TypeSByte:
		e.WriteSByte(val.(int8))
	case TypeByte:
		e.WriteByte(val.(byte))
	case TypeInt16:
		e.WriteInt16(val.(int16))
	case TypeUInt16:
		e.WriteUInt16(val.(uint16))
	case TypeInt32:
		e.WriteInt32(val.(int32))
	case TypeUInt32:
		e.WriteUInt32(val.(uint32))
	case TypeInt64:
		e.WriteInt64(val.(int64))
	case TypeUInt64:
		e.WriteUInt64(val.(uint64))
	case TypeFloat:
		e.WriteFloat(val.(float32))
	case TypeDouble:
		e.WriteDouble(val.(float64))
	case TypeString:
		if val == nil {
			e.WriteString("", false)
		} else {
			e.WriteString(val.(string), true)
		}
	case TypeDateTime:
		e.WriteDateTime(val.(time.Time))
	case TypeGuid:
		e.WriteGuid(val.(Guid))
	case TypeByteString, TypeXmlElement:
		if val == nil {
			e.WriteByteString(nil, false)
		} else {
			e.WriteByteString(val.([]byte), true)
		}
	case TypeNodeId:
		e.WriteNodeId(val.(NodeId))
	case TypeExpandedNodeId:
		e.WriteExpandedNodeId(val.(ExpandedNodeId))
	case TypeStatusCode:
		e.WriteUInt32(uint32(val.(StatusCode)))
	case TypeQualifiedName:
		e.WriteQualifiedName(val.(QualifiedName))
	case TypeLocalizedText:
		e.WriteLocalizedText(val.(LocalizedText))
	case TypeExtensionObject:
		return e.WriteExtensionObject(val.(ExtensionObject))
	case TypeDataValue:
		return e.WriteDataValue(val.(DataValue))
	case TypeVariant:
		return e.WriteVariant(val.(Variant))
	case TypeDiagnosticInfo:
		return e.WriteDiagnosticInfo(val.(DiagnosticInfo))
	default:
		return decErr(BadEncodingError, e.Len(), "Variant: unknown built-in type id")
	}
	return nil
}
