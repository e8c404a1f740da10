package ua

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarRoundTrip(t *testing.T) {
	e := NewEncoder(64)
	e.WriteBoolean(true)
	e.WriteSByte(-5)
	e.WriteByte(200)
	e.WriteInt16(-1234)
	e.WriteUInt16(5000)
	e.WriteInt32(-123456)
	e.WriteUInt32(4000000000)
	e.WriteInt64(-1)
	e.WriteUInt64(18446744073709551615)
	e.WriteFloat(3.5)
	e.WriteDouble(2.718281828)

	d := NewDecoder(e.Bytes())
	b, err := d.ReadBoolean()
	require.NoError(t, err)
	assert.True(t, b)

	sb, err := d.ReadSByte()
	require.NoError(t, err)
	assert.Equal(t, int8(-5), sb)

	by, err := d.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(200), by)

	i16, err := d.ReadInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(-1234), i16)

	u16, err := d.ReadUInt16()
	require.NoError(t, err)
	assert.Equal(t, uint16(5000), u16)

	i32, err := d.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-123456), i32)

	u32, err := d.ReadUInt32()
	require.NoError(t, err)
	assert.Equal(t, uint32(4000000000), u32)

	i64, err := d.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), i64)

	u64, err := d.ReadUInt64()
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), u64)

	f, err := d.ReadFloat()
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f)

	db, err := d.ReadDouble()
	require.NoError(t, err)
	assert.Equal(t, 2.718281828, db)

	assert.Equal(t, 0, d.Len())
}

func TestStringNullVsEmpty(t *testing.T) {
	e := NewEncoder(16)
	e.WriteString("", true)
	e.WriteString("", false)
	e.WriteString("hello", true)

	d := NewDecoder(e.Bytes())
	s, ok, err := d.ReadString()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", s)

	s, ok, err = d.ReadString()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", s)

	s, ok, err = d.ReadString()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestByteStringNullVsEmpty(t *testing.T) {
	e := NewEncoder(16)
	e.WriteByteString([]byte{}, true)
	e.WriteByteString(nil, false)

	d := NewDecoder(e.Bytes())
	b, ok, err := d.ReadByteString()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, b)
	assert.Len(t, b, 0)

	b, ok, err = d.ReadByteString()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, b)
}

func TestTruncatedInput(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02})
	_, err := d.ReadUInt32()
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, BadDecodingError, de.Code)
}

func TestOversizeLengthRejected(t *testing.T) {
	e := NewEncoder(8)
	e.WriteInt32(1 << 30)
	d := NewDecoder(e.Bytes())
	_, _, err := d.ReadString()
	require.Error(t, err)
}

func TestDateTimeRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 123400, time.UTC)
	e := NewEncoder(8)
	e.WriteDateTime(now)
	d := NewDecoder(e.Bytes())
	got, err := d.ReadDateTime()
	require.NoError(t, err)
	assert.WithinDuration(t, now, got, time.Microsecond)
}

func TestGuidRoundTrip(t *testing.T) {
	g := NewGuid()
	e := NewEncoder(16)
	e.WriteGuid(g)
	d := NewDecoder(e.Bytes())
	got, err := d.ReadGuid()
	require.NoError(t, err)
	assert.Equal(t, g, got)
}

func TestNodeIdCompactForms(t *testing.T) {
	cases := []NodeId{
		NewNumericNodeId(0, 42),
		NewNumericNodeId(3, 1000),
		NewNumericNodeId(7, 100000),
		NewStringNodeId(2, "Temperature.Sensor1"),
	}
	for _, n := range cases {
		e := NewEncoder(16)
		e.WriteNodeId(n)
		d := NewDecoder(e.Bytes())
		got, err := d.ReadNodeId()
		require.NoError(t, err)
		assert.True(t, n.Equal(got), "expected %v got %v", n, got)
	}
}

func TestExpandedNodeIdRoundTrip(t *testing.T) {
	en := ExpandedNodeId{
		NodeId:       NewNumericNodeId(1, 99),
		HasURI:       true,
		NamespaceURI: "http://example.org/ns",
		ServerIndex:  4,
	}
	e := NewEncoder(32)
	e.WriteExpandedNodeId(en)
	d := NewDecoder(e.Bytes())
	got, err := d.ReadExpandedNodeId()
	require.NoError(t, err)
	assert.True(t, en.NodeId.Equal(got.NodeId))
	assert.Equal(t, en.NamespaceURI, got.NamespaceURI)
	assert.Equal(t, en.ServerIndex, got.ServerIndex)
}

func TestVariantScalarRoundTrip(t *testing.T) {
	v := Variant{Type: TypeInt32, Value: int32(-77)}
	e := NewEncoder(8)
	require.NoError(t, e.WriteVariant(v))
	d := NewDecoder(e.Bytes())
	got, err := d.ReadVariant()
	require.NoError(t, err)
	assert.Equal(t, TypeInt32, got.Type)
	assert.Equal(t, int32(-77), got.Value)
}

func TestVariantArrayRoundTrip(t *testing.T) {
	v := Variant{
		Type:    TypeDouble,
		IsArray: true,
		Array:   []interface{}{1.5, 2.5, 3.5},
	}
	e := NewEncoder(32)
	require.NoError(t, e.WriteVariant(v))
	d := NewDecoder(e.Bytes())
	got, err := d.ReadVariant()
	require.NoError(t, err)
	assert.True(t, got.IsArray)
	assert.Equal(t, []interface{}{1.5, 2.5, 3.5}, got.Array)
}

func TestVariantDimensionsMustMatchArrayLength(t *testing.T) {
	e := NewEncoder(32)
	e.WriteByte(byte(TypeInt32) | variantArrayFlag | variantDimensionFlag)
	e.WriteInt32(4)
	for i := 0; i < 4; i++ {
		e.WriteInt32(int32(i))
	}
	e.WriteInt32(1)
	e.WriteInt32(3)

	d := NewDecoder(e.Bytes())
	_, err := d.ReadVariant()
	require.Error(t, err)
}

func TestVariantDimensionsWithoutArrayRejected(t *testing.T) {
	e := NewEncoder(4)
	e.WriteByte(byte(TypeInt32) | variantDimensionFlag)
	e.WriteInt32(5)

	d := NewDecoder(e.Bytes())
	_, err := d.ReadVariant()
	require.Error(t, err)
}

func TestDataValueAllFieldsAbsent(t *testing.T) {
	dv := DataValue{}
	e := NewEncoder(4)
	require.NoError(t, e.WriteDataValue(dv))
	assert.Equal(t, []byte{0x00}, e.Bytes())

	d := NewDecoder(e.Bytes())
	got, err := d.ReadDataValue()
	require.NoError(t, err)
	assert.False(t, got.HasValue)
	assert.False(t, got.HasStatus)
}

func TestDataValueRoundTrip(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	dv := DataValue{
		Value:              Variant{Type: TypeBoolean, Value: true},
		HasValue:           true,
		Status:             BadTimeout,
		HasStatus:          true,
		SourceTimestamp:    ts,
		HasSourceTimestamp: true,
	}
	e := NewEncoder(32)
	require.NoError(t, e.WriteDataValue(dv))
	d := NewDecoder(e.Bytes())
	got, err := d.ReadDataValue()
	require.NoError(t, err)
	assert.True(t, got.HasValue)
	assert.Equal(t, true, got.Value.Value)
	assert.Equal(t, BadTimeout, got.Status)
	assert.True(t, got.SourceTimestamp.Equal(ts))
}

func TestDiagnosticInfoDepthLimit(t *testing.T) {
	e := NewEncoder(256)
	for i := 0; i < MaxRecursionDepth+1; i++ {
		e.WriteByte(diagHasInnerDiagnosticInfo)
	}
	e.WriteByte(0x00)

	d := NewDecoder(e.Bytes())
	_, err := d.ReadDiagnosticInfo()
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, BadDecodingError, de.Code)
}

func TestExtensionObjectNull(t *testing.T) {
	obj := ExtensionObject{}
	assert.True(t, obj.IsNull())
	e := NewEncoder(8)
	require.NoError(t, e.WriteExtensionObject(obj))
	d := NewDecoder(e.Bytes())
	got, err := d.ReadExtensionObject()
	require.NoError(t, err)
	assert.True(t, got.IsNull())
}

func TestExtensionObjectBinaryRoundTrip(t *testing.T) {
	obj := ExtensionObject{
		TypeId:   NewNumericNodeId(0, 444),
		Encoding: ExtensionBodyBinary,
		Body:     []byte{1, 2, 3, 4},
	}
	e := NewEncoder(16)
	require.NoError(t, e.WriteExtensionObject(obj))
	d := NewDecoder(e.Bytes())
	got, err := d.ReadExtensionObject()
	require.NoError(t, err)
	assert.True(t, obj.TypeId.Equal(got.TypeId))
	assert.Equal(t, obj.Body, got.Body)
}

func TestStatusCodeSeverity(t *testing.T) {
	assert.True(t, StatusGood.IsGood())
	assert.True(t, StatusUncertain.IsUncertain())
	assert.True(t, BadTimeout.IsBad())
}

func TestOrderNodeId(t *testing.T) {
	a := NewNumericNodeId(1, 10)
	b := NewNumericNodeId(1, 20)
	assert.Equal(t, Less, OrderNodeId(a, b))
	assert.Equal(t, Equal, OrderNodeId(a, a))
	assert.Equal(t, More, OrderNodeId(b, a))
}

func TestQualifiedNameAndLocalizedTextRoundTrip(t *testing.T) {
	qn := QualifiedName{NamespaceIndex: 2, Name: "Speed"}
	e := NewEncoder(16)
	e.WriteQualifiedName(qn)
	d := NewDecoder(e.Bytes())
	got, err := d.ReadQualifiedName()
	require.NoError(t, err)
	assert.Equal(t, qn, got)

	lt := LocalizedText{HasLocale: true, Locale: "en-US", HasText: true, Text: "Speed sensor"}
	e2 := NewEncoder(32)
	e2.WriteLocalizedText(lt)
	d2 := NewDecoder(e2.Bytes())
	got2, err := d2.ReadLocalizedText()
	require.NoError(t, err)
	assert.Equal(t, lt, got2)
}
