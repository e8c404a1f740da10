package ua

import "sync"

// Encodable is implemented by structured message types (service requests
// and responses, PubSub dataset payloads) that know how to serialize
// themselves onto the binary wire.
type Encodable interface {
	EncodeUA(e *Encoder) error
}

// Decodable is the decode counterpart of Encodable.
type Decodable interface {
	DecodeUA(d *Decoder) error
}

// TypeDescriptor binds a structured type's binary encoding NodeId to a
// constructor for fresh instances, so ExtensionObject bodies whose TypeId
// is recognized can be decoded into a concrete Go type instead of being
// left as an opaque ExtensionObject.
type TypeDescriptor struct {
	BinaryEncodingID NodeId
	New              func() Decodable
}

// TypeRegistry resolves a binary-encoding NodeId to the Go type that knows
// how to decode it. A nil or missing lookup means the caller should treat
// the payload as an opaque ExtensionObject, falling back to its raw form
// rather than failing the decode.
type TypeRegistry struct {
	mu    sync.RWMutex
	byNid map[NodeId]TypeDescriptor
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{byNid: make(map[NodeId]TypeDescriptor)}
}

// Register adds or replaces the descriptor for desc.BinaryEncodingID.
func (r *TypeRegistry) Register(desc TypeDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byNid[desc.BinaryEncodingID] = desc
}

// Lookup returns the descriptor registered for id, if any.
func (r *TypeRegistry) Lookup(id NodeId) (TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byNid[id]
	return d, ok
}

// DecodeExtensionObject decodes raw as an ExtensionObject and, if its
// TypeId is registered, further decodes the body into a concrete value
// via the registered constructor. The concrete value is returned alongside
// the raw ExtensionObject so callers that need to re-encode an
// unrecognized payload still can.
func (r *TypeRegistry) DecodeExtensionObject(d *Decoder) (ExtensionObject, Decodable, error) {
	obj, err := d.ReadExtensionObject()
	if err != nil {
		return ExtensionObject{}, nil, err
	}
	if obj.Encoding != ExtensionBodyBinary {
		return obj, nil, nil
	}
	desc, ok := r.Lookup(obj.TypeId)
	if !ok {
		return obj, nil, nil
	}
	inner := NewDecoder(obj.Body)
	val := desc.New()
	if err := val.DecodeUA(inner); err != nil {
		return ExtensionObject{}, nil, err
	}
	return obj, val, nil
}

// EncodeExtensionObject encodes val's binary form as an ExtensionObject
// body tagged with typeID.
func (e *Encoder) EncodeExtensionObject(typeID NodeId, val Encodable) error {
	if val == nil {
		return e.WriteExtensionObject(ExtensionObject{})
	}
	inner := NewEncoder(256)
	if err := val.EncodeUA(inner); err != nil {
		return err
	}
	return e.WriteExtensionObject(ExtensionObject{
		TypeId:   typeID,
		Encoding: ExtensionBodyBinary,
		Body:     inner.Bytes(),
	})
}
