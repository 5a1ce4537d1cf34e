package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/types"
)

// Msgpack is the default Codec. It builds a wire tree per the IR (applying
// casing, renames, tagging and flattening) and MessagePack-encodes it;
// decoding reverses the process with structured errors carrying the
// failing field path.
type Msgpack struct{}

var _ Codec = Msgpack{}

func (Msgpack) Serialize(tm *types.TypeMap, ident types.TypeIdent, v any) ([]byte, error) {
	enc := &encoder{tm: tm}
	wire, err := enc.value(v, ident, nil)
	if err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "marshal "+ident.String())
	}
	return data, nil
}

func (Msgpack) Deserialize(tm *types.TypeMap, ident types.TypeIdent, data []byte) (any, error) {
	d := msgpack.NewDecoder(bytes.NewReader(data))
	// Untyped maps so non-string keys survive the generic decode.
	d.SetMapDecoder(func(d *msgpack.Decoder) (any, error) {
		return d.DecodeUntypedMap()
	})
	raw, err := d.DecodeInterface()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "unmarshal "+ident.String())
	}
	dec := &decoder{tm: tm}
	return dec.value(raw, ident, nil)
}

// resolve follows an ident to its registered definition.
func resolve(tm *types.TypeMap, ident types.TypeIdent, path []string) (types.Type, error) {
	ty, ok := tm.Get(ident)
	if !ok || ty == nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindUnresolvedType).
			Type(ident.String()).
			Path(path...).
			Detail("type not present in type map").
			Build()
	}
	return ty, nil
}
