package codec

import (
	"math"

	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/types"
)

// ToPrimitive coerces a dynamic value into the canonical sized Go type
// for a primitive, with the same range checks the wire path applies. The
// runtime uses it to lower primitive arguments that bypass serialization.
func ToPrimitive(v any, p types.Primitive, phase errors.Phase, path []string) (any, error) {
	return toPrimitive(v, p, phase, path)
}

// toPrimitive coerces a dynamic numeric/bool value into the sized Go type
// for a primitive IR type, with range checks. MessagePack types integers
// by their wire width, so the incoming kind rarely matches the target
// exactly.
func toPrimitive(v any, p types.Primitive, phase errors.Phase, path []string) (any, error) {
	switch p {
	case types.Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, errors.TypeMismatch(phase, pathCopy(path), "bool", typeName(v))

	case types.U8, types.U16, types.U32, types.U64:
		u, ok := asUint64(v)
		if !ok {
			if i, isInt := asInt64(v); isInt && i < 0 {
				return nil, errors.Overflow(pathCopy(path), v, p.String())
			}
			return nil, errors.TypeMismatch(phase, pathCopy(path), p.String(), typeName(v))
		}
		switch p {
		case types.U8:
			if u > math.MaxUint8 {
				return nil, errors.Overflow(pathCopy(path), v, p.String())
			}
			return uint8(u), nil
		case types.U16:
			if u > math.MaxUint16 {
				return nil, errors.Overflow(pathCopy(path), v, p.String())
			}
			return uint16(u), nil
		case types.U32:
			if u > math.MaxUint32 {
				return nil, errors.Overflow(pathCopy(path), v, p.String())
			}
			return uint32(u), nil
		default:
			return u, nil
		}

	case types.I8, types.I16, types.I32, types.I64:
		i, ok := asInt64(v)
		if !ok {
			return nil, errors.TypeMismatch(phase, pathCopy(path), p.String(), typeName(v))
		}
		switch p {
		case types.I8:
			if i < math.MinInt8 || i > math.MaxInt8 {
				return nil, errors.Overflow(pathCopy(path), v, p.String())
			}
			return int8(i), nil
		case types.I16:
			if i < math.MinInt16 || i > math.MaxInt16 {
				return nil, errors.Overflow(pathCopy(path), v, p.String())
			}
			return int16(i), nil
		case types.I32:
			if i < math.MinInt32 || i > math.MaxInt32 {
				return nil, errors.Overflow(pathCopy(path), v, p.String())
			}
			return int32(i), nil
		default:
			return i, nil
		}

	case types.F32:
		switch f := v.(type) {
		case float32:
			return f, nil
		case float64:
			return float32(f), nil
		}
		return nil, errors.TypeMismatch(phase, pathCopy(path), "f32", typeName(v))

	case types.F64:
		switch f := v.(type) {
		case float32:
			return float64(f), nil
		case float64:
			return f, nil
		}
		return nil, errors.TypeMismatch(phase, pathCopy(path), "f64", typeName(v))
	}

	return nil, errors.Unsupported(phase, "primitive "+p.String())
}

func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int8:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int16:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int32:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// asStringMap normalizes the two map shapes MessagePack decoding yields.
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[s] = val
		}
		return out, true
	}
	return nil, false
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case bool:
		return "bool"
	case string:
		return "string"
	case int, int8, int16, int32, int64:
		return "integer"
	case uint, uint8, uint16, uint32, uint64:
		return "unsigned integer"
	case float32, float64:
		return "float"
	case []any:
		return "array"
	case map[string]any, map[any]any:
		return "map"
	case EnumValue:
		return "enum value"
	default:
		return "unknown"
	}
}

// pathCopy snapshots a path slice so later appends do not alias it.
func pathCopy(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, len(path))
	copy(out, path)
	return out
}

// optionInner reports whether ident resolves to the optional container,
// returning the inner identity.
func optionInner(tm *types.TypeMap, ident types.TypeIdent) (types.TypeIdent, bool) {
	ty, ok := tm.Get(ident)
	if !ok {
		return types.TypeIdent{}, false
	}
	c, ok := ty.(types.Container)
	if !ok || c.Name != "Option" {
		return types.TypeIdent{}, false
	}
	return c.Inner, true
}
