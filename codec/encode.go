package codec

import (
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/types"
)

type encoder struct {
	tm *types.TypeMap
}

// value builds the wire tree for v as the type named by ident.
func (e *encoder) value(v any, ident types.TypeIdent, path []string) (any, error) {
	ty, err := resolve(e.tm, ident, path)
	if err != nil {
		return nil, err
	}
	return e.typed(v, ty, path)
}

func (e *encoder) typed(v any, ty types.Type, path []string) (any, error) {
	switch t := ty.(type) {
	case types.Primitive:
		return toPrimitive(v, t, errors.PhaseEncode, path)

	case types.String:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, errors.TypeMismatch(errors.PhaseEncode, pathCopy(path), "String", typeName(v))

	case types.Unit:
		if v != nil {
			return nil, errors.TypeMismatch(errors.PhaseEncode, pathCopy(path), "Unit", typeName(v))
		}
		return nil, nil

	case types.Tuple:
		return e.tuple(v, t, path)

	case types.List:
		return e.sequence(v, t.Elem, path)

	case types.Set:
		return e.sequence(v, t.Elem, path)

	case types.Map:
		return e.mapValue(v, t, path)

	case types.Container:
		if t.Name == "Option" {
			if v == nil {
				return nil, nil
			}
		}
		// Box, Shared and present optionals are transparent.
		return e.value(v, t.Inner, path)

	case types.Struct:
		return e.structWire(v, t, path)

	case types.Enum:
		return e.enumWire(v, t, path)
	}

	return nil, errors.Unsupported(errors.PhaseEncode, "type shape")
}

// tuple encodes single-element tuples as the bare element and wider
// tuples as arrays.
func (e *encoder) tuple(v any, t types.Tuple, path []string) (any, error) {
	if len(t.Items) == 1 {
		return e.value(v, t.Items[0], path)
	}

	items, ok := v.([]any)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseEncode, pathCopy(path), "Tuple", typeName(v))
	}
	if len(items) != len(t.Items) {
		return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(pathCopy(path)...).
			Detail("tuple has %d elements, want %d", len(items), len(t.Items)).
			Build()
	}

	out := make([]any, len(items))
	for i, item := range items {
		enc, err := e.value(item, t.Items[i], path)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

func (e *encoder) sequence(v any, elem types.TypeIdent, path []string) (any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseEncode, pathCopy(path), "List", typeName(v))
	}
	out := make([]any, len(items))
	for i, item := range items {
		enc, err := e.value(item, elem, path)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

func (e *encoder) mapValue(v any, t types.Map, path []string) (any, error) {
	out := make(map[any]any)

	add := func(k, val any) error {
		ek, err := e.value(k, t.Key, path)
		if err != nil {
			return err
		}
		ev, err := e.value(val, t.Value, path)
		if err != nil {
			return err
		}
		out[ek] = ev
		return nil
	}

	switch m := v.(type) {
	case map[string]any:
		for k, val := range m {
			if err := add(k, val); err != nil {
				return nil, err
			}
		}
	case map[any]any:
		for k, val := range m {
			if err := add(k, val); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.TypeMismatch(errors.PhaseEncode, pathCopy(path), "Map", typeName(v))
	}
	return out, nil
}

func (e *encoder) structWire(v any, s types.Struct, path []string) (map[string]any, error) {
	m, ok := asStringMap(v)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseEncode, pathCopy(path), s.Ident.String(), typeName(v))
	}

	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		fieldPath := append(path, f.Name)
		fv, present := m[f.Name]

		if f.Attrs.Flatten {
			if err := e.flatten(fv, present, f, out, fieldPath); err != nil {
				return nil, err
			}
			continue
		}

		wireName := f.WireName(s.Options.FieldCasing)

		if _, isOpt := optionInner(e.tm, f.Type); isOpt {
			// Absent optionals are omitted, not encoded as null.
			if !present || fv == nil {
				continue
			}
			enc, err := e.value(fv, f.Type, fieldPath)
			if err != nil {
				return nil, err
			}
			out[wireName] = enc
			continue
		}

		if !present {
			return nil, errors.New(errors.PhaseEncode, errors.KindFieldMissing).
				Path(pathCopy(fieldPath)...).
				Detail("no value for field %q", f.Name).
				Build()
		}
		enc, err := e.value(fv, f.Type, fieldPath)
		if err != nil {
			return nil, err
		}
		out[wireName] = enc
	}
	return out, nil
}

// flatten merges a struct or map field's wire entries into the parent map.
func (e *encoder) flatten(fv any, present bool, f types.Field, out map[string]any, path []string) error {
	target, err := resolve(e.tm, f.Type, path)
	if err != nil {
		return err
	}

	switch t := target.(type) {
	case types.Struct:
		if !present {
			return errors.New(errors.PhaseEncode, errors.KindFieldMissing).
				Path(pathCopy(path)...).
				Detail("no value for flattened field %q", f.Name).
				Build()
		}
		sub, err := e.structWire(fv, t, path)
		if err != nil {
			return err
		}
		for k, v := range sub {
			out[k] = v
		}
		return nil

	case types.Map:
		if !present || fv == nil {
			return nil
		}
		sub, err := e.mapValue(fv, t, path)
		if err != nil {
			return err
		}
		for k, v := range sub.(map[any]any) {
			ks, ok := k.(string)
			if !ok {
				return errors.New(errors.PhaseEncode, errors.KindInvalidData).
					Path(pathCopy(path)...).
					Detail("flattened map requires string keys").
					Build()
			}
			out[ks] = v
		}
		return nil
	}

	return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
		Path(pathCopy(path)...).
		Detail("flatten requires a struct or map field").
		Build()
}

func (e *encoder) enumWire(v any, en types.Enum, path []string) (any, error) {
	var ev EnumValue
	switch val := v.(type) {
	case EnumValue:
		ev = val
	case *EnumValue:
		ev = *val
	case string:
		// Shorthand for unit variants.
		ev = EnumValue{Variant: val}
	default:
		return nil, errors.TypeMismatch(errors.PhaseEncode, pathCopy(path), en.Ident.String(), typeName(v))
	}

	var variant *types.Variant
	for i := range en.Variants {
		if en.Variants[i].Name == ev.Variant {
			variant = &en.Variants[i]
			break
		}
	}
	if variant == nil {
		return nil, errors.InvalidVariant(pathCopy(path), en.Ident.String(),
			"unknown variant "+ev.Variant)
	}

	variantPath := append(path, variant.Name)
	wireName := variant.WireName(en.Options.VariantCasing)
	_, isUnit := variant.Payload.(types.Unit)

	payload, err := e.typed(ev.Payload, variant.Payload, variantPath)
	if err != nil {
		return nil, err
	}

	switch en.Options.Tagging() {
	case types.External:
		if isUnit {
			return wireName, nil
		}
		return map[string]any{wireName: payload}, nil

	case types.Internal:
		m, ok := payload.(map[string]any)
		if !ok {
			m = make(map[string]any, 1)
		}
		m[en.Options.TagProp] = wireName
		return m, nil

	case types.Adjacent:
		m := map[string]any{en.Options.TagProp: wireName}
		if !isUnit {
			m[en.Options.ContentProp] = payload
		}
		return m, nil

	default: // Untagged
		return payload, nil
	}
}
