package codec

import (
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/types"
)

type decoder struct {
	tm *types.TypeMap
}

// value coerces a decoded MessagePack tree into the canonical form for the
// type named by ident.
func (d *decoder) value(raw any, ident types.TypeIdent, path []string) (any, error) {
	ty, err := resolve(d.tm, ident, path)
	if err != nil {
		return nil, err
	}
	return d.typed(raw, ty, path)
}

func (d *decoder) typed(raw any, ty types.Type, path []string) (any, error) {
	switch t := ty.(type) {
	case types.Primitive:
		return toPrimitive(raw, t, errors.PhaseDecode, path)

	case types.String:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return nil, errors.TypeMismatch(errors.PhaseDecode, pathCopy(path), "String", typeName(raw))

	case types.Unit:
		if raw != nil {
			return nil, errors.TypeMismatch(errors.PhaseDecode, pathCopy(path), "Unit", typeName(raw))
		}
		return nil, nil

	case types.Tuple:
		return d.tuple(raw, t, path)

	case types.List:
		return d.sequence(raw, t.Elem, path)

	case types.Set:
		return d.sequence(raw, t.Elem, path)

	case types.Map:
		return d.mapValue(raw, t, path)

	case types.Container:
		if t.Name == "Option" && raw == nil {
			return nil, nil
		}
		return d.value(raw, t.Inner, path)

	case types.Struct:
		return d.structValue(raw, t, path)

	case types.Enum:
		return d.enumValue(raw, t, path)
	}

	return nil, errors.Unsupported(errors.PhaseDecode, "type shape")
}

func (d *decoder) tuple(raw any, t types.Tuple, path []string) (any, error) {
	if len(t.Items) == 1 {
		return d.value(raw, t.Items[0], path)
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseDecode, pathCopy(path), "Tuple", typeName(raw))
	}
	if len(items) != len(t.Items) {
		return nil, errors.InvalidData(errors.PhaseDecode, pathCopy(path), "tuple length mismatch")
	}

	out := make([]any, len(items))
	for i, item := range items {
		dec, err := d.value(item, t.Items[i], path)
		if err != nil {
			return nil, err
		}
		out[i] = dec
	}
	return out, nil
}

func (d *decoder) sequence(raw any, elem types.TypeIdent, path []string) (any, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseDecode, pathCopy(path), "List", typeName(raw))
	}
	out := make([]any, len(items))
	for i, item := range items {
		dec, err := d.value(item, elem, path)
		if err != nil {
			return nil, err
		}
		out[i] = dec
	}
	return out, nil
}

// mapValue decodes into map[string]any for string keys, map[any]any
// otherwise.
func (d *decoder) mapValue(raw any, t types.Map, path []string) (any, error) {
	entries := make(map[any]any)
	switch m := raw.(type) {
	case map[string]any:
		for k, v := range m {
			entries[k] = v
		}
	case map[any]any:
		for k, v := range m {
			entries[k] = v
		}
	default:
		return nil, errors.TypeMismatch(errors.PhaseDecode, pathCopy(path), "Map", typeName(raw))
	}

	keyTy, err := resolve(d.tm, t.Key, path)
	if err != nil {
		return nil, err
	}
	_, stringKeys := keyTy.(types.String)

	if stringKeys {
		out := make(map[string]any, len(entries))
		for k, v := range entries {
			dk, err := d.value(k, t.Key, path)
			if err != nil {
				return nil, err
			}
			dv, err := d.value(v, t.Value, path)
			if err != nil {
				return nil, err
			}
			out[dk.(string)] = dv
		}
		return out, nil
	}

	out := make(map[any]any, len(entries))
	for k, v := range entries {
		dk, err := d.value(k, t.Key, path)
		if err != nil {
			return nil, err
		}
		dv, err := d.value(v, t.Value, path)
		if err != nil {
			return nil, err
		}
		out[dk] = dv
	}
	return out, nil
}

func (d *decoder) structValue(raw any, s types.Struct, path []string) (map[string]any, error) {
	wire, ok := asStringMap(raw)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseDecode, pathCopy(path), s.Ident.String(), typeName(raw))
	}

	out := make(map[string]any, len(s.Fields))
	consumed := make(map[string]bool, len(s.Fields))
	if err := d.structFields(wire, s, path, out, consumed); err != nil {
		return nil, err
	}

	// A flattened map field is the catch-all for wire entries no named
	// field consumed.
	for _, f := range s.Fields {
		if !f.Attrs.Flatten {
			continue
		}
		target, err := resolve(d.tm, f.Type, path)
		if err != nil {
			return nil, err
		}
		mt, ok := target.(types.Map)
		if !ok {
			continue
		}
		rest := make(map[string]any)
		for k, v := range wire {
			if !consumed[k] {
				rest[k] = v
			}
		}
		dec, err := d.mapValue(rest, mt, append(path, f.Name))
		if err != nil {
			return nil, err
		}
		out[f.Name] = dec
	}

	return out, nil
}

// structFields decodes the named (and flattened-struct) fields of s out of
// wire, recording which wire keys were consumed.
func (d *decoder) structFields(wire map[string]any, s types.Struct, path []string, out map[string]any, consumed map[string]bool) error {
	for _, f := range s.Fields {
		fieldPath := append(path, f.Name)

		if f.Attrs.Flatten {
			target, err := resolve(d.tm, f.Type, fieldPath)
			if err != nil {
				return err
			}
			ts, ok := target.(types.Struct)
			if !ok {
				continue // flattened maps are handled by the caller
			}
			sub := make(map[string]any, len(ts.Fields))
			if err := d.structFields(wire, ts, fieldPath, sub, consumed); err != nil {
				return err
			}
			out[f.Name] = sub
			continue
		}

		wireName := f.WireName(s.Options.FieldCasing)
		rv, present := wire[wireName]
		consumed[wireName] = true

		if _, isOpt := optionInner(d.tm, f.Type); isOpt {
			if !present || rv == nil {
				continue
			}
			dec, err := d.value(rv, f.Type, fieldPath)
			if err != nil {
				return err
			}
			out[f.Name] = dec
			continue
		}

		if !present {
			return errors.FieldMissing(pathCopy(fieldPath), wireName)
		}
		dec, err := d.value(rv, f.Type, fieldPath)
		if err != nil {
			return err
		}
		out[f.Name] = dec
	}
	return nil
}

func (d *decoder) enumValue(raw any, en types.Enum, path []string) (any, error) {
	switch en.Options.Tagging() {
	case types.External:
		return d.enumExternal(raw, en, path)
	case types.Internal:
		return d.enumInternal(raw, en, path)
	case types.Adjacent:
		return d.enumAdjacent(raw, en, path)
	default:
		return d.enumUntagged(raw, en, path)
	}
}

func (d *decoder) enumExternal(raw any, en types.Enum, path []string) (any, error) {
	if s, ok := raw.(string); ok {
		v := findVariantByWireName(en, s)
		if v == nil {
			return nil, errors.InvalidVariant(pathCopy(path), en.Ident.String(), "unknown variant "+s)
		}
		if _, isUnit := v.Payload.(types.Unit); !isUnit {
			return nil, errors.InvalidVariant(pathCopy(path), en.Ident.String(),
				"variant "+v.Name+" requires a payload")
		}
		return EnumValue{Variant: v.Name}, nil
	}

	m, ok := asStringMap(raw)
	if !ok || len(m) != 1 {
		return nil, errors.InvalidVariant(pathCopy(path), en.Ident.String(),
			"externally tagged enum requires a single-entry map or a bare variant name")
	}
	for wireName, payload := range m {
		v := findVariantByWireName(en, wireName)
		if v == nil {
			return nil, errors.InvalidVariant(pathCopy(path), en.Ident.String(), "unknown variant "+wireName)
		}
		dec, err := d.typed(payload, v.Payload, append(path, v.Name))
		if err != nil {
			return nil, err
		}
		return EnumValue{Variant: v.Name, Payload: dec}, nil
	}
	return nil, errors.InvalidVariant(pathCopy(path), en.Ident.String(), "empty enum map")
}

func (d *decoder) enumInternal(raw any, en types.Enum, path []string) (any, error) {
	m, ok := asStringMap(raw)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseDecode, pathCopy(path), en.Ident.String(), typeName(raw))
	}
	tag, ok := m[en.Options.TagProp].(string)
	if !ok {
		return nil, errors.FieldMissing(pathCopy(path), en.Options.TagProp)
	}
	v := findVariantByWireName(en, tag)
	if v == nil {
		return nil, errors.InvalidVariant(pathCopy(path), en.Ident.String(), "unknown variant "+tag)
	}

	switch payload := v.Payload.(type) {
	case types.Unit:
		return EnumValue{Variant: v.Name}, nil
	case types.Struct:
		fields := make(map[string]any, len(m))
		for k, val := range m {
			if k != en.Options.TagProp {
				fields[k] = val
			}
		}
		dec, err := d.structValue(fields, payload, append(path, v.Name))
		if err != nil {
			return nil, err
		}
		return EnumValue{Variant: v.Name, Payload: dec}, nil
	default:
		return nil, errors.InvalidVariant(pathCopy(path), en.Ident.String(),
			"internal tagging requires unit or struct payloads")
	}
}

func (d *decoder) enumAdjacent(raw any, en types.Enum, path []string) (any, error) {
	m, ok := asStringMap(raw)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseDecode, pathCopy(path), en.Ident.String(), typeName(raw))
	}
	tag, ok := m[en.Options.TagProp].(string)
	if !ok {
		return nil, errors.FieldMissing(pathCopy(path), en.Options.TagProp)
	}
	v := findVariantByWireName(en, tag)
	if v == nil {
		return nil, errors.InvalidVariant(pathCopy(path), en.Ident.String(), "unknown variant "+tag)
	}

	content := m[en.Options.ContentProp]
	dec, err := d.typed(content, v.Payload, append(path, v.Name))
	if err != nil {
		return nil, err
	}
	return EnumValue{Variant: v.Name, Payload: dec}, nil
}

// enumUntagged tries each variant's shape in declaration order; the first
// structural match wins. Two variants with compatible shapes are
// inherently ambiguous under this scheme, which is a documented
// limitation of untagged representation, not something decoded around.
func (d *decoder) enumUntagged(raw any, en types.Enum, path []string) (any, error) {
	for i := range en.Variants {
		v := &en.Variants[i]
		dec, err := d.typed(raw, v.Payload, append(path, v.Name))
		if err == nil {
			return EnumValue{Variant: v.Name, Payload: dec}, nil
		}
	}
	return nil, errors.InvalidVariant(pathCopy(path), en.Ident.String(),
		"no variant shape matches untagged value")
}

func findVariantByWireName(en types.Enum, wireName string) *types.Variant {
	for i := range en.Variants {
		if en.Variants[i].WireName(en.Options.VariantCasing) == wireName {
			return &en.Variants[i]
		}
	}
	return nil
}
