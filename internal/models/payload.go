package models

import "encoding/json"

// Payload is the nested sheet document. It is stored serialized and must
// round-trip exactly, including empty collections and absent optional fields.
type Payload map[string]any

// ParsePayload decodes serialized payload bytes.
func ParsePayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, nil
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// Bytes returns the serialized form of the payload.
func (p Payload) Bytes() ([]byte, error) {
	if p == nil {
		return json.Marshal(Payload{})
	}
	return json.Marshal(p)
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge applies patch on top of p and returns the result, leaving both inputs
// untouched. Nested objects are merged key-by-key; arrays and scalars are
// replaced wholesale.
func (p Payload) Merge(patch Payload) Payload {
	out := p.Clone()
	for k, v := range patch {
		pm, patchIsObj := v.(map[string]any)
		bm, baseIsObj := out[k].(map[string]any)
		if patchIsObj && baseIsObj {
			out[k] = map[string]any(Payload(bm).Merge(pm))
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
