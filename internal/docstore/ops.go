package docstore

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
)

// DocRef addresses one document.
type DocRef struct {
	Collection string `json:"collection" yaml:"collection"`
	ID         string `json:"id" yaml:"id"`
}

func (r DocRef) String() string {
	return r.Collection + "/" + r.ID
}

// OpKind names a write operation.
type OpKind string

const (
	OpMergeFields   OpKind = "mergeFields"
	OpAddToSet      OpKind = "addToSet"
	OpRemoveFromSet OpKind = "removeFromSet"
)

const deleteMarkerName = "$delete"

type deleteSentinel struct{}

// Delete, used as a value in a MergeFields map, removes the key.
var Delete any = deleteSentinel{}

// WriteOp is one operation of a batch.
type WriteOp struct {
	Kind   OpKind
	Fields map[string]any // OpMergeFields
	Field  string         // OpAddToSet, OpRemoveFromSet
	Values []string       // OpAddToSet, OpRemoveFromSet
}

// MergeFields returns an operation merging fields into the document.
func MergeFields(fields map[string]any) WriteOp {
	return WriteOp{Kind: OpMergeFields, Fields: fields}
}

// AddToSet returns an operation adding values to an array field.
func AddToSet(field string, values ...string) WriteOp {
	return WriteOp{Kind: OpAddToSet, Field: field, Values: values}
}

// RemoveFromSet returns an operation removing values from an array field.
func RemoveFromSet(field string, values ...string) WriteOp {
	return WriteOp{Kind: OpRemoveFromSet, Field: field, Values: values}
}

// Empty reports whether applying the operation cannot change a document.
func (op WriteOp) Empty() bool {
	switch op.Kind {
	case OpMergeFields:
		return len(op.Fields) == 0
	default:
		return len(op.Values) == 0
	}
}

// Value renders the operation as a plain value for journaling and display.
// Delete sentinels become {"$delete": true}.
func (op WriteOp) Value() map[string]any {
	out := map[string]any{"op": string(op.Kind)}
	switch op.Kind {
	case OpMergeFields:
		out["fields"] = renderDeletes(op.Fields)
	default:
		values := op.Values
		if values == nil {
			values = []string{}
		}
		out["field"] = op.Field
		out["values"] = values
	}
	return out
}

// FormatBatch renders ops as canonical JSON, one operation per line.
func FormatBatch(ops []WriteOp) ([]byte, error) {
	var buf bytes.Buffer
	for i, op := range ops {
		line, err := MarshalCanonical(op.Value())
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func renderDeletes(v any) any {
	switch val := v.(type) {
	case deleteSentinel:
		return map[string]any{deleteMarkerName: true}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = renderDeletes(elem)
		}
		return out
	default:
		return val
	}
}

// Apply applies op to doc in place.
func Apply(doc map[string]any, op WriteOp) error {
	switch op.Kind {
	case OpMergeFields:
		return mergeInto(doc, op.Fields)
	case OpAddToSet, OpRemoveFromSet:
		if op.Field == "" {
			return fmt.Errorf("%s: empty field name", op.Kind)
		}
		current, err := stringSet(doc[op.Field])
		if err != nil {
			return fmt.Errorf("%s %q: %w", op.Kind, op.Field, err)
		}
		if op.Kind == OpAddToSet {
			for _, v := range op.Values {
				if !slices.Contains(current, v) {
					current = append(current, v)
				}
			}
		} else {
			current = slices.DeleteFunc(current, func(s string) bool {
				return slices.Contains(op.Values, s)
			})
		}
		arr := make([]any, len(current))
		for i, s := range current {
			arr[i] = s
		}
		doc[op.Field] = arr
		return nil
	default:
		return fmt.Errorf("unknown write op %q", op.Kind)
	}
}

func mergeInto(dst map[string]any, fields map[string]any) error {
	for k, v := range fields {
		switch val := v.(type) {
		case deleteSentinel:
			delete(dst, k)
		case map[string]any:
			existing, ok := dst[k].(map[string]any)
			if !ok {
				existing = make(map[string]any, len(val))
			}
			if err := mergeInto(existing, val); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			dst[k] = existing
		default:
			dst[k] = normalizeValue(val)
		}
	}
	return nil
}

// normalizeValue stores integers as int64 so freshly written and decoded
// documents compare equal.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return arr
	default:
		return val
	}
}

func stringSet(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return slices.Clone(val), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("array holds %T, want string", elem)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field holds %T, want array", v)
	}
}

// Document is a decoded progress document. Integers are int64.
type Document map[string]any

// Int returns an integer field, or 0 when absent.
func (d Document) Int(field string) int {
	switch v := d[field].(type) {
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Bool returns a boolean field, or def when absent.
func (d Document) Bool(field string, def bool) bool {
	if v, ok := d[field].(bool); ok {
		return v
	}
	return def
}

// Strings returns an array field of strings in stored order.
func (d Document) Strings(field string) []string {
	out, _ := stringSet(d[field])
	return out
}

// IntMap returns an object field whose values are integers, skipping
// anything else.
func (d Document) IntMap(field string) map[string]int {
	obj, ok := d[field].(map[string]any)
	if !ok {
		return map[string]int{}
	}
	out := make(map[string]int, len(obj))
	for k, v := range obj {
		switch n := v.(type) {
		case int64:
			out[k] = int(n)
		case int:
			out[k] = n
		}
	}
	return out
}

// Keys returns the document's top-level keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
