package httpserver

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// SerializeJSON marshals v to JSON with encoding/json first; only when that
// fails (encoding/json rejects cyclic values) does it fall back to the
// reflect walk below. In the walk, `seen` tracks the current recursion
// stack (ancestors only, popped on the way back up), not every pointer ever
// visited, so two fields that alias the same map/slice/pointer without a
// cycle between them each serialize their own value. When v does contain a
// genuine cycle (a pointer, map, or slice reachable from itself), the
// cyclic edge is replaced with a `{"$ref": "<path>"}` marker instead of
// recursing forever, so response serialization never fails because of
// circularity — acyclic values, the common case, never reach the walk.
// Grounded on nothing in the example pack (no
// reference-marker serializer exists there); this is the redesign the spec
// calls for in place of the original's throw-on-cycle behavior.
func SerializeJSON(v any) ([]byte, error) {
	if out, err := json.Marshal(v); err == nil {
		return out, nil
	}
	safe := sanitizeAny(v, "$", map[uintptr]string{})
	return json.Marshal(safe)
}

func sanitizeAny(v any, path string, seen map[uintptr]string) any {
	if v == nil {
		return nil
	}
	return sanitizeValue(reflect.ValueOf(v), path, seen)
}

func sanitizeValue(rv reflect.Value, path string, seen map[uintptr]string) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil

	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return sanitizeValue(rv.Elem(), path, seen)

	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if prior, ok := seen[ptr]; ok {
			return map[string]string{"$ref": prior}
		}
		seen[ptr] = path
		defer delete(seen, ptr)
		return sanitizeValue(rv.Elem(), path, seen)

	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if prior, ok := seen[ptr]; ok {
			return map[string]string{"$ref": prior}
		}
		seen[ptr] = path
		defer delete(seen, ptr)
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			out[key] = sanitizeValue(iter.Value(), path+"."+key, seen)
		}
		return out

	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if prior, ok := seen[ptr]; ok {
			return map[string]string{"$ref": prior}
		}
		seen[ptr] = path
		defer delete(seen, ptr)
		return sanitizeSeq(rv, path, seen)

	case reflect.Array:
		return sanitizeSeq(rv, path, seen)

	case reflect.Struct:
		t := rv.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" {
				continue
			}
			name, skip := jsonFieldName(f)
			if skip {
				continue
			}
			out[name] = sanitizeValue(rv.Field(i), path+"."+name, seen)
		}
		return out

	default:
		if rv.CanInterface() {
			return rv.Interface()
		}
		return nil
	}
}

func sanitizeSeq(rv reflect.Value, path string, seen map[uintptr]string) any {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = sanitizeValue(rv.Index(i), fmt.Sprintf("%s[%d]", path, i), seen)
	}
	return out
}

func jsonFieldName(f reflect.StructField) (name string, skip bool) {
	name = f.Name
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if tag == "" {
		return name, false
	}
	if comma := strings.IndexByte(tag, ','); comma >= 0 {
		tag = tag[:comma]
	}
	if tag != "" {
		name = tag
	}
	return name, false
}
