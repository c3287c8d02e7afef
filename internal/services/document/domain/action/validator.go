package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Validator checks a canonical JSON input and returns its decoded payload, or
// every field violation it found.
type Validator interface {
	Validate(raw json.RawMessage) (any, []FieldError)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(raw json.RawMessage) (any, []FieldError)

// Validate calls f.
func (f ValidatorFunc) Validate(raw json.RawMessage) (any, []FieldError) {
	return f(raw)
}

// NoInput accepts only an empty object and yields a nil payload.
var NoInput Validator = ValidatorFunc(func(raw json.RawMessage) (any, []FieldError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, []FieldError{{Rule: "type", Message: "must be an object"}}
	}
	var violations []FieldError
	for name := range fields {
		violations = append(violations, unknownField(name))
	}
	sortFieldErrors(violations)
	return nil, violations
})

type normalizer[T any] interface {
	Normalize() T
}

func normalize[T any](value T) T {
	if n, ok := any(value).(normalizer[T]); ok {
		return n.Normalize()
	}
	return value
}

// decodeStrict decodes raw into T rejecting unknown fields at any depth.
func decodeStrict[T any](raw json.RawMessage) (T, []FieldError) {
	var value T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&value); err != nil {
		return value, []FieldError{decodeFieldError(err)}
	}
	return value, nil
}

func decodeFieldError(err error) FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return FieldError{
			Field:   typeErr.Field,
			Rule:    "type",
			Message: fmt.Sprintf("must be %s, got %s", jsonKind(typeErr.Type), typeErr.Value),
		}
	}
	msg := err.Error()
	if name, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		return unknownField(strings.Trim(name, `"`))
	}
	return FieldError{Rule: "json", Message: msg}
}

// nestFieldError prefixes a violation found while decoding a single field
// with that field's name.
func nestFieldError(name string, fe FieldError) FieldError {
	switch {
	case fe.Field == "":
		fe.Field = name
	case strings.HasPrefix(fe.Field, "["):
		fe.Field = name + fe.Field
	default:
		fe.Field = name + "." + fe.Field
	}
	return fe
}

// rootField returns the top-level field of a dotted violation path.
func rootField(path string) string {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}

func unknownField(name string) FieldError {
	return FieldError{Field: name, Rule: "unknown", Message: "is not allowed"}
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "a value"
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Map, reflect.Struct:
		return "an object"
	case reflect.Pointer:
		return jsonKind(t.Elem())
	default:
		return "a " + t.Kind().String()
	}
}

// jsonFieldIndexes maps the JSON names of t's exported struct fields to their
// field index.
func jsonFieldIndexes(t reflect.Type) map[string]int {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	names := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonTagName(field)
		if name == "" {
			continue
		}
		names[name] = i
	}
	return names
}

func jsonTagName(field reflect.StructField) string {
	tag, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch tag {
	case "-":
		return ""
	case "":
		return field.Name
	default:
		return tag
	}
}

func sortFieldErrors(fields []FieldError) {
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Field != fields[j].Field {
			return fields[i].Field < fields[j].Field
		}
		return fields[i].Rule < fields[j].Rule
	})
}
