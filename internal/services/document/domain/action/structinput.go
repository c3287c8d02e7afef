package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return jsonTagName(field)
	})
	return v
}

type structInput[T any] struct {
	fields map[string]int
}

// StructInput returns a validator that decodes inputs into T and checks the
// `validate` struct tags of T. Every unknown top-level field, every field that
// does not decode and every failing tag is reported.
func StructInput[T any]() Validator {
	var zero T
	return structInput[T]{fields: jsonFieldIndexes(reflect.TypeOf(zero))}
}

func (s structInput[T]) Validate(raw json.RawMessage) (any, []FieldError) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return nil, []FieldError{{Rule: "type", Message: "must be an object"}}
	}

	var value T
	target := reflect.ValueOf(&value).Elem()
	if target.Kind() != reflect.Struct {
		return s.validateWhole(raw)
	}

	var violations []FieldError
	failed := make(map[string]struct{})
	for name, fieldRaw := range top {
		index, ok := s.fields[name]
		if !ok {
			violations = append(violations, unknownField(name))
			continue
		}
		if err := decodeField(fieldRaw, target.Field(index).Addr().Interface()); err != nil {
			violations = append(violations, nestFieldError(name, decodeFieldError(err)))
			failed[name] = struct{}{}
		}
	}

	value = normalize(value)
	for _, fe := range structFieldErrors(structValidator.Struct(value)) {
		if _, skip := failed[rootField(fe.Field)]; skip {
			continue
		}
		violations = append(violations, fe)
	}
	if len(violations) > 0 {
		sortFieldErrors(violations)
		return nil, violations
	}
	return value, nil
}

// validateWhole handles non-struct payload types, which have no fields to
// decode one at a time.
func (s structInput[T]) validateWhole(raw json.RawMessage) (any, []FieldError) {
	value, violations := decodeStrict[T](raw)
	if len(violations) > 0 {
		return nil, violations
	}
	return normalize(value), nil
}

func decodeField(raw json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func structFieldErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Rule: "struct", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   trimNamespace(fe.Namespace()),
			Rule:    fe.Tag(),
			Message: ruleMessage(fe),
		})
	}
	sortFieldErrors(out)
	return out
}

// trimNamespace drops the Go type name that prefixes validator namespaces.
func trimNamespace(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with", "required_without", "required_if":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "min":
		if unit := unitFor(fe); unit != "" {
			return "must have at least " + fe.Param() + " " + unit
		}
		return "must be at least " + fe.Param()
	case "max":
		if unit := unitFor(fe); unit != "" {
			return "must have at most " + fe.Param() + " " + unit
		}
		return "must be at most " + fe.Param()
	case "iso4217":
		return "must be an ISO 4217 currency code"
	case "eth_addr":
		return "must be an Ethereum address"
	case "email":
		return "must be an email address"
	case "url", "http_url":
		return "must be a URL"
	case "datetime":
		return "must be a date in layout " + fe.Param()
	case "gtefield":
		return "must not be before " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func unitFor(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return "characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return "items"
	default:
		return ""
	}
}
