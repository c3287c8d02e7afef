package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaBaseURL = "https://schemas.contributor-billing.local/actions/"

var quotedName = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'`)

type schemaInput[T any] struct {
	schema *jsonschema.Schema
}

// SchemaInput compiles a JSON schema (draft 2020-12) and returns a validator
// that checks inputs against it before decoding them into T. Unknown fields
// are rejected even where the schema allows additional properties.
func SchemaInput[T any](name string, schemaJSON []byte) (Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := schemaBaseURL + name + ".schema.json"
	if err := c.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schemaInput[T]{schema: compiled}, nil
}

func (s schemaInput[T]) Validate(raw json.RawMessage) (any, []FieldError) {
	if fields := s.check(raw); len(fields) > 0 {
		return nil, fields
	}
	value, fields := decodeStrict[T](raw)
	if len(fields) > 0 {
		return nil, fields
	}
	normalized := normalize(value)
	// The normalized form is what gets persisted, so it must satisfy the
	// schema on its own when the action is restored.
	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, []FieldError{{Rule: "json", Message: err.Error()}}
	}
	if fields := s.check(data); len(fields) > 0 {
		return nil, fields
	}
	return normalized, nil
}

func (s schemaInput[T]) check(raw []byte) []FieldError {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return []FieldError{{Rule: "json", Message: err.Error()}}
	}
	if err := s.schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return schemaFieldErrors(verr)
		}
		return []FieldError{{Rule: "schema", Message: err.Error()}}
	}
	return nil
}

// schemaFieldErrors flattens the leaf causes of a schema validation error.
func schemaFieldErrors(root *jsonschema.ValidationError) []FieldError {
	var out []FieldError
	seen := make(map[FieldError]struct{})
	add := func(f FieldError) {
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}

	var walk func(*jsonschema.ValidationError)
	walk = func(ve *jsonschema.ValidationError) {
		if len(ve.Causes) > 0 {
			for _, cause := range ve.Causes {
				walk(cause)
			}
			return
		}
		base := pointerToPath(ve.InstanceLocation)
		rule := lastPointerSegment(ve.KeywordLocation)
		switch rule {
		case "required":
			for _, name := range quotedNames(ve.Message) {
				add(FieldError{Field: joinPath(base, name), Rule: rule, Message: "is required"})
			}
		case "additionalProperties", "unevaluatedProperties":
			for _, name := range quotedNames(ve.Message) {
				add(unknownField(joinPath(base, name)))
			}
		default:
			add(FieldError{Field: base, Rule: rule, Message: ve.Message})
		}
	}
	walk(root)
	sortFieldErrors(out)
	return out
}

func quotedNames(message string) []string {
	matches := quotedName.FindAllStringSubmatch(message, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.ReplaceAll(m[1], `\'`, `'`))
	}
	return names
}

func lastPointerSegment(pointer string) string {
	if i := strings.LastIndex(pointer, "/"); i >= 0 {
		return pointer[i+1:]
	}
	return pointer
}

// pointerToPath converts a JSON pointer such as /items/0/name to items[0].name.
func pointerToPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	var path string
	for _, segment := range strings.Split(pointer, "/") {
		segment = strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(segment); err == nil {
			path += "[" + segment + "]"
			continue
		}
		path = joinPath(path, segment)
	}
	return path
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
