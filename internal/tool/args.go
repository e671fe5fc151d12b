package tool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/barabonda/linkbrain/internal/types"
)

// decodeArgs parses raw arguments into a JSON object, keeping numbers as
// json.Number so schema validation sees the literal value. Empty input and
// null decode to an empty object.
func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("arguments contain trailing data")
	}

	args, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object, got %s", jsonKind(v))
	}
	return args, nil
}

// resolveNumbers replaces json.Number values with int64 when integral and
// float64 otherwise.
func resolveNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, item := range x {
			x[k] = resolveNumbers(item)
		}
		return x
	case []any:
		for i, item := range x {
			x[i] = resolveNumbers(item)
		}
		return x
	default:
		return v
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	default:
		return "object"
	}
}

// StringArg returns args[key] when it is a string.
func StringArg(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok
}

// ObjectArg returns args[key] as an object. A string holding a JSON object
// is decoded, with numbers resolved like top-level arguments.
func ObjectArg(args map[string]any, key string) (map[string]any, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		obj, err := ParseObject(v)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeValidation, fmt.Sprintf("argument %q", key), err)
		}
		return obj, nil
	default:
		return nil, types.NewError(types.ErrCodeValidation,
			fmt.Sprintf("argument %q must be an object, got %s", key, jsonKind(v)))
	}
}

// ParseObject decodes s as a JSON object, resolving numbers like tool
// arguments. Blank input yields nil.
func ParseObject(s string) (map[string]any, error) {
	if len(bytes.TrimSpace([]byte(s))) == 0 {
		return nil, nil
	}
	obj, err := decodeArgs(json.RawMessage(s))
	if err != nil {
		return nil, err
	}
	return resolveNumbers(obj).(map[string]any), nil
}
