package json

import (
	"reflect"

	"github.com/creasty/defaults"
	jsoniter "github.com/json-iterator/go"
)

// canonical sorts map keys and leaves HTML characters alone. Equal values
// always produce equal bytes, which signatures and ETags rely on.
var canonical = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// RawMessage is a raw encoded JSON value.
type RawMessage = jsoniter.RawMessage

// applyDefaults fills `default` struct tags. Only struct pointers carry
// defaults; anything else is passed through untouched.
func applyDefaults(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil
	}
	return defaults.Set(v)
}

func Marshal(v any) ([]byte, error) {
	if err := applyDefaults(v); err != nil {
		return nil, err
	}
	return canonical.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	if err := applyDefaults(v); err != nil {
		return nil, err
	}
	return canonical.MarshalIndent(v, prefix, indent)
}

func MarshalToString(v any) (string, error) {
	if err := applyDefaults(v); err != nil {
		return "", err
	}
	return canonical.MarshalToString(v)
}

func Unmarshal(data []byte, v any) error {
	if err := applyDefaults(v); err != nil {
		return err
	}
	return canonical.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return canonical.Valid(data)
}
