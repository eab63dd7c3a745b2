// Package codec turns message payloads into bytes and back.
//
// Payloads are arbitrary values; a Codec is the only component that knows how
// they are represented on disk or on a session wire. Transports treat the
// encoded form as opaque.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/wormhole/internal/errors"
)

// Codec serializes payloads.
type Codec interface {
	// Name returns the codec's configuration name.
	Name() string
	// Encode serializes v. Errors wrap errors.ErrEncode.
	Encode(v any) ([]byte, error)
	// Decode deserializes data into a fresh value. Errors wrap errors.ErrDecode.
	Decode(data []byte) (any, error)
}

// Codec names accepted by ByName.
const (
	NameJSON = "json"
	NameYAML = "yaml"
	NameTOML = "toml"
)

// Names returns the list of supported codec names.
func Names() []string {
	return []string{NameJSON, NameYAML, NameTOML}
}

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameJSON:
		return JSON{}, nil
	case NameYAML, "yml":
		return YAML{}, nil
	case NameTOML:
		return TOML{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (valid: %s)", name, strings.Join(Names(), ", "))
	}
}

// Default returns the codec used when none is configured.
func Default() Codec {
	return JSON{}
}

// JSON encodes payloads as JSON. Decoded objects are map[string]any.
// Integral numbers that fit decode as int64 and every other number as
// float64, so integers above 2^53 survive a round trip.
type JSON struct{}

// Name implements Codec.
func (JSON) Name() string { return NameJSON }

// Encode implements Codec.
func (JSON) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrEncode, err)
	}
	return data, nil
}

// Decode implements Codec.
func (JSON) Decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", errors.ErrDecode)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", errors.ErrDecode)
	}
	return fromNumbers(v), nil
}

// fromNumbers replaces json.Number values in place.
func fromNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, err := x.Float64()
		if err != nil {
			// Out of float64 range; keep the literal.
			return x.String()
		}
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = fromNumbers(e)
		}
	case []any:
		for i, e := range x {
			x[i] = fromNumbers(e)
		}
	}
	return v
}

// YAML encodes payloads as YAML documents.
type YAML struct{}

// Name implements Codec.
func (YAML) Name() string { return NameYAML }

// Encode implements Codec.
func (YAML) Encode(v any) (data []byte, err error) {
	// yaml.v3 panics on some unsupported kinds (funcs, channels).
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("%w: %v", errors.ErrEncode, r)
		}
	}()
	data, err = yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrEncode, err)
	}
	return data, nil
}

// Decode implements Codec.
func (YAML) Decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", errors.ErrDecode)
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	return v, nil
}

// TOML encodes payloads as TOML documents. Only maps and structs can be
// encoded; decoded documents are map[string]any with int64 integers.
type TOML struct{}

// Name implements Codec.
func (TOML) Name() string { return NameTOML }

// Encode implements Codec.
func (TOML) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (TOML) Decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", errors.ErrDecode)
	}
	v := map[string]any{}
	if err := toml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}
	return v, nil
}
