package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format names a supported source encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

var (
	// ErrUnknownFormat indicates the source format could not be determined.
	ErrUnknownFormat = errors.New("importer: unknown source format")
	// ErrMalformedSource indicates the source could not be decoded into a
	// mapping.
	ErrMalformedSource = errors.New("importer: malformed source")
)

// DetectFormat infers the format from the source extension.
func DetectFormat(source string) (Format, error) {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, source)
	}
}

// ParseFormat converts a user supplied name into a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return "", nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Parse decodes data into a document whose nested mappings are
// map[string]any. Empty input yields an empty document.
func Parse(format Format, data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		err = decoder.Decode(&doc)
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}
	return normalizeDocument(doc)
}

func normalizeDocument(doc map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		normalized, err := normalizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrMalformedSource, key, err)
		}
		out[key] = normalized
	}
	return out, nil
}

func normalizeValue(value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		return normalizeDocument(typed)
	case map[any]any:
		converted := make(map[string]any, len(typed))
		for key, v := range typed {
			converted[fmt.Sprint(key)] = v
		}
		return normalizeDocument(converted)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			v, err := normalizeValue(typed[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, nil
		}
		f, err := typed.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case time.Time:
		return typed.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return typed.String(), nil
	default:
		return value, nil
	}
}
