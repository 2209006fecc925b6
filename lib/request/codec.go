// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format identifies a queue file encoding.
type Format string

const (
	// FormatYAML is used for .yml and .yaml files.
	FormatYAML Format = "yaml"
	// FormatJSON is used for .json and .jsonc files.
	FormatJSON Format = "json"
)

// FormatForPath returns the encoding for a queue file based on its
// extension. ok is false for unrecognized extensions.
func FormatForPath(path string) (format Format, ok bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML, true
	case ".json", ".jsonc":
		return FormatJSON, true
	default:
		return "", false
	}
}

// errNotMapping is the reason recorded when a file's top-level value is
// not a mapping.
var errNotMapping = errors.New("top-level value must be a mapping")

// Decode parses data in the given format into a Request and checks
// that the request names an action. A file holds exactly one YAML
// document or one JSON value. The returned error is suitable as the Err
// of a [MalformedRequestError].
func Decode(format Format, data []byte) (Request, error) {
	var raw any
	switch format {
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		err := decoder.Decode(&raw)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		if err == nil {
			var extra yaml.Node
			switch err := decoder.Decode(&extra); {
			case err == nil:
				return nil, errors.New("parsing YAML: file holds more than one document")
			case !errors.Is(err, io.EOF):
				return nil, fmt.Errorf("parsing YAML: %w", err)
			}
		}
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.UseNumber()
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
		var extra json.RawMessage
		if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
			return nil, errors.New("parsing JSON: unexpected data after the top-level value")
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	normalized, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	mapping, ok := normalized.(map[string]any)
	if !ok {
		if normalized == nil {
			return nil, fmt.Errorf("file is empty: %w", errNotMapping)
		}
		return nil, fmt.Errorf("%w, got %s", errNotMapping, typeName(normalized))
	}

	request := Request(mapping)
	if !request.Has(ActionKey) {
		return nil, fmt.Errorf("missing required field %q", ActionKey)
	}
	if request.Action() == "" {
		return nil, fmt.Errorf("field %q must be a non-empty string", ActionKey)
	}
	return request, nil
}

// Encode serializes a Request in the given format. YAML output lists
// the action first and the remaining keys in sorted order; JSON output
// is indented with sorted keys. Both end with a newline.
func Encode(format Format, request Request) ([]byte, error) {
	switch format {
	case FormatYAML:
		return encodeYAML(request)
	case FormatJSON:
		data, err := json.MarshalIndent(map[string]any(request), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding JSON: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func encodeYAML(request Request) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(map[string]any(request)); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	moveKeyFirst(&node, ActionKey)

	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	return buffer.Bytes(), nil
}

// moveKeyFirst reorders a mapping node so the pair for key comes first.
// Mapping node content alternates key and value nodes.
func moveKeyFirst(node *yaml.Node, key string) {
	if node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != key {
			continue
		}
		pair := []*yaml.Node{node.Content[i], node.Content[i+1]}
		rest := append(append([]*yaml.Node{}, node.Content[:i]...), node.Content[i+2:]...)
		node.Content = append(pair, rest...)
		return
	}
}

// normalize converts decoder output to the Request value domain:
// map[string]any for mappings, []any for lists, int or float64 for
// numbers.
func normalize(value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(typed))
		for key, item := range typed {
			converted, err := normalize(item)
			if err != nil {
				return nil, err
			}
			result[key] = converted
		}
		return result, nil
	case map[any]any:
		result := make(map[string]any, len(typed))
		for key, item := range typed {
			converted, err := normalize(item)
			if err != nil {
				return nil, err
			}
			result[fmt.Sprint(key)] = converted
		}
		return result, nil
	case []any:
		result := make([]any, len(typed))
		for i, item := range typed {
			converted, err := normalize(item)
			if err != nil {
				return nil, err
			}
			result[i] = converted
		}
		return result, nil
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return int(integer), nil
		}
		number, err := typed.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", typed.String(), err)
		}
		return number, nil
	case int64:
		return int(typed), nil
	default:
		return value, nil
	}
}
