package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/flowcore/pkg/schema"
)

// readGraphFile reads a graph document and returns it as JSON. YAML files
// (.yaml, .yml) are converted; anything else is taken as JSON.
func readGraphFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return toJSON(data, path)
}

func toJSON(data []byte, path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return json.Marshal(raw)
}

// decodeGraph parses a JSON graph document.
func decodeGraph(raw []byte) (schema.Graph, error) {
	var g schema.Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return g, schema.NewError(schema.ErrCodeValidation, "invalid graph document").WithCause(err)
	}
	return g, nil
}

// loadGraph reads and decodes a graph file.
func loadGraph(path string) (schema.Graph, error) {
	raw, err := readGraphFile(path)
	if err != nil {
		return schema.Graph{}, err
	}
	return decodeGraph(raw)
}

// parseInput decodes a trigger payload given inline or as a file. Inline
// wins when both are set.
func parseInput(inline, file string) (any, error) {
	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case file != "":
		raw, err := readGraphFile(file)
		if err != nil {
			return nil, err
		}
		data = raw
	default:
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing input: %w", err)
	}
	return v, nil
}

// parseBatch reads a JSON or YAML array of trigger payloads.
func parseBatch(file string) ([]any, error) {
	raw, err := readGraphFile(file)
	if err != nil {
		return nil, err
	}
	var inputs []any
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("parsing batch: expected an array of payloads: %w", err)
	}
	return inputs, nil
}
