package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"
)

const (
	OutputFormatPlain = "plain"
	OutputFormatJSON  = "json"
	OutputFormatYAML  = "yaml"
)

// ParseOutputFormat validates and normalizes output format values.
// Empty values default to plain output.
func ParseOutputFormat(raw string) (string, error) {
	normalized := strings.TrimSpace(strings.ToLower(raw))
	if normalized == "" {
		return OutputFormatPlain, nil
	}

	switch normalized {
	case OutputFormatPlain, OutputFormatJSON, OutputFormatYAML:
		return normalized, nil
	default:
		return "", fmt.Errorf("invalid output format %q (supported: %q, %q, %q)", raw, OutputFormatPlain, OutputFormatJSON, OutputFormatYAML)
	}
}

func WriteJSON(w io.Writer, v any) error {
	if w == nil {
		return errors.New("writer is nil")
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func WriteYAML(w io.Writer, v any) error {
	if w == nil {
		return errors.New("writer is nil")
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Write encodes v in the structured format, returns an error for plain.
func Write(w io.Writer, format string, v any) error {
	switch format {
	case OutputFormatJSON:
		return WriteJSON(w, v)
	case OutputFormatYAML:
		return WriteYAML(w, v)
	}
	return fmt.Errorf("output format %q is not structured", format)
}
