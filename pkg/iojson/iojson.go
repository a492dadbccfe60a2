// Package iojson writes and reads JSON for command line output and input.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
)

// Error is the JSON shape written for command failures in --json mode.
type Error struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// WriteError writes err as an Error object to w.
func WriteError(w io.Writer, msg string, data map[string]any) error {
	bits, err := json.Marshal(Error{Message: msg, Data: data})
	if err != nil {
		return fmt.Errorf("encode error: %w", err)
	}
	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// Write writes obj as indented JSON followed by a newline.
func Write(w io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// WriteLine writes obj as a single JSON line, for streaming output.
func WriteLine(w io.Writer, obj any) error {
	bits, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(bits))
	return err
}
