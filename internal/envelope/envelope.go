// Package envelope implements the provider wire contract: a JSON object carrying "prompt" is read
// from the input stream and a single line {"output": <prompt>} is written to the output stream.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	// PromptKey is the input envelope field copied to the output.
	PromptKey = "prompt"
	// OutputKey is the only field of the output envelope.
	OutputKey = "output"
)

var (
	// ErrMalformedInput reports input that is not a single valid JSON document.
	ErrMalformedInput = errors.New("malformed input")
	// ErrUnexpectedShape reports valid JSON that is not an object.
	ErrUnexpectedShape = errors.New("unexpected input shape")
	// ErrStreamFailure reports a failed read of the input or write of the output.
	ErrStreamFailure = errors.New("stream failure")
)

// emptyString is the output value used when the input has no prompt.
var emptyString = json.RawMessage(`""`)

// Request is the input envelope as built by a harness.
type Request struct {
	Prompt any `json:"prompt"`
}

// Response is the output envelope. Output holds the prompt value exactly as received.
type Response struct {
	Output json.RawMessage `json:"output"`
}

// Transform reads r to end of stream, extracts the prompt and writes one output line to w.
// Nothing is written to w unless the whole line could be built.
// The line is compact JSON whose spacing and escapes may differ from other encoders, so
// consumers should compare the decoded JSON values rather than the bytes.
func Transform(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading input: %w: %w", ErrStreamFailure, err)
	}
	value, err := Extract(data)
	if err != nil {
		return err
	}
	return Encode(w, value)
}

// Extract parses data as a JSON object and returns the raw value stored under "prompt",
// compacted. A missing prompt yields the JSON empty string.
func Extract(data []byte) (json.RawMessage, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: input is not valid UTF-8", ErrMalformedInput)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: got JSON %s, want object", ErrUnexpectedShape, typeErr.Value)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	// A top-level null decodes into a nil map without error.
	if fields == nil {
		return nil, fmt.Errorf("%w: got JSON null, want object", ErrUnexpectedShape)
	}
	value, ok := fields[PromptKey]
	if !ok {
		return emptyString, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return buf.Bytes(), nil
}

// Encode writes {"output":<value>} and a trailing newline to w in a single Write.
// An empty value is written as the JSON empty string.
func Encode(w io.Writer, value json.RawMessage) error {
	line, err := MarshalLine(value)
	if err != nil {
		return err
	}
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("writing output: %w: %w", ErrStreamFailure, err)
	}
	return nil
}

// MarshalLine returns the compact output envelope for value, newline included.
// HTML characters are not escaped so the value is reproduced as received.
func MarshalLine(value json.RawMessage) ([]byte, error) {
	if len(value) == 0 {
		value = emptyString
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Response{Output: value}); err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	return buf.Bytes(), nil
}

// NewRequest builds an input envelope for prompt.
func NewRequest(prompt any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Request{Prompt: prompt}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeResponse parses one output envelope. The line must be a JSON object with an "output" key.
func DecodeResponse(line []byte) (Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Response{}, fmt.Errorf("decoding response: %w", err)
	}
	if fields == nil {
		return Response{}, errors.New("decoding response: got JSON null, want object")
	}
	out, ok := fields[OutputKey]
	if !ok {
		return Response{}, fmt.Errorf("decoding response: missing %q", OutputKey)
	}
	return Response{Output: out}, nil
}
