// Package suite loads conformance suites: lists of stdin payloads with the response a provider
// must produce for each, or the expectation that it fails.
package suite

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hattiebot/echoprovider/internal/envelope"
	"github.com/hattiebot/echoprovider/internal/provider"
)

//go:embed default.yaml
var defaultSuite []byte

// Suite is a named set of cases run against one provider.
type Suite struct {
	Name  string `yaml:"name"`
	Cases []Case `yaml:"cases"`
}

// Case is one provider invocation. Exactly one of WantOutput and WantFailure is set.
type Case struct {
	Name  string `yaml:"name"`
	Input string `yaml:"input"`
	// WantOutput is the JSON text of the expected "output" value.
	WantOutput  string `yaml:"want_output,omitempty"`
	WantFailure bool   `yaml:"want_failure,omitempty"`
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a YAML suite.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing suite: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks names are present and unique and each case has exactly one valid expectation.
func (s *Suite) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("suite name is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("suite %q has no cases", s.Name)
	}
	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("case %d: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("case %q: duplicate name", c.Name)
		}
		seen[c.Name] = true
		hasOutput := strings.TrimSpace(c.WantOutput) != ""
		if hasOutput == c.WantFailure {
			return fmt.Errorf("case %q: set exactly one of want_output and want_failure", c.Name)
		}
		if hasOutput && !json.Valid([]byte(c.WantOutput)) {
			return fmt.Errorf("case %q: want_output is not valid JSON", c.Name)
		}
	}
	return nil
}

// Default returns the built-in echo conformance suite extended with PromptCases for SamplePrompts.
func Default() *Suite {
	s, err := Parse(defaultSuite)
	if err != nil {
		panic(fmt.Sprintf("embedded default suite: %v", err))
	}
	s.Cases = append(s.Cases, PromptCases(SamplePrompts)...)
	return s
}

// SamplePrompts exercise JSON string escaping and non-ASCII text.
var SamplePrompts = []string{
	"",
	" ",
	"hello world",
	`a"b`,
	`back\slash`,
	"tab\tnewline\ncarriage\r",
	"\x00\x01\x1f",
	"<script>alert('&')</script>",
	"héllo wörld",
	"日本語のテキスト",
	"emoji 🙂👍",
	"  ",
	strings.Repeat("long prompt ", 512),
}

// PromptCases builds one echo case per prompt: input {"prompt": p}, expected output p.
// Strings always encode, so a failure here is a programming error and panics.
func PromptCases(prompts []string) []Case {
	cases := make([]Case, 0, len(prompts))
	for i, p := range prompts {
		in, err := envelope.NewRequest(p)
		if err != nil {
			panic(fmt.Sprintf("suite: encoding prompt %d: %v", i, err))
		}
		want, err := marshalJSON(p)
		if err != nil {
			panic(fmt.Sprintf("suite: encoding prompt %d: %v", i, err))
		}
		cases = append(cases, Case{
			Name:       fmt.Sprintf("echo-string-%02d", i),
			Input:      string(in),
			WantOutput: string(want),
		})
	}
	return cases
}

// Check evaluates one invocation of c. schemaText is the provider's response schema
// (empty for the default envelope). A nil return means the case passed.
func (c Case) Check(v *provider.SchemaValidator, schemaText string, res provider.Result) error {
	if res.TimedOut {
		return fmt.Errorf("provider timed out after %s", res.Duration)
	}
	if c.WantFailure {
		if res.ExitCode == 0 {
			return fmt.Errorf("expected non-zero exit, got 0 with stdout %q", res.Stdout)
		}
		if v.ValidateResponse(schemaText, res.Stdout, 0) == nil {
			return fmt.Errorf("expected no output envelope on failure, got %q", res.Stdout)
		}
		if res.Stdout != "" && !provider.IsValidJSON(res.Stdout) {
			return fmt.Errorf("failed without a JSON error report, stdout %q", res.Stdout)
		}
		return nil
	}
	if err := v.ValidateResponse(schemaText, res.Stdout, res.ExitCode); err != nil {
		return err
	}
	resp, err := envelope.DecodeResponse([]byte(strings.TrimSuffix(res.Stdout, "\n")))
	if err != nil {
		return err
	}
	equal, err := jsonEqual(resp.Output, []byte(c.WantOutput))
	if err != nil {
		return err
	}
	if !equal {
		return fmt.Errorf("output %s, want %s", resp.Output, c.WantOutput)
	}
	return nil
}

// marshalJSON encodes v without HTML escaping, matching how the prompt travels in the request.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// jsonEqual compares two JSON documents by value. Numbers are compared by their text.
func jsonEqual(a, b []byte) (bool, error) {
	va, err := decodeValue(a)
	if err != nil {
		return false, err
	}
	vb, err := decodeValue(b)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(va, vb), nil
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", data, err)
	}
	return v, nil
}
