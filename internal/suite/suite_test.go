package suite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hattiebot/echoprovider/internal/provider"
)

func TestDefault(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, "echo-contract", s.Name)

	names := map[string]Case{}
	for _, c := range s.Cases {
		names[c.Name] = c
	}
	for _, want := range []string{"hello-world", "missing-prompt", "escaped-quote", "not-json", "array-input", "echo-string-00"} {
		assert.Contains(t, names, want)
	}
	assert.Equal(t, `{"prompt": "a\"b"}`, names["escaped-quote"].Input)
	assert.Equal(t, `""`, names["missing-prompt"].WantOutput)
	assert.True(t, names["not-json"].WantFailure)
	assert.Len(t, s.Cases, 14+len(SamplePrompts))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no name", "cases: [{name: a, input: '{}', want_output: '\"\"'}]"},
		{"no cases", "name: s"},
		{"unnamed case", "name: s\ncases: [{input: '{}', want_failure: true}]"},
		{"duplicate", "name: s\ncases: [{name: a, want_failure: true}, {name: a, want_failure: true}]"},
		{"no expectation", "name: s\ncases: [{name: a, input: '{}'}]"},
		{"both expectations", "name: s\ncases: [{name: a, want_output: '1', want_failure: true}]"},
		{"bad want_output", "name: s\ncases: [{name: a, want_output: '{nope'}]"},
		{"unknown field", "name: s\ncases: [{name: a, want_failure: true, expect: 1}]"},
		{"not yaml", "name: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	data := "name: custom\ncases:\n  - name: hi\n    input: '{\"prompt\": \"hi\"}'\n    want_output: '\"hi\"'\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	want := &Suite{Name: "custom", Cases: []Case{{Name: "hi", Input: `{"prompt": "hi"}`, WantOutput: `"hi"`}}}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPromptCases(t *testing.T) {
	cases := PromptCases([]string{"a\"b", "<&>"})
	want := []Case{
		{Name: "echo-string-00", Input: `{"prompt":"a\"b"}`, WantOutput: `"a\"b"`},
		{Name: "echo-string-01", Input: `{"prompt":"<&>"}`, WantOutput: `"<&>"`},
	}
	if diff := cmp.Diff(want, cases); diff != "" {
		t.Errorf("PromptCases mismatch (-want +got):\n%s", diff)
	}
}

func TestPromptCases_KeepsEveryPrompt(t *testing.T) {
	prompts := append([]string{"\xff\xfe", ""}, SamplePrompts...)
	assert.Len(t, PromptCases(prompts), len(prompts))
}

func TestCaseCheck_FailureDetail(t *testing.T) {
	v, err := provider.NewSchemaValidator(1)
	require.NoError(t, err)
	failure := Case{Name: "fail", Input: "not json", WantFailure: true}
	err = failure.Check(v, "", provider.Result{ExitCode: 1, Stdout: "Traceback (most recent call last):\n"})
	assert.ErrorContains(t, err, "without a JSON error report")
}

func TestCaseCheck(t *testing.T) {
	v, err := provider.NewSchemaValidator(4)
	require.NoError(t, err)

	echo := Case{Name: "echo", Input: `{"prompt":"<&>"}`, WantOutput: `"<&>"`}
	structured := Case{Name: "structured", WantOutput: `{"a": [1, 2.50]}`}
	failure := Case{Name: "fail", Input: "not json", WantFailure: true}

	tests := []struct {
		name    string
		c       Case
		res     provider.Result
		wantErr bool
	}{
		{"echo exact", echo, provider.Result{Stdout: "{\"output\":\"<&>\"}\n"}, false},
		{"echo spaced", echo, provider.Result{Stdout: "{\"output\": \"<&>\"}\n"}, false},
		{"echo wrong value", echo, provider.Result{Stdout: "{\"output\":\"<>\"}\n"}, true},
		{"echo non-zero exit", echo, provider.Result{Stdout: "{\"output\":\"<&>\"}\n", ExitCode: 1}, true},
		{"echo timed out", echo, provider.Result{TimedOut: true, ExitCode: -1}, true},
		{"structured by value", structured, provider.Result{Stdout: "{\"output\":{\"a\":[1,2.50]}}\n"}, false},
		{"structured number text differs", structured, provider.Result{Stdout: "{\"output\":{\"a\":[1,2.5]}}\n"}, true},
		{"failure observed", failure, provider.Result{ExitCode: 1, Stderr: "boom"}, false},
		{"failure with json error body", failure, provider.Result{ExitCode: 1, Stdout: "{\"error\":\"bad\"}\n"}, false},
		{"failure exit zero", failure, provider.Result{Stdout: ""}, true},
		{"failure but envelope written", failure, provider.Result{ExitCode: 1, Stdout: "{\"output\":\"\"}\n"}, true},
		{"failure with crash text on stdout", failure, provider.Result{ExitCode: 2, Stdout: "panic: boom\n"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Check(v, "", tt.res)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
