package executor

import (
	"errors"
	"testing"
)

// TestExtractRequest_DirectiveAndPayload verifies the common case of an
// executor directive followed by payload lines
func TestExtractRequest_DirectiveAndPayload(t *testing.T) {
	raw := "run this:\n```\n# executor: psql\nselect 1;\n```"

	req, err := ExtractRequest(raw)
	if err != nil {
		t.Fatalf("ExtractRequest failed: %v", err)
	}
	if req.Name != "psql" {
		t.Errorf("Expected executor psql, got %q", req.Name)
	}
	if req.Payload != "select 1;" {
		t.Errorf("Expected payload %q, got %q", "select 1;", req.Payload)
	}
}

// TestExtractRequest_MultilinePayload verifies payload lines concatenate
// with no inserted separator
func TestExtractRequest_MultilinePayload(t *testing.T) {
	raw := "```\n# executor: echo\nselect 1\nfrom t;\n```"

	req, err := ExtractRequest(raw)
	if err != nil {
		t.Fatalf("ExtractRequest failed: %v", err)
	}
	if req.Payload != "select 1from t;" {
		t.Errorf("Payload lines should concatenate without separator, got %q", req.Payload)
	}
}

// TestExtractRequest_NoCodeBlock verifies text without a fenced block fails
func TestExtractRequest_NoCodeBlock(t *testing.T) {
	if _, err := ExtractRequest("just some chat text"); !errors.Is(err, ErrNoCodeBlock) {
		t.Errorf("Expected ErrNoCodeBlock, got %v", err)
	}
}

// TestExtractRequest_UnclosedBlock verifies a single fence marker fails
func TestExtractRequest_UnclosedBlock(t *testing.T) {
	if _, err := ExtractRequest("```\n# executor: echo\nhi"); !errors.Is(err, ErrNoCodeBlock) {
		t.Errorf("Expected ErrNoCodeBlock for unclosed fence, got %v", err)
	}
}

// TestExtractRequest_MissingColon verifies a directive without a colon
// fails and names the offending line
func TestExtractRequest_MissingColon(t *testing.T) {
	_, err := ExtractRequest("```\n# executor psql\nselect 1;\n```")

	var dirErr *DirectiveSyntaxError
	if !errors.As(err, &dirErr) {
		t.Fatalf("Expected DirectiveSyntaxError, got %v", err)
	}
	if dirErr.Line != "executor psql" {
		t.Errorf("Error should name the offending line, got %q", dirErr.Line)
	}
}

// TestExtractRequest_LastColonWins verifies a colon-bearing value keeps
// only the element after the last colon, while the key stays the first
// element so the directive is still recognized
func TestExtractRequest_LastColonWins(t *testing.T) {
	req, err := ExtractRequest("```\n# executor: sub: name\nhi\n```")
	if err != nil {
		t.Fatalf("ExtractRequest failed: %v", err)
	}
	if req.Name != "name" {
		t.Errorf("Value should be the trailing element, got name %q", req.Name)
	}
}

// TestExtractRequest_UnknownKeyWithColonValue verifies the key is the
// first element even when the value contains colons
func TestExtractRequest_UnknownKeyWithColonValue(t *testing.T) {
	_, err := ExtractRequest("```\n# retry: count: 3\nhi\n```")

	var unrecognized *UnrecognizedDirectiveError
	if !errors.As(err, &unrecognized) {
		t.Fatalf("Expected UnrecognizedDirectiveError, got %v", err)
	}
	if unrecognized.Key != "retry" {
		t.Errorf("Key should be the first element, got %q", unrecognized.Key)
	}
}

// TestExtractRequest_UnknownDirective verifies an unrecognized directive
// key is rejected with a named error rather than folded into the payload
func TestExtractRequest_UnknownDirective(t *testing.T) {
	_, err := ExtractRequest("```\n# timeout: 30\nhi\n```")

	var unrecognized *UnrecognizedDirectiveError
	if !errors.As(err, &unrecognized) {
		t.Fatalf("Expected UnrecognizedDirectiveError, got %v", err)
	}
	if unrecognized.Key != "timeout" {
		t.Errorf("Error should name the key, got %q", unrecognized.Key)
	}
}

// TestExtractRequest_NoDirective verifies a block without an executor
// directive yields an empty name instead of an error
func TestExtractRequest_NoDirective(t *testing.T) {
	req, err := ExtractRequest("```\nuptime\n```")
	if err != nil {
		t.Fatalf("ExtractRequest failed: %v", err)
	}
	if req.Name != "" {
		t.Errorf("Name should be empty without a directive, got %q", req.Name)
	}
	if req.Payload != "uptime" {
		t.Errorf("Expected payload uptime, got %q", req.Payload)
	}
}

// TestExtractRequest_SurroundingText verifies text outside the fences is
// ignored
func TestExtractRequest_SurroundingText(t *testing.T) {
	raw := "<@U123> please\n```\n# executor: echo\nhello\n```\nthanks!"

	req, err := ExtractRequest(raw)
	if err != nil {
		t.Fatalf("ExtractRequest failed: %v", err)
	}
	if req.Name != "echo" || req.Payload != "hello" {
		t.Errorf("Unexpected request: %+v", req)
	}
}
