package executor

import (
	"errors"
	"fmt"
	"strings"
)

// Request is a parsed command request extracted from one chat message.
// Name selects the executor template; Payload is substituted into it.
type Request struct {
	Name    string
	Payload string
}

// ErrNoCodeBlock means the message carried no complete fenced block.
var ErrNoCodeBlock = errors.New("no fenced code block in message")

// DirectiveSyntaxError is a directive line with no key/value separator.
type DirectiveSyntaxError struct {
	Line string
}

func (e *DirectiveSyntaxError) Error() string {
	return fmt.Sprintf("directive line %q is missing a ':' separator", e.Line)
}

// UnrecognizedDirectiveError is a directive with a key this version
// does not understand.
type UnrecognizedDirectiveError struct {
	Key string
}

func (e *UnrecognizedDirectiveError) Error() string {
	return fmt.Sprintf("unrecognized directive key %q", e.Key)
}

const fence = "```"

// ExtractRequest locates the first fenced block in raw chat text and
// parses it into a Request. Lines starting with '#' are directives of
// the form "# key: value": the first colon-separated element is the
// key and the trailing element is the value, so a colon-bearing value
// keeps only its last element. Every other line is concatenated into
// the payload with no separator. A block without an "# executor:"
// directive yields an empty Name, which fails later at registry lookup
// rather than here.
func ExtractRequest(raw string) (Request, error) {
	start := strings.Index(raw, fence)
	if start < 0 {
		return Request{}, ErrNoCodeBlock
	}
	rest := raw[start+len(fence):]
	end := strings.Index(rest, fence)
	if end < 0 {
		return Request{}, ErrNoCodeBlock
	}
	block := rest[:end]

	var req Request
	var payload strings.Builder

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			payload.WriteString(line)
			continue
		}

		directive := strings.TrimSpace(strings.TrimPrefix(line, "#"))
		parts := strings.Split(directive, ":")
		if len(parts) < 2 {
			return Request{}, &DirectiveSyntaxError{Line: directive}
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[len(parts)-1])

		switch key {
		case "executor":
			req.Name = value
		default:
			return Request{}, &UnrecognizedDirectiveError{Key: key}
		}
	}

	req.Payload = payload.String()
	return req, nil
}
