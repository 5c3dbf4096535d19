package executor

import (
	"fmt"
	"strings"
)

const (
	placeholderOpen  = "{{"
	placeholderClose = "}}"
	placeholderName  = "payload"
)

// TemplateError is an unparseable or unknown placeholder in a command
// template.
type TemplateError struct {
	Template string
	Reason   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("bad command template %q: %s", e.Template, e.Reason)
}

// RenderTemplate substitutes the payload into every {{payload}}
// placeholder of the template. Substitution is literal: the payload is
// inserted verbatim with no shell escaping, so quoting is the template
// author's concern.
func RenderTemplate(tmpl, payload string) (string, error) {
	var out strings.Builder
	rest := tmpl

	for {
		open := strings.Index(rest, placeholderOpen)
		if open < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:open])
		rest = rest[open+len(placeholderOpen):]

		end := strings.Index(rest, placeholderClose)
		if end < 0 {
			return "", &TemplateError{Template: tmpl, Reason: "unclosed placeholder"}
		}

		name := strings.TrimSpace(rest[:end])
		if name != placeholderName {
			return "", &TemplateError{Template: tmpl, Reason: fmt.Sprintf("unknown placeholder %q", name)}
		}

		out.WriteString(payload)
		rest = rest[end+len(placeholderClose):]
	}

	return out.String(), nil
}
