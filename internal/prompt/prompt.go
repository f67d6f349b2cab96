// Package prompt renders prompt templates with {NAME} placeholders.
//
// Every render produces two strings: the literal prompt that is sent to the
// model, and a shape in which each value is replaced by its type name. The
// shape is stable across paragraphs and identifies the prompt template an
// author used.
package prompt

import (
	"fmt"
	"strings"
)

// Reserved placeholder names. They are substituted in the literal prompt
// and removed from the shape.
const (
	PrefixVar = "PROMPT_PREFIX"
	SuffixVar = "PROMPT_SUFFIX"
)

// TemplateError reports a template that cannot be rendered with the
// supplied variables.
type TemplateError struct {
	Name    string // placeholder name, empty for syntax errors
	Message string
}

func (e *TemplateError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("template: %s: %q", e.Message, e.Name)
	}
	return "template: " + e.Message
}

// Render substitutes vars into template. It returns the literal prompt and
// the redacted shape, both trimmed of surrounding whitespace.
func Render(template string, vars map[string]any) (literal, shape string, err error) {
	literal, err = substitute(template, func(name string) (string, error) {
		v, ok := vars[name]
		if !ok {
			return "", &TemplateError{Name: name, Message: "missing variable"}
		}
		return fmt.Sprint(v), nil
	})
	if err != nil {
		return "", "", err
	}

	shape, err = Shape(template, vars)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(literal), shape, nil
}

// Shape renders only the redacted form of template.
func Shape(template string, vars map[string]any) (string, error) {
	stripped := strings.NewReplacer("{"+PrefixVar+"}", "", "{"+SuffixVar+"}", "").Replace(template)
	out, err := substitute(stripped, func(name string) (string, error) {
		v, ok := vars[name]
		if !ok {
			return "", &TemplateError{Name: name, Message: "missing variable"}
		}
		return "<" + TypeName(v) + ">", nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// TypeName returns the short type label used in prompt shapes.
func TypeName(v any) string {
	switch v.(type) {
	case string:
		return "str"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case bool:
		return "bool"
	case []string, []any, []int:
		return "list"
	case nil:
		return "none"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Wrap joins the non-empty parts with single spaces.
func Wrap(prefix, body, suffix string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, body, suffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// substitute walks template once, resolving each {NAME} through lookup.
// "{{" and "}}" produce literal braces.
func substitute(template string, lookup func(name string) (string, error)) (string, error) {
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", &TemplateError{Message: fmt.Sprintf("unclosed placeholder at offset %d", i)}
			}
			name := template[i+1 : i+1+end]
			if !validName(name) {
				return "", &TemplateError{Name: name, Message: "invalid placeholder name"}
			}
			val, err := lookup(name)
			if err != nil {
				return "", err
			}
			b.WriteString(val)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", &TemplateError{Message: fmt.Sprintf("single '}' at offset %d", i)}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
