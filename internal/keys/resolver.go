// internal/keys/resolver.go

// Package keys turns lock key templates into concrete lock keys.
//
// A template is either static text, returned verbatim, or text with one or
// more expression segments. A segment is written #{expression}; the shorthand
// #name stands for #{name}. A '}' inside a quoted string literal does not end
// a segment. Expressions are evaluated against the bindings of a single
// invocation, usually the arguments of the guarded operation.
package keys

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

var (
	// ErrEmptyKeyTemplate is returned for a template that is empty or blank.
	ErrEmptyKeyTemplate = errors.New("lock key template cannot be empty")
	// ErrInvalidKeyTemplate is returned when a template cannot be parsed,
	// references an unbound variable, or evaluates to a null or empty value.
	ErrInvalidKeyTemplate = errors.New("invalid lock key template")
)

// Marker introduces an expression segment in a key template.
const Marker = '#'

// Bindings maps the names visible to template expressions to their values.
type Bindings map[string]any

type segment struct {
	text string
	expr bool
}

// Resolver resolves key templates. It is safe for concurrent use.
type Resolver struct {
	evaluator Evaluator
	templates sync.Map // template -> []segment
}

// NewResolver returns a resolver using evaluator, or govaluate when nil.
func NewResolver(evaluator Evaluator) *Resolver {
	if evaluator == nil {
		evaluator = NewGovaluateEvaluator()
	}
	return &Resolver{evaluator: evaluator}
}

// IsStatic reports whether template contains no expression segments.
func IsStatic(template string) bool {
	return !strings.ContainsRune(template, Marker)
}

// Validate checks that template is non-blank and that every expression
// segment parses. It does not need bindings.
func (r *Resolver) Validate(template string) error {
	_, err := r.compile(template)
	return err
}

// Resolve evaluates template against bindings and returns the lock key.
// A static template is returned unchanged.
func (r *Resolver) Resolve(template string, bindings Bindings) (string, error) {
	segments, err := r.compile(template)
	if err != nil {
		return "", err
	}
	if len(segments) == 1 && !segments[0].expr {
		return segments[0].text, nil
	}

	var b strings.Builder
	for _, seg := range segments {
		if !seg.expr {
			b.WriteString(seg.text)
			continue
		}
		value, err := r.evaluate(seg.text, bindings)
		if err != nil {
			return "", err
		}
		b.WriteString(value)
	}

	key := b.String()
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: %q resolved to an empty key", ErrInvalidKeyTemplate, template)
	}
	return key, nil
}

func (r *Resolver) evaluate(expression string, bindings Bindings) (string, error) {
	names, err := r.evaluator.Variables(expression)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeyTemplate, err)
	}

	variables := make(map[string]any, len(names))
	for _, name := range names {
		value, ok := bindings[name]
		if !ok {
			return "", fmt.Errorf("%w: %q references unbound variable %q", ErrInvalidKeyTemplate, expression, name)
		}
		variables[name] = value
	}

	value, err := r.evaluator.Evaluate(expression, variables)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeyTemplate, err)
	}
	if value == nil {
		return "", fmt.Errorf("%w: %q evaluated to null", ErrInvalidKeyTemplate, expression)
	}
	return stringify(value), nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (r *Resolver) compile(template string) ([]segment, error) {
	if cached, ok := r.templates.Load(template); ok {
		return cached.([]segment), nil
	}

	segments, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		if !seg.expr {
			continue
		}
		if _, err := r.evaluator.Variables(seg.text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKeyTemplate, err)
		}
	}

	r.templates.Store(template, segments)
	return segments, nil
}

func parseTemplate(template string) ([]segment, error) {
	if strings.TrimSpace(template) == "" {
		return nil, ErrEmptyKeyTemplate
	}
	if IsStatic(template) {
		return []segment{{text: template}}, nil
	}

	var (
		segments []segment
		literal  strings.Builder
	)
	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{text: literal.String()})
			literal.Reset()
		}
	}

	runes := []rune(template)
	for i := 0; i < len(runes); i++ {
		if runes[i] != Marker {
			literal.WriteRune(runes[i])
			continue
		}

		switch {
		case i+1 < len(runes) && runes[i+1] == '{':
			end := closingBrace(runes, i+2)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated expression in %q", ErrInvalidKeyTemplate, template)
			}
			expr := strings.TrimSpace(string(runes[i+2 : end]))
			if expr == "" {
				return nil, fmt.Errorf("%w: empty expression in %q", ErrInvalidKeyTemplate, template)
			}
			flush()
			segments = append(segments, segment{text: expr, expr: true})
			i = end
		case i+1 < len(runes) && isNameStart(runes[i+1]):
			end := i + 1
			for end < len(runes) && isNamePart(runes[end]) {
				end++
			}
			name := strings.TrimRight(string(runes[i+1:end]), ".")
			flush()
			segments = append(segments, segment{text: name, expr: true})
			i += len([]rune(name))
		default:
			return nil, fmt.Errorf("%w: dangling %q in %q", ErrInvalidKeyTemplate, Marker, template)
		}
	}
	flush()
	return segments, nil
}

// closingBrace returns the index of the '}' ending the expression that starts
// at from, skipping braces inside quoted string literals.
func closingBrace(runes []rune, from int) int {
	var quote rune
	for i := from; i < len(runes); i++ {
		switch r := runes[i]; {
		case quote != 0:
			if r == '\\' {
				i++
			} else if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '}':
			return i
		}
	}
	return -1
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNamePart(r rune) bool {
	return isNameStart(r) || unicode.IsDigit(r) || r == '.'
}
