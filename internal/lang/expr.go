package lang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/conneroisu/smol/internal/errors"
)

var (
	varPattern    = regexp.MustCompile(`^\w+$`)
	stringPattern = regexp.MustCompile(`^(?:"([^"]*)"|'([^']*)')$`)
	fieldPattern  = regexp.MustCompile(`^(.+)\.\s*(\w+)$`)
	indexPattern  = regexp.MustCompile(`^(.+)\[\s*(\d+)\s*\]$`)
)

// ParseExpr parses a single expression. The forms are tried in a fixed
// order against the trimmed input: variable, string literal, field access,
// index access, call. The first form that matches wins.
func ParseExpr(code string) (Node, error) {
	code = strings.TrimSpace(code)

	if varPattern.MatchString(code) {
		return &Var{Name: code}, nil
	}

	if m := stringPattern.FindStringSubmatch(code); m != nil {
		if strings.HasPrefix(code, `"`) {
			return Str(m[1]), nil
		}
		return Str(m[2]), nil
	}

	if m := fieldPattern.FindStringSubmatch(code); m != nil {
		target, err := ParseExpr(m[1])
		if err != nil {
			return nil, err
		}
		return &FieldAccess{Target: target, Field: m[2]}, nil
	}

	if m := indexPattern.FindStringSubmatch(code); m != nil {
		index, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, badExpression(code)
		}
		target, err := ParseExpr(m[1])
		if err != nil {
			return nil, err
		}
		return &IndexAccess{Target: target, Index: index}, nil
	}

	if call, ok, err := parseCall(code); ok {
		return call, err
	}

	return nil, badExpression(code)
}

// parseCall recognises callee(args). ok is false when code is not shaped
// like a call at all.
func parseCall(code string) (Node, bool, error) {
	if !strings.HasSuffix(code, ")") {
		return nil, false, nil
	}

	open := matchingOpen(code)
	if open < 0 {
		return nil, false, nil
	}
	calleeText := strings.TrimSpace(code[:open])
	if calleeText == "" {
		return nil, false, nil
	}

	callee, err := ParseExpr(calleeText)
	if err != nil {
		return nil, true, err
	}

	parts, err := splitArgs(code[open+1 : len(code)-1])
	if err != nil {
		return nil, true, err
	}

	args := make([]Node, 0, len(parts))
	for _, part := range parts {
		arg, err := ParseExpr(part)
		if err != nil {
			return nil, true, err
		}
		args = append(args, arg)
	}

	return &Call{Callee: callee, Args: args}, true, nil
}

// matchingOpen returns the index of the parenthesis that opens the final
// ")" of code, skipping quoted text, or -1 when the parentheses do not
// balance.
func matchingOpen(code string) int {
	depth := 0
	var quote byte
	for i := len(code) - 1; i >= 0; i-- {
		c := code[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ')':
			depth++
		case c == '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitArgs splits an argument list on commas that are not nested inside
// quotes, parentheses or brackets. A blank list yields no arguments.
func splitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])

	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
		if parts[i] == "" {
			return nil, badExpression("(" + s + ")")
		}
	}
	return parts, nil
}

func badExpression(code string) error {
	return errors.NewParseError(errors.ErrCodeBadExpression, fmt.Sprintf("unrecognized expression %q", code))
}
