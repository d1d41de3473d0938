package lang

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/conneroisu/smol/internal/errors"
)

// Stringify renders an evaluated value as text for substitution. Strings
// render as themselves; lists render as ["a", "b"] and objects as
// {"k": "v"} with keys sorted. Functions and unevaluated syntax cannot be
// stringified.
func Stringify(n Node) (string, error) {
	if s, ok := n.(*String); ok {
		return s.Value, nil
	}
	var b strings.Builder
	if err := writeValue(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeValue(b *strings.Builder, n Node) error {
	switch v := n.(type) {
	case *String:
		b.WriteString(strconv.Quote(v.Value))
	case *List:
		b.WriteByte('[')
		for i, elem := range v.Elements {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writeValue(b, elem); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *Object:
		b.WriteByte('{')
		for i, key := range SortedKeys(v) {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(key))
			b.WriteString(": ")
			if err := writeValue(b, v.Fields[key]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return errors.NewTypeError(errors.ErrCodeStringify,
			fmt.Sprintf("cannot render %s as text", Describe(n)))
	}
	return nil
}

// SortedKeys returns the field names of an object in lexical order.
func SortedKeys(o *Object) []string {
	keys := make([]string, 0, len(o.Fields))
	for k := range o.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Describe names a node and, for values, shows a short rendering of it. It
// is meant for error messages.
func Describe(n Node) string {
	switch v := n.(type) {
	case nil:
		return "nothing"
	case *String:
		return "string " + truncate(strconv.Quote(v.Value))
	case *List, *Object:
		var b strings.Builder
		if err := writeValue(&b, v); err != nil {
			return v.Kind()
		}
		return v.Kind() + " " + truncate(b.String())
	case *Function:
		return "function " + v.Name
	case *Var:
		return "variable " + v.Name
	default:
		return n.Kind()
	}
}

func truncate(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
