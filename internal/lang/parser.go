package lang

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conneroisu/smol/internal/errors"
)

var (
	statementPattern = regexp.MustCompile(`\{%(.*?)%\}`)
	forPattern       = regexp.MustCompile(`^for\s+(\w+)\s+in\s+(.+)$`)
)

// Parse turns document content into a single root node.
//
// The content is split on {% %} markers into alternating text and statement
// regions. A working stack starts with the leading text. Each for statement
// pushes a body-less For node followed by the text after it; each endfor
// pops the body and its For, attaches the body, and folds the loop into the
// node that preceded it together with the text that follows. endfor always
// closes the innermost open loop, which is what makes nesting work.
func Parse(content string) (Node, error) {
	matches := statementPattern.FindAllStringSubmatchIndex(content, -1)

	head := len(content)
	if len(matches) > 0 {
		head = matches[0][0]
	}
	stack := []Node{&Literal{Text: content[:head]}}

	// offsets of the for statements still waiting for their endfor
	var open []int

	for i, m := range matches {
		stmt := strings.TrimSpace(content[m[2]:m[3]])

		textEnd := len(content)
		if i+1 < len(matches) {
			textEnd = matches[i+1][0]
		}
		text := &Literal{Text: content[m[1]:textEnd]}

		switch {
		case isForStatement(stmt):
			sub := forPattern.FindStringSubmatch(stmt)
			if sub == nil {
				return nil, located(errors.NewParseError(errors.ErrCodeMalformedLoop,
					fmt.Sprintf("malformed for loop {%% %s %%}", stmt)), content, m[0])
			}
			iterable, err := ParseExpr(sub[2])
			if err != nil {
				return nil, located(err, content, m[0])
			}
			stack = append(stack, &For{Binding: sub[1], Iterable: iterable}, text)
			open = append(open, m[0])

		case stmt == "endfor":
			if len(stack) < 3 {
				return nil, unopened(content, m[0])
			}
			body := stack[len(stack)-1]
			loop, ok := stack[len(stack)-2].(*For)
			if !ok || loop.Body != nil {
				return nil, unopened(content, m[0])
			}
			loop.Body = body
			before := stack[len(stack)-3]
			stack = stack[:len(stack)-3]
			stack = append(stack, &Sequence{
				First: before,
				Rest:  &Sequence{First: loop, Rest: text},
			})
			open = open[:len(open)-1]

		default:
			return nil, located(errors.NewParseError(errors.ErrCodeUnknownStatement,
				fmt.Sprintf("unknown statement {%% %s %%}", stmt)), content, m[0])
		}
	}

	if len(stack) != 1 {
		return nil, located(errors.NewParseError(errors.ErrCodeUnclosedLoop,
			"for loop is never closed with {% endfor %}"), content, open[len(open)-1])
	}

	return stack[0], nil
}

// isForStatement reports whether the first word of stmt is "for".
func isForStatement(stmt string) bool {
	fields := strings.Fields(stmt)
	return len(fields) > 0 && fields[0] == "for"
}

func unopened(content string, offset int) error {
	return located(errors.NewParseError(errors.ErrCodeUnopenedLoop,
		"{% endfor %} without an open for loop"), content, offset)
}

// located records the line and column of offset on a SiteError.
func located(err error, content string, offset int) error {
	se, ok := err.(*errors.SiteError)
	if !ok {
		return err
	}
	se.Line, se.Column = Position(content, offset)
	return se
}

// Position converts a byte offset into a 1-based line and column.
func Position(content string, offset int) (line, column int) {
	if offset > len(content) {
		offset = len(content)
	}
	before := content[:offset]
	line = strings.Count(before, "\n") + 1
	column = offset - strings.LastIndex(before, "\n")
	return line, column
}
