package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/smol/internal/errors"
)

func TestParseLiteralOnly(t *testing.T) {
	node, err := Parse("<h1>{{ title }}</h1>")
	require.NoError(t, err)
	assert.Equal(t, &Literal{Text: "<h1>{{ title }}</h1>"}, node)
}

func TestParseEmpty(t *testing.T) {
	node, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, &Literal{Text: ""}, node)
}

func TestParseForLoop(t *testing.T) {
	node, err := Parse("<ul>{% for post in posts %}<li>{{ post }}</li>{% endfor %}</ul>")
	require.NoError(t, err)

	expected := &Sequence{
		First: &Literal{Text: "<ul>"},
		Rest: &Sequence{
			First: &For{
				Binding:  "post",
				Iterable: &Var{Name: "posts"},
				Body:     &Literal{Text: "<li>{{ post }}</li>"},
			},
			Rest: &Literal{Text: "</ul>"},
		},
	}
	assert.Equal(t, expected, node)
}

func TestParseNestedLoops(t *testing.T) {
	src := "a{% for x in xs %}b{% for y in x %}c{% endfor %}d{% endfor %}e"
	node, err := Parse(src)
	require.NoError(t, err)

	inner := &For{Binding: "y", Iterable: &Var{Name: "x"}, Body: &Literal{Text: "c"}}
	outer := &For{
		Binding:  "x",
		Iterable: &Var{Name: "xs"},
		Body: &Sequence{
			First: &Literal{Text: "b"},
			Rest:  &Sequence{First: inner, Rest: &Literal{Text: "d"}},
		},
	}
	expected := &Sequence{
		First: &Literal{Text: "a"},
		Rest:  &Sequence{First: outer, Rest: &Literal{Text: "e"}},
	}
	assert.Equal(t, expected, node)
}

func TestParseSequentialLoops(t *testing.T) {
	node, err := Parse("{% for a in as %}1{% endfor %}-{% for b in bs %}2{% endfor %}")
	require.NoError(t, err)

	seq, ok := node.(*Sequence)
	require.True(t, ok)
	rest := seq.Rest.(*Sequence)
	second, ok := rest.First.(*For)
	require.True(t, ok)
	assert.Equal(t, "b", second.Binding)

	first := seq.First.(*Sequence).Rest.(*Sequence).First.(*For)
	assert.Equal(t, "a", first.Binding)
}

func TestParseLoopHeaderExpression(t *testing.T) {
	node, err := Parse(`{% for tag in split(post.tags, ",") %}{{ tag }}{% endfor %}`)
	require.NoError(t, err)

	loop := node.(*Sequence).Rest.(*Sequence).First.(*For)
	assert.Equal(t, &Call{
		Callee: &Var{Name: "split"},
		Args:   []Node{&FieldAccess{Target: &Var{Name: "post"}, Field: "tags"}, Str(",")},
	}, loop.Iterable)
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		code   string
		line   int
		column int
	}{
		{"unclosed loop", "a\n{% for x in xs %}b", errors.ErrCodeUnclosedLoop, 2, 1},
		{"unclosed inner loop", "{% for x in xs %}{% for y in x %}{% endfor %}", errors.ErrCodeUnclosedLoop, 1, 1},
		{"stray endfor", "a{% endfor %}", errors.ErrCodeUnopenedLoop, 1, 2},
		{"extra endfor", "{% for x in xs %}{% endfor %}\n  {% endfor %}", errors.ErrCodeUnopenedLoop, 2, 3},
		{"malformed header", "{% for x xs %}{% endfor %}", errors.ErrCodeMalformedLoop, 1, 1},
		{"missing binding", "{% for in xs %}{% endfor %}", errors.ErrCodeMalformedLoop, 1, 1},
		{"unknown statement", "{% if x %}", errors.ErrCodeUnknownStatement, 1, 1},
		{"bad iterable", "{% for x in a + b %}{% endfor %}", errors.ErrCodeBadExpression, 1, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			require.Error(t, err)

			se, ok := err.(*errors.SiteError)
			require.True(t, ok, "expected *SiteError, got %T", err)
			assert.Equal(t, errors.KindParse, se.Kind)
			assert.Equal(t, tc.code, se.Code)
			assert.Equal(t, tc.line, se.Line)
			assert.Equal(t, tc.column, se.Column)
		})
	}
}

func TestParseUnknownStatementNamesText(t *testing.T) {
	_, err := Parse("{% include header.html %}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include header.html")
}

func TestPosition(t *testing.T) {
	content := "ab\ncd\n\nef"
	testCases := []struct {
		offset, line, column int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{3, 2, 1},
		{4, 2, 2},
		{7, 4, 1},
		{100, 4, 3},
	}
	for _, tc := range testCases {
		line, column := Position(content, tc.offset)
		assert.Equal(t, tc.line, line, "offset %d", tc.offset)
		assert.Equal(t, tc.column, column, "offset %d", tc.offset)
	}
}
