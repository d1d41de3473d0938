package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteErrorMessage(t *testing.T) {
	testCases := []struct {
		name     string
		err      *SiteError
		expected string
	}{
		{
			name:     "bare",
			err:      NewTypeError(ErrCodeConcat, "cannot concatenate"),
			expected: "type error: cannot concatenate",
		},
		{
			name:     "file only",
			err:      NewLookupError(ErrCodeUndefinedVar, "undefined variable \"x\"").WithLocation("index.html", 0, 0),
			expected: "index.html: lookup error: undefined variable \"x\"",
		},
		{
			name:     "line and column",
			err:      NewParseError(ErrCodeMalformedLoop, "malformed loop").WithLocation("a.html", 3, 5),
			expected: "a.html:3:5: parse error: malformed loop",
		},
		{
			name:     "cause",
			err:      NewIOError(ErrCodeReadFailed, "posts", fmt.Errorf("permission denied")),
			expected: "posts: io error: cannot access posts: permission denied",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestSiteErrorIsAndUnwrap(t *testing.T) {
	cause := errors.New("disk")
	err := NewIOError(ErrCodeWriteFailed, "out/index.html", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &SiteError{Kind: KindIO, Code: ErrCodeWriteFailed})
	assert.NotErrorIs(t, err, &SiteError{Kind: KindIO, Code: ErrCodeReadFailed})

	wrapped := fmt.Errorf("building: %w", err)
	assert.True(t, IsKind(wrapped, KindIO))
	assert.False(t, IsKind(wrapped, KindParse))
	assert.False(t, IsKind(cause, KindIO))
}

func TestWithLocationKeepsLine(t *testing.T) {
	err := NewParseError(ErrCodeUnclosedLoop, "unclosed").WithLocation("", 4, 2)
	err.WithLocation("page.html", 0, 0)

	assert.Equal(t, "page.html", err.FilePath)
	assert.Equal(t, 4, err.Line)
	assert.Equal(t, 2, err.Column)
}

func TestWithContext(t *testing.T) {
	err := NewConfigError(ErrCodeConfigInvalid, "bad port").
		WithContext("field", "server.port").
		WithContext("value", 0)

	assert.Equal(t, "server.port", err.Context["field"])
	assert.Equal(t, 0, err.Context["value"])
}

func TestLocate(t *testing.T) {
	assert.NoError(t, Locate(nil, "a.html"))

	located := Locate(NewLookupError(ErrCodeMissingField, "no field"), "a.html")
	var se *SiteError
	require.ErrorAs(t, located, &se)
	assert.Equal(t, "a.html", se.FilePath)

	// An existing location is kept.
	kept := Locate(NewParseError(ErrCodeBadExpression, "bad").WithLocation("b.html", 1, 1), "a.html")
	require.ErrorAs(t, kept, &se)
	assert.Equal(t, "b.html", se.FilePath)

	plain := errors.New("boom")
	wrapped := Locate(plain, "c.html")
	require.ErrorAs(t, wrapped, &se)
	assert.Equal(t, KindInternal, se.Kind)
	assert.Equal(t, "c.html", se.FilePath)
	assert.ErrorIs(t, wrapped, plain)
}

func TestFromError(t *testing.T) {
	be := FromError("a.html", NewParseError(ErrCodeUnknownStatement, "unknown statement \"if\"").WithLocation("a.html", 2, 1))
	assert.Equal(t, KindParse, be.Kind)
	assert.Equal(t, 2, be.Line)
	assert.Equal(t, 1, be.Column)
	assert.Equal(t, "a.html:2:1: unknown statement \"if\"", be.Error())

	io := FromError("b.html", NewIOError(ErrCodeFileNotFound, "posts", errors.New("missing")))
	assert.Equal(t, KindIO, io.Kind)
	assert.Equal(t, "cannot access posts: missing", io.Message)

	plain := FromError("c.html", errors.New("boom"))
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Equal(t, "c.html: boom", plain.Error())
	assert.Equal(t, "boom", errors.Unwrap(&plain).Error())
}

func TestErrorCollector(t *testing.T) {
	ec := NewErrorCollector()
	assert.False(t, ec.HasErrors())
	assert.NoError(t, ec.Err())

	ec.AddError("b.html", NewLookupError(ErrCodeUndefinedVar, "undefined"))
	ec.AddError("a.html", NewParseError(ErrCodeMalformedLoop, "malformed"))
	ec.AddError("a.html", NewTypeError(ErrCodeConcat, "concat"))
	ec.AddError("c.html", nil)

	assert.True(t, ec.HasErrors())
	assert.Len(t, ec.GetErrors(), 3)
	assert.Len(t, ec.GetErrorsByFile("a.html"), 2)
	assert.Equal(t, map[ErrorKind]int{KindLookup: 1, KindParse: 1, KindType: 1}, ec.CountByKind())
	assert.EqualError(t, ec.Err(), "2 files failed to build: [a.html b.html]")

	for _, be := range ec.GetErrors() {
		assert.False(t, be.Timestamp.IsZero())
	}

	ec.ClearFile("a.html")
	assert.Len(t, ec.GetErrors(), 1)
	assert.EqualError(t, ec.Err(), "1 file failed to build: b.html")

	ec.Clear()
	assert.False(t, ec.HasErrors())
}

func TestErrorCollectorReturnsCopies(t *testing.T) {
	ec := NewErrorCollector()
	ec.AddError("a.html", errors.New("boom"))

	errs := ec.GetErrors()
	errs[0].File = "changed"

	assert.Equal(t, "a.html", ec.GetErrors()[0].File)
}
