package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/smol/internal/errors"
	"github.com/conneroisu/smol/internal/lang"
)

func (e *Evaluator) newBuiltins() map[string]*lang.Function {
	builtins := []*lang.Function{
		{Name: "split", Fn: split},
		{Name: "list_files", Fn: e.listFiles},
	}

	table := make(map[string]*lang.Function, len(builtins))
	for _, fn := range builtins {
		table[fn.Name] = fn
	}
	return table
}

// split(text, delimiter) returns the pieces of text between occurrences of
// delimiter.
func split(_ string, _ lang.Env, args []lang.Node) (lang.Node, error) {
	if err := expectArgs("split", args, 2); err != nil {
		return nil, err
	}
	text, err := stringArg("split", args, 0)
	if err != nil {
		return nil, err
	}
	sep, err := stringArg("split", args, 1)
	if err != nil {
		return nil, err
	}
	if sep == "" {
		return nil, errors.NewTypeError(errors.ErrCodeArgument, "split: delimiter must not be empty")
	}

	return lang.Strings(strings.Split(text, sep)...), nil
}

// listFiles lists the regular files directly inside a directory relative to
// the rendering document. Each listed file is read through the cache and
// records the rendering document as a dependent.
func (e *Evaluator) listFiles(source string, _ lang.Env, args []lang.Node) (lang.Node, error) {
	if err := expectArgs("list_files", args, 1); err != nil {
		return nil, err
	}
	rel, err := stringArg("list_files", args, 0)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(filepath.Dir(source), rel)
	if err := e.checkInsideRoot(dir); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(e.cache.Fs(), dir)
	if err != nil {
		code := errors.ErrCodeReadFailed
		if os.IsNotExist(err) {
			code = errors.ErrCodeFileNotFound
		}
		return nil, errors.NewIOError(code, dir, err)
	}

	entries := make([]lang.Node, 0, len(infos))
	for _, info := range infos {
		if !info.Mode().IsRegular() {
			continue
		}

		path := filepath.Join(dir, info.Name())
		if err := e.cache.RecordDependency(path, source); err != nil {
			return nil, err
		}
		f, err := e.cache.Get(path)
		if err != nil {
			return nil, err
		}

		fields := map[string]lang.Node{
			"url": lang.Str(filepath.ToSlash(filepath.Join(rel, info.Name()))),
		}
		for k, v := range f.Headers {
			fields[k] = lang.Str(v)
		}
		entries = append(entries, &lang.Object{Fields: fields})
	}

	return &lang.List{Elements: entries}, nil
}

func (e *Evaluator) checkInsideRoot(dir string) error {
	if e.root == "" {
		return nil
	}
	rel, err := filepath.Rel(filepath.Clean(e.root), filepath.Clean(dir))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.NewLookupError(errors.ErrCodeOutsideRoot,
			fmt.Sprintf("list_files: %s is outside the site root", dir))
	}
	return nil
}

func expectArgs(name string, args []lang.Node, n int) error {
	if len(args) != n {
		return errors.NewTypeError(errors.ErrCodeArgument,
			fmt.Sprintf("%s expects %d arguments, got %d", name, n, len(args)))
	}
	return nil
}

func stringArg(name string, args []lang.Node, i int) (string, error) {
	s, ok := args[i].(*lang.String)
	if !ok {
		return "", errors.NewTypeError(errors.ErrCodeArgument,
			fmt.Sprintf("%s: argument %d must be a string, got %s", name, i+1, lang.Describe(args[i])))
	}
	return s.Value, nil
}
