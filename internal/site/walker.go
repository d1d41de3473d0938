package site

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/smol/internal/errors"
)

// Page pairs a source file with the output path it builds to.
type Page struct {
	Source string
	Dest   string
}

// Pages returns every regular file under the source tree in lexical order,
// leaving out the output tree, the static tree and dot-directories.
func (b *Builder) Pages() ([]Page, error) {
	var pages []Page

	err := afero.Walk(b.fs, b.opts.Source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.NewIOError(errors.ErrCodeReadFailed, path, err)
		}
		if info.IsDir() {
			if path != b.opts.Source && b.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		pages = append(pages, Page{Source: path, Dest: b.destFor(path)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return pages, nil
}

// SkipDir reports whether the walker and the watcher leave out a directory.
func (b *Builder) SkipDir(path string) bool {
	return b.skipDir(filepath.Clean(path))
}

func (b *Builder) skipDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") && path != "." {
		return true
	}
	return within(path, b.opts.Out) || within(path, b.opts.StaticDir)
}

// destFor maps a source path to its output path. Files from the static tree
// land at the output root.
func (b *Builder) destFor(path string) string {
	if b.opts.StaticDir != "" && within(path, b.opts.StaticDir) {
		if rel, err := filepath.Rel(b.opts.StaticDir, path); err == nil {
			return filepath.Join(b.opts.Out, rel)
		}
	}
	rel, err := filepath.Rel(b.opts.Source, path)
	if err != nil {
		return filepath.Join(b.opts.Out, filepath.Base(path))
	}
	return filepath.Join(b.opts.Out, rel)
}

// within reports whether path is dir or inside it. Both are cleaned.
func within(path, dir string) bool {
	if dir == "" {
		return false
	}
	path, dir = filepath.Clean(path), filepath.Clean(dir)
	if dir == "." {
		return true
	}
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
