// Package source turns a directory tree into a set of byte streams.
package source

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// sniffSize is how much of a file is inspected for NUL bytes.
const sniffSize = 8192

// ErrBinary marks a file skipped because it is not text.
var ErrBinary = errors.New("binary file")

// Config controls which files of a tree become streams.
type Config struct {
	// Root is the directory to walk.
	Root string

	// IncludeHidden includes hidden files and directories (starting with .).
	IncludeHidden bool

	// MaxFileSize skips larger files (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks includes symbolic links to regular files.
	FollowSymlinks bool

	// Workers bounds concurrent streams (0 = NumCPU).
	Workers int
}

// File is one regular file found under Root.
type File struct {
	// Path is the file path as found by the walk.
	Path string

	// Name is Path relative to Root, with forward slashes. It names the stream.
	Name string

	Size int64
}

// Walker enumerates the files of a directory tree.
type Walker struct {
	config Config
}

// NewWalker creates a Walker over config.Root.
func NewWalker(config Config) *Walker {
	return &Walker{config: config}
}

// Files walks the tree and returns the eligible files in walk order.
// A .gitignore at Root is honored.
func (w *Walker) Files(ctx context.Context) ([]File, error) {
	var ignore *gitignore.GitIgnore
	gitignorePath := filepath.Join(w.config.Root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		ignore, err = gitignore.CompileIgnoreFile(gitignorePath)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", gitignorePath)
		}
	}

	var files []File
	err := filepath.Walk(w.config.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(w.config.Root, path)
		if err != nil {
			return err
		}
		hidden := !w.config.IncludeHidden && isHidden(info.Name())

		if info.IsDir() {
			if path != w.config.Root && (hidden || (ignore != nil && ignore.MatchesPath(rel+"/"))) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if !w.config.FollowSymlinks {
				return nil
			}
			if info, err = os.Stat(path); err != nil || !info.Mode().IsRegular() {
				return nil
			}
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if w.config.MaxFileSize > 0 && info.Size() > w.config.MaxFileSize {
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			return nil
		}

		files = append(files, File{Path: path, Name: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Each walks the tree and calls fn for every text file, from up to
// Config.Workers goroutines. Binary files are skipped. The first error
// returned by fn cancels the remaining files.
func (w *Walker) Each(ctx context.Context, fn func(ctx context.Context, f File, r io.Reader) error) error {
	files, err := w.Files(ctx)
	if err != nil {
		return err
	}

	workers := w.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return open(gctx, f, fn)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func open(ctx context.Context, f File, fn func(ctx context.Context, f File, r io.Reader) error) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", f.Path)
	}
	defer fh.Close()

	r, err := Text(fh)
	if errors.Is(err, ErrBinary) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading %s", f.Path)
	}
	return fn(ctx, f, r)
}

// Text returns a reader over r that yields its full content, or ErrBinary
// when the leading bytes contain a NUL.
func Text(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if bytes.IndexByte(head, 0) != -1 {
		return nil, ErrBinary
	}
	return br, nil
}

// isHidden reports whether name starts with a dot. "." and ".." are not
// hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
