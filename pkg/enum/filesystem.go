package enum

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/praetorian-inc/wmscan/pkg/types"
	"golang.org/x/sync/errgroup"
)

// FilesystemEnumerator enumerates files below a directory, or a single file.
type FilesystemEnumerator struct {
	config Config
}

// NewFilesystemEnumerator creates a new filesystem enumerator.
func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	return &FilesystemEnumerator{config: config}
}

// Enumerate walks the tree, then reads the collected files in parallel.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	files, err := e.collect(ctx)
	if err != nil {
		return err
	}

	workers := e.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return e.processFile(gctx, path, callback)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// collect returns the paths that pass the hidden, size, symlink and
// .gitignore filters.
func (e *FilesystemEnumerator) collect(ctx context.Context) ([]string, error) {
	root := e.config.Root
	var ignore *gitignore.GitIgnore
	if gi, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		ignore = gi
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		hidden := !e.config.IncludeHidden && path != root && isHidden(d.Name())
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !e.config.FollowSymlinks {
				return nil
			}
			target, err := os.Stat(path)
			if err != nil || target.IsDir() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		if e.config.MaxFileSize > 0 {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.Size() > e.config.MaxFileSize {
				return nil
			}
		}

		if ignore != nil {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if ignore.MatchesPath(filepath.ToSlash(rel)) {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// processFile reads one file and yields it, or the content extracted from it.
func (e *FilesystemEnumerator) processFile(ctx context.Context, path string, callback Callback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}

	if shouldExtract(e.config.Extract, path) {
		limits := e.config.ExtractLimits
		limits.IncludeBinary = e.config.IncludeBinary
		extracted, err := ExtractText(path, content, limits)
		if err != nil {
			e.config.logger().Warn("extraction failed", "path", path, "error", err)
		} else {
			for _, ec := range extracted {
				prov := types.ArchiveProvenance{ArchivePath: path, MemberPath: ec.Name}
				if err := callback(ec.Content, types.ComputeBlobID(ec.Content), prov); err != nil {
					return err
				}
			}
			return nil
		}
	}

	if !e.config.IncludeBinary && isBinary(content) {
		e.config.logger().Debug("skipping binary file", "path", path)
		return nil
	}

	return callback(content, types.ComputeBlobID(content), types.FileProvenance{FilePath: path})
}

// shouldExtract checks the extension of path against the Extract setting.
func shouldExtract(setting, path string) bool {
	if setting == "" {
		return false
	}
	ext := strings.TrimPrefix(getExtension(path), ".")
	if !isExtractable(ext) {
		return false
	}
	if setting == "all" {
		return true
	}
	for _, want := range strings.Split(strings.ToLower(setting), ",") {
		if strings.TrimPrefix(strings.TrimSpace(want), ".") == ext {
			return true
		}
	}
	return false
}

// isHidden checks if a filename is hidden (starts with .).
// The special entries "." and ".." are NOT considered hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

// isBinary reports a NUL byte in the first 8KB.
func isBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), 8192)], 0) >= 0
}
