package extbuilder

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rotisserie/eris"
)

// Copy recursively copies src into destDir/<basename of src>. Existing directories
// are merged, existing files overwritten. Modes and symlinks are preserved.
func (b *Builder) Copy(ctx context.Context, src, destDir string) error {
	dest := filepath.Join(destDir, filepath.Base(src))
	log(ctx).Info().Str("path", src).Msgf("Copying %s to %s", src, dest)

	if b.Args.DryRun {
		return nil
	}

	return CopyTree(src, dest)
}

// CopyTree copies the file or directory src to dest
func CopyTree(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return eris.Wrapf(err, "Could not stat %s", src)
	}

	if !info.IsDir() {
		return copyEntry(src, dest, info)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return eris.Wrapf(err, "Failed to walk %s", path)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return eris.Wrapf(err, "Could not stat %s", path)
		}

		return copyEntry(path, filepath.Join(dest, rel), info)
	})
}

func copyEntry(src, dest string, info fs.FileInfo) error {
	switch {
	case info.IsDir():
		err := os.MkdirAll(dest, info.Mode().Perm()|0o700)
		if err != nil {
			return eris.Wrapf(err, "Failed to create %s", dest)
		}
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return eris.Wrapf(err, "Failed to read link %s", src)
		}

		err = os.Remove(dest)
		if err != nil && !eris.Is(err, os.ErrNotExist) {
			return eris.Wrapf(err, "Failed to replace %s", dest)
		}

		err = os.Symlink(target, dest)
		if err != nil {
			return eris.Wrapf(err, "Failed to create symlink %s pointing to %s", dest, target)
		}
	case info.Mode().IsRegular():
		return copyFile(src, dest, info.Mode().Perm())
	default:
		// sockets, devices and pipes have no business in a source tree
	}

	return nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "Failed to open %s", src)
	}
	defer in.Close()

	err = os.MkdirAll(filepath.Dir(dest), 0o755)
	if err != nil {
		return eris.Wrapf(err, "Failed to create %s", filepath.Dir(dest))
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return eris.Wrapf(err, "Failed to create %s", dest)
	}

	_, err = io.Copy(out, in)
	if err != nil {
		out.Close()
		return eris.Wrapf(err, "Failed to copy %s to %s", src, dest)
	}

	err = out.Close()
	if err != nil {
		return eris.Wrapf(err, "Failed to write %s", dest)
	}

	// OpenFile only applies the mode to new files
	return os.Chmod(dest, mode)
}

// ReplaceInFile is the equivalent of sed -i 's/pattern/repl/g' path. The pattern is a Go
// regular expression evaluated in multi-line mode (^ and $ match at line breaks);
// repl may reference groups with $1. It returns the number of replacements.
func (b *Builder) ReplaceInFile(ctx context.Context, path, pattern, repl string) (int, error) {
	log(ctx).Info().Str("path", path).Msgf("Patching %s: s/%s/%s/g", path, pattern, repl)

	matcher, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return 0, eris.Wrapf(err, "Invalid pattern %s", pattern)
	}

	if b.Args.DryRun {
		return 0, nil
	}

	return ReplaceInFile(path, matcher, repl)
}

// ReplaceInFile replaces all matches of matcher in path
func ReplaceInFile(path string, matcher *regexp.Regexp, repl string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, eris.Wrapf(err, "Could not stat %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "Failed to read %s", path)
	}

	count := len(matcher.FindAllIndex(content, -1))
	if count == 0 {
		return 0, nil
	}

	content = matcher.ReplaceAll(content, []byte(repl))
	err = os.WriteFile(path, content, info.Mode().Perm())
	if err != nil {
		return 0, eris.Wrapf(err, "Failed to write %s", path)
	}

	return count, nil
}
