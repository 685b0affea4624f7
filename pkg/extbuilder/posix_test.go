package extbuilder

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestMove(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	writeFile(c, filepath.Join(dir, "a.txt"), "a", 0o644)
	writeFile(c, filepath.Join(dir, "b.txt"), "b", 0o644)
	c.Assert(os.Mkdir(filepath.Join(dir, "out"), 0o755), qt.IsNil)

	c.Run("rename to new name", func(c *qt.C) {
		c.Assert(Move([]string{filepath.Join(dir, "a.txt")}, filepath.Join(dir, "c.txt")), qt.IsNil)
		_, err := os.Stat(filepath.Join(dir, "c.txt"))
		c.Assert(err, qt.IsNil)
	})

	c.Run("multiple into directory", func(c *qt.C) {
		err := Move([]string{filepath.Join(dir, "b.txt"), filepath.Join(dir, "c.txt")}, filepath.Join(dir, "out"))
		c.Assert(err, qt.IsNil)
		_, err = os.Stat(filepath.Join(dir, "out", "b.txt"))
		c.Assert(err, qt.IsNil)
		_, err = os.Stat(filepath.Join(dir, "out", "c.txt"))
		c.Assert(err, qt.IsNil)
	})

	c.Run("multiple into file fails", func(c *qt.C) {
		writeFile(c, filepath.Join(dir, "x"), "x", 0o644)
		writeFile(c, filepath.Join(dir, "y"), "y", 0o644)
		err := Move([]string{filepath.Join(dir, "x"), filepath.Join(dir, "y")}, filepath.Join(dir, "z"))
		c.Assert(err, qt.ErrorMatches, `Can't move multiple items to .* because it is not a directory!`)
	})

	c.Run("missing destination parent", func(c *qt.C) {
		err := Move([]string{filepath.Join(dir, "x")}, filepath.Join(dir, "nope", "x"))
		c.Assert(err, qt.ErrorMatches, `Could not find destination directory .*`)
	})
}

func TestRemove(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	writeFile(c, filepath.Join(dir, "tree", "file"), "x", 0o644)

	err := Remove([]string{filepath.Join(dir, "tree")}, false, false)
	c.Assert(err, qt.ErrorMatches, `.* is a directory but -r wasn't passed`)

	err = Remove([]string{filepath.Join(dir, "missing")}, false, false)
	c.Assert(err, qt.ErrorMatches, `Could not stat .*`)

	c.Assert(Remove([]string{filepath.Join(dir, "missing"), filepath.Join(dir, "tree")}, true, true), qt.IsNil)
	_, err = os.Stat(filepath.Join(dir, "tree"))
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}

func TestMakeDirsHelper(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()

	err := MakeDirs([]string{filepath.Join(dir, "a", "b")}, false)
	c.Assert(err, qt.ErrorMatches, `Failed to create .*`)

	c.Assert(MakeDirs([]string{filepath.Join(dir, "a", "b")}, true), qt.IsNil)
	info, err := os.Stat(filepath.Join(dir, "a", "b"))
	c.Assert(err, qt.IsNil)
	c.Assert(info.IsDir(), qt.IsTrue)
}
