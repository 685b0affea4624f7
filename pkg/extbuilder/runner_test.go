package extbuilder

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCommandString(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"make"}, "make"},
		{[]string{"./configure", "--prefix=", "--host=x86_64-linux-gnu"}, "./configure --prefix= --host=x86_64-linux-gnu"},
		{[]string{"sed", "-i", "s/HAVE_STDLIB_H/HAVE_STDLIB_H 1/g", "jconfig.h"}, "sed -i 's/HAVE_STDLIB_H/HAVE_STDLIB_H 1/g' jconfig.h"},
		{[]string{"echo", "$HOME"}, "echo '$HOME'"},
		{[]string{"echo", ""}, "echo ''"},
	}

	for _, tt := range tests {
		c.Assert(Command{Args: tt.args}.String(), qt.Equals, tt.want)
	}
}

func TestMergeEnv(t *testing.T) {
	c := qt.New(t)
	merged := mergeEnv([]string{"PATH=/usr/bin", "HOME=/root", "CC=cc"}, map[string]string{"CC": "clang", "CFLAGS": "-fPIC"})
	sort.Strings(merged)
	c.Assert(merged, qt.DeepEquals, []string{"CC=clang", "CFLAGS=-fPIC", "HOME=/root", "PATH=/usr/bin"})
}

func TestShellRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}

	c := qt.New(t)
	dir := t.TempDir()
	stdout := new(bytes.Buffer)
	runner := &ShellRunner{Stdout: stdout, Stderr: new(bytes.Buffer)}

	c.Run("env and dir are applied", func(c *qt.C) {
		stdout.Reset()
		err := runner.Run(context.Background(), Command{
			Args: []string{"sh", "-c", `printf '%s' "$JEL_TEST" > marker`},
			Dir:  dir,
			Env:  map[string]string{"JEL_TEST": "it works"},
		})
		c.Assert(err, qt.IsNil)

		content, err := os.ReadFile(filepath.Join(dir, "marker"))
		c.Assert(err, qt.IsNil)
		c.Assert(string(content), qt.Equals, "it works")
	})

	c.Run("arguments are not expanded", func(c *qt.C) {
		out := new(bytes.Buffer)
		err := runner.Run(context.Background(), Command{
			Args:   []string{"printf", "%s", "$HOME *"},
			Dir:    dir,
			Stdout: out,
		})
		c.Assert(err, qt.IsNil)
		c.Assert(out.String(), qt.Equals, "$HOME *")
	})

	c.Run("non-zero exit status is an error", func(c *qt.C) {
		err := runner.Run(context.Background(), Command{Args: []string{"sh", "-c", "exit 3"}, Dir: dir})
		c.Assert(err, qt.ErrorMatches, `exited with status 3`)
	})

	c.Run("missing directory", func(c *qt.C) {
		err := runner.Run(context.Background(), Command{Args: []string{"true"}, Dir: filepath.Join(dir, "missing")})
		c.Assert(err, qt.ErrorMatches, `Failed to initialize runner.*`)
	})

	c.Run("empty command", func(c *qt.C) {
		err := runner.Run(context.Background(), Command{Dir: dir})
		c.Assert(err, qt.ErrorMatches, `Can't run an empty command`)
	})
}
