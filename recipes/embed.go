// Package recipes bundles the recipes shipped with jelbuild.
package recipes

import (
	"embed"
	"io/fs"
	"path"
	"sort"

	"github.com/rotisserie/eris"
)

//go:embed */build.star
var files embed.FS

// Get returns the build.star of the named library
func Get(name string) ([]byte, error) {
	data, err := files.ReadFile(path.Join(name, "build.star"))
	if err != nil {
		return nil, eris.Errorf("No recipe for %s (available: %v)", name, Names())
	}
	return data, nil
}

// Names lists the bundled recipes
func Names() []string {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}
