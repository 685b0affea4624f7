package extbuilder

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"

	"github.com/racecomms/jelbuild/pkg/config"
)

// Args holds the arguments of a single build. The first block is filled from the
// command line, Normalize derives the rest.
type Args struct {
	Name       string
	Version    string
	Revision   int
	TargetName string
	CodeDir    string
	CacheDir   string
	Format     string
	Publish    string
	Jobs       int

	DryRun      bool
	Force       bool
	SkipInstall bool

	// Options are the key=value pairs passed to the recipe
	Options map[string]string

	Target     Target
	BuildID    string
	BuildRoot  string
	SourceDir  string
	BuildDir   string
	InstallDir string
	LogDir     string
	PackageDir string
}

// Normalize validates the arguments, fills in defaults from cfg and derives the
// directory layout:
//
//	<cache>/<name>/<version>-<revision>/<target>/{source,build,install,logs}
//	<cache>/packages
func (a *Args) Normalize(cfg *config.Config) error {
	if a.Name == "" {
		return eris.New("The library name must not be empty")
	}

	if _, err := semver.NewVersion(a.Version); err != nil {
		return eris.Wrapf(err, "Invalid version %q", a.Version)
	}

	if a.Revision < 1 {
		return eris.Errorf("Invalid revision %d, must be at least 1", a.Revision)
	}

	target, err := ParseTarget(a.TargetName)
	if err != nil {
		return err
	}
	a.Target = target

	if a.CacheDir == "" {
		a.CacheDir = cfg.CacheDir
	}
	if a.Format == "" {
		a.Format = cfg.Packages.Format
	}
	if !config.ValidFormat(a.Format) {
		return eris.Errorf("Unsupported package format %s", a.Format)
	}
	if a.Publish == "" {
		a.Publish = cfg.Publish.URL
	}
	if a.Jobs == 0 {
		a.Jobs = cfg.Toolchain.Jobs
	}
	if a.Jobs < 1 {
		a.Jobs = runtime.NumCPU()
	}
	if a.Options == nil {
		a.Options = map[string]string{}
	}

	a.CodeDir, err = filepath.Abs(a.CodeDir)
	if err != nil {
		return eris.Wrapf(err, "Failed to resolve code directory %s", a.CodeDir)
	}

	info, err := os.Stat(a.CodeDir)
	if err != nil {
		return eris.Wrapf(err, "Code directory %s is not accessible", a.CodeDir)
	}
	if !info.IsDir() {
		return eris.Errorf("Code directory %s is not a directory", a.CodeDir)
	}

	a.CacheDir, err = filepath.Abs(a.CacheDir)
	if err != nil {
		return eris.Wrapf(err, "Failed to resolve cache directory %s", a.CacheDir)
	}

	a.BuildRoot = filepath.Join(a.CacheDir, a.Name, a.VersionString(), a.Target.String())
	a.SourceDir = filepath.Join(a.BuildRoot, "source")
	a.BuildDir = filepath.Join(a.BuildRoot, "build")
	a.InstallDir = filepath.Join(a.BuildRoot, "install")
	a.LogDir = filepath.Join(a.BuildRoot, "logs")
	a.PackageDir = filepath.Join(a.CacheDir, "packages")

	if a.BuildID == "" {
		a.BuildID = nanoid.New()
	}

	return nil
}

// VersionString returns <version>-<revision>
func (a *Args) VersionString() string {
	return fmt.Sprintf("%s-%d", a.Version, a.Revision)
}

// PackageName returns the artifact file name without directory
func (a *Args) PackageName() string {
	return fmt.Sprintf("%s-%s-%s.%s", a.Name, a.VersionString(), a.Target, a.Format)
}
