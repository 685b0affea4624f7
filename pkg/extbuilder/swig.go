package extbuilder

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// SwigExtension describes a SWIG generated Python extension module. Paths are
// relative to Dir.
type SwigExtension struct {
	// Module is the SWIG module name; the compiled library is called _<Module>.so
	Module      string
	Dir         string
	Interface   string
	Sources     []string
	IncludeDirs []string
	Libraries   []string
	LibraryDirs []string
	// PyModules lists pure Python modules installed along with the extension
	// (<Dir>/py/<name>.py).
	PyModules []string
	// PythonIncludes replaces the output of python3-config --includes. Cross builds
	// need it since the host headers don't match the target.
	PythonIncludes string
}

func (e SwigExtension) wrapper() string {
	return strings.TrimSuffix(e.Interface, ".i") + "_wrap.c"
}

// BuildSwigExtension generates the wrapper with swig, compiles it together with the
// listed C sources and installs the resulting library and the generated Python module
// into <install dir><prefix>/lib/python. It returns the path of the compiled library.
func (b *Builder) BuildSwigExtension(ctx context.Context, ext SwigExtension, env map[string]string) (string, error) {
	if ext.Module == "" || ext.Interface == "" {
		return "", eris.New("A SWIG extension needs a module name and an interface file")
	}

	if b.Args.Target.IsAndroid() && ext.PythonIncludes == "" {
		return "", eris.Errorf("Building _%s for %s needs the target's Python include flags, python3-config only knows the host", ext.Module, b.Args.Target)
	}

	wrapper := ext.wrapper()
	swigCmd := []string{"swig", "-python"}
	for _, inc := range ext.IncludeDirs {
		swigCmd = append(swigCmd, "-I"+inc)
	}
	swigCmd = append(swigCmd, "-o", wrapper, ext.Interface)

	err := b.Execute(ctx, swigCmd, ext.Dir, env)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to generate the %s wrapper", ext.Module)
	}

	pyIncludes := ext.PythonIncludes
	if pyIncludes == "" {
		pyIncludes, err = b.Output(ctx, []string{"python3-config", "--includes"}, ext.Dir, env)
		if err != nil {
			return "", eris.Wrap(err, "Failed to locate the Python headers")
		}
	}

	cc := strings.Fields(env["CC"])
	if len(cc) == 0 {
		cc = []string{"cc"}
	}

	libPath := filepath.Join(b.Args.BuildDir, "_"+ext.Module+".so")
	ccCmd := append(cc[:len(cc):len(cc)], "-shared", "-o", libPath)
	ccCmd = append(ccCmd, strings.Fields(env["CFLAGS"])...)
	for _, inc := range ext.IncludeDirs {
		ccCmd = append(ccCmd, "-I"+inc)
	}
	ccCmd = append(ccCmd, strings.Fields(pyIncludes)...)
	ccCmd = append(ccCmd, wrapper)
	ccCmd = append(ccCmd, ext.Sources...)
	ccCmd = append(ccCmd, strings.Fields(env["LDFLAGS"])...)
	for _, dir := range ext.LibraryDirs {
		ccCmd = append(ccCmd, "-L"+dir)
	}
	for _, lib := range ext.Libraries {
		ccCmd = append(ccCmd, "-l"+lib)
	}

	err = b.Execute(ctx, ccCmd, ext.Dir, env)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to compile _%s", ext.Module)
	}

	pyDir := filepath.Join(b.Args.InstallDir+b.Args.Target.Prefix(), "lib", "python")
	log(ctx).Info().Str("path", pyDir).Msgf("Installing _%s into %s", ext.Module, pyDir)
	if b.Args.DryRun {
		return libPath, nil
	}

	err = os.MkdirAll(pyDir, 0o755)
	if err != nil {
		return "", eris.Wrapf(err, "Failed to create %s", pyDir)
	}

	// swig writes <module>.py next to the interface file
	files := []string{libPath, filepath.Join(ext.Dir, filepath.Dir(ext.Interface), ext.Module+".py")}
	for _, name := range ext.PyModules {
		if name == ext.Module {
			continue
		}
		files = append(files, filepath.Join(ext.Dir, "py", name+".py"))
	}

	for _, file := range files {
		err = CopyTree(file, filepath.Join(pyDir, filepath.Base(file)))
		if err != nil {
			return "", err
		}
	}

	return libPath, nil
}
