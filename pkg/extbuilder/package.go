package extbuilder

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// Manifest is written next to every package
type Manifest struct {
	Name        string    `yaml:"name"`
	Version     string    `yaml:"version"`
	Revision    int       `yaml:"revision"`
	Target      string    `yaml:"target"`
	Format      string    `yaml:"format"`
	File        string    `yaml:"file"`
	Size        int64     `yaml:"size"`
	Sha256      string    `yaml:"sha256"`
	Fingerprint string    `yaml:"fingerprint"`
	Files       int       `yaml:"files"`
	BuildID     string    `yaml:"build_id"`
	BuiltAt     time.Time `yaml:"built_at"`
}

// Artifact describes a created package
type Artifact struct {
	Path         string
	ManifestPath string
	Manifest     Manifest
}

// ReadManifest parses a manifest written by CreatePackage
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to read %s", path)
	}

	manifest := &Manifest{}
	err = yaml.Unmarshal(data, manifest)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse %s", path)
	}

	return manifest, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func compressor(format string, w io.Writer) (io.WriteCloser, error) {
	switch format {
	case "tar.gz":
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case "tar.xz":
		return xz.NewWriter(w)
	case "tar.br":
		return brotli.NewWriterLevel(w, brotli.BestCompression), nil
	case "tar.zst":
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	}

	return nil, eris.Errorf("Unsupported package format %s", format)
}

// CreatePackage archives the install directory into <package dir>/<package name> and
// writes the manifest next to it. An install tree without any files is an error since
// it means that "make install" didn't do anything.
func (b *Builder) CreatePackage(ctx context.Context) (*Artifact, error) {
	a := b.Args
	pkgPath := filepath.Join(a.PackageDir, a.PackageName())
	artifact := &Artifact{
		Path:         pkgPath,
		ManifestPath: pkgPath + ".yml",
		Manifest: Manifest{
			Name:     a.Name,
			Version:  a.Version,
			Revision: a.Revision,
			Target:   a.Target.String(),
			Format:   a.Format,
			File:     a.PackageName(),
			BuildID:  a.BuildID,
			BuiltAt:  b.now().UTC().Truncate(time.Second),
		},
	}

	log(ctx).Info().Str("path", pkgPath).Msgf("Packaging %s into %s", a.InstallDir, pkgPath)
	if a.DryRun {
		return artifact, nil
	}

	err := os.MkdirAll(a.PackageDir, 0o755)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to create %s", a.PackageDir)
	}

	tmpPath := pkgPath + ".tmp"
	handle, err := os.Create(tmpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to create %s", tmpPath)
	}
	defer func() {
		handle.Close()
		os.Remove(tmpPath)
	}()

	hash := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(handle, hash)}
	comp, err := compressor(a.Format, counter)
	if err != nil {
		return nil, err
	}

	files, fingerprint, err := writeTar(a.InstallDir, comp)
	if err != nil {
		comp.Close()
		return nil, err
	}

	err = comp.Close()
	if err != nil {
		return nil, eris.Wrap(err, "Failed to finish compression")
	}

	err = handle.Close()
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to write %s", tmpPath)
	}

	if files == 0 {
		return nil, eris.Errorf("Install directory %s is empty, nothing to package", a.InstallDir)
	}

	err = os.Rename(tmpPath, pkgPath)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to move package to %s", pkgPath)
	}

	artifact.Manifest.Size = counter.n
	artifact.Manifest.Sha256 = hex.EncodeToString(hash.Sum(nil))
	artifact.Manifest.Fingerprint = fingerprint
	artifact.Manifest.Files = files

	data, err := yaml.Marshal(&artifact.Manifest)
	if err != nil {
		return nil, eris.Wrap(err, "Failed to encode manifest")
	}

	err = os.WriteFile(artifact.ManifestPath, data, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to write %s", artifact.ManifestPath)
	}

	log(ctx).Info().
		Str("sha256", artifact.Manifest.Sha256).
		Int64("size", artifact.Manifest.Size).
		Msgf("Created %s", a.PackageName())

	return artifact, nil
}

// writeTar writes every entry below root into w and returns the number of regular
// files together with an xxh3 fingerprint over their paths and contents.
func writeTar(root string, w io.Writer) (int, string, error) {
	tw := tar.NewWriter(w)
	fp := xxh3.New()
	files := 0
	sizeBuf := make([]byte, 8)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return eris.Wrapf(err, "Failed to walk %s", path)
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return eris.Wrapf(err, "Could not stat %s", path)
		}

		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return eris.Wrapf(err, "Failed to read link %s", path)
			}
		} else if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return eris.Wrapf(err, "Failed to create header for %s", path)
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "root", "root"

		err = tw.WriteHeader(hdr)
		if err != nil {
			return eris.Wrapf(err, "Failed to write header for %s", name)
		}

		_, _ = fp.Write([]byte(name))
		_, _ = fp.Write([]byte(link))

		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "Failed to open %s", path)
		}
		defer f.Close()

		binary.LittleEndian.PutUint64(sizeBuf, uint64(info.Size()))
		_, _ = fp.Write(sizeBuf)
		_, err = io.Copy(io.MultiWriter(tw, fp), f)
		if err != nil {
			return eris.Wrapf(err, "Failed to pack %s", path)
		}

		files++
		return nil
	})
	if err != nil {
		return 0, "", err
	}

	err = tw.Close()
	if err != nil {
		return 0, "", eris.Wrap(err, "Failed to finish tar stream")
	}

	sum := fp.Sum128().Bytes()
	return files, hex.EncodeToString(sum[:]), nil
}
