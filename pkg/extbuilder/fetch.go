package extbuilder

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"
)

// DepSpec describes a source archive which is downloaded into the source directory
type DepSpec struct {
	Condition  string `yaml:"if,omitempty"`
	Rejections string `yaml:"ifNot,omitempty"`
	URL        string
	Dest       string
	Sha256     string
	Strip      int
	MarkExec   []string `yaml:"markExec,omitempty"`
}

// DepConfig is the content of a deps.yml file
type DepConfig struct {
	Vars map[string]string
	Deps map[string]DepSpec
}

// LoadDepConfig reads a deps.yml file
func LoadDepConfig(path string) (*DepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "Could not open file %s", path)
	}

	cfg := &DepConfig{}
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse %s", path)
	}

	if cfg.Vars == nil {
		cfg.Vars = map[string]string{}
	}

	return cfg, nil
}

var varMatcher = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// evalConditions expands the {VAR} placeholders in the URL and reports whether the
// dependency is needed: every name in "if" must be set, no name in "ifNot" may be set.
func evalConditions(meta *DepSpec, vars map[string]string) bool {
	meta.URL = varMatcher.ReplaceAllStringFunc(meta.URL, func(varName string) string {
		return vars[varName[1:len(varName)-1]]
	})

	for _, condition := range strings.Split(meta.Condition, ",") {
		condition = strings.TrimSpace(condition)
		if condition == "" {
			continue
		}

		if vars[condition] == "" {
			return false
		}
	}

	for _, condition := range strings.Split(meta.Rejections, ",") {
		condition = strings.TrimSpace(condition)
		if condition == "" {
			continue
		}

		if vars[condition] != "" {
			return false
		}
	}
	return true
}

func (b *Builder) depVars(cfg *DepConfig) map[string]string {
	vars := make(map[string]string, len(cfg.Vars)+8)
	for k, v := range cfg.Vars {
		vars[k] = v
	}

	a := b.Args
	vars[a.Target.OS] = "true"
	vars[a.Target.Arch] = "true"
	vars["TARGET"] = a.Target.String()
	vars["TRIPLE"] = a.Target.Triple()
	vars["NAME"] = a.Name
	vars["VERSION"] = a.Version
	if os.Getenv("CI") == "true" {
		vars["ci"] = "true"
	}

	return vars
}

func (b *Builder) progressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" || b.Progress == nil {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.NewOptions64(length,
		progressbar.OptionSetWriter(b.Progress),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
	)
}

// FetchDeps downloads the archives listed in depsFile, verifies their checksums and
// extracts them below the source directory. Dependencies which were already extracted
// from the same URL and checksum are skipped (tracked in <build root>/deps.stamps).
func (b *Builder) FetchDeps(ctx context.Context, depsFile string) error {
	cfg, err := LoadDepConfig(depsFile)
	if err != nil {
		return err
	}

	stampPath := filepath.Join(b.Args.BuildRoot, "deps.stamps")
	stamps := map[string]string{}
	stampData, err := os.ReadFile(stampPath)
	if err != nil {
		if !eris.Is(err, os.ErrNotExist) {
			return eris.Wrapf(err, "Failed to read stamps file %s", stampPath)
		}
	} else {
		err = json.Unmarshal(stampData, &stamps)
		if err != nil {
			return eris.Wrapf(err, "Failed to parse JSON file %s", stampPath)
		}
	}

	vars := b.depVars(cfg)
	names := make([]string, 0, len(cfg.Deps))
	for name := range cfg.Deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var fetchErr error
	for _, name := range names {
		meta := cfg.Deps[name]
		if !evalConditions(&meta, vars) {
			log(ctx).Debug().Msgf("Dependency %s is not needed for %s", name, b.Args.Target)
			continue
		}

		destPath := filepath.Join(b.Args.SourceDir, meta.Dest)
		if !isBelow(b.Args.SourceDir, destPath) {
			return eris.Errorf("Destination %s of dependency %s is outside of %s", meta.Dest, name, b.Args.SourceDir)
		}

		_, err := os.Stat(destPath)
		destExists := err == nil

		stampToken := meta.URL + "#" + meta.Sha256
		if stamps[name] == stampToken && destExists {
			log(ctx).Info().Msgf("Dependency %s is up to date", name)
			continue
		}

		log(ctx).Info().Str("path", destPath).Msgf("Fetching %s from %s", name, meta.URL)
		if b.Args.DryRun {
			continue
		}

		fetchErr = b.fetchDep(ctx, name, meta, destPath, destExists)
		if fetchErr != nil {
			break
		}

		stamps[name] = stampToken
	}

	if b.Args.DryRun {
		return nil
	}

	stampData, err = json.Marshal(stamps)
	if err != nil {
		return eris.Wrap(err, "Failed to encode stamps")
	}

	err = os.MkdirAll(filepath.Dir(stampPath), 0o755)
	if err == nil {
		err = os.WriteFile(stampPath, stampData, 0o644)
	}
	if err != nil {
		log(ctx).Error().Err(err).Msgf("Failed to write %s", stampPath)
	}

	return fetchErr
}

func (b *Builder) fetchDep(ctx context.Context, name string, meta DepSpec, destPath string, destExists bool) error {
	if meta.Sha256 == "" {
		return eris.Errorf("Dependency %s doesn't have a checksum", name)
	}

	extractor, err := getExtractor(meta.URL)
	if err != nil {
		return eris.Wrapf(err, "Can't extract %s", meta.URL)
	}

	err = os.MkdirAll(b.Args.BuildRoot, 0o755)
	if err != nil {
		return eris.Wrapf(err, "Failed to create %s", b.Args.BuildRoot)
	}

	arHandle, err := os.CreateTemp(b.Args.BuildRoot, "deps_dl_*.tmp")
	if err != nil {
		return eris.Wrap(err, "Failed to create download file")
	}
	defer func() {
		arHandle.Close()
		os.Remove(arHandle.Name())
	}()

	size, digest, err := b.download(ctx, meta.URL, arHandle)
	if err != nil {
		return err
	}

	if digest != meta.Sha256 {
		return eris.Errorf("Checksum mismatch for %s: expected %s but got %s", name, meta.Sha256, digest)
	}

	if destExists {
		log(ctx).Info().Str("path", destPath).Msgf("Removing %s", destPath)
		err = os.RemoveAll(destPath)
		if err != nil {
			return eris.Wrapf(err, "Failed to remove %s", destPath)
		}
	}

	_, err = arHandle.Seek(0, io.SeekStart)
	if err != nil {
		return eris.Wrap(err, "Failed to rewind download")
	}

	bar := b.progressBar(size, "      extract")
	err = extractor(arHandle, bar, destPath, meta.Strip)
	bar.Finish()
	if err != nil {
		return eris.Wrapf(err, "Failed to extract %s", name)
	}

	// .zip files don't carry permissions which means we have to manually fix permissions for binaries in .zip files
	for _, binPath := range meta.MarkExec {
		binPath = filepath.Join(destPath, binPath)
		fi, err := os.Stat(binPath)
		if err != nil {
			return eris.Wrapf(err, "Failed to read permissions for %s", binPath)
		}

		err = os.Chmod(binPath, fi.Mode()|0o700)
		if err != nil {
			return eris.Wrapf(err, "Failed to mark %s as executable", binPath)
		}
	}

	return nil
}

func (b *Builder) download(ctx context.Context, url string, dest io.Writer) (int64, string, error) {
	req, err := newGetRequest(ctx, url)
	if err != nil {
		return 0, "", err
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return 0, "", eris.Wrapf(err, "Failed to start download for %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return 0, "", eris.Errorf("Download of %s failed with status %s", url, resp.Status)
	}

	hash := sha256.New()
	bar := b.progressBar(resp.ContentLength, "     download")
	size, err := io.Copy(io.MultiWriter(dest, hash, bar), resp.Body)
	bar.Finish()
	if err != nil {
		return 0, "", eris.Wrapf(err, "Failed during download of %s", url)
	}

	return size, hex.EncodeToString(hash.Sum(nil)), nil
}

type archiveExtractor func(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error

// extractorDest strips the first strip elements of item and returns the resulting
// path inside destPath. ok is false if nothing is left after stripping.
func extractorDest(destPath, item string, strip int) (string, bool, error) {
	clean := filepath.Clean(filepath.FromSlash(item))
	parts := strings.Split(clean, string(filepath.Separator))
	if len(parts) <= strip {
		return "", false, nil
	}

	dest := filepath.Join(destPath, filepath.Join(parts[strip:]...))
	if dest == destPath {
		return "", false, nil
	}

	if !isBelow(destPath, dest) {
		return "", false, eris.Errorf("Archive entry %s points outside of %s", item, destPath)
	}

	return dest, true, nil
}

// isBelow reports whether path is located inside root (and isn't root itself).
func isBelow(root, path string) bool {
	return strings.HasPrefix(filepath.Clean(path), filepath.Clean(root)+string(filepath.Separator))
}

// checkLinkTarget rejects symlinks which resolve to a location outside of destPath.
func checkLinkTarget(destPath, dest, linkname string) error {
	target := filepath.FromSlash(linkname)
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(dest), target)
	}

	if target != filepath.Clean(destPath) && !isBelow(destPath, target) {
		return eris.Errorf("Symlink %s points outside of %s (%s)", dest, destPath, linkname)
	}
	return nil
}

// checkParents makes sure that no existing parent of dest below destPath is a symlink.
// Writing through one would place the file wherever the link points.
func checkParents(destPath, dest string) error {
	rel, err := filepath.Rel(destPath, filepath.Dir(dest))
	if err != nil {
		return eris.Wrapf(err, "Failed to resolve %s", dest)
	}
	if rel == "." {
		return nil
	}

	current := destPath
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return eris.Wrapf(err, "Failed to inspect %s", current)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return eris.Errorf("Archive entry %s would be written through the symlink %s", dest, current)
		}
	}

	return nil
}

func getExtractor(url string) (archiveExtractor, error) {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return extractZip, nil
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"):
		return func(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
			reader, err := gzip.NewReader(f)
			if err != nil {
				return err
			}
			defer reader.Close()

			return extractTar(reader, f, bar, destPath, strip)
		}, nil
	case strings.HasSuffix(url, ".tar.bz2"):
		return func(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
			return extractTar(bzip2.NewReader(f), f, bar, destPath, strip)
		}, nil
	case strings.HasSuffix(url, ".tar.xz"):
		return func(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
			reader, err := xz.NewReader(f)
			if err != nil {
				return err
			}

			return extractTar(reader, f, bar, destPath, strip)
		}, nil
	case strings.HasSuffix(url, ".tar.zst"):
		return func(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
			reader, err := zstd.NewReader(f)
			if err != nil {
				return err
			}
			defer reader.Close()

			return extractTar(reader, f, bar, destPath, strip)
		}, nil
	}

	return nil, eris.New("Archive format not supported")
}

func updateBar(f *os.File, bar *progressbar.ProgressBar) {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err == nil {
		bar.Set64(pos)
	}
}

func extractZip(f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
	stat, err := f.Stat()
	if err != nil {
		return err
	}

	archive, err := zip.NewReader(f, stat.Size())
	if err != nil {
		return err
	}

	for _, item := range archive.File {
		if strings.HasSuffix(item.Name, "/") {
			continue
		}

		dest, ok, err := extractorDest(destPath, item.Name, strip)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		err = checkParents(destPath, dest)
		if err != nil {
			return err
		}

		err = extractZipEntry(item, dest)
		if err != nil {
			return err
		}
		updateBar(f, bar)
	}

	return nil
}

func extractZipEntry(item *zip.File, dest string) error {
	itemHandle, err := item.Open()
	if err != nil {
		return eris.Wrapf(err, "Failed to open archive entry %s", item.Name)
	}
	defer itemHandle.Close()

	return writeExtracted(itemHandle, dest, item.Mode().Perm()|0o600)
}

func writeExtracted(r io.Reader, dest string, mode os.FileMode) error {
	err := os.MkdirAll(filepath.Dir(dest), 0o755)
	if err != nil {
		return eris.Wrapf(err, "Failed to create directory %s", filepath.Dir(dest))
	}

	destHandle, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return eris.Wrapf(err, "Failed to create file %s", dest)
	}

	_, err = io.Copy(destHandle, r)
	if err != nil {
		destHandle.Close()
		return eris.Wrapf(err, "Failed to write extracted file %s", dest)
	}

	return destHandle.Close()
}

func extractTar(r io.Reader, f *os.File, bar *progressbar.ProgressBar, destPath string, strip int) error {
	archive := tar.NewReader(r)

	for {
		item, err := archive.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return eris.Wrap(err, "Failed to read archive entry")
		}

		if item.Typeflag == tar.TypeDir {
			continue
		}

		dest, ok, err := extractorDest(destPath, item.Name, strip)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		err = checkParents(destPath, dest)
		if err != nil {
			return err
		}

		switch item.Typeflag {
		case tar.TypeSymlink:
			err = checkLinkTarget(destPath, dest, item.Linkname)
			if err != nil {
				return err
			}

			err = os.MkdirAll(filepath.Dir(dest), 0o755)
			if err != nil {
				return eris.Wrapf(err, "Failed to create directory %s", filepath.Dir(dest))
			}

			os.Remove(dest)
			err = os.Symlink(item.Linkname, dest)
			if err != nil {
				return eris.Wrapf(err, "Failed to create symlink %s pointing to %s", dest, item.Linkname)
			}
		case tar.TypeReg:
			err = writeExtracted(archive, dest, item.FileInfo().Mode().Perm()|0o600)
			if err != nil {
				return err
			}
		default:
			// hard links, devices and fifos aren't used by source archives
			continue
		}

		updateBar(f, bar)
	}

	return nil
}
