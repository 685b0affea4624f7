package config

import (
	"os"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config describes the machine-level settings of the builder. Per-build values
// (target, version, revision) come from the command line instead.
type Config struct {
	CacheDir string `default:"/build/cache" toml:"cache_dir" usage:"Root of the build sandbox; every build gets <cache>/<name>/<version>-<revision>/<target>"`
	Log      struct {
		Level string `default:"info" toml:"level"`
		JSON  bool   `default:"false" toml:"json" usage:"Output JSONND instead of pretty console messages"`
	} `toml:"log"`
	Toolchain struct {
		NDKDir     string `default:"/opt/android/ndk/default" toml:"ndk_dir" usage:"Android NDK root"`
		AndroidAPI int    `default:"29" toml:"android_api" usage:"Android API level used for the clang wrappers"`
		Ccache     bool   `default:"false" toml:"ccache" usage:"Prefix compilers with ccache"`
		Jobs       int    `default:"0" toml:"jobs" usage:"Parallel make jobs, 0 means one per CPU"`
	} `toml:"toolchain"`
	Packages struct {
		AptGet string `default:"apt-get" toml:"apt_get" usage:"apt-get binary (i.e. 'sudo apt-get')"`
		Format string `default:"tar.gz" toml:"format" usage:"Package format (tar.gz, tar.xz, tar.br or tar.zst)"`
	} `toml:"packages"`
	Publish struct {
		URL    string `toml:"url" usage:"s3://bucket/prefix the packages are uploaded to"`
		Region string `default:"us-east-1" toml:"region"`
	} `toml:"publish"`
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// PackageFormats lists the archive formats CreatePackage knows how to write
var PackageFormats = []string{"tar.gz", "tar.xz", "tar.br", "tar.zst"}

// Loader initializes an empty config object and returns a new Loader for this object.
// If files is empty, jelbuild.toml in the working directory is used (if present).
func Loader(files ...string) (*Config, *aconfig.Loader) {
	if len(files) == 0 {
		files = []string{"jelbuild.toml"}
	}

	// missing config files are fine, the defaults and env vars still apply
	present := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			present = append(present, file)
		}
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "JELBUILD",
		SkipFlags: true,
		SkipFiles: len(present) == 0,
		Files:     present,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load is a shortcut for Loader() followed by Load() and Validate()
func Load(files ...string) (*Config, error) {
	cfg, loader := Loader(files...)
	err := loader.Load()
	if err != nil {
		return nil, eris.Wrap(err, "Failed to load config")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if cfg.CacheDir == "" {
		return eris.New(`Invalid value for cache_dir: must not be empty`)
	}

	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if cfg.Toolchain.AndroidAPI < 21 {
		return eris.Errorf(`Invalid value for toolchain.android_api: %d (must be at least 21)`, cfg.Toolchain.AndroidAPI)
	}

	if cfg.Toolchain.Jobs < 0 {
		return eris.Errorf(`Invalid value for toolchain.jobs: %d`, cfg.Toolchain.Jobs)
	}

	if !ValidFormat(cfg.Packages.Format) {
		return eris.Errorf(`Invalid value for packages.format: %s (must be one of tar.gz, tar.xz, tar.br or tar.zst)`, cfg.Packages.Format)
	}

	return nil
}

// ValidFormat reports whether format is one of PackageFormats
func ValidFormat(format string) bool {
	for _, f := range PackageFormats {
		if f == format {
			return true
		}
	}
	return false
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}
