package config_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"

	"github.com/racecomms/jelbuild/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	c := qt.New(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.CacheDir, qt.Equals, "/build/cache")
	c.Assert(cfg.Log.Level, qt.Equals, "info")
	c.Assert(cfg.Toolchain.AndroidAPI, qt.Equals, 29)
	c.Assert(cfg.Toolchain.NDKDir, qt.Equals, "/opt/android/ndk/default")
	c.Assert(cfg.Packages.AptGet, qt.Equals, "apt-get")
	c.Assert(cfg.Packages.Format, qt.Equals, "tar.gz")
	c.Assert(cfg.LogLevel(), qt.Equals, zerolog.InfoLevel)
}

func TestLoad_File(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "jelbuild.toml")
	err := os.WriteFile(path, []byte(`cache_dir = "/tmp/jelcache"

[log]
level = "debug"

[toolchain]
android_api = 30

[packages]
format = "tar.xz"
`), 0o644)
	c.Assert(err, qt.IsNil)

	cfg, err := config.Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.CacheDir, qt.Equals, "/tmp/jelcache")
	c.Assert(cfg.LogLevel(), qt.Equals, zerolog.DebugLevel)
	c.Assert(cfg.Toolchain.AndroidAPI, qt.Equals, 30)
	c.Assert(cfg.Packages.Format, qt.Equals, "tar.xz")
}

func TestValidate(t *testing.T) {
	c := qt.New(t)

	valid := func() *config.Config {
		cfg := &config.Config{CacheDir: "/build/cache"}
		cfg.Log.Level = "info"
		cfg.Toolchain.AndroidAPI = 29
		cfg.Packages.Format = "tar.gz"
		return cfg
	}

	c.Assert(valid().Validate(), qt.IsNil)

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"empty cache dir", func(cfg *config.Config) { cfg.CacheDir = "" }, `Invalid value for cache_dir.*`},
		{"unknown log level", func(cfg *config.Config) { cfg.Log.Level = "loud" }, `Invalid value for log.level: loud`},
		{"old api level", func(cfg *config.Config) { cfg.Toolchain.AndroidAPI = 19 }, `Invalid value for toolchain.android_api: 19.*`},
		{"negative jobs", func(cfg *config.Config) { cfg.Toolchain.Jobs = -2 }, `Invalid value for toolchain.jobs: -2`},
		{"unknown format", func(cfg *config.Config) { cfg.Packages.Format = "rar" }, `Invalid value for packages.format: rar.*`},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			cfg := valid()
			tt.mutate(cfg)
			c.Assert(cfg.Validate(), qt.ErrorMatches, tt.wantErr)
		})
	}
}
