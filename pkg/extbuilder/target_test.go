package extbuilder

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestParseTarget(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name       string
		wantTriple string
		wantABI    string
		wantPrefix string
		android    bool
	}{
		{"linux-x86_64", "x86_64-linux-gnu", "", "", false},
		{"linux-arm64-v8a", "aarch64-linux-gnu", "", "", false},
		{"android-x86_64", "x86_64-linux-android", "x86_64", "/android/x86_64", true},
		{"android-arm64-v8a", "aarch64-linux-android", "arm64-v8a", "/android/arm64-v8a", true},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			target, err := ParseTarget(tt.name)
			c.Assert(err, qt.IsNil)
			c.Assert(target.String(), qt.Equals, tt.name)
			c.Assert(target.Triple(), qt.Equals, tt.wantTriple)
			c.Assert(target.ABI(), qt.Equals, tt.wantABI)
			c.Assert(target.Prefix(), qt.Equals, tt.wantPrefix)
			c.Assert(target.IsAndroid(), qt.Equals, tt.android)
		})
	}

	c.Assert(SupportedTargets, qt.HasLen, len(targets))
}

func TestParseTarget_Errors(t *testing.T) {
	c := qt.New(t)

	_, err := ParseTarget("x86_64")
	c.Assert(err, qt.ErrorMatches, `Invalid target "x86_64".*`)

	_, err = ParseTarget("-x86_64")
	c.Assert(err, qt.ErrorMatches, `Invalid target "-x86_64".*`)

	_, err = ParseTarget("windows-x86_64")
	c.Assert(err, qt.ErrorMatches, `Unsupported target windows-x86_64 .*`)
}
