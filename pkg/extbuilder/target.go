package extbuilder

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Target is the platform a library is built for
type Target struct {
	OS   string
	Arch string
}

type targetInfo struct {
	triple string
	abi    string
}

var targets = map[Target]targetInfo{
	{"linux", "x86_64"}:      {triple: "x86_64-linux-gnu"},
	{"linux", "arm64-v8a"}:   {triple: "aarch64-linux-gnu"},
	{"android", "x86_64"}:    {triple: "x86_64-linux-android", abi: "x86_64"},
	{"android", "arm64-v8a"}: {triple: "aarch64-linux-android", abi: "arm64-v8a"},
}

// SupportedTargets lists the names accepted by ParseTarget in a stable order
var SupportedTargets = []string{
	"linux-x86_64",
	"linux-arm64-v8a",
	"android-x86_64",
	"android-arm64-v8a",
}

// ParseTarget parses names like "android-arm64-v8a"
func ParseTarget(name string) (Target, error) {
	pos := strings.Index(name, "-")
	if pos < 1 {
		return Target{}, eris.Errorf("Invalid target %q, expected <os>-<arch>", name)
	}

	t := Target{OS: name[:pos], Arch: name[pos+1:]}
	if _, ok := targets[t]; !ok {
		return Target{}, eris.Errorf("Unsupported target %s (supported: %s)", name, strings.Join(SupportedTargets, ", "))
	}

	return t, nil
}

func (t Target) String() string {
	return fmt.Sprintf("%s-%s", t.OS, t.Arch)
}

// IsAndroid returns true for all android-* targets
func (t Target) IsAndroid() bool {
	return t.OS == "android"
}

// Triple returns the GNU target triple used for --host and toolchain prefixes
func (t Target) Triple() string {
	return targets[t].triple
}

// ABI returns the Android ABI name. It's empty for Linux targets.
func (t Target) ABI() string {
	return targets[t].abi
}

// Prefix is the value passed to ./configure --prefix. Linux packages are relocatable
// and use an empty prefix while Android packages live below /android/<abi>.
func (t Target) Prefix() string {
	if t.IsAndroid() {
		return "/android/" + t.ABI()
	}
	return ""
}
