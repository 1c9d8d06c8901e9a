package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartonpkg/go-carton/version"
)

const basicManifest = `
[package]
name = "app"
version = "0.1.0"
links = "zlib"
min-toolchain = "1.70.0"
resolver = "2"

[dependencies]
log = "0.4"
rng = { version = "0.7", optional = true, default-features = false, features = ["std"] }
serde-compat = { version = "1.0", package = "serde" }

[build-dependencies]
cc = "1.0"

[dev-dependencies]
quickcheck = "0.9"

[target.'cfg(unix)'.dependencies]
libc = "0.2"

[features]
default = ["std"]
std = ["rng/std", "dep:log"]
`

func TestParseManifest(t *testing.T) {
	m, err := Parse([]byte(basicManifest))
	require.NoError(t, err)

	assert.Equal(t, "app", m.Name)
	assert.Equal(t, "0.1.0", m.Version.String())
	assert.Equal(t, "zlib", m.Links)
	assert.Equal(t, "1.70.0", m.MinToolchain.String())
	assert.Equal(t, PolicyV2, m.Policy)
	assert.Len(t, m.Dependencies, 6)
	assert.Equal(t, []string{"rng/std", "dep:log"}, m.Features["std"])

	byRef := map[string]Dependency{}
	for _, d := range m.Dependencies {
		byRef[d.RefName()] = d
	}

	logDep := byRef["log"]
	assert.Equal(t, KindNormal, logDep.Kind)
	assert.True(t, logDep.Req.Matches(version.MustParse("0.4.11")))
	assert.False(t, logDep.Req.Matches(version.MustParse("0.5.0")))
	assert.True(t, logDep.DefaultFeatures)

	rng := byRef["rng"]
	assert.True(t, rng.Optional)
	assert.False(t, rng.DefaultFeatures)
	assert.Equal(t, []string{"std"}, rng.Features)

	renamed := byRef["serde-compat"]
	assert.Equal(t, "serde", renamed.Name)
	assert.Equal(t, "serde-compat", renamed.Rename)

	assert.Equal(t, KindBuild, byRef["cc"].Kind)
	assert.Equal(t, KindDev, byRef["quickcheck"].Kind)

	libc := byRef["libc"]
	require.NotNil(t, libc.Platform)
	assert.True(t, libc.Platform.Matches(Environment{OS: "linux", Family: "unix"}))
	assert.False(t, libc.Platform.Matches(Environment{OS: "windows", Family: "windows"}))
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "[package]\nversion = \"1.0.0\"\n"},
		{"bad version", "[package]\nname = \"a\"\nversion = \"one\"\n"},
		{"bad resolver", "[package]\nname = \"a\"\nversion = \"1.0.0\"\nresolver = \"3\"\n"},
		{"bad requirement", "[package]\nname = \"a\"\nversion = \"1.0.0\"\n[dependencies]\nb = \"banana\"\n"},
		{"dep without version", "[package]\nname = \"a\"\nversion = \"1.0.0\"\n[dependencies]\nb = { optional = true }\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestParseRequirementErrorSurfaced(t *testing.T) {
	content := "[package]\nname = \"a\"\nversion = \"1.0.0\"\n[dependencies]\nb = \">=1.0.0, potato\"\n"
	_, err := Parse([]byte(content))
	require.Error(t, err)
	assert.ErrorContains(t, err, "potato")
}

func TestLoadWorkspace(t *testing.T) {
	dir := t.TempDir()

	root := `
[package]
name = "root"
version = "0.1.0"

[dependencies]
member = { version = "0.1.0" }

[workspace]
members = ["crates/member"]
`
	member := `
[package]
name = "member"
version = "0.1.0"

[dev-dependencies]
helper = "1.0"
`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "crates", "member"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, Filename), []byte(root), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crates", "member", Filename), []byte(member), 0o644))

	ws, err := LoadWorkspace(dir)
	require.NoError(t, err)
	assert.Equal(t, "root", ws.Root.Name)
	assert.Len(t, ws.Members, 2)
	assert.True(t, ws.IsMember("member"))
	assert.False(t, ws.IsMember("helper"))
	assert.Equal(t, PolicyV1, ws.Policy())
}

func TestPlatformPredicates(t *testing.T) {
	linux := Environment{Triple: "x86_64-unknown-linux-gnu", OS: "linux", Family: "unix"}
	windows := Environment{Triple: "x86_64-pc-windows-msvc", OS: "windows", Family: "windows"}

	tests := []struct {
		pred         string
		linux, wind  bool
	}{
		{"cfg(unix)", true, false},
		{"cfg(windows)", false, true},
		{`cfg(target_os = "linux")`, true, false},
		{`cfg(not(windows))`, true, false},
		{`cfg(any(windows, target_os = "linux"))`, true, true},
		{`cfg(all(unix, target_os = "linux"))`, true, false},
		{`cfg(all(unix, not(target_os = "linux")))`, false, false},
		{"x86_64-unknown-linux-gnu", true, false},
	}

	for _, tt := range tests {
		p, err := ParsePlatform(tt.pred)
		require.NoError(t, err, tt.pred)
		assert.Equal(t, tt.linux, p.Matches(linux), "%s on linux", tt.pred)
		assert.Equal(t, tt.wind, p.Matches(windows), "%s on windows", tt.pred)
	}
}

func TestParsePlatformErrors(t *testing.T) {
	for _, pred := range []string{"", "cfg()", "cfg(banana)", "cfg(target_arch = )", `cfg(feature = "x")`} {
		_, err := ParsePlatform(pred)
		assert.Error(t, err, pred)
	}
}
