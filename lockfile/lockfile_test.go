package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Lockfile {
	return &Lockfile{
		Version: FormatVersion,
		Packages: []Package{
			{
				Name:         "log",
				Version:      "0.4.11",
				Source:       "registry",
				Checksum:     "sha256:aaa",
				Dependencies: []string{"cfg-if 1.0.0"},
			},
			{
				Name:    "app",
				Version: "0.1.0",
				Dependencies: []string{
					"log 0.4.11",
					"rand 0.7.3",
				},
			},
			{
				Name:     "rand",
				Version:  "0.7.3",
				Source:   "registry",
				Checksum: "sha256:bbb",
			},
		},
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := sample().Encode()
	b := sample().Encode()
	assert.Equal(t, a, b, "repeated encoding must be byte-identical")

	// Entry order in the struct must not affect output.
	shuffled := sample()
	shuffled.Packages[0], shuffled.Packages[2] = shuffled.Packages[2], shuffled.Packages[0]
	assert.Equal(t, a, shuffled.Encode())
}

func TestEncodeParseRoundTrip(t *testing.T) {
	encoded := sample().Encode()

	lf, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, lf.Version)
	require.Len(t, lf.Packages, 3)

	// Canonical order: app, log, rand.
	assert.Equal(t, "app", lf.Packages[0].Name)
	assert.Equal(t, "log", lf.Packages[1].Name)
	assert.Equal(t, "sha256:aaa", lf.Packages[1].Checksum)
	assert.Equal(t, []string{"cfg-if 1.0.0"}, lf.Packages[1].Dependencies)

	assert.Equal(t, encoded, lf.Encode(), "round trip must be byte-identical")
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("version = [broken"))
	assert.Error(t, err)
}

func TestGetAndVersions(t *testing.T) {
	lf := sample()
	require.NotNil(t, lf.Get("log", "0.4.11"))
	assert.Nil(t, lf.Get("log", "0.4.8"))
	assert.Equal(t, []string{"0.7.3"}, lf.Versions("rand"))
	assert.Empty(t, lf.Versions("missing"))
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename)

	missing, err := ReadFile(path)
	require.NoError(t, err)
	assert.Nil(t, missing, "absent lockfile is a valid input")

	require.NoError(t, sample().WriteFile(path))

	lf, err := ReadFile(path)
	require.NoError(t, err)
	require.NotNil(t, lf)
	assert.Len(t, lf.Packages, 3)

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".carton.lock.")
	}
}

func TestReconcile(t *testing.T) {
	prev := sample()

	next := sample()
	diff, err := Reconcile(prev, next, false)
	require.NoError(t, err)
	assert.True(t, diff.IsEmpty())

	// A version bump shows as added + removed.
	bumped := sample()
	bumped.Packages[2].Version = "0.7.4"
	diff, err = Reconcile(prev, bumped, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"rand@0.7.4"}, diff.Added)
	assert.Equal(t, []string{"rand@0.7.3"}, diff.Removed)

	// Missing checksums are carried over from the previous lock.
	carried := sample()
	carried.Packages[2].Checksum = ""
	diff, err = Reconcile(prev, carried, false)
	require.NoError(t, err)
	assert.True(t, diff.IsEmpty())
	assert.Equal(t, "sha256:bbb", carried.Packages[2].Checksum)
}

func TestReconcileFrozen(t *testing.T) {
	prev := sample()

	same := sample()
	_, err := Reconcile(prev, same, true)
	require.NoError(t, err)

	bumped := sample()
	bumped.Packages[2].Version = "0.7.4"
	_, err = Reconcile(prev, bumped, true)
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, mismatch.Error(), "rand@0.7.4")
	assert.Contains(t, mismatch.Error(), "rand@0.7.3")

	// No previous lock: everything is an addition.
	_, err = Reconcile(nil, sample(), true)
	require.ErrorAs(t, err, &mismatch)
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("hello"))
	b := Checksum([]byte("hello"))
	c := Checksum([]byte("world"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "sha256:")
}

func TestDepRef(t *testing.T) {
	assert.Equal(t, "log 0.4.11", DepRef("log", "0.4.11", "registry", "registry"))
	assert.Equal(t, "log 0.4.11 (alt)", DepRef("log", "0.4.11", "alt", "registry"))
	assert.Equal(t, "app 0.1.0", DepRef("app", "0.1.0", "", "registry"))
}