package invariant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harun/plugincheck/pkg/manifest"
)

func versions(raw ...string) []manifest.VersionEntry {
	entries := make([]manifest.VersionEntry, len(raw))
	for i, r := range raw {
		entries[i] = manifest.VersionEntry{Semver: manifest.MustParseVersion(r)}
	}
	return entries
}

func TestDescending(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		want     bool
	}{
		{"empty", nil, true},
		{"single", []string{"1.0.0"}, true},
		{"descending", []string{"2.0.0", "1.10.0", "1.2.0"}, true},
		{"lexical order is not semver order", []string{"1.2.0", "1.10.0"}, false},
		{"pre-release sorts below release", []string{"1.0.0", "1.0.0-rc.1"}, true},
		{"equal neighbours", []string{"1.0.0", "1.0.0"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, descending(versions(tt.versions...)))
		})
	}
}

func TestFirstDuplicateVersion(t *testing.T) {
	dup, ok := firstDuplicateVersion(versions("1.1.0", "1.0.0", "1.1.0"))
	assert.True(t, ok)
	assert.Equal(t, "1.1.0", dup)

	_, ok = firstDuplicateVersion(versions("1.1.0", "1.0.0"))
	assert.False(t, ok)
}

func TestFirstUnsorted(t *testing.T) {
	assert.Equal(t, -1, firstUnsorted(nil))
	assert.Equal(t, -1, firstUnsorted([]string{"app_a", "app_b", "transcriber_a"}))
	assert.Equal(t, 2, firstUnsorted([]string{"app_a", "app_c", "app_b"}))
}

func TestFirstDuplicateID(t *testing.T) {
	dup, ok := firstDuplicateID([]string{"linux/amd64", "darwin/arm64", "linux/amd64"})
	assert.True(t, ok)
	assert.Equal(t, "linux/amd64", dup)

	_, ok = firstDuplicateID([]string{"linux/amd64"})
	assert.False(t, ok)
}
