package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, version, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		commit      string
		vcs         vcs
		wantVersion string
		wantCommit  string
		wantShort   string
		release     bool
	}{
		{
			name:        "ldflags win",
			version:     "v1.2.0",
			commit:      "0123456789abcdef",
			vcs:         vcs{revision: "fedcba9876543210"},
			wantVersion: "v1.2.0",
			wantCommit:  "0123456789abcdef",
			wantShort:   "v1.2.0 (0123456)",
			release:     true,
		},
		{
			name:        "module version",
			version:     "dev",
			commit:      "unknown",
			vcs:         vcs{version: "v0.3.1"},
			wantVersion: "v0.3.1",
			wantCommit:  "unknown",
			wantShort:   "v0.3.1",
			release:     true,
		},
		{
			name:        "checkout build",
			version:     "dev",
			commit:      "unknown",
			vcs:         vcs{revision: "fedcba9876543210", modified: true},
			wantVersion: "dev-fedcba9",
			wantCommit:  "fedcba9876543210",
			wantShort:   "dev-fedcba9",
		},
		{
			name:        "nothing known",
			version:     "",
			commit:      "",
			wantVersion: "dev",
			wantCommit:  "unknown",
			wantShort:   "dev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamp(t, tt.version, tt.commit, "unknown")
			info := resolve(tt.vcs)

			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.wantCommit, info.GitCommit)
			assert.Equal(t, tt.wantShort, info.Short())
			assert.Equal(t, tt.release, info.IsRelease())
			assert.Equal(t, tt.vcs.modified, info.Dirty)
		})
	}
}

func TestString(t *testing.T) {
	stamp(t, "v1.0.0", "0123456789abcdef", "2026-03-01T10:00:00Z")
	info := resolve(vcs{modified: true})
	info.GoVersion = "go1.24.4"
	info.Platform = "linux/amd64"

	assert.Equal(t, "Version: v1.0.0\n"+
		"Commit: 0123456789abcdef (dirty)\n"+
		"Built: 2026-03-01T10:00:00Z\n"+
		"Go: go1.24.4\n"+
		"Platform: linux/amd64", info.String())
}

func TestParseBuildTime(t *testing.T) {
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, want, parseBuildTime("2026-03-01T10:00:00Z"))
	assert.Equal(t, want, parseBuildTime("2026-03-01T10:00:00"))
	assert.Equal(t, want, parseBuildTime("2026-03-01 10:00:00"))
	assert.True(t, parseBuildTime("unknown").IsZero())
	assert.True(t, parseBuildTime("yesterday").IsZero())
}
