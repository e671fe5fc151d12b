package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuildInfo(t *testing.T, version, commit, built string) {
	t.Helper()
	origVersion, origCommit, origBuildTime := Version, GitCommit, BuildTime
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = origVersion, origCommit, origBuildTime
	})
	Version, GitCommit, BuildTime = version, commit, built
}

func TestString(t *testing.T) {
	setBuildInfo(t, "v1.2.3", "abc123", "2026-01-01T00:00:00Z")

	got := String()
	assert.Contains(t, got, "linkbrain v1.2.3")
	assert.Contains(t, got, "commit: abc123")
	assert.Contains(t, got, "built: 2026-01-01T00:00:00Z")
	assert.Contains(t, got, runtime.Version())
}

func TestInfo(t *testing.T) {
	setBuildInfo(t, "dev", "unknown", "unknown")

	info := Info()
	assert.Equal(t, "dev", info["version"])
	assert.Equal(t, "unknown", info["commit"])
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info["platform"])
}
