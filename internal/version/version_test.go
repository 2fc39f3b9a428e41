package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, v, commit, date string) {
	orig := [3]string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = orig[0], orig[1], orig[2] })
	Version, Commit, Date = v, commit, date
}

func TestInfo(t *testing.T) {
	tests := []struct {
		commit string
		want   string
	}{
		{"9f8e7d6c5b4a", "commit: 9f8e7d6,"},
		{"abc", "commit: abc,"},
		{"", "commit: ,"},
	}
	for _, tt := range tests {
		t.Run(tt.commit, func(t *testing.T) {
			stamp(t, "0.4.0", tt.commit, "2026-10-01")

			info := Info()
			assert.Contains(t, info, "advisor 0.4.0")
			assert.Contains(t, info, tt.want)
			assert.Contains(t, info, "built: 2026-10-01")
			assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)
		})
	}
}

func TestCurrent(t *testing.T) {
	stamp(t, "0.4.0", "9f8e7d6c5b4a", "2026-10-01")

	b := Current()
	assert.Equal(t, "9f8e7d6c5b4a", b.Commit, "the full commit is kept")
	assert.Equal(t, runtime.Version(), b.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, b.Platform)
}

func TestUserAgent(t *testing.T) {
	stamp(t, "0.4.0", "", "")
	assert.Equal(t, "advisor/0.4.0 ("+runtime.GOOS+"; "+runtime.GOARCH+")", UserAgent())
}
