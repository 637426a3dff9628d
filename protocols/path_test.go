package protocols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		root, p, want string
	}{
		{"/data", "file.txt", "/data/file.txt"},
		{"/data/", "/file.txt", "/data/file.txt"},
		{"/data//", "//dir///file.txt", "/data/dir/file.txt"},
		{"/", "", "/"},
		{"/data", "", "/data/"},
		{"", "a", "/a"},
		{"/data", "dir/", "/data/dir/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, joinPath(tt.root, tt.p), "joinPath(%q, %q)", tt.root, tt.p)
	}
}

func TestResolvePath(t *testing.T) {
	full, err := resolvePath("/data", "a/../b.txt")
	require.NoError(t, err)
	assert.Equal(t, "/data/a/../b.txt", full)

	for _, p := range []string{"../etc/passwd", "/a/../../x", ".."} {
		_, err := resolvePath("/data", p)
		var denied *PermissionDeniedError
		require.ErrorAs(t, err, &denied, p)
		assert.Equal(t, p, denied.Path)
		assert.ErrorIs(t, err, errOutsideRoot)
	}

	_, err = resolvePath("/", "../x")
	assert.NoError(t, err)
	_, err = resolvePath("/data", "../database/x")
	assert.Error(t, err)
}

func TestDirnameAndRelative(t *testing.T) {
	assert.Equal(t, "/data/", dirname("/data/foo"))
	assert.Equal(t, "/data/foo/", dirname("/data/foo/"))

	assert.Equal(t, "dir/b.txt", relativePath("/data", "/data/dir/b.txt"))
	assert.Equal(t, "dir/b.txt", relativePath("/data/", "/data/dir/b.txt"))
	assert.Equal(t, "a.txt", relativePath("/", "/a.txt"))
}

func TestSamePath(t *testing.T) {
	assert.True(t, samePath("a.txt", "/a.txt"))
	assert.True(t, samePath("/data/dir/../a.txt", "/data//a.txt"))
	assert.True(t, samePath("./a.txt", "a.txt"))
	assert.False(t, samePath("a.txt", "b.txt"))
	assert.False(t, samePath("dir/a.txt", "a.txt"))
}
