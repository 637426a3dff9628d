package protocols

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "root")
	s := NewLocalStorage(dir)
	require.NoError(t, s.Init())
	return s, dir
}

func TestLocalInitCreatesRoot(t *testing.T) {
	_, dir := newTestLocal(t)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalRoundTrip(t *testing.T) {
	s, dir := newTestLocal(t)

	res, err := s.Write("sub/file.txt", strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Raw)

	data, err := os.ReadFile(filepath.Join(dir, "sub", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	text, err := s.ReadText("sub/file.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "content", text.Content)

	stat, err := s.Stat("sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(7), stat.Size)

	r, err := s.OpenReadStream("sub/file.txt")
	require.NoError(t, err)
	streamed, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "content", string(streamed))
}

func TestLocalCopyMoveDelete(t *testing.T) {
	s, _ := newTestLocal(t)
	writeString(t, s, "a.txt", "A")

	_, err := s.Copy("a.txt", "b.txt")
	require.NoError(t, err)
	_, err = s.Move("b.txt", "dir/c.txt")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "dir/c.txt"}, collect(t, s, ""))

	_, err = s.Delete("a.txt")
	require.NoError(t, err)
	res, err := s.Exists("a.txt")
	require.NoError(t, err)
	assert.False(t, res.Exists)
}

func TestLocalErrors(t *testing.T) {
	s, _ := newTestLocal(t)

	_, err := s.ReadBinary("missing.txt")
	var notFound *FileNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing.txt", notFound.Path)

	_, err = s.Delete("missing.txt")
	assert.Equal(t, KindFileNotFound, KindOf(err))

	_, err = s.Copy("missing.txt", "x.txt")
	assert.Equal(t, KindFileNotFound, KindOf(err))

	_, err = s.Write("../escape.txt", strings.NewReader("x"))
	assert.Equal(t, KindPermissionDenied, KindOf(err))
}

func TestLocalCopyOntoItself(t *testing.T) {
	s, dir := newTestLocal(t)
	writeString(t, s, "a.txt", "payload")

	_, err := s.Copy("a.txt", "sub/../a.txt")
	require.NoError(t, err)
	_, err = s.Move("/a.txt", "a.txt")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = s.Copy("missing.txt", "missing.txt")
	assert.Equal(t, KindFileNotFound, KindOf(err))
}
