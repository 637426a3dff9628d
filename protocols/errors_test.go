package protocols

import (
	"errors"
	"fmt"
	"io/fs"
	"net/textproto"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantName string
	}{
		{"s3 bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, KindBucketNotFound, "NoSuchBucket"},
		{"s3 key", minio.ErrorResponse{Code: "NoSuchKey"}, KindFileNotFound, "NoSuchKey"},
		{"s3 access", minio.ErrorResponse{Code: "AllAccessDisabled"}, KindPermissionDenied, "AllAccessDisabled"},
		{"s3 other", minio.ErrorResponse{Code: "SlowDown"}, KindUnknown, "SlowDown"},
		{"wrapped s3", fmt.Errorf("stat: %w", minio.ErrorResponse{Code: "NoSuchKey"}), KindFileNotFound, "NoSuchKey"},
		{"sftp no such file", &sftp.StatusError{Code: uint32(sftp.ErrSSHFxNoSuchFile)}, KindFileNotFound, "SSH_FX_2"},
		{"sftp permission", &sftp.StatusError{Code: uint32(sftp.ErrSSHFxPermissionDenied)}, KindPermissionDenied, "SSH_FX_3"},
		{"sftp failure", &sftp.StatusError{Code: uint32(sftp.ErrSSHFxFailure)}, KindUnknown, "SSH_FX_4"},
		{"ftp unavailable", &textproto.Error{Code: 550, Msg: "No such file"}, KindFileNotFound, "FTP_550"},
		{"ftp login", &textproto.Error{Code: 530, Msg: "Not logged in"}, KindPermissionDenied, "FTP_530"},
		{"os not exist", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, KindFileNotFound, "*errors.errorString"},
		{"os permission", os.ErrPermission, KindPermissionDenied, "*errors.errorString"},
		{"plain", errors.New("boom"), KindUnknown, "*errors.errorString"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, name := Classify(tt.err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestWrapError(t *testing.T) {
	cause := minio.ErrorResponse{Code: "NoSuchBucket"}
	err := wrapError(cause, "a.txt", "sftp.example.com")
	var bucket *BucketNotFoundError
	require.ErrorAs(t, err, &bucket)
	assert.Equal(t, "sftp.example.com", bucket.Bucket)
	assert.ErrorIs(t, err, cause)

	err = wrapError(minio.ErrorResponse{Code: "NoSuchKey"}, "/missing", "h")
	var notFound *FileNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "/missing", notFound.Path)

	err = wrapError(minio.ErrorResponse{Code: "AllAccessDisabled"}, "/locked", "h")
	var denied *PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "/locked", denied.Path)

	err = wrapError(minio.ErrorResponse{Code: "InternalError"}, "x", "h")
	var unknown *UnknownError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "InternalError", unknown.Name)
	assert.Equal(t, "x", unknown.Path)

	assert.Nil(t, wrapError(nil, "x", "h"))
}

func TestWrapErrorKeepsTaxonomy(t *testing.T) {
	orig := NewFileNotFoundError("first", os.ErrNotExist)
	assert.Same(t, orig, wrapError(orig, "second", "h"))

	unknown := NewUnknownError("NotConnected", "h", errNotConnected)
	assert.Same(t, unknown, wrapError(unknown, "x", "h"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindBucketNotFound, KindOf(NewBucketNotFoundError("b", nil)))
	assert.Equal(t, KindFileNotFound, KindOf(fmt.Errorf("read: %w", NewFileNotFoundError("p", nil))))
	assert.Equal(t, KindPermissionDenied, KindOf(NewPermissionDeniedError("p", nil)))
	assert.Equal(t, KindUnknown, KindOf(NewUnknownError("n", "p", nil)))
	assert.Equal(t, KindUnknown, KindOf(os.ErrNotExist))
}

func TestErrorMessages(t *testing.T) {
	assert.EqualError(t, NewFileNotFoundError("a.txt", nil), `file "a.txt" not found`)
	assert.EqualError(t, NewPermissionDeniedError("a.txt", nil), `permission denied for "a.txt"`)
	assert.EqualError(t, NewBucketNotFoundError("b", nil), `bucket "b" not found`)
	assert.EqualError(t, NewUnknownError("SlowDown", "a.txt", errors.New("retry later")), `SlowDown on "a.txt": retry later`)
}
