package protocols

import (
	"errors"
	"fmt"
	"io/fs"
	"net/textproto"
	"strconv"

	"github.com/jlaffaye/ftp"
	"github.com/minio/minio-go/v7"
	"github.com/pkg/sftp"
)

// Kind is the closed set of failures a Storage reports.
type Kind int

const (
	KindUnknown Kind = iota
	KindBucketNotFound
	KindFileNotFound
	KindPermissionDenied
)

func (k Kind) String() string {
	switch k {
	case KindBucketNotFound:
		return "bucket not found"
	case KindFileNotFound:
		return "file not found"
	case KindPermissionDenied:
		return "permission denied"
	default:
		return "unknown"
	}
}

// BucketNotFoundError is returned when the container of the storage itself
// (bucket, or remote host for SFTP and FTP) is missing.
type BucketNotFoundError struct {
	Bucket string
	Err    error
}

func (e *BucketNotFoundError) Error() string {
	return fmt.Sprintf("bucket %q not found", e.Bucket)
}

func (e *BucketNotFoundError) Unwrap() error {
	return e.Err
}

func NewBucketNotFoundError(bucket string, err error) error {
	return &BucketNotFoundError{Bucket: bucket, Err: err}
}

type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file %q not found", e.Path)
}

func (e *FileNotFoundError) Unwrap() error {
	return e.Err
}

func NewFileNotFoundError(path string, err error) error {
	return &FileNotFoundError{Path: path, Err: err}
}

type PermissionDeniedError struct {
	Path string
	Err  error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied for %q", e.Path)
}

func (e *PermissionDeniedError) Unwrap() error {
	return e.Err
}

func NewPermissionDeniedError(path string, err error) error {
	return &PermissionDeniedError{Path: path, Err: err}
}

// UnknownError keeps the name of the underlying failure so callers can still
// tell driver errors apart.
type UnknownError struct {
	Name string
	Path string
	Err  error
}

func (e *UnknownError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Name, e.Path)
	}
	return fmt.Sprintf("%s on %q: %v", e.Name, e.Path, e.Err)
}

func (e *UnknownError) Unwrap() error {
	return e.Err
}

func NewUnknownError(name, path string, err error) error {
	return &UnknownError{Name: name, Path: path, Err: err}
}

var errorKinds = map[string]Kind{
	"NoSuchBucket":      KindBucketNotFound,
	"NoSuchKey":         KindFileNotFound,
	"AllAccessDisabled": KindPermissionDenied,
}

// Classify maps a driver error to a Kind and returns the name it was
// recognised by.
func Classify(err error) (Kind, string) {
	if kind := KindOf(err); kind != KindUnknown {
		return kind, kind.String()
	}

	name := errorName(err)
	if kind, ok := errorKinds[name]; ok {
		return kind, name
	}

	var status *sftp.StatusError
	if errors.As(err, &status) {
		switch status.FxCode() {
		case sftp.ErrSSHFxNoSuchFile:
			return KindFileNotFound, name
		case sftp.ErrSSHFxPermissionDenied:
			return KindPermissionDenied, name
		}
	}

	var reply *textproto.Error
	if errors.As(err, &reply) {
		switch reply.Code {
		case ftp.StatusFileUnavailable:
			return KindFileNotFound, name
		case ftp.StatusNotLoggedIn:
			return KindPermissionDenied, name
		}
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindFileNotFound, name
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied, name
	}

	return KindUnknown, name
}

// KindOf reports the Kind of an error already produced by this package.
func KindOf(err error) Kind {
	var (
		bucket     *BucketNotFoundError
		notFound   *FileNotFoundError
		permission *PermissionDeniedError
	)
	switch {
	case errors.As(err, &bucket):
		return KindBucketNotFound
	case errors.As(err, &notFound):
		return KindFileNotFound
	case errors.As(err, &permission):
		return KindPermissionDenied
	}
	return KindUnknown
}

// wrapError turns a driver error into one of the taxonomy errors. host is
// reported for a missing bucket, path for everything else.
func wrapError(err error, path, host string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	var unknown *UnknownError
	if errors.As(err, &unknown) {
		return err
	}

	kind, name := Classify(err)
	switch kind {
	case KindBucketNotFound:
		return NewBucketNotFoundError(host, err)
	case KindFileNotFound:
		return NewFileNotFoundError(path, err)
	case KindPermissionDenied:
		return NewPermissionDeniedError(path, err)
	default:
		return NewUnknownError(name, path, err)
	}
}

func errorName(err error) string {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code != "" {
		return resp.Code
	}

	var status *sftp.StatusError
	if errors.As(err, &status) {
		return "SSH_FX_" + strconv.FormatUint(uint64(status.Code), 10)
	}

	var reply *textproto.Error
	if errors.As(err, &reply) {
		return "FTP_" + strconv.Itoa(reply.Code)
	}

	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return fmt.Sprintf("%T", err)
}
