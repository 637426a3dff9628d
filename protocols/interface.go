package protocols

import (
	"io"
	"iter"
	"time"
)

// Response is the envelope returned by operations that only carry the
// underlying driver result.
type Response struct {
	Raw any
}

type DeleteResponse struct {
	Raw any
	// WasDeleted is nil when the driver cannot tell.
	WasDeleted *bool
}

type ExistsResponse struct {
	Exists bool
	Raw    any
}

type ContentResponse[T string | []byte] struct {
	Content T
	Raw     any
}

type StatResponse struct {
	Size     int64
	Modified time.Time
	Raw      any
}

type FileListResponse struct {
	Path string // relative to the storage root
	Raw  any
}

// Storage is implemented by every driver. All paths are relative to the
// driver's root.
type Storage interface {
	Init() error
	Close() error
	Copy(src, dest string) (*Response, error)
	Delete(path string) (*DeleteResponse, error)
	Exists(path string) (*ExistsResponse, error)
	ReadText(path, encoding string) (*ContentResponse[string], error)
	ReadBinary(path string) (*ContentResponse[[]byte], error)
	Stat(path string) (*StatResponse, error)
	OpenReadStream(path string) (io.ReadCloser, error)
	Move(src, dest string) (*Response, error)
	Write(path string, content io.Reader) (*Response, error)
	// ListAll walks every file whose path starts with prefix, depth first.
	// Directories are descended into but never yielded. Like every path,
	// prefix is relative to the root: leading slashes are dropped, so "/dir"
	// and "dir" list the same files and yielded paths start with "dir".
	ListAll(prefix string) iter.Seq2[FileListResponse, error]
}
