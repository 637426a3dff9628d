package protocols

import (
	"io"
	"iter"
	"slices"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

const defaultEncoding = "utf-8"

// dirEntry is what a driver's directory listing is reduced to for the flat
// list walk.
type dirEntry struct {
	name string
	dir  bool
	file bool
	raw  any
}

type lister func(dir string) ([]dirEntry, error)

// flatList walks the tree below root in depth-first pre-order, yielding the
// files whose full path starts with root+prefix. The walk stops at the first
// listing error, which is yielded once and keyed to the caller's prefix.
func flatList(root, prefix, host string, list lister) iter.Seq2[FileListResponse, error] {
	return func(yield func(FileListResponse, error) bool) {
		full, err := resolvePath(root, prefix)
		if err != nil {
			yield(FileListResponse{}, err)
			return
		}
		walkPrefix(root, full, prefix, host, list, yield)
	}
}

func walkPrefix(root, prefix, origin, host string, list lister, yield func(FileListResponse, error) bool) bool {
	dir := prefix
	if !strings.HasSuffix(prefix, "/") {
		dir = dirname(prefix)
	}

	entries, err := list(dir)
	if err != nil {
		yield(FileListResponse{}, wrapError(err, origin, host))
		return false
	}
	slices.SortFunc(entries, func(a, b dirEntry) int {
		return strings.Compare(a.name, b.name)
	})

	for _, entry := range entries {
		if entry.name == "." || entry.name == ".." {
			continue
		}
		name := joinPath(dir, entry.name)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		switch {
		case entry.dir:
			if !walkPrefix(root, joinPath(name, "/"), origin, host, list, yield) {
				return false
			}
		case entry.file:
			if !yield(FileListResponse{Path: relativePath(root, name), Raw: entry.raw}, nil) {
				return false
			}
		}
	}
	return true
}

func readText(s Storage, path, encoding string) (*ContentResponse[string], error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, NewUnknownError("UnsupportedEncoding", path, err)
	}

	res, err := s.ReadBinary(path)
	if err != nil {
		return nil, err
	}

	content, err := enc.NewDecoder().Bytes(res.Content)
	if err != nil {
		return nil, NewUnknownError("DecodeFailed", path, err)
	}
	return &ContentResponse[string]{Content: string(content), Raw: res.Raw}, nil
}

// move is copy followed by delete. A failed delete leaves both files behind.
// Moving a file onto itself only checks that it exists.
func move(s Storage, src, dest string) (*Response, error) {
	if _, err := s.Copy(src, dest); err != nil {
		return nil, err
	}
	if samePath(src, dest) {
		return &Response{}, nil
	}
	if _, err := s.Delete(src); err != nil {
		return nil, err
	}
	return &Response{}, nil
}

// pipeStream hands the caller a pipe fed from src by a goroutine, so the
// driver's file type never leaks out. Read and close errors are passed
// through wrap. src is closed before the caller sees EOF, so a driver with
// a single connection is free again once the stream is drained.
func pipeStream(src io.ReadCloser, wrap func(error) error) io.ReadCloser {
	r, w := io.Pipe()
	go func() {
		_, err := io.Copy(w, src)
		if cerr := src.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			w.CloseWithError(wrap(err))
			return
		}
		w.Close()
	}()
	return r
}
