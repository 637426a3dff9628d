package protocols

import (
	"io"
	"iter"
	"os"
	"path/filepath"
)

var _ Storage = (*LocalStorage)(nil)

// LocalStorage keeps files under a directory on the local disk.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: filepath.ToSlash(root)}
}

func (l *LocalStorage) Init() error {
	if err := os.MkdirAll(filepath.FromSlash(l.root), 0755); err != nil {
		return NewUnknownError(errorName(err), l.root, err)
	}
	return nil
}

func (l *LocalStorage) Close() error {
	return nil
}

func (l *LocalStorage) resolve(p string) (string, error) {
	full, err := resolvePath(l.root, p)
	if err != nil {
		return "", err
	}
	return filepath.FromSlash(full), nil
}

func (l *LocalStorage) Copy(src, dest string) (*Response, error) {
	srcPath, err := l.resolve(src)
	if err != nil {
		return nil, err
	}
	destPath, err := l.resolve(dest)
	if err != nil {
		return nil, err
	}

	if filepath.Clean(srcPath) == filepath.Clean(destPath) {
		if _, err := os.Stat(srcPath); err != nil {
			return nil, wrapError(err, src, l.root)
		}
		return &Response{Raw: int64(0)}, nil
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return nil, wrapError(err, src, l.root)
	}
	defer in.Close()

	n, err := writeLocal(destPath, in)
	if err != nil {
		return nil, wrapError(err, src, l.root)
	}
	return &Response{Raw: n}, nil
}

func (l *LocalStorage) Delete(location string) (*DeleteResponse, error) {
	full, err := l.resolve(location)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(full); err != nil {
		return nil, wrapError(err, location, l.root)
	}
	return &DeleteResponse{Raw: full}, nil
}

func (l *LocalStorage) Exists(location string) (*ExistsResponse, error) {
	full, err := l.resolve(location)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if kind, _ := Classify(err); kind == KindFileNotFound {
			return &ExistsResponse{Exists: false, Raw: err}, nil
		}
		return nil, wrapError(err, location, l.root)
	}
	return &ExistsResponse{Exists: true, Raw: info}, nil
}

func (l *LocalStorage) ReadText(location, encoding string) (*ContentResponse[string], error) {
	return readText(l, location, encoding)
}

func (l *LocalStorage) ReadBinary(location string) (*ContentResponse[[]byte], error) {
	full, err := l.resolve(location)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, wrapError(err, location, l.root)
	}
	return &ContentResponse[[]byte]{Content: content, Raw: full}, nil
}

func (l *LocalStorage) Stat(location string) (*StatResponse, error) {
	full, err := l.resolve(location)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, wrapError(err, location, l.root)
	}
	return &StatResponse{Size: info.Size(), Modified: info.ModTime(), Raw: info}, nil
}

func (l *LocalStorage) OpenReadStream(location string) (io.ReadCloser, error) {
	full, err := l.resolve(location)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, wrapError(err, location, l.root)
	}
	return pipeStream(f, func(err error) error {
		return wrapError(err, location, l.root)
	}), nil
}

func (l *LocalStorage) Move(src, dest string) (*Response, error) {
	return move(l, src, dest)
}

func (l *LocalStorage) Write(location string, content io.Reader) (*Response, error) {
	full, err := l.resolve(location)
	if err != nil {
		return nil, err
	}
	n, err := writeLocal(full, content)
	if err != nil {
		return nil, wrapError(err, location, l.root)
	}
	return &Response{Raw: n}, nil
}

func (l *LocalStorage) ListAll(prefix string) iter.Seq2[FileListResponse, error] {
	return flatList(l.root, prefix, l.root, func(dir string) ([]dirEntry, error) {
		entries, err := os.ReadDir(filepath.FromSlash(dir))
		if err != nil {
			return nil, err
		}
		res := make([]dirEntry, 0, len(entries))
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			res = append(res, dirEntry{
				name: entry.Name(),
				dir:  entry.IsDir(),
				file: info.Mode().IsRegular(),
				raw:  info,
			})
		}
		return res, nil
	})
}

func writeLocal(full string, content io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return 0, err
	}
	f, err := os.Create(full)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, content)
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}
