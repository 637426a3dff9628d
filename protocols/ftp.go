package protocols

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"net"
	"path"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
)

type FTPConfig struct {
	Root     string
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration
}

var _ Storage = (*FTPStorage)(nil)

// FTPStorage is a Storage over a single FTP control connection. While a
// stream from OpenReadStream is open no other call can be made.
type FTPStorage struct {
	cfg  FTPConfig
	conn *ftp.ServerConn
}

func NewFTPStorage(cfg FTPConfig) *FTPStorage {
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &FTPStorage{cfg: cfg}
}

func (f *FTPStorage) Init() error {
	addr := net.JoinHostPort(f.cfg.Host, strconv.Itoa(f.cfg.Port))
	c, err := ftp.Dial(addr, ftp.DialWithTimeout(f.cfg.Timeout))
	if err != nil {
		return NewUnknownError(errorName(err), f.cfg.Host, err)
	}

	if err := c.Login(f.cfg.User, f.cfg.Password); err != nil {
		c.Quit()
		return NewUnknownError(errorName(err), f.cfg.Host, err)
	}
	f.conn = c
	return nil
}

func (f *FTPStorage) Close() error {
	if f.conn != nil {
		return f.conn.Quit()
	}
	return nil
}

func (f *FTPStorage) session() (*ftp.ServerConn, error) {
	if f.conn == nil {
		return nil, NewUnknownError("NotConnected", f.cfg.Host, errNotConnected)
	}
	return f.conn, nil
}

// Copy downloads src fully before uploading it, as the control connection
// cannot carry two transfers at once.
func (f *FTPStorage) Copy(src, dest string) (*Response, error) {
	res, err := f.ReadBinary(src)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(dest, bytes.NewReader(res.Content)); err != nil {
		return nil, err
	}
	return &Response{Raw: int64(len(res.Content))}, nil
}

func (f *FTPStorage) Delete(location string) (*DeleteResponse, error) {
	conn, err := f.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(f.cfg.Root, location)
	if err != nil {
		return nil, err
	}
	if err := conn.Delete(full); err != nil {
		return nil, wrapError(err, location, f.cfg.Host)
	}
	return &DeleteResponse{Raw: full}, nil
}

func (f *FTPStorage) Exists(location string) (*ExistsResponse, error) {
	entry, err := f.entry(location)
	if err != nil {
		if KindOf(err) == KindFileNotFound {
			return &ExistsResponse{Exists: false, Raw: err}, nil
		}
		return nil, err
	}
	return &ExistsResponse{Exists: true, Raw: entry}, nil
}

func (f *FTPStorage) ReadText(location, encoding string) (*ContentResponse[string], error) {
	return readText(f, location, encoding)
}

func (f *FTPStorage) ReadBinary(location string) (*ContentResponse[[]byte], error) {
	conn, err := f.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(f.cfg.Root, location)
	if err != nil {
		return nil, err
	}

	r, err := conn.Retr(full)
	if err != nil {
		return nil, wrapError(err, location, f.cfg.Host)
	}
	content, err := io.ReadAll(r)
	if cerr := r.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, wrapError(err, location, f.cfg.Host)
	}
	return &ContentResponse[[]byte]{Content: content, Raw: full}, nil
}

func (f *FTPStorage) Stat(location string) (*StatResponse, error) {
	entry, err := f.entry(location)
	if err != nil {
		return nil, err
	}
	return &StatResponse{Size: int64(entry.Size), Modified: entry.Time, Raw: entry}, nil
}

// entry finds location by listing its parent; LIST is the only metadata
// command every server answers.
func (f *FTPStorage) entry(location string) (*ftp.Entry, error) {
	conn, err := f.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(f.cfg.Root, location)
	if err != nil {
		return nil, err
	}

	entries, err := conn.List(path.Dir(full))
	if err != nil {
		return nil, wrapError(err, location, f.cfg.Host)
	}
	name := path.Base(full)
	for _, entry := range entries {
		if entry.Name == name {
			return entry, nil
		}
	}
	return nil, NewFileNotFoundError(location, fmt.Errorf("%s: %w", full, fs.ErrNotExist))
}

func (f *FTPStorage) OpenReadStream(location string) (io.ReadCloser, error) {
	conn, err := f.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(f.cfg.Root, location)
	if err != nil {
		return nil, err
	}

	r, err := conn.Retr(full)
	if err != nil {
		return nil, wrapError(err, location, f.cfg.Host)
	}
	return pipeStream(r, func(err error) error {
		return wrapError(err, location, f.cfg.Host)
	}), nil
}

func (f *FTPStorage) Move(src, dest string) (*Response, error) {
	return move(f, src, dest)
}

func (f *FTPStorage) Write(location string, content io.Reader) (*Response, error) {
	conn, err := f.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(f.cfg.Root, location)
	if err != nil {
		return nil, err
	}

	f.mkdirAll(conn, path.Dir(full))

	counter := &readCounter{r: content}
	if err := conn.Stor(full, counter); err != nil {
		return nil, wrapError(err, location, f.cfg.Host)
	}
	return &Response{Raw: counter.n}, nil
}

// mkdirAll creates every missing directory from the root down. FTP has no
// recursive mkdir, and MKD on an existing directory fails, so errors are
// ignored and left for STOR to report.
func (f *FTPStorage) mkdirAll(conn *ftp.ServerConn, dir string) {
	var dirs []string
	for curr := dir; curr != "." && curr != "/" && curr != ""; curr = path.Dir(curr) {
		dirs = append(dirs, curr)
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		conn.MakeDir(dirs[i])
	}
}

func (f *FTPStorage) ListAll(prefix string) iter.Seq2[FileListResponse, error] {
	return flatList(f.cfg.Root, prefix, f.cfg.Host, func(dir string) ([]dirEntry, error) {
		conn, err := f.session()
		if err != nil {
			return nil, err
		}
		entries, err := conn.List(dir)
		if err != nil {
			return nil, err
		}
		res := make([]dirEntry, 0, len(entries))
		for _, entry := range entries {
			res = append(res, dirEntry{
				name: entry.Name,
				dir:  entry.Type == ftp.EntryTypeFolder,
				file: entry.Type == ftp.EntryTypeFile,
				raw:  entry,
			})
		}
		return res, nil
	})
}

type readCounter struct {
	r io.Reader
	n int64
}

func (c *readCounter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
