package protocols

import (
	"errors"
	"io"
	"iter"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

var (
	errNotConnected = errors.New("sftp session not initialized")
	errNoAuth       = errors.New("no ssh authentication method configured")
)

// SFTPConfig describes one remote session. Root is prefixed to every path.
type SFTPConfig struct {
	Root                  string
	Host                  string
	Port                  int
	User                  string
	Password              string
	PrivateKey            string // PEM encoded, takes precedence over KeyPath
	KeyPath               string
	KnownHostsFile        string // defaults to ~/.ssh/known_hosts
	InsecureIgnoreHostKey bool
	Timeout               time.Duration // ssh handshake only
}

func (c SFTPConfig) withDefaults() SFTPConfig {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// sftpClient is the subset of *sftp.Client the storage calls.
type sftpClient interface {
	Open(path string) (*sftp.File, error)
	Create(path string) (*sftp.File, error)
	Remove(path string) error
	Stat(p string) (os.FileInfo, error)
	ReadDir(p string) ([]os.FileInfo, error)
	MkdirAll(path string) error
	Close() error
}

var _ Storage = (*SFTPStorage)(nil)

// SFTPStorage is a Storage backed by a single SFTP session. It does no
// locking of its own; concurrent calls share the session.
type SFTPStorage struct {
	cfg     SFTPConfig
	client  sftpClient
	driver  *sftp.Client
	sshConn *ssh.Client
}

func NewSFTPStorage(cfg SFTPConfig) *SFTPStorage {
	return &SFTPStorage{cfg: cfg.withDefaults()}
}

// NewSFTPStorageWithClient wraps an already established session. Init must
// not be called on the result.
func NewSFTPStorageWithClient(cfg SFTPConfig, client *sftp.Client) *SFTPStorage {
	return &SFTPStorage{cfg: cfg.withDefaults(), client: client, driver: client}
}

func (s *SFTPStorage) Init() error {
	auth, err := s.cfg.authMethods()
	if err != nil {
		return NewUnknownError(errorName(err), s.cfg.Host, err)
	}
	hostKeyCallback, err := s.cfg.hostKeyCallback()
	if err != nil {
		return NewUnknownError(errorName(err), s.cfg.Host, err)
	}

	config := &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.cfg.Timeout,
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return NewUnknownError(errorName(err), s.cfg.Host, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return NewUnknownError(errorName(err), s.cfg.Host, err)
	}
	s.sshConn = conn
	s.driver = client
	s.client = client
	return nil
}

func (s *SFTPStorage) Close() error {
	var err error
	if s.client != nil {
		err = s.client.Close()
	}
	if s.sshConn != nil {
		if cerr := s.sshConn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Driver returns the underlying client, nil before Init.
func (s *SFTPStorage) Driver() *sftp.Client {
	return s.driver
}

func (s *SFTPStorage) session() (sftpClient, error) {
	if s.client == nil {
		return nil, NewUnknownError("NotConnected", s.cfg.Host, errNotConnected)
	}
	return s.client, nil
}

func (s *SFTPStorage) Copy(src, dest string) (*Response, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	srcPath, err := resolvePath(s.cfg.Root, src)
	if err != nil {
		return nil, err
	}
	destPath, err := resolvePath(s.cfg.Root, dest)
	if err != nil {
		return nil, err
	}

	// Create would truncate the source before it is read.
	if samePath(srcPath, destPath) {
		if _, err := client.Stat(srcPath); err != nil {
			return nil, wrapError(err, src, s.cfg.Host)
		}
		return &Response{Raw: int64(0)}, nil
	}

	in, err := client.Open(srcPath)
	if err != nil {
		return nil, wrapError(err, src, s.cfg.Host)
	}
	defer in.Close()

	n, err := writeRemote(client, destPath, in)
	if err != nil {
		return nil, wrapError(err, src, s.cfg.Host)
	}
	return &Response{Raw: n}, nil
}

func (s *SFTPStorage) Delete(location string) (*DeleteResponse, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(s.cfg.Root, location)
	if err != nil {
		return nil, err
	}

	if err := client.Remove(full); err != nil {
		return nil, wrapError(err, location, s.cfg.Host)
	}
	return &DeleteResponse{Raw: full}, nil
}

func (s *SFTPStorage) Exists(location string) (*ExistsResponse, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(s.cfg.Root, location)
	if err != nil {
		return nil, err
	}

	info, err := client.Stat(full)
	if err != nil {
		if kind, _ := Classify(err); kind == KindFileNotFound {
			return &ExistsResponse{Exists: false, Raw: err}, nil
		}
		return nil, wrapError(err, location, s.cfg.Host)
	}
	return &ExistsResponse{Exists: true, Raw: info}, nil
}

func (s *SFTPStorage) ReadText(location, encoding string) (*ContentResponse[string], error) {
	return readText(s, location, encoding)
}

func (s *SFTPStorage) ReadBinary(location string) (*ContentResponse[[]byte], error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(s.cfg.Root, location)
	if err != nil {
		return nil, err
	}

	f, err := client.Open(full)
	if err != nil {
		return nil, wrapError(err, location, s.cfg.Host)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, wrapError(err, location, s.cfg.Host)
	}
	return &ContentResponse[[]byte]{Content: content, Raw: full}, nil
}

func (s *SFTPStorage) Stat(location string) (*StatResponse, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(s.cfg.Root, location)
	if err != nil {
		return nil, err
	}

	info, err := client.Stat(full)
	if err != nil {
		return nil, wrapError(err, location, s.cfg.Host)
	}
	return &StatResponse{
		Size:     info.Size(),
		Modified: info.ModTime(),
		Raw:      info,
	}, nil
}

func (s *SFTPStorage) OpenReadStream(location string) (io.ReadCloser, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(s.cfg.Root, location)
	if err != nil {
		return nil, err
	}

	f, err := client.Open(full)
	if err != nil {
		return nil, wrapError(err, location, s.cfg.Host)
	}
	return pipeStream(f, func(err error) error {
		return wrapError(err, location, s.cfg.Host)
	}), nil
}

func (s *SFTPStorage) Move(src, dest string) (*Response, error) {
	return move(s, src, dest)
}

// Write stores content at location, creating parent directories. It returns
// once the remote file is closed.
func (s *SFTPStorage) Write(location string, content io.Reader) (*Response, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	full, err := resolvePath(s.cfg.Root, location)
	if err != nil {
		return nil, err
	}

	n, err := writeRemote(client, full, content)
	if err != nil {
		return nil, wrapError(err, location, s.cfg.Host)
	}
	return &Response{Raw: n}, nil
}

func (s *SFTPStorage) ListAll(prefix string) iter.Seq2[FileListResponse, error] {
	return flatList(s.cfg.Root, prefix, s.cfg.Host, s.list)
}

func (s *SFTPStorage) list(dir string) ([]dirEntry, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	infos, err := client.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]dirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, dirEntry{
			name: info.Name(),
			dir:  info.IsDir(),
			file: info.Mode().IsRegular(),
			raw:  info,
		})
	}
	return entries, nil
}

func writeRemote(client sftpClient, full string, content io.Reader) (int64, error) {
	if dir := path.Dir(full); dir != "/" && dir != "." {
		if err := client.MkdirAll(dir); err != nil {
			return 0, err
		}
	}

	f, err := client.Create(full)
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

func (c SFTPConfig) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	keyData := []byte(c.PrivateKey)
	if len(keyData) == 0 && c.KeyPath != "" {
		data, err := os.ReadFile(expandPath(c.KeyPath))
		if err != nil {
			return nil, err
		}
		keyData = data
	}
	if len(keyData) > 0 {
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}

	if len(methods) == 0 {
		return nil, errNoAuth
	}
	return methods, nil
}

func (c SFTPConfig) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	file := c.KnownHostsFile
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	return knownhosts.New(expandPath(file))
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
