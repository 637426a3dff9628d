package protocols

import (
	"context"
	"io"
	"iter"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint    string
	AccessKeyID string
	SecretKey   string
	Token       string
	Bucket      string
	Root        string // key prefix inside the bucket
	Region      string
	Secure      bool
}

var _ Storage = (*MinioStorage)(nil)

// MinioStorage is a Storage over an S3 compatible bucket. Directories are
// the "/" separated common prefixes of object keys.
type MinioStorage struct {
	ctx    context.Context
	cfg    MinioConfig
	client *minio.Client
}

func NewMinioStorage(ctx context.Context, cfg MinioConfig) *MinioStorage {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return &MinioStorage{ctx: ctx, cfg: cfg}
}

func (s *MinioStorage) Init() error {
	client, err := minio.New(s.cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.cfg.AccessKeyID, s.cfg.SecretKey, s.cfg.Token),
		Region: s.cfg.Region,
		Secure: s.cfg.Secure,
	})
	if err != nil {
		return NewUnknownError(errorName(err), s.cfg.Endpoint, err)
	}
	s.client = client
	return nil
}

func (s *MinioStorage) Close() error {
	return nil
}

func (s *MinioStorage) session() (*minio.Client, error) {
	if s.client == nil {
		return nil, NewUnknownError("NotConnected", s.cfg.Endpoint, errNotConnected)
	}
	return s.client, nil
}

func (s *MinioStorage) root() string {
	return joinPath("/", s.cfg.Root)
}

func (s *MinioStorage) key(p string) (string, error) {
	full, err := resolvePath(s.root(), p)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(full, "/"), nil
}

func (s *MinioStorage) Copy(src, dest string) (*Response, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	srcKey, err := s.key(src)
	if err != nil {
		return nil, err
	}
	destKey, err := s.key(dest)
	if err != nil {
		return nil, err
	}

	// S3 rejects a copy onto itself unless metadata changes.
	if srcKey == destKey {
		info, err := client.StatObject(s.ctx, s.cfg.Bucket, srcKey, minio.StatObjectOptions{})
		if err != nil {
			return nil, wrapError(err, src, s.cfg.Bucket)
		}
		return &Response{Raw: info}, nil
	}

	info, err := client.CopyObject(s.ctx,
		minio.CopyDestOptions{Bucket: s.cfg.Bucket, Object: destKey},
		minio.CopySrcOptions{Bucket: s.cfg.Bucket, Object: srcKey},
	)
	if err != nil {
		return nil, wrapError(err, src, s.cfg.Bucket)
	}
	return &Response{Raw: info}, nil
}

func (s *MinioStorage) Delete(location string) (*DeleteResponse, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	key, err := s.key(location)
	if err != nil {
		return nil, err
	}
	if err := client.RemoveObject(s.ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return nil, wrapError(err, location, s.cfg.Bucket)
	}
	return &DeleteResponse{Raw: key}, nil
}

func (s *MinioStorage) Exists(location string) (*ExistsResponse, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	key, err := s.key(location)
	if err != nil {
		return nil, err
	}

	info, err := client.StatObject(s.ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if kind, _ := Classify(err); kind == KindFileNotFound {
			return &ExistsResponse{Exists: false, Raw: err}, nil
		}
		return nil, wrapError(err, location, s.cfg.Bucket)
	}
	return &ExistsResponse{Exists: true, Raw: info}, nil
}

func (s *MinioStorage) ReadText(location, encoding string) (*ContentResponse[string], error) {
	return readText(s, location, encoding)
}

func (s *MinioStorage) ReadBinary(location string) (*ContentResponse[[]byte], error) {
	obj, info, err := s.open(location)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, wrapError(err, location, s.cfg.Bucket)
	}
	return &ContentResponse[[]byte]{Content: content, Raw: info}, nil
}

// open fetches the object and stats it, since GetObject only reports a
// missing key on first read.
func (s *MinioStorage) open(location string) (*minio.Object, minio.ObjectInfo, error) {
	client, err := s.session()
	if err != nil {
		return nil, minio.ObjectInfo{}, err
	}
	key, err := s.key(location)
	if err != nil {
		return nil, minio.ObjectInfo{}, err
	}

	obj, err := client.GetObject(s.ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minio.ObjectInfo{}, wrapError(err, location, s.cfg.Bucket)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, minio.ObjectInfo{}, wrapError(err, location, s.cfg.Bucket)
	}
	return obj, info, nil
}

func (s *MinioStorage) Stat(location string) (*StatResponse, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	key, err := s.key(location)
	if err != nil {
		return nil, err
	}

	info, err := client.StatObject(s.ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, wrapError(err, location, s.cfg.Bucket)
	}
	return &StatResponse{Size: info.Size, Modified: info.LastModified, Raw: info}, nil
}

func (s *MinioStorage) OpenReadStream(location string) (io.ReadCloser, error) {
	obj, _, err := s.open(location)
	if err != nil {
		return nil, err
	}
	return pipeStream(obj, func(err error) error {
		return wrapError(err, location, s.cfg.Bucket)
	}), nil
}

func (s *MinioStorage) Move(src, dest string) (*Response, error) {
	return move(s, src, dest)
}

func (s *MinioStorage) Write(location string, content io.Reader) (*Response, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	key, err := s.key(location)
	if err != nil {
		return nil, err
	}

	info, err := client.PutObject(s.ctx, s.cfg.Bucket, key, content, -1, minio.PutObjectOptions{})
	if err != nil {
		return nil, wrapError(err, location, s.cfg.Bucket)
	}
	return &Response{Raw: info}, nil
}

func (s *MinioStorage) ListAll(prefix string) iter.Seq2[FileListResponse, error] {
	return flatList(s.root(), prefix, s.cfg.Bucket, s.list)
}

func (s *MinioStorage) list(dir string) ([]dirEntry, error) {
	client, err := s.session()
	if err != nil {
		return nil, err
	}
	keyDir := strings.TrimPrefix(dir, "/")

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	var entries []dirEntry
	for obj := range client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{Prefix: keyDir}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		isDir := strings.HasSuffix(obj.Key, "/")
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, keyDir), "/")
		if name == "" {
			continue
		}
		entries = append(entries, dirEntry{name: name, dir: isDir, file: !isDir, raw: obj})
	}
	return entries, nil
}
