package core

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"filedrive/config"
	"filedrive/protocols"
)

// NewStorage builds the driver an endpoint describes and initializes it.
func NewStorage(ep config.Endpoint) (protocols.Storage, error) {
	s, err := newStorage(ep)
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func newStorage(ep config.Endpoint) (protocols.Storage, error) {
	switch ep.Type {
	case "local":
		return protocols.NewLocalStorage(ep.Path), nil
	case "sftp":
		if ep.Auth == nil {
			return nil, fmt.Errorf("auth required for sftp")
		}
		return protocols.NewSFTPStorage(protocols.SFTPConfig{
			Root:                  ep.Path,
			Host:                  ep.Auth.Host,
			Port:                  ep.Auth.Port,
			User:                  ep.Auth.User,
			Password:              ep.Auth.Password,
			KeyPath:               ep.Auth.KeyPath,
			KnownHostsFile:        ep.Auth.KnownHosts,
			InsecureIgnoreHostKey: ep.Auth.InsecureHostKey,
		}), nil
	case "ftp":
		if ep.Auth == nil {
			return nil, fmt.Errorf("auth required for ftp")
		}
		return protocols.NewFTPStorage(protocols.FTPConfig{
			Root:     ep.Path,
			Host:     ep.Auth.Host,
			Port:     ep.Auth.Port,
			User:     ep.Auth.User,
			Password: ep.Auth.Password,
		}), nil
	case "minio":
		if ep.Auth == nil {
			return nil, fmt.Errorf("auth required for minio")
		}
		endpoint := ep.Auth.Host
		if ep.Auth.Port != 0 {
			endpoint = net.JoinHostPort(ep.Auth.Host, strconv.Itoa(ep.Auth.Port))
		}
		return protocols.NewMinioStorage(context.Background(), protocols.MinioConfig{
			Endpoint:    endpoint,
			AccessKeyID: ep.Auth.User,
			SecretKey:   ep.Auth.Password,
			Bucket:      ep.Auth.Bucket,
			Root:        ep.Path,
			Region:      ep.Auth.Region,
			Secure:      ep.Auth.Secure,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", ep.Type)
	}
}
