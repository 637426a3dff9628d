//go:build integration

package protocols

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Passive ports are published one to one; the server announces them
// through EPSV and the client dials them on the control host.
const (
	ftpPassiveMin = 21100
	ftpPassiveMax = 21104
)

func startFTPServer(t *testing.T) FTPConfig {
	t.Helper()
	ctx := context.Background()

	ports := []string{"21/tcp"}
	for p := ftpPassiveMin; p <= ftpPassiveMax; p++ {
		ports = append(ports, fmt.Sprintf("%d:%d/tcp", p, p))
	}

	req := testcontainers.ContainerRequest{
		Image:        "delfer/alpine-ftp-server:latest",
		ExposedPorts: ports,
		Env: map[string]string{
			"USERS":    "ftpuser|ftppass",
			"MIN_PORT": fmt.Sprint(ftpPassiveMin),
			"MAX_PORT": fmt.Sprint(ftpPassiveMax),
		},
		WaitingFor: wait.ForListeningPort("21/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "21/tcp")
	require.NoError(t, err)

	return FTPConfig{
		Root:     "/",
		Host:     host,
		Port:     port.Int(),
		User:     "ftpuser",
		Password: "ftppass",
		Timeout:  10 * time.Second,
	}
}

func TestFTPIntegration(t *testing.T) {
	cfg := startFTPServer(t)

	s := NewFTPStorage(cfg)
	require.Eventually(t, func() bool { return s.Init() == nil }, 30*time.Second, time.Second)
	defer s.Close()

	checkStorage(t, s)

	_, err := s.Delete("contract/missing.txt")
	assert.Equal(t, KindFileNotFound, KindOf(err))

	_, err = s.OpenReadStream("contract/missing.txt")
	assert.Equal(t, KindFileNotFound, KindOf(err))

	bad := NewFTPStorage(FTPConfig{Host: cfg.Host, Port: cfg.Port, User: "ftpuser", Password: "wrong"})
	err = bad.Init()
	var unknown *UnknownError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "FTP_530", unknown.Name)
}
