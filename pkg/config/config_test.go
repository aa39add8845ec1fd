package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxwell-dev/maxwell-master/pkg/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfig = `
http_port: 8080
store:
  path: data
unhealthy_threshold: 10
stale_threshold: 60
frontends:
  - domain: f1.example
    public_ip: 1.2.3.4
    private_ip: 10.0.0.1
    http_port: 80
    https_port: 443
backends:
  - private_ip: 10.0.1.1
    http_port: 8080
  - private_ip: 10.0.1.2
    http_port: 8080
`

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.HTTPPort)
	require.Len(t, cfg.Frontends, 1)
	require.Len(t, cfg.Backends, 2)
	require.Equal(t, "10.0.0.1:80", cfg.Frontends[0].ID())
	require.Equal(t, "10.0.1.1:8080", cfg.Backends[0].ID())
	require.DirExists(t, cfg.Store.Path)
}

func TestLoadRejectsStaleBelowUnhealthy(t *testing.T) {
	path := writeConfig(t, `
http_port: 8080
store:
  path: data
unhealthy_threshold: 60
stale_threshold: 10
backends:
  - private_ip: 10.0.1.1
    http_port: 8080
`)
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNoBackends(t *testing.T) {
	path := writeConfig(t, `
http_port: 8080
store:
  path: data
`)
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsHTTPSWithoutCert(t *testing.T) {
	path := writeConfig(t, `
https_port: 8443
store:
  path: data
backends:
  - private_ip: 10.0.1.1
    http_port: 8080
`)
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateBackendID(t *testing.T) {
	path := writeConfig(t, `
http_port: 8080
store:
  path: data
backends:
  - private_ip: 10.0.1.1
    http_port: 8080
  - private_ip: 10.0.1.1
    http_port: 8080
`)
	_, err := config.Load(path)
	require.Error(t, err)
}
