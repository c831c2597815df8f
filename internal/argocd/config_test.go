package argocd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iamhalje/argo-appsets/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
contexts:
  - name: prod
    server: argocd.example.com
    user: prod-user
  - name: dev
    server: https://argocd-dev.example.com:443
    user: dev-user
    insecure: true
current-context: prod
servers:
  - server: argocd.example.com
    grpc-web-root-path: /argo
  - server: argocd-dev.example.com:443
    grpc-web: true
users:
  - name: prod-user
    auth-token: prod-token
  - name: dev-user
    auth-token: dev-token
`

func TestParseConfig(t *testing.T) {
	clusters, current, err := parseConfig("config", []byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "prod", current)
	assert.Equal(t, []models.Cluster{
		{ContextName: "prod", Server: "argocd.example.com", AuthToken: "prod-token", GRPCWeb: true, GRPCWebRootPath: "/argo"},
		{ContextName: "dev", Server: "argocd-dev.example.com:443", Insecure: true, AuthToken: "dev-token", GRPCWeb: true},
	}, clusters)
}

func TestParseConfigErrors(t *testing.T) {
	_, _, err := parseConfig("config", []byte("contexts: ["))
	assert.ErrorContains(t, err, "parse argocd config")

	_, _, err = parseConfig("config", []byte("current-context: prod\n"))
	assert.EqualError(t, err, "argocd config: no contexts found")

	_, _, err = parseConfig("config", []byte("contexts:\n  - server: x\n"))
	assert.EqualError(t, err, "argocd config: contexts parsed but none usable")
}

func TestLoadCluster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	c, err := LoadCluster(path, "")
	require.NoError(t, err)
	assert.Equal(t, "prod", c.ContextName)

	c, err = LoadCluster(path, "dev")
	require.NoError(t, err)
	assert.Equal(t, "dev-token", c.AuthToken)

	_, err = LoadCluster(path, "staging")
	assert.EqualError(t, err, `argocd config: context "staging" not found`)

	_, err = LoadCluster(filepath.Join(t.TempDir(), "missing"), "")
	assert.ErrorContains(t, err, "read argocd config")
}

func TestBaseURL(t *testing.T) {
	c := models.Cluster{Server: "argocd.example.com"}
	assert.Equal(t, "https://argocd.example.com", BaseURL(c, "https"))

	c.GRPCWebRootPath = "/"
	assert.Equal(t, "https://argocd.example.com", BaseURL(c, "https"))

	c.GRPCWebRootPath = "/argo/"
	assert.Equal(t, "http://argocd.example.com/argo", BaseURL(c, "http"))
}

func TestParseMajor(t *testing.T) {
	assert.Equal(t, 2, parseMajor("v2.13.3+abc"))
	assert.Equal(t, 3, parseMajor("3.0.0"))
	assert.Equal(t, 0, parseMajor(""))
	assert.Equal(t, 0, parseMajor("dev"))
}
