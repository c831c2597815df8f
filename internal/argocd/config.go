package argocd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/iamhalje/argo-appsets/internal/models"

	"sigs.k8s.io/yaml"
)

const DefaultConfigRelativePath = ".config/argocd/config"

// DefaultConfigPath resolves ~/.config/argocd/config, falling back to a relative path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.FromSlash(DefaultConfigRelativePath)
	}
	return filepath.Join(home, filepath.FromSlash(DefaultConfigRelativePath))
}

// LoadCluster reads the argocd CLI config and returns the requested context.
// An empty contextName selects current-context.
func LoadCluster(path, contextName string) (models.Cluster, error) {
	clusters, current, err := LoadClustersFromFile(path)
	if err != nil {
		return models.Cluster{}, err
	}
	want := strings.TrimSpace(contextName)
	if want == "" {
		want = current
	}
	if want == "" {
		if len(clusters) == 1 {
			return clusters[0], nil
		}
		return models.Cluster{}, errors.New("argocd config: no current-context set, pass --context")
	}
	for _, c := range clusters {
		if c.ContextName == want {
			return c, nil
		}
	}
	return models.Cluster{}, fmt.Errorf("argocd config: context %q not found", want)
}

// LoadClustersFromFile returns every usable context and the name of current-context.
func LoadClustersFromFile(path string) ([]models.Cluster, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read argocd config %q: %w", path, err)
	}
	return parseConfig(path, b)
}

func parseConfig(path string, b []byte) ([]models.Cluster, string, error) {
	var cfg localConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, "", fmt.Errorf("parse argocd config %q: %w", path, err)
	}

	if len(cfg.Contexts) == 0 {
		return nil, "", errors.New("argocd config: no contexts found")
	}

	users := make(map[string]localUser, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Name] = u
	}

	servers := map[string]localServer{}
	for _, s := range cfg.Servers {
		key := normalizeServer(s.Server)
		if key == "" {
			continue
		}
		servers[key] = s
	}

	clusters := make([]models.Cluster, 0, len(cfg.Contexts))
	for _, c := range cfg.Contexts {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}

		u := users[c.User]
		server := normalizeServer(c.Server)
		s := servers[server]
		grpcWebRoot := strings.TrimSpace(s.GRPCWebRootPath)
		clusters = append(clusters, models.Cluster{
			ContextName: c.Name,
			Server:      server,
			Insecure:    c.Insecure || s.Insecure,
			AuthToken:   u.AuthToken,
			GRPCWeb:     grpcWebRoot != "" || s.GRPCWeb,
			// most setups use "/" for grpc-web root.
			GRPCWebRootPath: grpcWebRoot,
		})
	}

	if len(clusters) == 0 {
		return nil, "", errors.New("argocd config: contexts parsed but none usable")
	}
	return clusters, strings.TrimSpace(cfg.CurrentContext), nil
}

// normalizeServer turns "https://argocd:443" or "http://argocd:443" into "argocd:443".
func normalizeServer(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return raw
}

type localConfig struct {
	CurrentContext string         `json:"current-context"`
	Contexts       []localContext `json:"contexts"`
	Servers        []localServer  `json:"servers"`
	Users          []localUser    `json:"users"`
}

type localContext struct {
	Name     string `json:"name"`
	Server   string `json:"server"`
	User     string `json:"user"`
	Insecure bool   `json:"insecure"`
}

type localUser struct {
	Name      string `json:"name"`
	AuthToken string `json:"auth-token"`
}

type localServer struct {
	Server          string `json:"server"`
	GRPCWeb         bool   `json:"grpc-web"`
	GRPCWebRootPath string `json:"grpc-web-root-path"`
	Insecure        bool   `json:"insecure"`
}
