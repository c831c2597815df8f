package argocd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/argoproj/argo-cd/v2/pkg/apiclient"
	"github.com/iamhalje/argo-appsets/internal/buildinfo"
	"github.com/iamhalje/argo-appsets/internal/models"
	emptypb "google.golang.org/protobuf/types/known/emptypb"
)

type ServerVersion struct {
	Raw   string
	Major int
}

type versionHTTPResponse struct {
	Version string `json:"Version"`
}

// DetectServerVersion asks the version service and falls back to GET /api/version.
func (a *GRPCAPI) DetectServerVersion(ctx context.Context) (ServerVersion, error) {
	cluster := a.cluster
	ac, err := apiclient.NewClient(a.clientOptions())
	if err != nil {
		if v, httpErr := detectServerVersionHTTP(ctx, cluster); httpErr == nil {
			return v, nil
		}
		return ServerVersion{}, fmt.Errorf("%s: create argocd client: %w", cluster.ContextName, err)
	}

	closer, c, err := ac.NewVersionClient()
	if err != nil {
		if v, httpErr := detectServerVersionHTTP(ctx, cluster); httpErr == nil {
			return v, nil
		}
		return ServerVersion{}, fmt.Errorf("%s: create version client: %w", cluster.ContextName, err)
	}
	defer func() { _ = closer.Close() }()

	resp, err := c.Version(ctx, &emptypb.Empty{})
	if err != nil {
		if v, httpErr := detectServerVersionHTTP(ctx, cluster); httpErr == nil {
			return v, nil
		}
		return ServerVersion{}, fmt.Errorf("%s: get server version: %w", cluster.ContextName, err)
	}

	raw := strings.TrimSpace(resp.GetVersion())
	return ServerVersion{Raw: raw, Major: parseMajor(raw)}, nil
}

func parseMajor(v string) int {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	if v == "" {
		return 0
	}
	parts := strings.Split(v, ".")
	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func detectServerVersionHTTP(ctx context.Context, cluster models.Cluster) (ServerVersion, error) {
	var lastErr error
	for _, scheme := range []string{"https", "http"} {
		u := BaseURL(cluster, scheme) + "/api/version"
		v, err := httpGetVersion(ctx, cluster, u)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return ServerVersion{}, fmt.Errorf("%s: http version detection failed: %w", cluster.ContextName, lastErr)
}

// BaseURL builds the REST root of the server, honoring the grpc-web root path.
func BaseURL(cluster models.Cluster, scheme string) string {
	prefix := strings.Trim(strings.TrimSpace(cluster.GRPCWebRootPath), "/")
	base := scheme + "://" + strings.TrimSpace(cluster.Server)
	if prefix == "" || prefix == "." {
		return base
	}
	return base + "/" + prefix
}

// HTTPClient returns a client honoring the context's insecure flag.
func HTTPClient(cluster models.Cluster) *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cluster.Insecure}, //nolint:gosec
	}
	return &http.Client{Transport: transport}
}

func httpGetVersion(ctx context.Context, cluster models.Cluster, url string) (ServerVersion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ServerVersion{}, err
	}
	if token := strings.TrimSpace(cluster.AuthToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := HTTPClient(cluster).Do(req)
	if err != nil {
		return ServerVersion{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = resp.Status
		}
		return ServerVersion{}, fmt.Errorf("GET %s: %s", url, msg)
	}

	var out versionHTTPResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ServerVersion{}, fmt.Errorf("GET %s: decode: %w", url, err)
	}

	raw := strings.TrimSpace(out.Version)
	return ServerVersion{Raw: raw, Major: parseMajor(raw)}, nil
}
