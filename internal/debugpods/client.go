package debugpods

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/iamhalje/argo-appsets/internal/argocd"
	"github.com/iamhalje/argo-appsets/internal/buildinfo"
	"github.com/iamhalje/argo-appsets/internal/models"

	corev1 "k8s.io/api/core/v1"
)

const (
	basePath = "/extensions/debugpods"

	applicationHeader = "Argocd-Application-Name"
	applicationValue  = "argocd:argocd-debug-pod-extension"
	projectHeader     = "Argocd-Project-Name"
	projectValue      = "default"
)

type Client struct {
	cluster models.Cluster
	baseURL string
	http    *http.Client
	retry   argocd.RetryPolicy
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithBaseURL(u string) Option {
	return func(cl *Client) { cl.baseURL = strings.TrimRight(u, "/") }
}

func WithRetryPolicy(p argocd.RetryPolicy) Option {
	return func(cl *Client) { cl.retry = p }
}

func NewClient(cluster models.Cluster, opts ...Option) *Client {
	c := &Client{
		cluster: cluster,
		baseURL: argocd.BaseURL(cluster, "https"),
		http:    argocd.HTTPClient(cluster),
		retry:   argocd.DefaultRetryPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) List(ctx context.Context) ([]DebugPod, error) {
	return argocd.Retry(ctx, c.retry, func() ([]DebugPod, error) {
		var out []DebugPod
		if err := c.doJSON(ctx, http.MethodGet, "/debug_pods", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

type createRequest struct {
	Cluster         string     `json:"cluster"`
	OriginalPodName string     `json:"originalPodName"`
	ApplicationName string     `json:"applicationName"`
	Pod             corev1.Pod `json:"pod"`
}

// Create asks the extension to spawn a debug copy of pod.
func (c *Client) Create(ctx context.Context, cluster, originalPod, application string, pod corev1.Pod) (DebugPod, error) {
	return argocd.Retry(ctx, c.retry, func() (DebugPod, error) {
		var out DebugPod
		body := createRequest{Cluster: cluster, OriginalPodName: originalPod, ApplicationName: application, Pod: pod}
		if err := c.doJSON(ctx, http.MethodPost, "/debug_pod", body, &out); err != nil {
			return DebugPod{}, err
		}
		return out, nil
	})
}

type deleteRequest struct {
	Cluster string `json:"cluster"`
	Pod     string `json:"pod"`
}

func (c *Client) Delete(ctx context.Context, cluster, pod string) error {
	_, err := argocd.Retry(ctx, c.retry, func() (struct{}, error) {
		return struct{}{}, c.doJSON(ctx, http.MethodDelete, "/debug_pod", deleteRequest{Cluster: cluster, Pod: pod}, nil)
	})
	return err
}

// Logs streams container log lines until the stream ends, fn fails or ctx is done.
func (c *Client) Logs(ctx context.Context, cluster, namespace, pod, container string, fn func(string) error) error {
	q := url.Values{}
	q.Set("container", container)
	q.Set("namespace", namespace)
	q.Set("pod", pod)
	q.Set("cluster", cluster)
	return c.stream(ctx, "/logs?"+q.Encode(), fn)
}

// Events streams kubernetes events of a debug pod.
func (c *Client) Events(ctx context.Context, cluster, namespace, pod string, fn func(corev1.Event) error) error {
	q := url.Values{}
	q.Set("namespace", namespace)
	q.Set("pod", pod)
	q.Set("cluster", cluster)
	return c.stream(ctx, "/events?"+q.Encode(), func(data string) error {
		var ev corev1.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		return fn(ev)
	})
}

func (c *Client) stream(ctx context.Context, path string, fn func(string) error) error {
	body, err := argocd.Retry(ctx, c.retry, func() (io.ReadCloser, error) {
		resp, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = body.Close()
	}()
	return ReadEvents(body, fn)
}

// ReadEvents calls fn with the payload of every server-sent "data:" line.
func ReadEvents(r io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		if err := fn(strings.TrimPrefix(data, " ")); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

// do returns the response only for 2xx statuses; the caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	u := c.baseURL + basePath + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(applicationHeader, applicationValue)
	req.Header.Set(projectHeader, projectValue)
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(c.cluster.AuthToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		req.AddCookie(&http.Cookie{Name: "argocd.token", Value: token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s %s", argocd.ErrUnauthorized, method, path)
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = resp.Status
	}
	return nil, fmt.Errorf("%s %s: %s", method, path, msg)
}
