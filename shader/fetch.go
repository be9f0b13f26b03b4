// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package shader

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/gogpu/life"
)

//go:embed shaders/*.wgsl
var embedded embed.FS

// Extension is appended to shader names by every fetcher.
const Extension = ".wgsl"

// DefaultBaseURL is where the development server publishes shaders.
const DefaultBaseURL = "http://localhost:8080/src/shaders"

// Fetcher retrieves shader source text by name.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, name string) (string, error)

// Fetch calls f(ctx, name).
func (f FetcherFunc) Fetch(ctx context.Context, name string) (string, error) { return f(ctx, name) }

// HTTPFetcher fetches <BaseURL>/<name>.wgsl over HTTP.
type HTTPFetcher struct {
	// BaseURL is the directory URL without a trailing slash.
	BaseURL string

	// Client is used for requests. If nil, http.DefaultClient is used.
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher rooted at baseURL.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// Fetch implements Fetcher. A non-2xx response fails with a
// *life.ShaderFetchError carrying the status code and reason; a transport
// failure is reported as 503 Service Unavailable with the cause attached.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) (string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimSuffix(f.BaseURL, "/") + "/" + name + Extension

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", &life.ShaderFetchError{Name: name, StatusCode: http.StatusBadRequest, Status: "Bad Request", Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &life.ShaderFetchError{
			Name:       name,
			StatusCode: http.StatusServiceUnavailable,
			Status:     http.StatusText(http.StatusServiceUnavailable),
			Err:        err,
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &life.ShaderFetchError{Name: name, StatusCode: resp.StatusCode, Status: reason(resp)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &life.ShaderFetchError{Name: name, StatusCode: resp.StatusCode, Status: reason(resp), Err: err}
	}
	life.Logger().Debug("shader fetched", "name", name, "url", url, "bytes", len(body))
	return string(body), nil
}

// reason returns the reason phrase of resp.Status ("404 Not Found" -> "Not Found").
func reason(resp *http.Response) string {
	if r, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok && r != "" {
		return r
	}
	return http.StatusText(resp.StatusCode)
}

// FSFetcher reads <name>.wgsl from a file system.
type FSFetcher struct {
	FS fs.FS
}

// Fetch implements Fetcher. A missing file maps to 404 Not Found, any other
// read failure to 500 Internal Server Error.
func (f FSFetcher) Fetch(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := fs.ReadFile(f.FS, name+Extension)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			code = http.StatusNotFound
		}
		return "", &life.ShaderFetchError{Name: name, StatusCode: code, Status: http.StatusText(code), Err: err}
	}
	return string(b), nil
}

// Embedded returns a fetcher over the shaders compiled into the binary.
func Embedded() Fetcher {
	sub, err := fs.Sub(embedded, "shaders")
	if err != nil {
		panic(fmt.Sprintf("shader: embedded shaders missing: %v", err))
	}
	return FSFetcher{FS: sub}
}
