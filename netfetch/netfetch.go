// Package netfetch implements the sandbox's gated network access: a
// script may only reach hosts the embedder has explicitly allow-listed,
// and only over the methods the embedder permits (spec.md §6 External
// Interfaces).
//
// Grounded on `original_source/src/network/mod.rs`'s public surface
// (NetworkConfig, NetworkError, FetchResult, HttpMethod, is_url_allowed,
// secure_fetch), reimplemented against net/http instead of a hand-rolled
// client.
package netfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Method is an allowed HTTP verb, mirroring the original's HttpMethod
// enum.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
	MethodHead Method = "HEAD"
)

// Request is one outbound fetch request.
type Request struct {
	Method  Method
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the result of a successful fetch.
type Response struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
}

// Error reports a request rejected by policy (host not allow-listed,
// method disallowed) or a lower-level transport failure, grounded on
// NetworkError's role in the original.
type Error struct {
	URL string
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("netfetch: %s: %s", e.URL, e.Msg) }

// AllowList gates which hosts a script may reach, and whether any network
// access is permitted at all. Grounded on
// `original_source/src/network/mod.rs`'s allow_list module.
type AllowList struct {
	// Patterns are host-matching globs, e.g. "*.example.com" or
	// "api.example.com". An empty list denies every request.
	Patterns []string
	// AllowSubdomains makes a bare "example.com" entry also match any of
	// its subdomains, matching typical allow-list ergonomics.
	AllowSubdomains bool
}

// Allowed reports whether host is permitted by the list.
func (a AllowList) Allowed(host string) bool {
	host = strings.ToLower(host)
	for _, pat := range a.Patterns {
		pat = strings.ToLower(pat)
		if pat == host {
			return true
		}
		if strings.HasPrefix(pat, "*.") {
			suffix := pat[1:] // ".example.com"
			if strings.HasSuffix(host, suffix) {
				return true
			}
			continue
		}
		if a.AllowSubdomains && strings.HasSuffix(host, "."+pat) {
			return true
		}
	}
	return false
}

// Config bundles the policy plus transport limits for a Fetcher.
type Config struct {
	AllowList      AllowList
	AllowedMethods []Method
	MaxBodyBytes   int64
	Timeout        time.Duration
}

func (c Config) methodAllowed(m Method) bool {
	if len(c.AllowedMethods) == 0 {
		return m == MethodGet || m == MethodHead
	}
	for _, am := range c.AllowedMethods {
		if am == m {
			return true
		}
	}
	return false
}

// Fetcher performs policy-checked HTTP requests on behalf of sandboxed
// scripts (wired into command.Context.FetchFn, which the interpreter
// hands to the commands it runs).
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// New builds a Fetcher that enforces cfg on every request.
func New(cfg Config) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// Do runs one request, rejecting it up front if policy disallows the
// host or method.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, &Error{URL: req.URL, Msg: "invalid URL"}
	}
	if !f.cfg.methodAllowed(req.Method) {
		return nil, &Error{URL: req.URL, Msg: fmt.Sprintf("method %s not permitted", req.Method)}
	}
	if !f.cfg.AllowList.Allowed(u.Hostname()) {
		return nil, &Error{URL: req.URL, Msg: fmt.Sprintf("host %q not in allow list", u.Hostname())}
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &Error{URL: req.URL, Msg: err.Error()}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &Error{URL: req.URL, Msg: err.Error()}
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if f.cfg.MaxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &Error{URL: req.URL, Msg: err.Error()}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// FetchFn adapts f.Do to the simpler func signature command.Context uses;
// an interpreter given a Fetcher installs it as the FetchFn of every
// command.Context it builds.
func (f *Fetcher) FetchFn(ctx context.Context, method, rawURL string, body []byte) ([]byte, int, error) {
	resp, err := f.Do(ctx, Request{Method: Method(strings.ToUpper(method)), URL: rawURL, Body: body})
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.StatusCode, nil
}
