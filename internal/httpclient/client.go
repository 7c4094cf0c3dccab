// Package httpclient builds the HTTP clients used to reach the upstream API,
// with proxy support and token authentication.
package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MacJediWizard/msp-report/internal/config"
	"golang.org/x/net/proxy"
	"golang.org/x/oauth2"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// UserAgent is sent with every request made by clients from this package.
var UserAgent = "msp-report/dev"

// Options configures the HTTP client.
type Options struct {
	// Timeout for HTTP requests (default: 30s)
	Timeout time.Duration
	// Proxy contains proxy settings; nil means direct connections.
	Proxy *config.ProxyConfig
	// Token, when set, is attached to every request as "Authorization: <AuthScheme> <Token>".
	Token string
	// AuthScheme defaults to Bearer.
	AuthScheme string
}

// New creates an HTTP client with optional proxy support and token authentication.
func New(opts Options) (*http.Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if opts.Proxy.HasProxy() {
		if err := applyProxy(transport, opts.Proxy); err != nil {
			return nil, fmt.Errorf("configure proxy: %w", err)
		}
	}

	var rt http.RoundTripper = &userAgentTransport{base: transport}
	if opts.Token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: opts.Token,
				TokenType:   opts.AuthScheme,
			}),
			Base: rt,
		}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: rt,
	}, nil
}

// NewWithConfig creates an authenticated HTTP client from the report configuration.
func NewWithConfig(cfg *config.ReportConfig) (*http.Client, error) {
	return New(Options{
		Timeout:    cfg.HTTPTimeout,
		Proxy:      &cfg.Proxy,
		Token:      cfg.APIToken,
		AuthScheme: cfg.AuthScheme,
	})
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", UserAgent)
	return t.base.RoundTrip(r)
}

// applyProxy sets up proxying on the transport. SOCKS5 wins over HTTP(S) proxies.
func applyProxy(transport *http.Transport, cfg *config.ProxyConfig) error {
	if cfg.SOCKS5Proxy != "" {
		dialer, err := socks5Dialer(cfg.SOCKS5Proxy)
		if err != nil {
			return err
		}
		transport.DialContext = dialer
		return nil
	}

	sel := proxySelector{cfg: cfg}
	transport.Proxy = sel.proxyFor
	return nil
}

func socks5Dialer(rawURL string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	proxyURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse SOCKS5 proxy URL: %w", err)
	}

	var auth *proxy.Auth
	if proxyURL.User != nil {
		password, _ := proxyURL.User.Password()
		auth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
	}

	dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}

type proxySelector struct {
	cfg *config.ProxyConfig
}

// proxyFor returns the proxy URL for the request, or nil to connect directly.
func (s proxySelector) proxyFor(req *http.Request) (*url.URL, error) {
	if bypassProxy(req.URL.Host, s.cfg.NoProxy) {
		return nil, nil
	}

	raw := s.cfg.HTTPProxy
	if req.URL.Scheme == "https" && s.cfg.HTTPSProxy != "" {
		raw = s.cfg.HTTPSProxy
	}
	if raw == "" {
		return nil, nil
	}
	return url.Parse(raw)
}

// bypassProxy reports whether host matches an entry of the comma separated
// no_proxy list. Entries match exactly, as a domain suffix (".example.com"),
// as a parent domain ("example.com" matches "api.example.com"), or "*".
func bypassProxy(host, noProxy string) bool {
	if noProxy == "" {
		return false
	}

	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	hostname = strings.ToLower(hostname)

	for _, entry := range strings.Split(noProxy, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
			continue
		case entry == "*", entry == hostname:
			return true
		case strings.HasPrefix(entry, ".") && strings.HasSuffix(hostname, entry):
			return true
		case strings.HasSuffix(hostname, "."+entry):
			return true
		}
	}
	return false
}

// ProxyInfo returns a description of the configured proxy with credentials masked.
func ProxyInfo(cfg *config.ProxyConfig) string {
	if !cfg.HasProxy() {
		return "No proxy configured"
	}

	var parts []string
	if cfg.SOCKS5Proxy != "" {
		parts = append(parts, "SOCKS5: "+maskProxyURL(cfg.SOCKS5Proxy))
	}
	if cfg.HTTPProxy != "" {
		parts = append(parts, "HTTP: "+maskProxyURL(cfg.HTTPProxy))
	}
	if cfg.HTTPSProxy != "" {
		parts = append(parts, "HTTPS: "+maskProxyURL(cfg.HTTPSProxy))
	}
	if cfg.NoProxy != "" {
		parts = append(parts, "NoProxy: "+cfg.NoProxy)
	}
	return strings.Join(parts, ", ")
}

func maskProxyURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	if _, hasPass := u.User.Password(); hasPass {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
