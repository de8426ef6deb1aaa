// Package transport builds the HTTP round trippers used for outbound calls.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Kind selects a transport implementation.
type Kind string

const (
	// KindStandard is Go's default transport.
	KindStandard Kind = "standard"
	// KindChrome presents Chrome's TLS fingerprint. Some hosting CDNs in
	// front of WooCommerce shops rate limit Go's TLS client hello.
	KindChrome Kind = "chrome"
)

// ErrUnknownKind is returned by New for an unsupported Kind.
var ErrUnknownKind = errors.New("unknown transport kind")

// New returns a round tripper of the given kind. An empty kind is standard.
func New(kind Kind, timeout time.Duration) (http.RoundTripper, error) {
	switch kind {
	case "", KindStandard:
		return NewStandardTransport(timeout), nil
	case KindChrome:
		return NewChromeTransport(timeout), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// NewStandardTransport clones http.DefaultTransport with the dial and TLS
// handshake bounded by timeout.
func NewStandardTransport(timeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = timeout
	return t
}

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint. HTTP/2 is used when ALPN negotiates it, HTTP/1.1 otherwise.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	t := &chromeTransport{
		dialer: &net.Dialer{Timeout: timeout},
		protos: &protoCache{},
	}
	t.h2 = &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return t.dial(ctx, network, addr)
		},
	}
	t.h1 = &http.Transport{
		DialTLSContext: t.dial,
	}
	return t
}

// chromeTransport routes each host to HTTP/2 or HTTP/1.1 by the protocol its
// TLS handshake negotiated.
type chromeTransport struct {
	dialer *net.Dialer
	protos *protoCache
	h2     *http2.Transport
	h1     *http.Transport
}

// RoundTrip implements http.RoundTripper.
// Plain HTTP goes over HTTP/1.1. For TLS hosts HTTP/2 is tried unless an
// earlier handshake settled on HTTP/1.1. A failed HTTP/2 attempt is retried
// over HTTP/1.1 only when the handshake showed the server does not speak h2,
// in which case the request never reached the application.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	addr := hostPort(req)
	if proto, ok := t.protos.get(addr); ok && proto != http2.NextProtoTLS {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if proto, ok := t.protos.get(addr); ok && proto != http2.NextProtoTLS {
		return t.h1.RoundTrip(req)
	}
	return nil, err
}

// dial establishes a TLS connection with Chrome's fingerprint and records the
// negotiated protocol for the address.
func (t *chromeTransport) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := t.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	conn.SetDeadline(time.Time{})

	t.protos.set(addr, tlsConn.ConnectionState().NegotiatedProtocol)
	return tlsConn, nil
}

// hostPort returns the dial address of a request, adding the default port.
func hostPort(req *http.Request) string {
	host := req.URL.Host
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	port := "443"
	if req.URL.Scheme == "http" {
		port = "80"
	}
	return net.JoinHostPort(host, port)
}

// protoCache remembers the ALPN protocol negotiated per address.
type protoCache struct {
	m sync.Map
}

func (c *protoCache) get(addr string) (string, bool) {
	v, ok := c.m.Load(addr)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *protoCache) set(addr, proto string) {
	c.m.Store(addr, proto)
}
