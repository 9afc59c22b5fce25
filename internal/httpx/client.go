// Package httpx configures the HTTP transport shared by the gateway and
// the upload pipeline: connection pooling, HTTP/2, proxy support and the
// retry policy applied to gateway calls.
package httpx

import (
	"crypto/tls"
	"net"
	nethttp "net/http"
	"os"
	"time"

	"golang.org/x/net/http2"

	"github.com/nimbusdrive/nimbus-cli/internal/config"
	"github.com/nimbusdrive/nimbus-cli/internal/constants"
)

// NewClient creates the HTTP client used for all backend traffic.
// The overall client timeout is zero; each request carries its own
// context deadline.
func NewClient(cfg *config.Config) (*nethttp.Client, error) {
	client, err := configureProxy(cfg, baseTransport())
	if err != nil {
		return nil, err
	}

	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM mode wraps the transport in a negotiator; HTTP/2 tuning
		// does not apply through the wrapper.
		client.Timeout = 0
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	// Proxies often mishandle HTTP/2 multiplexing mid-transfer.
	if proxyActive(cfg) && os.Getenv("NIMBUS_FORCE_HTTP2") != "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	client.Timeout = 0
	return client, nil
}

func baseTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       16,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

func proxyActive(cfg *config.Config) bool {
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}
