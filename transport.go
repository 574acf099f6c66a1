package rankdesk

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/rankdesk/rankdesk/rawhttp"
	"github.com/rankdesk/rankdesk/session"
	utls "github.com/refraction-networking/utls"
	"go.uber.org/zap"
)

// apiRoundTripper decorates every API request with the session token, a request ID
// and content negotiation headers, and decompresses the response.
type apiRoundTripper struct {
	session session.Provider
	base    http.RoundTripper
}

// traceRoundTripper logs raw request and response dumps at debug level.
type traceRoundTripper struct {
	logger *zap.Logger
	base   http.RoundTripper
}

// newBaseTransport creates the transport that talks to the network.
// TLS connections present a Chrome ClientHello through utls so the API sees the same
// fingerprint as the browser console, with ALPN pinned to http/1.1.
func newBaseTransport(insecureSkipVerify bool) *http.Transport {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		sniHost, _, err := net.SplitHostPort(addr)
		if err != nil {
			sniHost = addr
		}

		uConn := utls.UClient(tcpConn, &utls.Config{
			ServerName:         sniHost,
			InsecureSkipVerify: insecureSkipVerify,
		}, utls.HelloChrome_Auto)

		if err := uConn.BuildHandshakeState(); err != nil {
			tcpConn.Close()
			return nil, fmt.Errorf("building handshake state : %w", err)
		}

		// HelloChrome_Auto ignores Config.NextProtos and offers h2, which http.Transport
		// cannot speak over a custom dialer.
		foundALPN := false
		for _, ext := range uConn.Extensions {
			if alpnExt, ok := ext.(*utls.ALPNExtension); ok {
				alpnExt.AlpnProtocols = []string{"http/1.1"}
				foundALPN = true
				break
			}
		}
		if !foundALPN {
			tcpConn.Close()
			return nil, errors.New("could not find ALPNExtension")
		}

		if err := uConn.HandshakeContext(ctx); err != nil {
			tcpConn.Close()
			return nil, err
		}
		return uConn, nil
	}
	return transport
}

// newTransport assembles the round tripper chain used by the API client.
func newTransport(provider session.Provider, logger *zap.Logger, trace, insecureSkipVerify bool) http.RoundTripper {
	var rt http.RoundTripper = &apiRoundTripper{
		session: provider,
		base:    newBaseTransport(insecureSkipVerify),
	}
	if trace && logger != nil {
		rt = &traceRoundTripper{logger: logger, base: rt}
	}
	return rt
}

// RoundTrip satisfies http.RoundTripper.
func (a *apiRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())

	if a.session != nil {
		if token := a.session.Token(); token != "" && out.Header.Get("Authorization") == "" {
			out.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if out.Header.Get("X-Request-ID") == "" {
		id, ok := RequestIDFromContext(out.Context())
		if !ok {
			id, _ = uuid.NewV7()
		}
		out.Header.Set("X-Request-ID", id.String())
	}
	if out.Header.Get("Accept") == "" {
		out.Header.Set("Accept", "application/json")
	}
	out.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := a.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if err := decodeBody(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// decodeBody replaces a gzip or brotli encoded body with its decompressed content.
func decodeBody(resp *http.Response) error {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))

	var reader io.Reader
	switch encoding {
	case "gzip":
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		return nil
	}

	decompressedBody, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("reading %s content : %w", encoding, err)
	}
	resp.Body.Close()

	resp.Body = io.NopCloser(bytes.NewReader(decompressedBody))
	resp.ContentLength = int64(len(decompressedBody))
	resp.Header.Set("Content-Length", fmt.Sprintf("%d", len(decompressedBody)))
	resp.Header.Del("Content-Encoding")
	resp.Uncompressed = true
	return nil
}

// RoundTrip satisfies http.RoundTripper.
func (t *traceRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if dump, err := rawhttp.DumpRequest(req); err == nil {
		t.logger.Debug("api request", zap.String("method", req.Method), zap.String("url", req.URL.String()), zap.String("dump", dump.String()))
	} else {
		t.logger.Warn("dumping api request", zap.Error(err))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debug("api request failed", zap.String("url", req.URL.String()), zap.Error(err))
		return nil, err
	}

	if dump, err := rawhttp.DumpResponse(resp); err == nil {
		t.logger.Debug("api response", zap.Int("status", resp.StatusCode), zap.String("dump", dump.String()))
	} else {
		t.logger.Warn("dumping api response", zap.Error(err))
	}
	return resp, nil
}
