package rankdesk

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/rankdesk/rankdesk/rest"
	"github.com/rankdesk/rankdesk/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testBaseRoundTripper struct {
	wasCalled bool
	response  *http.Response
	request   *http.Request
}

func (tR *testBaseRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	tR.wasCalled = true
	tR.request = req
	if tR.response == nil {
		tR.response = &http.Response{
			StatusCode: http.StatusNoContent,
			Body:       io.NopCloser(bytes.NewBufferString("")),
			Header:     make(http.Header),
		}
	}
	return tR.response, nil
}

func encodedResponse(t *testing.T, encoding, body string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		w.Write([]byte(body))
		w.Close()
	case "br":
		w := brotli.NewWriter(&buf)
		w.Write([]byte(body))
		w.Close()
	default:
		buf.WriteString(body)
	}

	header := make(http.Header)
	if encoding != "" {
		header.Set("Content-Encoding", encoding)
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        header,
		Body:          io.NopCloser(&buf),
		ContentLength: int64(buf.Len()),
	}
}

func TestAPIRoundTripper(t *testing.T) {
	t.Run("should add the session token and request headers", func(t *testing.T) {
		base := &testBaseRoundTripper{}
		rt := &apiRoundTripper{session: session.Static{Authenticated: true, Value: "abc"}, base: base}

		requestID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "https://api.example.com/api/phone/processor_rankings", nil)
		req = req.WithContext(ContextWithRequestID(req.Context(), requestID))

		if _, err := rt.RoundTrip(req); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		got := base.request.Header
		if got.Get("Authorization") != "Bearer abc" {
			t.Fatalf("\nwanted:\nBearer abc\ngot:\n%q", got.Get("Authorization"))
		}
		if got.Get("X-Request-ID") != requestID.String() {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", requestID, got.Get("X-Request-ID"))
		}
		if got.Get("Accept") != "application/json" || got.Get("Accept-Encoding") != "gzip, br" {
			t.Fatalf("\nwanted:\njson and gzip, br\ngot:\n%v", got)
		}
		if req.Header.Get("Authorization") != "" {
			t.Fatalf("\nwanted:\noriginal request untouched\ngot:\n%v", req.Header)
		}
	})

	t.Run("should generate a request id and skip empty tokens", func(t *testing.T) {
		base := &testBaseRoundTripper{}
		rt := &apiRoundTripper{session: session.Static{}, base: base}

		req := httptest.NewRequest(http.MethodGet, "https://api.example.com/", nil)
		if _, err := rt.RoundTrip(req); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		if _, ok := base.request.Header["Authorization"]; ok {
			t.Fatalf("\nwanted:\nno Authorization header\ngot:\n%v", base.request.Header)
		}
		if _, err := uuid.Parse(base.request.Header.Get("X-Request-ID")); err != nil {
			t.Fatalf("\nwanted:\nuuid request id\ngot:\n%q", base.request.Header.Get("X-Request-ID"))
		}
	})

	for _, encoding := range []string{"gzip", "br", ""} {
		t.Run("should decode "+encoding+" bodies", func(t *testing.T) {
			want := `{"data":[{"processor":"Snapdragon 8"}]}`
			base := &testBaseRoundTripper{response: encodedResponse(t, encoding, want)}
			rt := &apiRoundTripper{base: base}

			resp, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/", nil))
			if err != nil {
				t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != want {
				t.Fatalf("\nwanted:\n%s\ngot:\n%s", want, body)
			}
			if resp.Header.Get("Content-Encoding") != "" {
				t.Fatalf("\nwanted:\nno Content-Encoding\ngot:\n%s", resp.Header.Get("Content-Encoding"))
			}
			if resp.ContentLength != int64(len(want)) {
				t.Fatalf("\nwanted:\n%d\ngot:\n%d", len(want), resp.ContentLength)
			}
		})
	}

	t.Run("should fail on a corrupt gzip body", func(t *testing.T) {
		resp := encodedResponse(t, "", "not gzip")
		resp.Header.Set("Content-Encoding", "gzip")
		rt := &apiRoundTripper{base: &testBaseRoundTripper{response: resp}}

		if _, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/", nil)); err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})
}

func TestTraceRoundTripper(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := &testBaseRoundTripper{response: encodedResponse(t, "", `{"data":[]}`)}
	base.response.Header.Set("Content-Type", "application/json")
	rt := &traceRoundTripper{logger: zap.New(core), base: base}

	req := httptest.NewRequest(http.MethodGet, "https://api.example.com/api/phone/processor_rankings", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"data":[]}` {
		t.Fatalf("\nwanted:\nbody still readable\ngot:\n%q", body)
	}

	requests := logs.FilterMessage("api request").All()
	if len(requests) != 1 {
		t.Fatalf("\nwanted:\n1 request log\ngot:\n%d", len(requests))
	}
	dump := requests[0].ContextMap()["dump"].(string)
	if strings.Contains(dump, "secret-token") {
		t.Fatalf("\nwanted:\nredacted token\ngot:\n%s", dump)
	}
	if logs.FilterMessage("api response").Len() != 1 {
		t.Fatalf("\nwanted:\n1 response log\ngot:\n%v", logs.All())
	}
}

func TestTraceRoundTripperLogin(t *testing.T) {
	const (
		password = "hunter2-secret"
		token    = "eyJhbGciOiJIUzI1NiJ9.rankdesk.signature"
	)

	var received rest.Credentials
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"token":"` + token + `"}}`))
	}))
	defer testServer.Close()

	core, logs := observer.New(zap.DebugLevel)
	client := &http.Client{Transport: newTransport(nil, zap.New(core), true, false)}

	got, err := rest.Login(context.Background(), testServer.URL+"/api", rest.Credentials{Username: "admin", Password: password}, rest.WithHTTPClient(client))
	if err != nil {
		t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
	}
	if got != token {
		t.Fatalf("\nwanted:\n%s\ngot:\n%s", token, got)
	}
	if received.Password != password {
		t.Fatalf("\nwanted:\nthe password to reach the server\ngot:\n%q", received.Password)
	}

	dumps := 0
	for _, entry := range logs.All() {
		for key, value := range entry.ContextMap() {
			text := fmt.Sprint(value)
			if strings.Contains(text, password) || strings.Contains(text, token) {
				t.Fatalf("\nwanted:\nno credentials in %q\ngot:\n%s", key, text)
			}
		}
		if _, ok := entry.ContextMap()["dump"]; ok {
			dumps++
		}
	}
	if dumps != 2 {
		t.Fatalf("\nwanted:\n2 dumps\ngot:\n%d", dumps)
	}
}

func TestBaseTransportDialTLSContext(t *testing.T) {
	t.Run("should speak http/1.1 to tls servers", func(t *testing.T) {
		testTLSServer := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("rankdesk tls"))
		}))
		defer testTLSServer.Close()

		client := &http.Client{Transport: newTransport(session.Static{}, nil, false, true)}
		resp, err := client.Get(testTLSServer.URL)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer resp.Body.Close()

		if resp.Proto != "HTTP/1.1" {
			t.Fatalf("\nwanted:\nHTTP/1.1\ngot:\n%s", resp.Proto)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "rankdesk tls" {
			t.Fatalf("\nwanted:\nrankdesk tls\ngot:\n%q", body)
		}
	})

	t.Run("should verify certificates by default", func(t *testing.T) {
		testTLSServer := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer testTLSServer.Close()

		client := &http.Client{Transport: newTransport(session.Static{}, nil, false, false)}
		if _, err := client.Get(testTLSServer.URL); err == nil {
			t.Fatalf("\nwanted:\ncertificate error\ngot:\nnil")
		}
	})

	t.Run("should fail on closed ports", func(t *testing.T) {
		client := &http.Client{Transport: newTransport(session.Static{}, nil, false, false)}
		_, err := client.Get("https://127.0.0.1:1")
		if !errors.Is(err, syscall.ECONNREFUSED) {
			t.Fatalf("\nwanted:\n%s\ngot:\n%v", syscall.ECONNREFUSED, err)
		}
	})

	t.Run("should honour context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://127.0.0.1:1", nil)
		_, err := (&http.Client{Transport: newTransport(nil, nil, false, false)}).Do(req)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("\nwanted:\ncontext.Canceled\ngot:\n%v", err)
		}
	})
}
