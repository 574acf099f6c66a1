package listener

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// testTLSConfigs returns a server config with a self-signed certificate for 127.0.0.1
// and a client config that trusts it.
func testTLSConfigs(t *testing.T) (*tls.Config, *tls.Config) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating private key: %v", err)
	}
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("generating serial number: %v", err)
	}

	template := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{"Rankdesk Test"}},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	keyDer, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshalling private key: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDer})
	serverCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("loading key pair: %v", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		t.Fatalf("adding certificate to pool")
	}
	return &tls.Config{Certificates: []tls.Certificate{serverCert}}, &tls.Config{RootCAs: pool}
}

func TestPeekedConnReplaysBuffer(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := &peekedConn{Conn: server, reader: io.MultiReader(strings.NewReader("GET "), server)}
	go func() {
		client.Write([]byte("/api"))
		client.Close()
	}()

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
	}
	if string(got) != "GET /api" {
		t.Fatalf("\nwanted:\n%q\ngot:\n%q", "GET /api", got)
	}
}

func TestDualListener(t *testing.T) {
	serverTLS, clientTLS := testTLSConfigs(t)
	base, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	defer base.Close()

	dual := NewDualListener(base, serverTLS)
	dual.SniffTimeout = 200 * time.Millisecond

	// echo accepts a single connection and writes back whatever it reads.
	echo := func() chan error {
		errs := make(chan error, 1)
		go func() {
			conn, err := dual.Accept()
			if err != nil {
				errs <- fmt.Errorf("accept failed: %w", err)
				return
			}
			defer conn.Close()
			buf := make([]byte, 1024)
			n, err := conn.Read(buf)
			if err != nil && err != io.EOF {
				errs <- fmt.Errorf("server read failed: %w", err)
				return
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				errs <- fmt.Errorf("server write failed: %w", err)
				return
			}
			close(errs)
		}()
		return errs
	}

	roundTrip := func(t *testing.T, conn net.Conn, want []byte) {
		t.Helper()
		if _, err := conn.Write(want); err != nil {
			t.Fatalf("client write failed: %v", err)
		}
		got := make([]byte, len(want))
		if _, err := io.ReadFull(conn, got); err != nil {
			t.Fatalf("client read failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("\nwanted:\n%q\ngot:\n%q", want, got)
		}
	}

	t.Run("should pass plain connections through", func(t *testing.T) {
		errs := echo()
		conn, err := net.Dial("tcp", base.Addr().String())
		if err != nil {
			t.Fatalf("dialing: %v", err)
		}
		defer conn.Close()

		roundTrip(t, conn, []byte("GET /api/phone/processor_rankings"))
		if err := <-errs; err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
	})

	t.Run("should terminate tls connections", func(t *testing.T) {
		errs := echo()
		conn, err := tls.Dial("tcp", base.Addr().String(), clientTLS)
		if err != nil {
			t.Fatalf("dialing: %v", err)
		}
		defer conn.Close()

		roundTrip(t, conn, []byte("tls rankings"))
		if err := <-errs; err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
	})

	t.Run("should time out silent clients on first read", func(t *testing.T) {
		errs := echo()
		conn, err := net.Dial("tcp", base.Addr().String())
		if err != nil {
			t.Fatalf("dialing: %v", err)
		}
		defer conn.Close()

		err = <-errs
		if err == nil || !strings.Contains(err.Error(), "sniffing initial bytes") {
			t.Fatalf("\nwanted:\nsniffing initial bytes error\ngot:\n%v", err)
		}
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("\nwanted:\ntimeout\ngot:\n%v", err)
		}
	})

	t.Run("should report failed handshakes on first read", func(t *testing.T) {
		errs := echo()
		_, err := tls.Dial("tcp", base.Addr().String(), &tls.Config{RootCAs: x509.NewCertPool()})
		if err == nil {
			t.Fatalf("\nwanted:\nhandshake error\ngot:\nnil")
		}
		serverErr := <-errs
		if serverErr == nil || !strings.Contains(serverErr.Error(), "performing tls handshake") {
			t.Fatalf("\nwanted:\nperforming tls handshake error\ngot:\n%v", serverErr)
		}
	})

	t.Run("should fail short first reads", func(t *testing.T) {
		errs := echo()
		conn, err := net.Dial("tcp", base.Addr().String())
		if err != nil {
			t.Fatalf("dialing: %v", err)
		}
		conn.Write([]byte{0x16})
		conn.Close()

		serverErr := <-errs
		if !errors.Is(serverErr, io.EOF) && !errors.Is(serverErr, io.ErrUnexpectedEOF) {
			t.Fatalf("\nwanted:\nEOF\ngot:\n%v", serverErr)
		}
	})
}

func TestDualListenerAcceptDoesNotBlock(t *testing.T) {
	serverTLS, clientTLS := testTLSConfigs(t)
	base, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("rankings"))
	})}
	go server.Serve(NewDualListener(base, serverTLS))
	defer server.Close()

	idle, err := net.Dial("tcp", base.Addr().String())
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer idle.Close()

	get := func(t *testing.T, client *http.Client, url string) {
		t.Helper()
		res, err := client.Get(url)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer res.Body.Close()
		body, _ := io.ReadAll(res.Body)
		if string(body) != "rankings" {
			t.Fatalf("\nwanted:\nrankings\ngot:\n%q", body)
		}
	}

	t.Run("should serve plain clients while another client stays silent", func(t *testing.T) {
		client := &http.Client{Timeout: 2 * time.Second}
		get(t, client, "http://"+base.Addr().String()+"/")
	})

	t.Run("should serve tls clients while another client stays silent", func(t *testing.T) {
		client := &http.Client{
			Timeout:   2 * time.Second,
			Transport: &http.Transport{TLSClientConfig: clientTLS},
		}
		get(t, client, "https://"+base.Addr().String()+"/")
	})
}

func TestSniffConnDeadlines(t *testing.T) {
	t.Run("should keep caller deadlines after detection", func(t *testing.T) {
		serverTLS, _ := testTLSConfigs(t)
		server, client := net.Pipe()
		defer client.Close()

		conn := &sniffConn{Conn: server, tlsConfig: serverTLS, timeout: time.Second}
		defer conn.Close()
		if err := conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
			t.Fatalf("setting deadline: %v", err)
		}

		go client.Write([]byte("GET / HTTP/1.1\r\n"))
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if !strings.HasPrefix(string(buf[:n]), "GET ") {
			t.Fatalf("\nwanted:\nreplayed bytes\ngot:\n%q", buf[:n])
		}

		_, err = conn.Read(buf)
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("\nwanted:\ntimeout from the caller deadline\ngot:\n%v", err)
		}
	})

	t.Run("should return the detection error on every call", func(t *testing.T) {
		serverTLS, _ := testTLSConfigs(t)
		server, client := net.Pipe()
		client.Close()

		conn := &sniffConn{Conn: server, tlsConfig: serverTLS, timeout: time.Second}
		_, readErr := conn.Read(make([]byte, 1))
		_, writeErr := conn.Write([]byte("x"))
		if readErr == nil || readErr != writeErr {
			t.Fatalf("\nwanted:\nthe same detection error\ngot:\n%v\n%v", readErr, writeErr)
		}
		if _, ok := conn.ConnectionState(); ok {
			t.Fatalf("wanted no tls state for a failed connection")
		}
	})
}

func TestDualListenerWithoutTLS(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	dual := NewDualListener(&mockListener{accept: func() (net.Conn, error) { return server, nil }}, nil)

	conn, err := dual.Accept()
	if err != nil {
		t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
	}
	if conn != server {
		t.Fatalf("\nwanted:\nraw connection\ngot:\n%T", conn)
	}
}

type mockListener struct {
	accept func() (net.Conn, error)
}

func (m *mockListener) Accept() (net.Conn, error) { return m.accept() }
func (m *mockListener) Close() error              { return nil }
func (m *mockListener) Addr() net.Addr            { return &net.TCPAddr{} }

func TestResilientListener(t *testing.T) {
	t.Run("should skip recoverable errors", func(t *testing.T) {
		var calls atomic.Int32
		failing := &mockListener{
			accept: func() (net.Conn, error) {
				if calls.Add(1) == 1 {
					return nil, errors.New("tls: first record does not look like a TLS handshake")
				}
				server, client := net.Pipe()
				go func() {
					client.Write([]byte("hello"))
					client.Close()
				}()
				return server, nil
			},
		}
		core, logs := observer.New(zap.WarnLevel)

		resilient := NewResilientListener(failing, zap.New(core))
		conn, err := resilient.Accept()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer conn.Close()

		got, _ := io.ReadAll(conn)
		if string(got) != "hello" {
			t.Fatalf("\nwanted:\nhello\ngot:\n%q", got)
		}
		if calls.Load() != 2 {
			t.Fatalf("\nwanted:\n2 accepts\ngot:\n%d", calls.Load())
		}
		if resilient.Rejected() != 1 {
			t.Fatalf("\nwanted:\n1 rejected\ngot:\n%d", resilient.Rejected())
		}
		if logs.FilterMessage("connection rejected").Len() != 1 {
			t.Fatalf("\nwanted:\n1 rejection log\ngot:\n%v", logs.All())
		}
	})

	t.Run("should stop on closed listener", func(t *testing.T) {
		var calls atomic.Int32
		closed := &mockListener{
			accept: func() (net.Conn, error) {
				calls.Add(1)
				return nil, fmt.Errorf("accept tcp: %w", net.ErrClosed)
			},
		}

		_, err := NewResilientListener(closed, nil).Accept()
		if !errors.Is(err, net.ErrClosed) {
			t.Fatalf("\nwanted:\nnet.ErrClosed\ngot:\n%v", err)
		}
		if calls.Load() != 1 {
			t.Fatalf("\nwanted:\n1 accept\ngot:\n%d", calls.Load())
		}
	})
}
