package transport

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"
)

func TestTCPTransportRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- nil
			return
		}
		buf := make([]byte, 5)
		if _, err := conn.Read(buf); err != nil {
			serverDone <- nil
			return
		}
		serverDone <- buf
	}()

	client, err := DialTCP(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := <-serverDone
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("server received %q, want %q", got, "hello")
	}
}

func TestUpgradeToTLSHandshakes(t *testing.T) {
	cert := generateSelfSignedCert(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	serverErr := make(chan error, 1)
	go func() {
		raw, err := ln.Accept()
		if err != nil {
			serverErr <- err
			return
		}
		tlsConn := tls.Server(raw, serverCfg)
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			serverErr <- err
			return
		}
		buf := make([]byte, 4)
		if _, err := tlsConn.Read(buf); err != nil {
			serverErr <- err
			return
		}
		if _, err := tlsConn.Write(buf); err != nil {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	client, err := DialTCP(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	clientCfg := &tls.Config{InsecureSkipVerify: true}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.UpgradeToTLS(ctx, clientCfg); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("write after upgrade: %v", err)
	}
	echo := make([]byte, 4)
	if _, err := client.Read(echo); err != nil {
		t.Fatalf("read after upgrade: %v", err)
	}
	if !bytes.Equal(echo, []byte("ping")) {
		t.Fatalf("echo = %q, want %q", echo, "ping")
	}

	if err := <-serverErr; err != nil {
		t.Fatalf("server: %v", err)
	}
}

func generateSelfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "adbcore-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}
}
