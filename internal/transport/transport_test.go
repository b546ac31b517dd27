package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"", TCP, false},
		{"tcp", TCP, false},
		{"TLS", TLS, false},
		{"ws", WebSocket, false},
		{"websocket", WebSocket, false},
		{"udp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestListenFunc_TLSRequiresConfig(t *testing.T) {
	if _, err := ListenFunc(TLS, Options{}); err == nil {
		t.Error("ListenFunc(TLS) without a config should fail")
	}
	if _, err := ListenFunc(Kind("quic"), Options{}); err == nil {
		t.Error("ListenFunc() with an unknown kind should fail")
	}
}

func TestListenFunc_TCPDeadline(t *testing.T) {
	listen, err := ListenFunc(TCP, Options{})
	if err != nil {
		t.Fatalf("ListenFunc(TCP) error = %v", err)
	}
	l, err := listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen() error = %v", err)
	}
	defer l.Close()

	d, ok := l.(interface{ SetDeadline(time.Time) error })
	if !ok {
		t.Fatal("TCP acceptor does not support SetDeadline")
	}
	_ = d.SetDeadline(time.Now().Add(20 * time.Millisecond))

	_, err = l.Accept()
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("Accept() error = %v, want timeout", err)
	}
}

func TestGenerateSelfSigned(t *testing.T) {
	cert, err := GenerateSelfSigned(DefaultCertParams())
	if err != nil {
		t.Fatalf("GenerateSelfSigned() error = %v", err)
	}

	if cert.Certificate.Subject.CommonName != "sockserve" {
		t.Errorf("CommonName = %q, want sockserve", cert.Certificate.Subject.CommonName)
	}
	if err := cert.Certificate.VerifyHostname("127.0.0.1"); err != nil {
		t.Errorf("VerifyHostname(127.0.0.1) error = %v", err)
	}
	if err := cert.Certificate.VerifyHostname("localhost"); err != nil {
		t.Errorf("VerifyHostname(localhost) error = %v", err)
	}
	if _, err := tls.X509KeyPair(cert.CertPEM, cert.KeyPEM); err != nil {
		t.Errorf("X509KeyPair() error = %v", err)
	}
}

func TestNewTLSConfigFromMemory_Invalid(t *testing.T) {
	if _, err := NewTLSConfigFromMemory([]byte("nope"), []byte("nope")); err == nil {
		t.Error("NewTLSConfigFromMemory() with garbage PEM should fail")
	}
}

func TestListenTLS_NoCertificate(t *testing.T) {
	if _, err := ListenTLS("127.0.0.1:0", &tls.Config{}); err == nil {
		t.Error("ListenTLS() without certificates should fail")
	}
}

func TestTLSAcceptor_RoundTrip(t *testing.T) {
	cert, err := GenerateSelfSigned(DefaultCertParams())
	if err != nil {
		t.Fatalf("GenerateSelfSigned() error = %v", err)
	}
	cfg, err := NewTLSConfigFromMemory(cert.CertPEM, cert.KeyPEM)
	if err != nil {
		t.Fatalf("NewTLSConfigFromMemory() error = %v", err)
	}

	a, err := ListenTLS("127.0.0.1:0", cfg)
	if err != nil {
		t.Fatalf("ListenTLS() error = %v", err)
	}
	defer a.Close()

	go func() {
		conn, err := a.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(conn, conn)
	}()

	pool := x509.NewCertPool()
	pool.AddCert(cert.Certificate)
	client, err := tls.Dial("tcp", a.Addr().String(), &tls.Config{
		RootCAs:    pool,
		ServerName: "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("tls.Dial() error = %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("echo = %q, want ping", buf)
	}
}

func TestTLSAcceptor_Deadline(t *testing.T) {
	cert, err := GenerateSelfSigned(DefaultCertParams())
	if err != nil {
		t.Fatalf("GenerateSelfSigned() error = %v", err)
	}
	cfg, _ := NewTLSConfigFromMemory(cert.CertPEM, cert.KeyPEM)

	a, err := ListenTLS("127.0.0.1:0", cfg)
	if err != nil {
		t.Fatalf("ListenTLS() error = %v", err)
	}
	defer a.Close()

	_ = a.SetDeadline(time.Now().Add(20 * time.Millisecond))
	_, err = a.Accept()
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("Accept() error = %v, want timeout", err)
	}
}

func TestWebSocketAcceptor_RoundTrip(t *testing.T) {
	a, err := ListenWebSocket("127.0.0.1:0", "/ws")
	if err != nil {
		t.Fatalf("ListenWebSocket() error = %v", err)
	}
	defer a.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws://"+a.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	conn, err := a.Accept()
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	defer conn.Close()

	if err := client.WriteMessage(websocket.BinaryMessage, []byte("hel")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if err := client.WriteMessage(websocket.TextMessage, []byte("lo")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	buf := make([]byte, 5)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("server read %q, want hello", buf)
	}

	if _, err := conn.Write([]byte("world")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	mt, msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if mt != websocket.BinaryMessage || string(msg) != "world" {
		t.Errorf("client read (%d, %q), want binary world", mt, msg)
	}
}

func TestWebSocketAcceptor_ClientCloseIsEOF(t *testing.T) {
	a, err := ListenWebSocket("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("ListenWebSocket() error = %v", err)
	}
	defer a.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws://"+a.Addr().String()+"/", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	conn, err := a.Accept()
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	defer conn.Close()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = client.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	defer client.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 8)); err != io.EOF {
		t.Errorf("Read() error = %v, want io.EOF", err)
	}
}

func TestWebSocketAcceptor_Deadline(t *testing.T) {
	a, err := ListenWebSocket("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("ListenWebSocket() error = %v", err)
	}
	defer a.Close()

	_ = a.SetDeadline(time.Now().Add(20 * time.Millisecond))
	_, err = a.Accept()
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("Accept() error = %v, want timeout", err)
	}

	// A past deadline fails immediately.
	_ = a.SetDeadline(time.Now().Add(-time.Second))
	if _, err := a.Accept(); !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("Accept() error = %v, want timeout", err)
	}
}

func TestWebSocketAcceptor_CloseUnblocksAccept(t *testing.T) {
	a, err := ListenWebSocket("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("ListenWebSocket() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Accept()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = a.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, net.ErrClosed) {
			t.Errorf("Accept() error = %v, want net.ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close() did not unblock Accept()")
	}

	// Close is idempotent.
	_ = a.Close()
}
