package services

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/muurk/sockserve/internal/engine"
)

// serve runs h on one end of a pipe and returns the other end plus a
// channel carrying the handler's result.
func serve(t *testing.T, h engine.Handler) (net.Conn, <-chan error) {
	t.Helper()
	server, client := net.Pipe()
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Serve(server)
		server.Close()
	}()
	t.Cleanup(func() { client.Close() })
	return client, errCh
}

func waitResult(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return")
		return nil
	}
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		h, err := Lookup(name)
		if err != nil || h == nil {
			t.Errorf("Lookup(%q) = %v, %v", name, h, err)
		}
	}
	if _, err := Lookup("ECHO"); err != nil {
		t.Errorf("Lookup() should be case-insensitive, got %v", err)
	}
	if _, err := Lookup("qotd"); err == nil {
		t.Error("Lookup(qotd) should fail")
	}
}

func TestNames_Sorted(t *testing.T) {
	names := Names()
	want := []string{"chargen", "daytime", "discard", "echo", "zero"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", names, want)
	}
}

func TestEcho(t *testing.T) {
	client, errCh := serve(t, Echo())

	go func() { _, _ = client.Write([]byte("hello")) }()
	buf := make([]byte, 5)
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("echo = %q, want hello", buf)
	}

	client.Close()
	if err := waitResult(t, errCh); err != nil {
		t.Errorf("Serve() error = %v, want nil on EOF", err)
	}
}

func TestDiscard(t *testing.T) {
	client, errCh := serve(t, Discard())

	if _, err := client.Write([]byte("into the void")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	client.Close()
	if err := waitResult(t, errCh); err != nil {
		t.Errorf("Serve() error = %v, want nil", err)
	}
}

func TestZero(t *testing.T) {
	client, errCh := serve(t, Zero())

	buf := make([]byte, 1000)
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}

	client.Close()
	if err := waitResult(t, errCh); err != nil {
		t.Errorf("Serve() error = %v, want nil after hang-up", err)
	}
}

func TestChargen(t *testing.T) {
	client, errCh := serve(t, Chargen())

	r := bufio.NewReader(client)
	first, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	second, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}

	if len(first) != chargenWidth+2 {
		t.Errorf("line length = %d, want %d", len(first), chargenWidth+2)
	}
	if !strings.HasPrefix(first, ` !"#$`) {
		t.Errorf("first line = %q, want it to start at space", first)
	}
	if !strings.HasPrefix(second, `!"#$%`) {
		t.Errorf("second line = %q, want it rotated by one", second)
	}

	client.Close()
	if err := waitResult(t, errCh); err != nil {
		t.Errorf("Serve() error = %v, want nil after hang-up", err)
	}
}

func TestChargenLine_Wraps(t *testing.T) {
	line := chargenLine(chargenCount - 1)
	if line[0] != '~' {
		t.Errorf("line[0] = %q, want ~", line[0])
	}
	if line[1] != ' ' {
		t.Errorf("line[1] = %q, want wrap to space", line[1])
	}
}

func TestDaytime(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	client, errCh := serve(t, daytime(func() time.Time { return fixed }))

	got, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	want := "Fri, 01 Mar 2024 12:30:00 UTC\r\n"
	if string(got) != want {
		t.Errorf("daytime = %q, want %q", got, want)
	}
	if err := waitResult(t, errCh); err != nil {
		t.Errorf("Serve() error = %v", err)
	}
}
