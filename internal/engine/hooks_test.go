package engine

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestHooks_ZeroValueIsSafe(t *testing.T) {
	var h Hooks
	h.serverStarting()
	h.serverBound(nil)
	h.serverReady(0)
	h.serverBusy(time.Now())
	h.submitted(nil, nil)
	h.beforeServe(nil)
	h.servingException(nil, errors.New("x"))
	h.afterServe(nil)
	h.serverShuttingDown()
	h.serverStopped(nil)
	h.acceptError(errors.New("x"))
	h.postAcceptError(nil, errors.New("x"))
}

func TestHooks_Chain(t *testing.T) {
	var order []string
	first := Hooks{
		OnServerReady: func(int) { order = append(order, "first") },
		OnAfterServe:  func(net.Conn) { order = append(order, "first-after") },
	}
	second := Hooks{
		OnServerReady: func(int) { order = append(order, "second") },
	}

	chained := first.Chain(second)
	chained.OnServerReady(1)
	chained.OnAfterServe(nil)
	chained.OnServerStopped(nil)

	want := []string{"first", "second", "first-after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestCompletion(t *testing.T) {
	c := newCompletion()
	if c.Err() != nil {
		t.Error("pending completion should report nil error")
	}

	boom := errors.New("boom")
	c.finish(boom)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done() not closed after finish")
	}
	if !errors.Is(c.Err(), boom) {
		t.Errorf("Err() = %v, want %v", c.Err(), boom)
	}
}

func TestUnwrap(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	wrapped, err := applySocketTimeout(server, time.Second)
	if err != nil {
		t.Fatalf("applySocketTimeout() error = %v", err)
	}
	if wrapped == server {
		t.Fatal("expected an idle-timeout wrapper")
	}
	if Unwrap(wrapped) != server {
		t.Error("Unwrap() should return the accepted connection")
	}

	plain, _ := applySocketTimeout(server, 0)
	if plain != server {
		t.Error("zero socket timeout should not wrap")
	}
}
