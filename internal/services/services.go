package services

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/muurk/sockserve/internal/engine"
)

// Factory builds a fresh handler for one server.
type Factory func() engine.Handler

var registry = map[string]Factory{
	"echo":    Echo,
	"discard": Discard,
	"zero":    Zero,
	"chargen": Chargen,
	"daytime": Daytime,
}

// Lookup returns the handler for a service name.
func Lookup(name string) (engine.Handler, error) {
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown service %q (valid: %s)", name, strings.Join(Names(), ", "))
	}
	return f(), nil
}

// Names lists the registered services in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Echo writes back everything it reads (RFC 862).
func Echo() engine.Handler {
	return engine.HandlerFunc(func(conn net.Conn) error {
		_, err := io.Copy(conn, conn)
		return err
	})
}

// Discard reads and drops everything (RFC 863).
func Discard() engine.Handler {
	return engine.HandlerFunc(func(conn net.Conn) error {
		_, err := io.Copy(io.Discard, conn)
		return err
	})
}

// Zero writes zero bytes until the peer goes away.
func Zero() engine.Handler {
	return engine.HandlerFunc(func(conn net.Conn) error {
		buf := make([]byte, 4096)
		for {
			if _, err := conn.Write(buf); err != nil {
				return ignoreClosed(err)
			}
		}
	})
}

const (
	chargenFirst = ' '
	chargenCount = 95
	chargenWidth = 72
)

// Chargen writes the RFC 864 rotating pattern: 72 printable characters
// per line, each line starting one character further along the ASCII
// printable set.
func Chargen() engine.Handler {
	return engine.HandlerFunc(func(conn net.Conn) error {
		for offset := 0; ; offset = (offset + 1) % chargenCount {
			if _, err := conn.Write(chargenLine(offset)); err != nil {
				return ignoreClosed(err)
			}
		}
	})
}

func chargenLine(offset int) []byte {
	line := make([]byte, chargenWidth+2)
	for i := 0; i < chargenWidth; i++ {
		line[i] = byte(chargenFirst + (offset+i)%chargenCount)
	}
	line[chargenWidth] = '\r'
	line[chargenWidth+1] = '\n'
	return line
}

// Daytime writes the current time in RFC 1123 format and closes (RFC 867).
func Daytime() engine.Handler {
	return daytime(time.Now)
}

func daytime(now func() time.Time) engine.Handler {
	return engine.HandlerFunc(func(conn net.Conn) error {
		_, err := io.WriteString(conn, now().Format(time.RFC1123)+"\r\n")
		return err
	})
}

// ignoreClosed treats a peer hang-up as a normal end of a write-only stream.
func ignoreClosed(err error) error {
	switch {
	case errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return nil
	}
	return err
}
