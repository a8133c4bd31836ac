// Package dblock serializes integration tests that share one Postgres
// database across test binaries.
package dblock

import (
	"hash/fnv"
	"net"
	"strconv"
	"testing"
	"time"
)

const (
	basePort = 45432
	portSpan = 64
	waitFor  = 2 * time.Minute
)

// Acquire blocks until the named lock is free and releases it on test
// cleanup. Tests using the same name never overlap.
func Acquire(t testing.TB, name string) {
	t.Helper()
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port(name)))
	deadline := time.Now().Add(waitFor)
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			t.Cleanup(func() { _ = ln.Close() })
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("dblock %q: timed out waiting for %s", name, addr)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func port(name string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return basePort + int(h.Sum32()%portSpan)
}
